package spectrum

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// MagnitudeFromParts computes |X[k]| = sqrt(re[k]^2 + im[k]^2) into dst.
//
// This is the zero-allocation fast path for callers that already have real and
// imaginary parts in separate slices. All three slices must have the same length.
func MagnitudeFromParts(dst, re, im []float64) {
	vecmath.Magnitude(dst, re, im)
}

// MagnitudeToDB converts linear magnitudes to dB in place after multiplying by
// scale. Values below floorDB, zeros and non-finite values map to floorDB.
func MagnitudeToDB(mag []float64, scale, floorDB float64) {
	for i, v := range mag {
		v *= scale
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			mag[i] = floorDB
			continue
		}
		db := 20 * math.Log10(v)
		if db < floorDB {
			db = floorDB
		}
		mag[i] = db
	}
}

// DBToMagnitude writes 10^(db/20) for each bin into dst.
// dst must be at least as long as db.
func DBToMagnitude(dst, db []float64) {
	for i, v := range db {
		if math.IsNaN(v) {
			dst[i] = 0
			continue
		}
		dst[i] = math.Pow(10, v/20)
	}
}

// BinHz returns the bin spacing for a one-sided spectrum of binCount bins,
// i.e. sampleRate / (2*binCount).
func BinHz(sampleRate float64, binCount int) float64 {
	if binCount <= 0 {
		return 0
	}
	return sampleRate / float64(2*binCount)
}
