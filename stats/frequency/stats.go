// Package frequency computes shape statistics of a one-sided magnitude
// spectrum laid out as N/2 bins without the Nyquist bin, the layout the
// frame builder produces.
package frequency

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Stats holds frequency-domain statistics computed from a magnitude spectrum.
type Stats struct {
	BinCount int
	Sum      float64 // sum of magnitudes
	Average  float64
	Centroid float64 // spectral centroid (Hz)
	Spread   float64 // spectral spread (Hz)
}

// binFreq returns the frequency in Hz of bin i when binCount bins cover
// [0, sampleRate/2).
func binFreq(i int, sampleRate float64, binCount int) float64 {
	return float64(i) * sampleRate / float64(2*binCount)
}

// Calculate computes the statistics of a linear magnitude spectrum (NOT dB).
// Bin i sits at i * sampleRate / (2 * len(magnitude)).
func Calculate(magnitude []float64, sampleRate float64) Stats {
	n := len(magnitude)
	if n == 0 {
		return Stats{}
	}

	s := Stats{BinCount: n}
	s.Sum = vecmath.Sum(magnitude)
	s.Average = s.Sum / float64(n)
	s.Centroid = centroid(magnitude, sampleRate, s.Sum)
	s.Spread = spread(magnitude, sampleRate, s.Centroid, s.Sum)

	return s
}

// Centroid returns the spectral centroid in Hz.
//
//	centroid = sum(f_i * |X_i|) / sum(|X_i|)
func Centroid(magnitude []float64, sampleRate float64) float64 {
	return centroid(magnitude, sampleRate, vecmath.Sum(magnitude))
}

// Spread returns the magnitude-weighted standard deviation around the
// centroid, in Hz.
func Spread(magnitude []float64, sampleRate float64) float64 {
	sum := vecmath.Sum(magnitude)
	return spread(magnitude, sampleRate, centroid(magnitude, sampleRate, sum), sum)
}

func centroid(magnitude []float64, sampleRate float64, sumMag float64) float64 {
	n := len(magnitude)
	if n == 0 || sumMag <= 0 || sampleRate <= 0 {
		return 0
	}
	weightedSum := 0.0
	for i, v := range magnitude {
		weightedSum += binFreq(i, sampleRate, n) * v
	}
	return weightedSum / sumMag
}

func spread(magnitude []float64, sampleRate float64, cent float64, sumMag float64) float64 {
	n := len(magnitude)
	if n == 0 || sumMag <= 0 || sampleRate <= 0 {
		return 0
	}
	weightedSqSum := 0.0
	for i, v := range magnitude {
		diff := binFreq(i, sampleRate, n) - cent
		weightedSqSum += diff * diff * v
	}
	return math.Sqrt(weightedSqSum / sumMag)
}
