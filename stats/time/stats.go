// Package time computes level statistics of a sample window: RMS, peak and
// crest factor, plus where the peak sits.
package time

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Stats holds time-domain level statistics.
//
//nolint:revive
type Stats struct {
	Length         int
	RMS            float64
	RMS_dB         float64
	Peak           float64 // max |x|
	PeakPos        int     // index of the first sample reaching Peak, -1 when empty
	Peak_dB        float64
	CrestFactor    float64 // peak / RMS (linear), 0 when RMS is zero or not finite
	CrestFactor_dB float64
	Energy         float64 // sum of squares
	Power          float64 // energy / length
}

// ampTodB converts an amplitude value to decibels: 20 * log10(|value|).
// Returns -Inf for zero values.
func ampTodB(value float64) float64 {
	a := math.Abs(value)
	if a == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(a)
}

func emptyStats() Stats {
	return Stats{
		PeakPos:        -1,
		RMS_dB:         math.Inf(-1),
		Peak_dB:        math.Inf(-1),
		CrestFactor_dB: math.Inf(-1),
	}
}

// Calculate computes all statistics of signal.
func Calculate(signal []float64) Stats {
	n := len(signal)
	if n == 0 {
		return emptyStats()
	}

	s := Stats{Length: n}
	s.Energy = vecmath.DotProduct(signal, signal)
	s.Power = s.Energy / float64(n)
	s.RMS = math.Sqrt(s.Power)
	s.RMS_dB = ampTodB(s.RMS)

	s.PeakPos = PeakIndex(signal)
	s.Peak = math.Abs(signal[s.PeakPos])
	s.Peak_dB = ampTodB(s.Peak)

	s.CrestFactor = crest(s.Peak, s.RMS)
	s.CrestFactor_dB = ampTodB(s.CrestFactor)

	return s
}

// RMS returns the root-mean-square of the signal.
func RMS(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}

	return math.Sqrt(vecmath.DotProduct(signal, signal) / float64(len(signal)))
}

// Peak returns the peak absolute amplitude of the signal.
func Peak(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}

	return vecmath.MaxAbs(signal)
}

// PeakIndex returns the index of the first sample with the largest absolute
// value, or -1 for an empty signal. NaN samples never win.
func PeakIndex(signal []float64) int {
	if len(signal) == 0 {
		return -1
	}

	pos := 0
	peak := math.Abs(signal[0])
	if math.IsNaN(peak) {
		peak = -1
	}
	for i, x := range signal[1:] {
		if a := math.Abs(x); a > peak {
			peak = a
			pos = i + 1
		}
	}

	return pos
}

// CrestFactor returns the crest factor (peak / RMS) of the signal.
// Returns 0 if RMS is zero or not finite.
func CrestFactor(signal []float64) float64 {
	return crest(Peak(signal), RMS(signal))
}

func crest(peak, rms float64) float64 {
	if rms <= 0 || math.IsNaN(rms) || math.IsInf(rms, 0) {
		return 0
	}

	return peak / rms
}
