package core

import "math"

const defaultEpsilon = 1e-12

// Sensitivity bounds shared by every detector that scales its thresholds.
const (
	MinSensitivity = 0.1
	MaxSensitivity = 2.0
)

// AdmissionExponent shapes how sensitivity lowers the confidence a click
// needs to pass rate limiting.
const AdmissionExponent = 0.8

// MaxConfidence bounds a single detector's confidence score.
const MaxConfidence = 2.0

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FiniteOr returns v when finite, fallback otherwise.
func FiniteOr(v, fallback float64) float64 {
	if IsFinite(v) {
		return v
	}

	return fallback
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// DBToLinear converts dB to a linear amplitude factor (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	if linear < 0 {
		return math.NaN()
	}

	if linear == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// FlooredDB converts a linear amplitude to dB, never returning less than
// floorDB. Non-finite and non-positive input maps to the floor.
func FlooredDB(linear, floorDB float64) float64 {
	if !IsFinite(linear) || linear <= 0 {
		return floorDB
	}

	db := 20 * math.Log10(linear)
	if db < floorDB {
		return floorDB
	}

	return db
}

// SensitivityScale returns sensitivity^exponent with sensitivity clamped to
// [MinSensitivity, MaxSensitivity]. Detector thresholds are divided by it.
func SensitivityScale(sensitivity, exponent float64) float64 {
	s := Clamp(FiniteOr(sensitivity, 1), MinSensitivity, MaxSensitivity)
	return math.Pow(s, exponent)
}

// ScaledThreshold divides base by the sensitivity scale and by snrScale.
// snrScale values below 1 are treated as 1.
func ScaledThreshold(base, sensitivity, exponent, snrScale float64) float64 {
	if !IsFinite(snrScale) || snrScale < 1 {
		snrScale = 1
	}

	return base / SensitivityScale(sensitivity, exponent) / snrScale
}

// Confidence maps value/threshold into [0, MaxConfidence].
func Confidence(value, threshold float64) float64 {
	if !IsFinite(value) || value <= 0 || threshold <= 0 {
		return 0
	}

	return math.Min(value/threshold, MaxConfidence)
}
