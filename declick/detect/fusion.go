package detect

import (
	"math"

	"github.com/cwbudde/algo-declick/dsp/core"
)

const (
	// skewCenterHz is where the skew factor peaks at zero skew.
	skewCenterHz   = 4000.0
	skewMinHz      = 20.0
	skewWidthOct   = 1.5
	skewMinFactor  = 0.5
	skewMaxFactor  = 1.25
	adaptiveBase   = 0.8
	sensitiveBase  = 0.6
	overrideLPC    = 1.5
	overrideLPCMin = 0.5
)

// SkewFactor scales method weights from the frame's spectral centroid.
// At zero skew it peaks at 4 kHz; negative skew favours low centroids,
// positive skew high ones. The result is in [0.5, 1.25].
func SkewFactor(centroidHz, skew float64) float64 {
	c := math.Max(core.FiniteOr(centroidHz, skewCenterHz), skewMinHz)
	s := core.Clamp(core.FiniteOr(skew, 0), -1, 1)

	d := math.Log2(c / skewCenterHz)
	z := d / skewWidthOct
	f := 0.75 + 0.25*math.Exp(-z*z/2) + 0.25*s*math.Tanh(d)
	return core.Clamp(f, skewMinFactor, skewMaxFactor)
}

// Fuse scales each method's static weight by factor, stores it in the table,
// and returns the weighted confidence sum normalized by the static weights.
func Fuse(m *Methods, factor float64) float64 {
	sum, norm := 0.0, 0.0
	for i := range m {
		w := MethodID(i).Weight()
		m[i].ID = MethodID(i)
		m[i].Weight = w * factor
		sum += m[i].Confidence * m[i].Weight
		norm += w
	}
	if norm <= 0 {
		return 0
	}
	return sum / norm
}

// Threshold is the decision threshold: the adaptive loudness threshold or
// the sensitivity-scaled base, whichever is lower.
func Threshold(adaptiveFactor, sensitivity float64) float64 {
	adaptive := adaptiveBase * core.FiniteOr(adaptiveFactor, 1)
	scaled := sensitiveBase / core.SensitivityScale(sensitivity, ThresholdExponent)
	return math.Min(adaptive, scaled)
}

// Override names the rule that forced a click decision.
type Override int

const (
	OverrideNone Override = iota
	// OverrideResidualOnset: very high LPC confidence with a spectral onset.
	OverrideResidualOnset
	// OverrideSpikeInBand: an amplitude spike in the target band with
	// moderate LPC support.
	OverrideSpikeInBand
)

func (o Override) String() string {
	switch o {
	case OverrideResidualOnset:
		return "residual+onset"
	case OverrideSpikeInBand:
		return "spike+band"
	default:
		return "none"
	}
}

// CheckOverrides evaluates the override rules against the method table.
func CheckOverrides(m Methods) Override {
	lpc := m[MethodLPC].Confidence
	switch {
	case lpc >= overrideLPC && m[MethodFlux].Detected:
		return OverrideResidualOnset
	case m[MethodAmplitude].Detected && m[MethodTarget].Detected && lpc >= overrideLPCMin:
		return OverrideSpikeInBand
	default:
		return OverrideNone
	}
}

// Decide reports a click when the adjusted confidence exceeds threshold or
// an override rule holds. Overrides are checked in addition to the weighted
// path.
func Decide(adjusted, threshold float64, m Methods) (bool, Override) {
	o := CheckOverrides(m)
	return adjusted > threshold || o != OverrideNone, o
}
