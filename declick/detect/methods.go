package detect

import (
	"fmt"

	"github.com/cwbudde/algo-declick/dsp/core"
	"github.com/cwbudde/algo-declick/dsp/lpc"
	"github.com/cwbudde/algo-declick/dsp/spectrum"
)

// MethodID names one detection method.
type MethodID int

const (
	MethodLPC MethodID = iota
	MethodFlux
	MethodTarget
	MethodBurst
	MethodAmplitude
	NumMethods
)

var methodNames = [NumMethods]string{"lpc", "flux", "target", "burst", "amplitude"}

func (id MethodID) String() string {
	if id < 0 || id >= NumMethods {
		return fmt.Sprintf("MethodID(%d)", int(id))
	}
	return methodNames[id]
}

// staticWeights sum to 1.
var staticWeights = [NumMethods]float64{
	MethodLPC:       0.35,
	MethodFlux:      0.20,
	MethodTarget:    0.15,
	MethodBurst:     0.15,
	MethodAmplitude: 0.15,
}

// Weight returns the static fusion weight of the method.
func (id MethodID) Weight() float64 {
	if id < 0 || id >= NumMethods {
		return 0
	}
	return staticWeights[id]
}

// Method is one detector's contribution to a frame decision.
type Method struct {
	ID         MethodID
	Confidence float64
	// Weight is the static weight scaled by the frame's skew factor.
	Weight   float64
	Detected bool
}

// Methods is the fixed per-frame method table, indexed by MethodID.
type Methods [NumMethods]Method

// Sensitivity exponents of the amplitude detector and decision threshold.
const (
	AmplitudeExponent = 2.3
	ThresholdExponent = 1.5
)

// ExponentTable lists how strongly each stage responds to sensitivity.
// Thresholds are divided by sensitivity raised to these powers.
type ExponentTable struct {
	LPC       float64
	Flux      float64
	Target    float64
	Burst     float64
	Amplitude float64
	Threshold float64
	Admission float64
}

// Exponents returns the sensitivity exponent of every stage.
func Exponents() ExponentTable {
	return ExponentTable{
		LPC:       lpc.SensitivityExponent,
		Flux:      spectrum.FluxExponent,
		Target:    spectrum.TargetExponent,
		Burst:     spectrum.BurstExponent,
		Amplitude: AmplitudeExponent,
		Threshold: ThresholdExponent,
		Admission: core.AdmissionExponent,
	}
}
