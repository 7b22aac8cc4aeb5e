package lpc

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-declick/dsp/core"
	timestats "github.com/cwbudde/algo-declick/stats/time"
)

// SensitivityExponent shapes how sensitivity lowers the residual thresholds.
const SensitivityExponent = 2.5

const (
	rmsBaseThreshold  = 2.5
	peakBaseThreshold = 8.0
)

// Analysis is the residual analysis of one window.
type Analysis struct {
	Model Model

	SignalRMS   float64
	ResidualRMS float64
	ResidualPk  float64

	// ResidualPeakPos is the window index of the sample with the largest
	// prediction error, or -1 when no residual was computed.
	ResidualPeakPos int

	// RMSRatio and PeakRatio are residual RMS and peak over signal RMS.
	RMSRatio  float64
	PeakRatio float64

	RMSThreshold  float64
	PeakThreshold float64

	RMSConfidence  float64
	PeakConfidence float64
	// Confidence is the larger of the two, in [0, 2].
	Confidence float64
	Detected   bool
}

// Degenerate reports whether the window was too short or silent.
func (a Analysis) Degenerate() bool { return a.Model.Degenerate }

// Analyzer runs fixed-order LPC residual analysis with preallocated scratch.
// It is not safe for concurrent use.
type Analyzer struct {
	fit      *fitter
	residual []float64
}

// NewAnalyzer returns an analyzer for windows up to maxWindow samples.
// Longer windows grow the residual scratch once.
func NewAnalyzer(order, maxWindow int) (*Analyzer, error) {
	if order <= 0 {
		return nil, fmt.Errorf("lpc order must be > 0: %d", order)
	}
	if maxWindow < 0 {
		return nil, fmt.Errorf("lpc window must be >= 0: %d", maxWindow)
	}

	return &Analyzer{
		fit:      newFitter(order),
		residual: make([]float64, max(maxWindow-order, 0)),
	}, nil
}

// Order returns the predictor order.
func (a *Analyzer) Order() int { return a.fit.order }

// Analyze fits a model to samples and scores its residual. Thresholds are
// divided by sensitivity^SensitivityExponent and by snrScale. The returned
// model's coefficients are only valid until the next call.
func (a *Analyzer) Analyze(samples []float64, sensitivity, snrScale float64) Analysis {
	m, energy := a.fit.fit(samples)

	out := Analysis{
		Model:           m,
		ResidualPeakPos: -1,
		RMSThreshold:    core.ScaledThreshold(rmsBaseThreshold, sensitivity, SensitivityExponent, snrScale),
		PeakThreshold:   core.ScaledThreshold(peakBaseThreshold, sensitivity, SensitivityExponent, snrScale),
	}
	if energy <= 0 {
		return out
	}

	need := len(samples) - a.fit.order
	if cap(a.residual) < need {
		a.residual = make([]float64, need)
	}
	res, err := m.Residual(a.residual[:cap(a.residual)], samples)
	if err != nil || len(res) == 0 {
		return out
	}

	out.SignalRMS = math.Sqrt(energy)
	st := timestats.Calculate(res)
	out.ResidualRMS = st.RMS
	out.ResidualPk = st.Peak
	out.ResidualPeakPos = len(samples) - len(res) + st.PeakPos
	out.RMSRatio = out.ResidualRMS / out.SignalRMS
	out.PeakRatio = out.ResidualPk / out.SignalRMS

	out.RMSConfidence = core.Confidence(out.RMSRatio, out.RMSThreshold)
	out.PeakConfidence = core.Confidence(out.PeakRatio, out.PeakThreshold)
	out.Confidence = math.Max(out.RMSConfidence, out.PeakConfidence)
	out.Detected = out.Confidence >= 1

	return out
}
