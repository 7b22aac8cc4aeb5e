// Package loudness tracks short-term level against a rolling background
// estimate and derives the signal-to-noise ratio and threshold adaptation
// used by the click detectors.
package loudness

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-declick/dsp/buffer"
	"github.com/cwbudde/algo-declick/dsp/core"
	timestats "github.com/cwbudde/algo-declick/stats/time"
)

const (
	minSNR = 0.1
	maxSNR = 60.0

	// Frames quieter than quietReferenceDB get a boost that reaches
	// maxBoost quietSpanDB below it.
	quietReferenceDB = -30.0
	quietSpanDB      = 30.0
	maxBoost         = 0.5
)

// Reading is the loudness state derived from one frame.
type Reading struct {
	RMS          float64
	LoudnessDB   float64
	BackgroundDB float64
	// SNR is LoudnessDB - BackgroundDB clamped to [0.1, 60].
	SNR float64
	// Boost is in [1, 1.5] and grows as the frame gets quieter.
	Boost float64
	// AdaptiveFactor is 1/Boost; thresholds are multiplied by it.
	AdaptiveFactor float64
}

// SNRScale maps the SNR onto the divisor detectors apply to their
// thresholds: 1 at 0 dB rising to 2 at 60 dB.
func (r Reading) SNRScale() float64 {
	return 1 + core.Clamp(r.SNR, 0, maxSNR)/maxSNR
}

// Tracker keeps a fixed-size loudness history. Measure is side-effect free;
// readings only enter the history through Commit.
type Tracker struct {
	cfg     TrackerConfig
	history *buffer.Ring[float64]
	scratch []float64
}

// NewTracker returns a tracker with an empty history.
func NewTracker(opts ...TrackerOption) *Tracker {
	cfg := ApplyTrackerOptions(opts...)
	return &Tracker{
		cfg:     cfg,
		history: buffer.NewRing[float64](cfg.History),
		scratch: make([]float64, 0, cfg.History+1),
	}
}

// Config returns the tracker configuration.
func (t *Tracker) Config() TrackerConfig { return t.cfg }

// Len returns the number of committed readings.
func (t *Tracker) Len() int { return t.history.Len() }

// Measure computes the reading for samples as if it had been committed,
// without changing the history.
func (t *Tracker) Measure(samples []float64) Reading {
	rms := timestats.RMS(samples)
	level := core.FlooredDB(rms, t.cfg.FloorDB)
	bg := t.background(level)
	boost := 1 + maxBoost*core.Clamp((quietReferenceDB-level)/quietSpanDB, 0, 1)

	return Reading{
		RMS:            core.FiniteOr(rms, 0),
		LoudnessDB:     level,
		BackgroundDB:   bg,
		SNR:            core.Clamp(level-bg, minSNR, maxSNR),
		Boost:          boost,
		AdaptiveFactor: 1 / boost,
	}
}

// Commit pushes the reading's loudness into the history, evicting the oldest
// entry when full.
func (t *Tracker) Commit(r Reading) {
	t.history.Push(core.FiniteOr(r.LoudnessDB, t.cfg.FloorDB))
}

// Observe measures and commits samples.
func (t *Tracker) Observe(samples []float64) Reading {
	r := t.Measure(samples)
	t.Commit(r)
	return r
}

// Reset clears the history.
func (t *Tracker) Reset() {
	t.history.Reset()
}

// background returns the configured percentile of the history with level
// appended, dropping the oldest entry when the history is full.
func (t *Tracker) background(level float64) float64 {
	vals := t.history.AppendTo(t.scratch[:0])
	if t.history.Full() && len(vals) > 0 {
		vals = vals[1:]
	}
	vals = append(vals, level)
	sort.Float64s(vals)

	return stat.Quantile(t.cfg.Percentile, stat.Empirical, vals, nil)
}
