// Package detect fuses the LPC, spectral, amplitude and loudness detectors
// into a per-frame click decision.
//
// A Detector separates analysis from state updates: Analyze reads the
// rolling loudness history and flux reference without changing them, and
// Commit advances both once the caller has finished with the frame. A tick
// that fails halfway therefore leaves the detector untouched.
package detect

import (
	"fmt"
	"time"

	"github.com/cwbudde/algo-declick/declick/params"
	"github.com/cwbudde/algo-declick/dsp/core"
	"github.com/cwbudde/algo-declick/dsp/frame"
	"github.com/cwbudde/algo-declick/dsp/lpc"
	"github.com/cwbudde/algo-declick/dsp/speech"
	"github.com/cwbudde/algo-declick/dsp/spectrum"
	"github.com/cwbudde/algo-declick/measure/loudness"
	timestats "github.com/cwbudde/algo-declick/stats/time"
)

const amplitudeBaseThreshold = 6.0

// Diagnostics are informational per-frame measurements.
type Diagnostics struct {
	Centroid float64
	Spread   float64
	Flux     float64
	Onset    float64

	TargetRatio float64
	BurstRatio  float64
	CrestFactor float64

	SNR          float64
	LoudnessDB   float64
	BackgroundDB float64

	Periodicity     float64
	FormantStrength float64
	Sustained       bool
	Protection      float64

	LPCError      float64
	LPCDegenerate bool
	SkewFactor    float64

	// ClickOffset is the window index the transient was located at.
	ClickOffset int
}

// Result is the decision for one frame.
type Result struct {
	// Timestamp is the stream time of the window's first sample.
	Timestamp time.Duration
	// ClickTime is the stream time of the located transient: the largest
	// LPC prediction error, or the sample peak when the model is degenerate.
	ClickTime time.Duration
	IsClick   bool
	// Confidence is the fused confidence after speech protection.
	Confidence    float64
	RawConfidence float64
	Threshold     float64
	Override      Override
	Methods       Methods
	Diagnostics   Diagnostics
}

// Analysis carries a Result plus the state needed to commit it.
type Analysis struct {
	Result

	reading loudness.Reading
	valid   bool
}

// Config configures a Detector.
type Config struct {
	LPCOrder  int
	MaxWindow int

	Tracker  []loudness.TrackerOption
	Spectrum []spectrum.Option
	Speech   []speech.Option
}

// Option mutates a Config.
type Option func(*Config)

// WithLPCOrder sets the predictor order.
func WithLPCOrder(order int) Option {
	return func(cfg *Config) {
		if order > 0 {
			cfg.LPCOrder = order
		}
	}
}

// WithMaxWindow sizes the residual scratch for windows up to n samples.
func WithMaxWindow(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxWindow = n
		}
	}
}

// WithTrackerOptions passes options to the loudness tracker.
func WithTrackerOptions(opts ...loudness.TrackerOption) Option {
	return func(cfg *Config) { cfg.Tracker = append(cfg.Tracker, opts...) }
}

// WithSpectrumOptions passes options to the spectral analyzer.
func WithSpectrumOptions(opts ...spectrum.Option) Option {
	return func(cfg *Config) { cfg.Spectrum = append(cfg.Spectrum, opts...) }
}

// WithSpeechOptions passes options to the speech protector.
func WithSpeechOptions(opts ...speech.Option) Option {
	return func(cfg *Config) { cfg.Speech = append(cfg.Speech, opts...) }
}

// Detector composes the per-frame analyzers. It is not safe for concurrent
// use.
type Detector struct {
	tracker   *loudness.Tracker
	lpc       *lpc.Analyzer
	spectrum  *spectrum.Analyzer
	protector *speech.Protector
}

// New returns a detector with empty history.
func New(opts ...Option) (*Detector, error) {
	cfg := Config{
		LPCOrder:  lpc.DefaultOrder,
		MaxWindow: core.DefaultProcessorConfig().FrameSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	la, err := lpc.NewAnalyzer(cfg.LPCOrder, cfg.MaxWindow)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}

	return &Detector{
		tracker:   loudness.NewTracker(cfg.Tracker...),
		lpc:       la,
		spectrum:  spectrum.NewAnalyzer(cfg.Spectrum...),
		protector: speech.NewProtector(cfg.Speech...),
	}, nil
}

// Analyze runs every method on f with the effective parameters p.
func (d *Detector) Analyze(f frame.Frame, p params.Effective) Analysis {
	s := p.Sensitivity
	reading := d.tracker.Measure(f.Samples)
	snrScale := reading.SNRScale()

	res := d.lpc.Analyze(f.Samples, s, snrScale)
	feat := d.spectrum.Analyze(f.MagnitudesDB, f.SampleRate, s, snrScale)
	level := timestats.Calculate(f.Samples)
	crest, amp := amplitudeScore(level, s, snrScale)
	prot := d.protector.Assess(f.Samples, f.MagnitudesDB, f.SampleRate, feat.Sustained())

	var m Methods
	m[MethodLPC] = Method{Confidence: res.Confidence, Detected: res.Detected}
	m[MethodFlux] = fromScore(feat.FluxScore)
	m[MethodTarget] = fromScore(feat.TargetScore)
	m[MethodBurst] = fromScore(feat.BurstScore)
	m[MethodAmplitude] = fromScore(amp)

	factor := SkewFactor(feat.Centroid, p.FrequencySkew)
	raw := Fuse(&m, factor)
	adjusted := prot.Apply(raw)
	thr := Threshold(reading.AdaptiveFactor, s)
	click, override := Decide(adjusted, thr, m)

	offset := res.ResidualPeakPos
	if offset < 0 {
		offset = max(level.PeakPos, 0)
	}

	return Analysis{
		Result: Result{
			Timestamp:     f.Timestamp,
			ClickTime:     f.Timestamp + frame.Timestamp(int64(offset), f.SampleRate),
			IsClick:       click,
			Confidence:    adjusted,
			RawConfidence: raw,
			Threshold:     thr,
			Override:      override,
			Methods:       m,
			Diagnostics: Diagnostics{
				Centroid:        feat.Centroid,
				Spread:          feat.Spread,
				Flux:            feat.Flux,
				Onset:           feat.Onset,
				TargetRatio:     feat.TargetRatio,
				BurstRatio:      feat.BurstRatio,
				CrestFactor:     crest,
				SNR:             reading.SNR,
				LoudnessDB:      reading.LoudnessDB,
				BackgroundDB:    reading.BackgroundDB,
				Periodicity:     prot.Periodicity,
				FormantStrength: prot.FormantStrength,
				Sustained:       prot.Sustained,
				Protection:      prot.Protection,
				LPCError:        res.Model.Error,
				LPCDegenerate:   res.Degenerate(),
				SkewFactor:      factor,
				ClickOffset:     offset,
			},
		},
		reading: reading,
		valid:   true,
	}
}

// Commit advances the loudness history and flux reference past a.
func (d *Detector) Commit(a Analysis) {
	if !a.valid {
		return
	}
	d.tracker.Commit(a.reading)
	d.spectrum.Commit()
}

// Reset clears all rolling state.
func (d *Detector) Reset() {
	d.tracker.Reset()
	d.spectrum.Reset()
}

func fromScore(s spectrum.Score) Method {
	return Method{Confidence: s.Confidence, Detected: s.Detected}
}

// amplitudeScore scores the crest factor (peak over RMS) of the window.
func amplitudeScore(level timestats.Stats, sensitivity, snrScale float64) (float64, spectrum.Score) {
	thr := core.ScaledThreshold(amplitudeBaseThreshold, sensitivity, AmplitudeExponent, snrScale)
	crest := core.FiniteOr(level.CrestFactor, 0)

	conf := core.Confidence(crest, thr)
	return crest, spectrum.Score{
		Value:      crest,
		Threshold:  thr,
		Confidence: conf,
		Detected:   conf >= 1,
	}
}
