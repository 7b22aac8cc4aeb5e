// Package speech estimates how likely a frame is voiced speech or other
// sustained material, so transient detectors can back off on it.
package speech

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-declick/dsp/core"
	"github.com/cwbudde/algo-declick/dsp/spectrum"
)

// Config holds the protector's analysis ranges and protection levels.
type Config struct {
	MinLag, MaxLag int

	FormantMinHz, FormantMaxHz float64
	// PeakRadius is the half-width, in bins, a formant peak must dominate.
	PeakRadius int
	// PeakProminenceDB is how far above the band's mean dB a peak must rise.
	PeakProminenceDB float64

	PeriodicityThreshold float64
	FormantThreshold     float64

	PeriodicProtection  float64
	FormantProtection   float64
	SustainedProtection float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the protector defaults.
func DefaultConfig() Config {
	return Config{
		MinLag:               8,
		MaxLag:               50,
		FormantMinHz:         500,
		FormantMaxHz:         3000,
		PeakRadius:           2,
		PeakProminenceDB:     6,
		PeriodicityThreshold: 0.5,
		FormantThreshold:     0.6,
		PeriodicProtection:   0.8,
		FormantProtection:    0.5,
		SustainedProtection:  0.3,
	}
}

// WithLagRange sets the autocorrelation lag range in samples.
func WithLagRange(minLag, maxLag int) Option {
	return func(cfg *Config) {
		if minLag > 0 && maxLag >= minLag {
			cfg.MinLag, cfg.MaxLag = minLag, maxLag
		}
	}
}

// WithFormantRange sets the frequency range searched for formant peaks.
func WithFormantRange(minHz, maxHz float64) Option {
	return func(cfg *Config) {
		if minHz >= 0 && maxHz > minHz {
			cfg.FormantMinHz, cfg.FormantMaxHz = minHz, maxHz
		}
	}
}

// Assessment is the per-frame speech protection result.
type Assessment struct {
	// Periodicity is the peak normalized autocorrelation, in [0, 1].
	Periodicity float64
	// Formants is the number of prominent spectral peaks found.
	Formants int
	// FormantStrength is in [0, 1]; two to four peaks score highest.
	FormantStrength float64
	Sustained       bool
	// Protection is in [0, 1]. Confidences are multiplied by 1-Protection.
	Protection float64
}

// Apply attenuates a detection confidence by the protection level.
func (a Assessment) Apply(confidence float64) float64 {
	return confidence * (1 - a.Protection)
}

// Protector scores periodicity, formant structure and spectral balance.
type Protector struct {
	cfg Config

	sampleRate float64
	binCount   int
	lo, hi     int
}

// NewProtector returns a protector with DefaultConfig and opts applied.
func NewProtector(opts ...Option) *Protector {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Protector{cfg: cfg}
}

// Config returns the active configuration.
func (p *Protector) Config() Config { return p.cfg }

// Assess scores one frame. sustained is the spectral analyzer's low+mid
// versus high energy comparison for the same frame.
func (p *Protector) Assess(samples, magnitudesDB []float64, sampleRate float64, sustained bool) Assessment {
	a := Assessment{
		Periodicity: p.periodicity(samples),
		Sustained:   sustained,
	}
	a.Formants = p.formantPeaks(magnitudesDB, sampleRate)
	a.FormantStrength = FormantStrength(a.Formants)

	if a.Periodicity >= p.cfg.PeriodicityThreshold {
		a.Protection = math.Max(a.Protection, p.cfg.PeriodicProtection)
	}
	if a.FormantStrength >= p.cfg.FormantThreshold {
		a.Protection = math.Max(a.Protection, p.cfg.FormantProtection)
	}
	if sustained {
		a.Protection = math.Max(a.Protection, p.cfg.SustainedProtection)
	}
	a.Protection = core.Clamp(a.Protection, 0, 1)

	return a
}

// FormantStrength maps a peak count onto [0, 1]. Vowels show a handful of
// formants; a dense comb of peaks is more likely noise or harmonics.
func FormantStrength(peaks int) float64 {
	switch {
	case peaks <= 0:
		return 0
	case peaks == 1:
		return 0.5
	case peaks <= 4:
		return 1
	default:
		return 4 / float64(peaks)
	}
}

func (p *Protector) periodicity(x []float64) float64 {
	energy := vecmath.DotProduct(x, x)
	if !(energy > 0) || math.IsInf(energy, 0) {
		return 0
	}

	best := 0.0
	n := len(x)
	for k := p.cfg.MinLag; k <= p.cfg.MaxLag && k < n; k++ {
		r := vecmath.DotProduct(x[k:], x[:n-k]) / energy
		if r > best {
			best = r
		}
	}
	return core.Clamp(best, 0, 1)
}

func (p *Protector) formantPeaks(db []float64, sampleRate float64) int {
	n := len(db)
	if n == 0 || sampleRate <= 0 {
		return 0
	}
	if sampleRate != p.sampleRate || n != p.binCount {
		p.sampleRate, p.binCount = sampleRate, n
		p.lo, p.hi = spectrum.BinRange(p.cfg.FormantMinHz, p.cfg.FormantMaxHz, sampleRate, n)
	}
	if p.hi <= p.lo {
		return 0
	}

	mean := vecmath.Sum(db[p.lo:p.hi]) / float64(p.hi-p.lo)
	floor := mean + p.cfg.PeakProminenceDB

	count := 0
	for i := p.lo; i < p.hi; i++ {
		if db[i] < floor || !p.dominates(db, i) {
			continue
		}
		count++
	}
	return count
}

func (p *Protector) dominates(db []float64, i int) bool {
	for j := i - p.cfg.PeakRadius; j <= i+p.cfg.PeakRadius; j++ {
		if j == i || j < 0 || j >= len(db) {
			continue
		}
		if db[j] >= db[i] {
			return false
		}
	}
	return true
}
