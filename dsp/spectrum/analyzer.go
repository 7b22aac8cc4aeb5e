package spectrum

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-declick/dsp/core"
	"github.com/cwbudde/algo-declick/stats/frequency"
)

// Sensitivity exponents and base thresholds of the spectral detectors.
const (
	FluxExponent   = 2.2
	TargetExponent = 2.0
	BurstExponent  = 1.8

	fluxBaseThreshold   = 0.5
	targetBaseThreshold = 0.45
	burstBaseThreshold  = 1.0
)

const magnitudeEpsilon = 1e-12

// silentMagnitude is the mean linear magnitude (-120 dB) below which a frame
// scores nothing.
const silentMagnitude = 1e-6

// Score is one thresholded detector output.
type Score struct {
	Value      float64
	Threshold  float64
	Confidence float64
	Detected   bool
}

func newScore(value, base, sensitivity, exponent, snrScale float64) Score {
	thr := core.ScaledThreshold(base, sensitivity, exponent, snrScale)
	conf := core.Confidence(value, thr)
	return Score{
		Value:      value,
		Threshold:  thr,
		Confidence: conf,
		Detected:   conf >= 1,
	}
}

// Features is the per-frame spectral analysis result.
type Features struct {
	Energies Energies
	// Means holds the unweighted mean linear magnitude per band.
	Means Energies

	// Flux is the mean half-wave-rectified increase of linear magnitude.
	Flux float64
	// Onset is Flux normalized by the mean current magnitude, in [0, 1].
	Onset float64

	Centroid float64 // Hz
	Spread   float64 // Hz

	TargetRatio float64
	BurstRatio  float64

	FluxScore   Score
	TargetScore Score
	BurstScore  Score
}

// Sustained reports whether the average of the low and mid band means
// exceeds the high band mean. A flat spectrum is not sustained.
func (f Features) Sustained() bool {
	return (f.Means[BandLow]+f.Means[BandMid])/2 > f.Means[BandHigh]
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithBands replaces the default band layout.
func WithBands(b Bands) Option {
	return func(a *Analyzer) {
		a.bands = b
	}
}

// Analyzer computes band energies and spectral shape per frame. The previous
// frame's linear magnitudes are kept for flux; Analyze never touches them,
// Commit promotes the last analyzed frame.
type Analyzer struct {
	bands Bands

	sampleRate float64
	binCount   int
	ranges     [NumBands]binRange

	cur     []float64
	prev    []float64
	hasPrev bool
	pending bool
}

// NewAnalyzer returns an analyzer using DefaultBands unless overridden.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{bands: DefaultBands()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Bands returns the configured band layout.
func (a *Analyzer) Bands() Bands { return a.bands }

// Range returns the cached bin range of band id for the last analyzed layout.
func (a *Analyzer) Range(id BandID) (lo, hi int) {
	r := a.ranges[id]
	return r.lo, r.hi
}

// Analyze computes Features for a magnitude spectrum in dB.
func (a *Analyzer) Analyze(magnitudesDB []float64, sampleRate, sensitivity, snrScale float64) Features {
	var f Features
	n := len(magnitudesDB)
	if n == 0 || sampleRate <= 0 {
		f.FluxScore = newScore(0, fluxBaseThreshold, sensitivity, FluxExponent, snrScale)
		f.TargetScore = newScore(0, targetBaseThreshold, sensitivity, TargetExponent, snrScale)
		f.BurstScore = newScore(0, burstBaseThreshold, sensitivity, BurstExponent, snrScale)
		return f
	}

	a.ensureLayout(sampleRate, n)
	DBToMagnitude(a.cur, magnitudesDB)
	a.pending = true

	total := 0.0
	for id := range NumBands {
		r := a.ranges[id]
		if r.hi <= r.lo {
			continue
		}
		f.Means[id] = vecmath.Sum(a.cur[r.lo:r.hi]) / float64(r.hi-r.lo)
		f.Energies[id] = f.Means[id] * a.bands[id].Weight
		total += f.Energies[id]
	}

	st := frequency.Calculate(a.cur, sampleRate)
	f.Centroid, f.Spread = st.Centroid, st.Spread

	mean := st.Average
	if mean > silentMagnitude {
		f.Flux, f.Onset = a.flux(mean)

		if total > magnitudeEpsilon {
			f.TargetRatio = f.Energies[BandTarget] / total
		}

		lowMid := f.Energies[BandLow] + f.Energies[BandMid]
		if lowMid > magnitudeEpsilon {
			f.BurstRatio = f.Energies[BandHigh] / lowMid
		}
	}

	f.FluxScore = newScore(f.Onset, fluxBaseThreshold, sensitivity, FluxExponent, snrScale)
	f.TargetScore = newScore(f.TargetRatio, targetBaseThreshold, sensitivity, TargetExponent, snrScale)
	f.BurstScore = newScore(f.BurstRatio, burstBaseThreshold, sensitivity, BurstExponent, snrScale)

	return f
}

// Commit makes the most recently analyzed frame the flux reference.
func (a *Analyzer) Commit() {
	if !a.pending {
		return
	}
	a.prev, a.cur = a.cur, a.prev
	a.hasPrev = true
	a.pending = false
}

// Reset forgets the flux reference.
func (a *Analyzer) Reset() {
	for i := range a.prev {
		a.prev[i] = 0
	}
	a.hasPrev = false
	a.pending = false
}

func (a *Analyzer) ensureLayout(sampleRate float64, binCount int) {
	if sampleRate == a.sampleRate && binCount == a.binCount {
		return
	}

	a.sampleRate = sampleRate
	a.binCount = binCount
	for id := range NumBands {
		lo, hi := BinRange(a.bands[id].MinHz, a.bands[id].MaxHz, sampleRate, binCount)
		a.ranges[id] = binRange{lo: lo, hi: hi}
	}

	if len(a.cur) != binCount {
		a.cur = make([]float64, binCount)
		a.prev = make([]float64, binCount)
		a.hasPrev = false
	}
}

// flux returns the raw mean positive increase and its value normalized by the
// mean current magnitude. Without a committed reference there is nothing to
// rise from and both are zero.
func (a *Analyzer) flux(mean float64) (raw, onset float64) {
	if !a.hasPrev {
		return 0, 0
	}

	sumRise := 0.0
	for i, v := range a.cur {
		if d := v - a.prev[i]; d > 0 {
			sumRise += d
		}
	}

	raw = sumRise / float64(len(a.cur))
	if mean <= magnitudeEpsilon {
		return raw, 0
	}

	return raw, math.Min(raw/mean, 1)
}
