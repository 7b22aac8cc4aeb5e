// Package frame builds the synchronized time/frequency analysis frames
// consumed by the click detector.
//
// A [Builder] owns every buffer it hands out: the slices of a returned [Frame]
// are overwritten by the next Build call, so raw samples never outlive the
// tick that consumed them.
package frame

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"github.com/mjibson/go-dsp/window"

	"github.com/cwbudde/algo-declick/dsp/core"
	"github.com/cwbudde/algo-declick/dsp/spectrum"
)

// FloorDB is the lowest magnitude a frame reports.
const FloorDB = -160.0

var errBlockTooLong = errors.New("frame block longer than frame size")

// Frame is one analysis window. Samples holds the time-domain window,
// MagnitudesDB the one-sided magnitude spectrum (Size/2 bins, bin k at
// k*SampleRate/Size Hz).
type Frame struct {
	Samples      []float64
	MagnitudesDB []float64
	SampleRate   float64
	Timestamp    time.Duration
}

// Size returns the time-domain window length.
func (f Frame) Size() int { return len(f.Samples) }

// BinHz returns the frequency spacing of MagnitudesDB.
func (f Frame) BinHz() float64 {
	return spectrum.BinHz(f.SampleRate, len(f.MagnitudesDB))
}

// Builder windows sample blocks and computes their magnitude spectra.
type Builder struct {
	cfg core.ProcessorConfig

	coeffs []float64
	scale  float64
	plan   *algofft.Plan[complex128]

	samples  []float64
	windowed []float64
	in       []complex128
	out      []complex128
	re, im   []float64
	mags     []float64
}

// NewBuilder returns a builder for power-of-two frame sizes.
func NewBuilder(opts ...core.ProcessorOption) (*Builder, error) {
	cfg := core.ApplyProcessorOptions(opts...)
	if err := core.ValidateSampleRate(cfg.SampleRate); err != nil {
		return nil, fmt.Errorf("frame builder %w", err)
	}

	n := cfg.FrameSize
	if n < 4 || bits.OnesCount(uint(n)) != 1 {
		return nil, fmt.Errorf("frame size must be a power of two >= 4: %d", n)
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("frame builder fft plan: %w", err)
	}

	coeffs := window.Hann(n)
	sum := vecmath.Sum(coeffs)

	bins := n / 2
	return &Builder{
		cfg:      cfg,
		coeffs:   coeffs,
		scale:    2 / sum,
		plan:     plan,
		samples:  make([]float64, n),
		windowed: make([]float64, n),
		in:       make([]complex128, n),
		out:      make([]complex128, n),
		re:       make([]float64, bins),
		im:       make([]float64, bins),
		mags:     make([]float64, bins),
	}, nil
}

// Size returns the frame length in samples.
func (b *Builder) Size() int { return b.cfg.FrameSize }

// SampleRate returns the sample rate stamped on frames.
func (b *Builder) SampleRate() float64 { return b.cfg.SampleRate }

// Build copies block into the builder's window (zero-padding short blocks),
// applies a Hann window and returns the frame. Magnitudes are normalized so a
// full-scale sine centred on a bin reads 0 dB.
func (b *Builder) Build(block []float64, ts time.Duration) (Frame, error) {
	n := b.cfg.FrameSize
	if len(block) > n {
		return Frame{}, fmt.Errorf("%w: %d > %d", errBlockTooLong, len(block), n)
	}

	copied := copy(b.samples, block)
	for i := copied; i < n; i++ {
		b.samples[i] = 0
	}

	vecmath.MulBlock(b.windowed, b.samples, b.coeffs)
	for i, v := range b.windowed {
		b.in[i] = complex(v, 0)
	}

	if err := b.plan.Forward(b.out, b.in); err != nil {
		return Frame{}, fmt.Errorf("frame fft: %w", err)
	}

	for k := range b.mags {
		b.re[k] = real(b.out[k])
		b.im[k] = imag(b.out[k])
	}
	spectrum.MagnitudeFromParts(b.mags, b.re, b.im)
	spectrum.MagnitudeToDB(b.mags, b.scale, FloorDB)

	return Frame{
		Samples:      b.samples,
		MagnitudesDB: b.mags,
		SampleRate:   b.cfg.SampleRate,
		Timestamp:    ts,
	}, nil
}

// Timestamp converts a sample position to stream time.
func Timestamp(position int64, sampleRate float64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(position) / sampleRate * float64(time.Second))
}
