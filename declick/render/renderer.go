// Package render applies repair envelopes to a lookahead-delayed copy of the
// program signal.
package render

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cwbudde/algo-declick/declick/repair"
	"github.com/cwbudde/algo-declick/dsp/buffer"
	"github.com/cwbudde/algo-declick/dsp/core"
	"github.com/cwbudde/algo-declick/dsp/delay"
	"github.com/cwbudde/algo-declick/dsp/frame"
)

var (
	// ErrQueueFull is returned when an envelope does not fit the point queue.
	ErrQueueFull = errors.New("render: automation queue full")
	// ErrOutOfOrder is returned when an envelope starts before queued points.
	ErrOutOfOrder = errors.New("render: envelope precedes queued automation")
)

// Config configures a Renderer.
type Config struct {
	core.ProcessorConfig
	Lookahead time.Duration
	// QueueSize is the number of automation points that may be pending.
	QueueSize int
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns a 48 kHz renderer with a 10 ms lookahead.
func DefaultConfig() Config {
	return Config{
		ProcessorConfig: core.DefaultProcessorConfig(),
		Lookahead:       repair.DefaultConfig().Lookahead,
		QueueSize:       64,
	}
}

// WithSampleRate sets the output sample rate.
func WithSampleRate(sampleRate float64) Option {
	return func(cfg *Config) {
		core.WithSampleRate(sampleRate)(&cfg.ProcessorConfig)
	}
}

// WithLookahead sets the program path delay.
func WithLookahead(d time.Duration) Option {
	return func(cfg *Config) {
		if d >= 0 {
			cfg.Lookahead = d
		}
	}
}

// WithQueueSize sets the automation queue capacity.
func WithQueueSize(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.QueueSize = n
		}
	}
}

// Renderer implements repair.Sink. Schedule and Cancel may be called from a
// different goroutine than Process.
type Renderer struct {
	cfg Config

	mu    sync.Mutex
	line  *delay.Line
	queue *buffer.Ring[repair.Point]

	pos       int64
	gain      float64
	fromGain  float64
	fromTime  time.Duration
	lastQueue time.Duration
}

// New returns a renderer at unity gain.
func New(opts ...Option) (*Renderer, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := core.ValidateSampleRate(cfg.SampleRate); err != nil {
		return nil, fmt.Errorf("renderer %w", err)
	}

	line, err := delay.ForDuration(cfg.Lookahead, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	return &Renderer{
		cfg:      cfg,
		line:     line,
		queue:    buffer.NewRing[repair.Point](cfg.QueueSize),
		gain:     1,
		fromGain: 1,
	}, nil
}

// Latency returns the program path delay in samples.
func (r *Renderer) Latency() int { return r.line.Delay() }

// Gain returns the gain applied to the most recent output sample.
func (r *Renderer) Gain() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gain
}

// Pending returns the number of queued automation points.
func (r *Renderer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Len()
}

// Schedule queues env. It is rejected if invalid, if it starts before
// already queued points, or if the queue cannot hold it.
func (r *Renderer) Schedule(env repair.Envelope) error {
	if err := env.Validate(0); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queue.Len() > 0 && env.Start() < r.lastQueue {
		return fmt.Errorf("%w: %v < %v", ErrOutOfOrder, env.Start(), r.lastQueue)
	}
	if r.queue.Len()+len(env.Points) > r.queue.Cap() {
		return fmt.Errorf("%w: %d pending, %d new", ErrQueueFull, r.queue.Len(), len(env.Points))
	}

	for _, p := range env.Points {
		r.queue.Push(p)
	}
	r.lastQueue = env.End()
	return nil
}

// Cancel drops queued automation and returns to unity gain immediately.
func (r *Renderer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queue.Reset()
	r.gain = 1
	r.fromGain = 1
	r.fromTime = frame.Timestamp(r.pos, r.cfg.SampleRate)
	r.lastQueue = 0
}

// Reset cancels automation, clears the delay line and rewinds the clock.
func (r *Renderer) Reset() {
	r.Cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.line.Reset()
	r.pos = 0
	r.fromTime = 0
}

// Process writes src delayed by the lookahead and scaled by the automation
// into dst. dst and src may alias.
func (r *Renderer) Process(dst, src []float64) error {
	if len(dst) < len(src) {
		return fmt.Errorf("render: dst length %d < src length %d", len(dst), len(src))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, x := range src {
		g := r.advance(frame.Timestamp(r.pos, r.cfg.SampleRate))
		dst[i] = r.line.Process(x) * g
		r.pos++
	}
	return nil
}

// advance consumes points due at t and returns the gain for t.
func (r *Renderer) advance(t time.Duration) float64 {
	for {
		p, ok := r.queue.Front()
		if !ok {
			return r.gain
		}
		if p.Time > t {
			if p.Ramp == repair.RampLinear && p.Time > r.fromTime {
				frac := float64(t-r.fromTime) / float64(p.Time-r.fromTime)
				r.gain = r.fromGain + (p.Gain-r.fromGain)*core.Clamp(frac, 0, 1)
			}
			return r.gain
		}

		r.queue.PopFront()
		r.gain = p.Gain
		r.fromGain = p.Gain
		r.fromTime = p.Time
	}
}
