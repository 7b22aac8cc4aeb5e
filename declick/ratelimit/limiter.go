// Package ratelimit bounds how often click events may be admitted.
//
// A Limiter keeps the timestamps of admitted events in a fixed-capacity ring
// covering a trailing window. Admission fails during the post-event
// suppression interval, when the window is full, or when the minimum spacing
// has not elapsed; otherwise the confidence must reach a requirement that
// rises as the window fills.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-declick/dsp/buffer"
	"github.com/cwbudde/algo-declick/dsp/core"
)

// SensitivityExponent divides the required confidence by
// sensitivity^SensitivityExponent.
const SensitivityExponent = core.AdmissionExponent

var errInvalidConfig = errors.New("ratelimit: invalid config")

// Config holds the admission limits.
type Config struct {
	MaxEvents   int
	Window      time.Duration
	Suppression time.Duration
	MinSpacing  time.Duration

	// BaseRequired is the confidence needed with an empty window;
	// FullnessSlope is added in proportion to window fullness.
	BaseRequired  float64
	FullnessSlope float64
}

// DefaultConfig returns the live defaults: at most 8 events per second,
// 50 ms suppression and 125 ms spacing.
func DefaultConfig() Config {
	return Config{
		MaxEvents:     8,
		Window:        time.Second,
		Suppression:   50 * time.Millisecond,
		MinSpacing:    125 * time.Millisecond,
		BaseRequired:  0.3,
		FullnessSlope: 0.5,
	}
}

// Validate reports structurally unusable limits.
func (c Config) Validate() error {
	switch {
	case c.MaxEvents <= 0:
		return fmt.Errorf("%w: max events must be > 0: %d", errInvalidConfig, c.MaxEvents)
	case c.Window <= 0:
		return fmt.Errorf("%w: window must be > 0: %v", errInvalidConfig, c.Window)
	case c.Suppression < 0 || c.MinSpacing < 0:
		return fmt.Errorf("%w: negative interval", errInvalidConfig)
	case !core.IsFinite(c.BaseRequired) || !core.IsFinite(c.FullnessSlope) || c.BaseRequired < 0 || c.FullnessSlope < 0:
		return fmt.Errorf("%w: required confidence must be finite and >= 0", errInvalidConfig)
	}
	return nil
}

// Reason explains an admission decision.
type Reason int

const (
	ReasonAdmitted Reason = iota
	ReasonSuppressed
	ReasonWindowFull
	ReasonSpacing
	ReasonConfidence
	ReasonNonMonotonic
)

func (r Reason) String() string {
	switch r {
	case ReasonAdmitted:
		return "admitted"
	case ReasonSuppressed:
		return "suppressed"
	case ReasonWindowFull:
		return "window full"
	case ReasonSpacing:
		return "spacing"
	case ReasonConfidence:
		return "confidence"
	case ReasonNonMonotonic:
		return "non-monotonic"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Admitted bool
	Reason   Reason
	// Required is the confidence the event needed. Zero when rejected before
	// the confidence check.
	Required float64
	InWindow int
}

// Limiter tracks admitted events. It is not safe for concurrent use.
type Limiter struct {
	cfg   Config
	times *buffer.Ring[time.Duration]

	last          time.Duration
	hasLast       bool
	suppressUntil time.Duration
}

// New returns a limiter with an empty window.
func New(cfg Config) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		cfg:   cfg,
		times: buffer.NewRing[time.Duration](cfg.MaxEvents),
	}, nil
}

// Config returns the limits.
func (l *Limiter) Config() Config { return l.cfg }

// Count returns the number of admitted events recorded in the ring. Call
// after Record or Evaluate at the current time for an up to date value.
func (l *Limiter) Count() int { return l.times.Len() }

// Required returns the confidence needed with n events in the window.
func (l *Limiter) Required(n int, sensitivity float64) float64 {
	fullness := float64(n) / float64(l.cfg.MaxEvents)
	return (l.cfg.BaseRequired + l.cfg.FullnessSlope*fullness) /
		core.SensitivityScale(sensitivity, SensitivityExponent)
}

// Evaluate checks whether an event at now with the given confidence would be
// admitted. It does not change the limiter.
func (l *Limiter) Evaluate(now time.Duration, confidence, sensitivity float64) Decision {
	if l.hasLast && now < l.last {
		return Decision{Reason: ReasonNonMonotonic}
	}

	n := l.inWindow(now)
	d := Decision{InWindow: n}

	switch {
	case l.hasLast && now < l.suppressUntil:
		d.Reason = ReasonSuppressed
	case n >= l.cfg.MaxEvents:
		d.Reason = ReasonWindowFull
	case l.hasLast && now-l.last < l.cfg.MinSpacing:
		d.Reason = ReasonSpacing
	default:
		d.Required = l.Required(n, sensitivity)
		if !(confidence >= d.Required) || math.IsInf(confidence, 0) {
			d.Reason = ReasonConfidence
			break
		}
		d.Admitted = true
		d.Reason = ReasonAdmitted
	}
	return d
}

// Record prunes stale timestamps and appends now.
func (l *Limiter) Record(now time.Duration) {
	l.prune(now)
	l.times.Push(now)
	l.last = now
	l.hasLast = true
	l.suppressUntil = now + l.cfg.Suppression
}

// Admit evaluates and, on success, records the event.
func (l *Limiter) Admit(now time.Duration, confidence, sensitivity float64) Decision {
	d := l.Evaluate(now, confidence, sensitivity)
	if d.Admitted {
		l.Record(now)
		d.InWindow = l.times.Len()
	}
	return d
}

// Reset forgets all events.
func (l *Limiter) Reset() {
	l.times.Reset()
	l.last = 0
	l.hasLast = false
	l.suppressUntil = 0
}

// inWindow counts timestamps inside the trailing window (now-Window, now].
func (l *Limiter) inWindow(now time.Duration) int {
	n := 0
	for i := range l.times.Len() {
		if now-l.times.At(i) < l.cfg.Window {
			n++
		}
	}
	return n
}

func (l *Limiter) prune(now time.Duration) {
	for {
		t, ok := l.times.Front()
		if !ok || now-t < l.cfg.Window {
			return
		}
		l.times.PopFront()
	}
}
