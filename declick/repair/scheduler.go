// Package repair turns admitted click events into gain automation curves
// and hands them to a sink that applies them on a delayed output path.
package repair

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-declick/declick/params"
	"github.com/cwbudde/algo-declick/dsp/core"
)

// Fallbacks substituted for invalid event values.
const (
	DefaultConfidence = 0.5
	DefaultWidening   = 5 * time.Millisecond

	// minDipGain keeps the curve from dipping below -20 dB.
	minDipGain = 0.1
)

// ClickEvent is an admitted click with its resolved repair values.
type ClickEvent struct {
	Timestamp  time.Duration
	Confidence float64
	Widening   time.Duration
	// Reduction is the linear gain factor, in [MinGain, 1].
	Reduction float64
	Mode      params.Mode
}

// WideningMs returns the applied widening in milliseconds.
func (e ClickEvent) WideningMs() float64 {
	return float64(e.Widening) / float64(time.Millisecond)
}

// ReductionDB returns the applied reduction in dB.
func (e ClickEvent) ReductionDB() float64 {
	return core.FlooredDB(e.Reduction, core.LinearToDB(MinGain))
}

// ReductionFactor converts a reduction in dB to a linear factor. -60 dB and
// below map to MinGain.
func ReductionFactor(db float64) float64 {
	if !core.IsFinite(db) {
		return MinGain
	}
	if db <= params.MinReductionDB {
		return MinGain
	}
	return math.Min(core.DBToLinear(db), 1)
}

// Resolve builds the event for a detection at timestamp. Invalid values are
// replaced by MinGain, DefaultConfidence and DefaultWidening.
func Resolve(timestamp time.Duration, confidence float64, p params.Effective) ClickEvent {
	ev := ClickEvent{
		Timestamp:  timestamp,
		Confidence: confidence,
		Widening:   p.Widening(),
		Reduction:  ReductionFactor(p.ReductionDB),
		Mode:       p.Mode,
	}

	if !core.IsFinite(ev.Confidence) || ev.Confidence <= 0 {
		ev.Confidence = DefaultConfidence
	}
	if ev.Widening <= 0 || !core.IsFinite(p.WideningMs()) {
		ev.Widening = DefaultWidening
	}
	if !core.IsFinite(ev.Reduction) || ev.Reduction <= 0 {
		ev.Reduction = MinGain
	}
	return ev
}

// Config shapes the repair curve.
type Config struct {
	// Lookahead is the delay of the output path relative to analysis.
	Lookahead time.Duration
	FadeIn    time.Duration
	FadeOut   time.Duration
	// Steps is the number of ramps back to unity; Steps-1 plateaus sit
	// between them.
	Steps int
}

// DefaultConfig returns the live curve shape.
func DefaultConfig() Config {
	return Config{
		Lookahead: 10 * time.Millisecond,
		FadeIn:    2 * time.Millisecond,
		FadeOut:   12 * time.Millisecond,
		Steps:     3,
	}
}

// Validate reports unusable curve shapes.
func (c Config) Validate() error {
	switch {
	case c.Lookahead < 0:
		return fmt.Errorf("repair lookahead must be >= 0: %v", c.Lookahead)
	case c.FadeIn <= 0 || c.FadeOut <= 0:
		return fmt.Errorf("repair fades must be > 0: in=%v out=%v", c.FadeIn, c.FadeOut)
	case c.Steps < 3:
		return fmt.Errorf("repair needs at least 3 fade-out steps: %d", c.Steps)
	}
	return nil
}

// Sink applies gain envelopes to the delayed output path.
type Sink interface {
	// Schedule queues an envelope. It must reject envelopes it cannot
	// apply without leaving the output attenuated.
	Schedule(Envelope) error
	// Cancel drops pending automation and restores unity gain.
	Cancel()
}

// Scheduled reports what was sent to the sink for one event.
type Scheduled struct {
	Event    ClickEvent
	Envelope Envelope
	// Fallback is set when the primary curve was replaced; Cause says why.
	Fallback bool
	Cause    error
}

// Scheduler builds curves for click events and forwards them to a Sink.
// It is not safe for concurrent use.
type Scheduler struct {
	cfg  Config
	sink Sink

	lastEnd time.Duration
}

// NewScheduler returns a scheduler writing to sink.
func NewScheduler(sink Sink, cfg Config) (*Scheduler, error) {
	if sink == nil {
		return nil, errors.New("repair: nil sink")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg, sink: sink}, nil
}

// Config returns the curve shape.
func (s *Scheduler) Config() Config { return s.cfg }

// LastEnd returns the end time of the last scheduled envelope.
func (s *Scheduler) LastEnd() time.Duration { return s.lastEnd }

// Curve returns the repair curve for ev, anchored at the event time plus
// the lookahead: unity until the fade-in, a linear dip to
// max(0.1, reduction), a hold for the widening, then a stepped recovery.
func (s *Scheduler) Curve(ev ClickEvent) Envelope {
	t := ev.Timestamp + s.cfg.Lookahead
	g := math.Max(minDipGain, ev.Reduction)

	pts := make([]Point, 0, 3+2*s.cfg.Steps)
	pts = append(pts,
		Point{Time: t - s.cfg.FadeIn, Gain: 1, Ramp: RampSet},
		Point{Time: t, Gain: g, Ramp: RampLinear},
		Point{Time: t + ev.Widening, Gain: g, Ramp: RampSet},
	)

	segments := 2*s.cfg.Steps - 1
	seg := s.cfg.FadeOut / time.Duration(segments)
	at := t + ev.Widening
	for i := 1; i <= s.cfg.Steps; i++ {
		level := g + (1-g)*float64(i)/float64(s.cfg.Steps)
		if i == s.cfg.Steps {
			pts = append(pts, Point{Time: t + ev.Widening + s.cfg.FadeOut, Gain: 1, Ramp: RampLinear})
			break
		}
		at += seg
		pts = append(pts, Point{Time: at, Gain: level, Ramp: RampLinear})
		at += seg
		pts = append(pts, Point{Time: at, Gain: level, Ramp: RampSet})
	}

	return Envelope{Points: pts}
}

// Fallback is the fixed gentle dip used when a repair curve cannot be
// scheduled.
func Fallback(anchor time.Duration) Envelope {
	return Envelope{Points: []Point{
		{Time: anchor, Gain: 1, Ramp: RampSet},
		{Time: anchor + time.Millisecond, Gain: 0.5, Ramp: RampLinear},
		{Time: anchor + 4*time.Millisecond, Gain: 1, Ramp: RampLinear},
	}}
}

// Schedule sends the repair curve for ev to the sink. When the curve is
// invalid, overlaps the previous one, or the sink rejects it, the fallback
// curve is sent instead. An error is returned only if the fallback fails too.
func (s *Scheduler) Schedule(ev ClickEvent) (Scheduled, error) {
	out := Scheduled{Event: ev, Envelope: s.Curve(ev)}

	err := out.Envelope.Validate(s.lastEnd)
	if err == nil {
		err = s.sink.Schedule(out.Envelope)
	}
	if err == nil {
		s.lastEnd = out.Envelope.End()
		return out, nil
	}

	out.Fallback = true
	out.Cause = err
	out.Envelope = Fallback(max(ev.Timestamp+s.cfg.Lookahead, s.lastEnd))
	if ferr := out.Envelope.Validate(s.lastEnd); ferr != nil {
		return out, errors.Join(err, ferr)
	}
	if ferr := s.sink.Schedule(out.Envelope); ferr != nil {
		return out, fmt.Errorf("repair fallback: %w", errors.Join(err, ferr))
	}

	s.lastEnd = out.Envelope.End()
	return out, nil
}

// Cancel drops pending automation in the sink and forgets the last curve.
func (s *Scheduler) Cancel() {
	s.lastEnd = 0
	s.sink.Cancel()
}
