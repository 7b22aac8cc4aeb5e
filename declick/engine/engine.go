// Package engine drives click detection and repair from a tick loop.
//
// One goroutine calls Tick (or Run) with successive frames. Parameter
// updates may arrive from any goroutine through Apply; each analyzed tick
// reads one complete snapshot. Reset, SetEnabled and Stop are serialized
// with Tick so they never land in the middle of a step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-declick/declick/detect"
	"github.com/cwbudde/algo-declick/declick/params"
	"github.com/cwbudde/algo-declick/declick/ratelimit"
	"github.com/cwbudde/algo-declick/declick/repair"
	"github.com/cwbudde/algo-declick/dsp/frame"
)

// ErrTickPanic wraps a panic recovered during a tick.
var ErrTickPanic = errors.New("engine: tick panicked")

// Source supplies analysis frames. Next returns io.EOF at the end of the
// stream.
type Source interface {
	Next() (frame.Frame, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (frame.Frame, error)

// Next calls fn.
func (fn SourceFunc) Next() (frame.Frame, error) { return fn() }

// Status says what a tick did.
type Status int

const (
	StatusSkipped Status = iota
	StatusDisabled
	StatusStopped
	StatusAnalyzed
	StatusRejected
	StatusEmitted
	StatusFaulted
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusDisabled:
		return "disabled"
	case StatusStopped:
		return "stopped"
	case StatusAnalyzed:
		return "analyzed"
	case StatusRejected:
		return "rejected"
	case StatusEmitted:
		return "emitted"
	case StatusFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome reports one tick.
type Outcome struct {
	Status Status
	// Result is set for analyzed ticks.
	Result *detect.Result
	// Decision is set when a click reached the rate limiter.
	Decision ratelimit.Decision
	// Scheduled is set when an event was emitted.
	Scheduled *repair.Scheduled
	Err       error
}

// Stats counts tick outcomes since construction.
type Stats struct {
	Ticks     int
	Analyzed  int
	Clicks    int
	Emitted   int
	Rejected  map[ratelimit.Reason]int
	Fallbacks int
	Faults    int
}

// Engine runs the per-tick pipeline.
type Engine struct {
	cfg    Config
	log    *zap.Logger
	params *params.Store

	mu        sync.Mutex
	detector  *detect.Detector
	limiter   *ratelimit.Limiter
	scheduler *repair.Scheduler

	enabled       bool
	stopped       bool
	ticks         int
	lastProcessed time.Duration
	hasProcessed  bool
	stats         Stats
}

// New returns an engine sending repair curves to sink.
func New(sink repair.Sink, opts ...Option) (*Engine, error) {
	cfg := ApplyOptions(opts...)

	det, err := detect.New(cfg.Detector...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	lim, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	sch, err := repair.NewScheduler(sink, cfg.Repair)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		cfg:       cfg,
		log:       log.Named("declick"),
		params:    params.NewStore(cfg.Parameters),
		detector:  det,
		limiter:   lim,
		scheduler: sch,
		enabled:   cfg.Enabled,
		stats:     Stats{Rejected: make(map[ratelimit.Reason]int)},
	}, nil
}

// Apply merges a configuration update. It takes effect on the next analyzed
// tick and may be called from any goroutine.
func (e *Engine) Apply(u params.Partial) params.Parameters {
	p := e.params.Apply(u)
	e.log.Debug("parameters applied", zap.Stringer("update", u))
	return p
}

// Parameters returns the current tunables.
func (e *Engine) Parameters() params.Parameters {
	return e.params.Load()
}

// Enabled reports whether ticks are processed.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetEnabled turns processing on or off. Disabling clears rolling state and
// cancels pending automation.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.enabled && !enabled {
		e.resetLocked()
	}
	e.enabled = enabled
	e.log.Info("processing toggled", zap.Bool("enabled", enabled))
}

// Reset clears rolling state and cancels pending automation.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

// Stop cancels pending automation, leaving the sink at unity gain. Later
// ticks are ignored.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.stopped = true
	e.cancelLocked()
	e.log.Info("engine stopped")
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.stats
	s.Rejected = make(map[ratelimit.Reason]int, len(e.stats.Rejected))
	for k, v := range e.stats.Rejected {
		s.Rejected[k] = v
	}
	return s
}

// Run ticks frames from src until it returns io.EOF or ctx is done.
func (e *Engine) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("engine source: %w", err)
		}

		e.Tick(f)
	}
}

// Tick processes one frame. Faults inside the step are recovered and
// reported in the outcome; the rolling state is left as before the tick.
func (e *Engine) Tick(f frame.Frame) Outcome {
	out := e.tick(f)

	if out.Result != nil && e.cfg.OnDiagnostics != nil {
		e.notify("diagnostics", func() { e.cfg.OnDiagnostics(*out.Result) })
	}
	if out.Scheduled != nil && e.cfg.OnEvent != nil {
		e.notify("event", func() { e.cfg.OnEvent(out.Scheduled.Event) })
	}
	return out
}

func (e *Engine) tick(f frame.Frame) (out Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.stopped:
		return Outcome{Status: StatusStopped}
	case !e.enabled:
		return Outcome{Status: StatusDisabled}
	}

	e.ticks++
	e.stats.Ticks++
	if e.ticks%e.cfg.ProcessEvery != 0 {
		return Outcome{Status: StatusSkipped}
	}

	defer func() {
		if r := recover(); r != nil {
			e.stats.Faults++
			e.log.Error("tick fault recovered",
				zap.Duration("ts", f.Timestamp), zap.Any("panic", r), zap.Stack("stack"))
			out = Outcome{Status: StatusFaulted, Err: fmt.Errorf("%w at %v: %v", ErrTickPanic, f.Timestamp, r)}
		}
	}()

	if e.hasProcessed {
		if f.Timestamp < e.lastProcessed {
			e.log.Warn("stream time went backwards, resetting",
				zap.Duration("ts", f.Timestamp), zap.Duration("last", e.lastProcessed))
			e.resetLocked()
		} else if f.Timestamp-e.lastProcessed < e.cfg.MinInterval {
			return Outcome{Status: StatusSkipped}
		}
	}

	return e.step(f)
}

// step analyzes f and schedules a repair at the located click time. Rolling
// state is committed only after everything else succeeded.
func (e *Engine) step(f frame.Frame) Outcome {
	eff := params.Resolve(e.params.Load())
	a := e.detector.Analyze(f, eff)
	res := a.Result
	out := Outcome{Status: StatusAnalyzed, Result: &res}

	at := res.ClickTime
	var record bool
	if res.IsClick {
		e.stats.Clicks++
		out.Decision = e.limiter.Evaluate(at, res.Confidence, eff.Sensitivity)

		if !out.Decision.Admitted {
			out.Status = StatusRejected
			e.stats.Rejected[out.Decision.Reason]++
			e.log.Debug("click rejected",
				zap.Duration("ts", at),
				zap.Float64("confidence", res.Confidence),
				zap.Stringer("reason", out.Decision.Reason))
		} else {
			ev := repair.Resolve(at, res.Confidence, eff)
			sched, err := e.scheduler.Schedule(ev)
			if err != nil {
				e.log.Error("repair scheduling failed", zap.Duration("ts", at), zap.Error(err))
				out.Err = err
			} else {
				if sched.Fallback {
					e.stats.Fallbacks++
					e.log.Warn("repair fell back to default curve",
						zap.Duration("ts", at), zap.Error(sched.Cause))
				}
				out.Status = StatusEmitted
				out.Scheduled = &sched
				record = true
				e.log.Debug("click emitted",
					zap.Duration("ts", at),
					zap.Float64("confidence", ev.Confidence),
					zap.Float64("widening_ms", ev.WideningMs()),
					zap.Float64("reduction_db", ev.ReductionDB()),
					zap.Stringer("override", res.Override))
			}
		}
	}

	e.detector.Commit(a)
	if record {
		e.limiter.Record(at)
		e.stats.Emitted++
	}
	e.lastProcessed = f.Timestamp
	e.hasProcessed = true
	e.stats.Analyzed++

	return out
}

// resetLocked clears rolling state before touching the sink, so a failing
// sink cannot leave the detector half reset.
func (e *Engine) resetLocked() {
	e.detector.Reset()
	e.limiter.Reset()
	e.ticks = 0
	e.hasProcessed = false
	e.lastProcessed = 0
	e.cancelLocked()
}

// cancelLocked cancels pending automation. A panicking sink is logged and
// counted as a fault.
func (e *Engine) cancelLocked() {
	defer func() {
		if r := recover(); r != nil {
			e.stats.Faults++
			e.log.Error("sink cancel panicked", zap.Any("panic", r))
		}
	}()
	e.scheduler.Cancel()
}

func (e *Engine) notify(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handler panicked", zap.String("handler", kind), zap.Any("panic", r))
		}
	}()
	fn()
}
