package repair

import (
	"errors"
	"fmt"
	"time"

	"github.com/cwbudde/algo-declick/dsp/core"
)

// MinGain is the lowest gain an envelope may reach. Complete removal is
// expressed as MinGain rather than zero.
const MinGain = 0.0001

var (
	// ErrEmptyEnvelope is returned when validating an envelope with no points.
	ErrEmptyEnvelope = errors.New("repair: empty envelope")
	// ErrInvalidEnvelope wraps point ordering and gain range violations.
	ErrInvalidEnvelope = errors.New("repair: invalid envelope")
)

// Ramp selects how the gain reaches a point's value.
type Ramp int

const (
	// RampSet jumps to the value at the point's time.
	RampSet Ramp = iota
	// RampLinear interpolates linearly from the previous point.
	RampLinear
)

func (r Ramp) String() string {
	switch r {
	case RampSet:
		return "set"
	case RampLinear:
		return "linear"
	default:
		return fmt.Sprintf("Ramp(%d)", int(r))
	}
}

// Point is one gain automation point on the stream time axis.
type Point struct {
	Time time.Duration
	Gain float64
	Ramp Ramp
}

// Envelope is an ordered gain automation curve.
type Envelope struct {
	Points []Point
}

// Start returns the first point's time.
func (e Envelope) Start() time.Duration {
	if len(e.Points) == 0 {
		return 0
	}
	return e.Points[0].Time
}

// End returns the last point's time.
func (e Envelope) End() time.Duration {
	if len(e.Points) == 0 {
		return 0
	}
	return e.Points[len(e.Points)-1].Time
}

// MinGain returns the deepest gain of the curve.
func (e Envelope) MinGain() float64 {
	g := 1.0
	for _, p := range e.Points {
		g = min(g, p.Gain)
	}
	return g
}

// Validate checks that the curve starts no earlier than notBefore, that
// times never decrease, and that every gain is finite and in [MinGain, 1].
func (e Envelope) Validate(notBefore time.Duration) error {
	if len(e.Points) == 0 {
		return ErrEmptyEnvelope
	}
	if e.Points[0].Time < notBefore {
		return fmt.Errorf("%w: starts at %v before %v", ErrInvalidEnvelope, e.Points[0].Time, notBefore)
	}

	for i, p := range e.Points {
		if !core.IsFinite(p.Gain) || p.Gain < MinGain || p.Gain > 1 {
			return fmt.Errorf("%w: point %d gain %v", ErrInvalidEnvelope, i, p.Gain)
		}
		if p.Ramp != RampSet && p.Ramp != RampLinear {
			return fmt.Errorf("%w: point %d ramp %v", ErrInvalidEnvelope, i, p.Ramp)
		}
		if i > 0 && p.Time < e.Points[i-1].Time {
			return fmt.Errorf("%w: point %d at %v before %v", ErrInvalidEnvelope, i, p.Time, e.Points[i-1].Time)
		}
	}
	return nil
}

// GainAt evaluates the curve at t, holding unity before the first point and
// the last value after the final one.
func (e Envelope) GainAt(t time.Duration) float64 {
	g := 1.0
	prevT := time.Duration(0)
	for i, p := range e.Points {
		if t < p.Time {
			if p.Ramp == RampLinear && i > 0 && p.Time > prevT {
				frac := float64(t-prevT) / float64(p.Time-prevT)
				return g + (p.Gain-g)*frac
			}
			return g
		}
		g = p.Gain
		prevT = p.Time
	}
	return g
}
