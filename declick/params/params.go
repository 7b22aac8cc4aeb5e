// Package params holds the user-facing detection tunables, their valid
// ranges, and the per-mode effective values the pipeline runs with.
package params

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-declick/dsp/core"
)

// Valid ranges. Out of range values are clamped, never rejected.
const (
	MinSensitivity = core.MinSensitivity
	MaxSensitivity = core.MaxSensitivity

	MinSkew = -1.0
	MaxSkew = 1.0

	MinWideningMs = 1.0
	MaxWideningMs = 20.0

	MinReductionDB = -60.0
	MaxReductionDB = 0.0
)

// Smack mode covers longer wet transients.
const (
	smackWideningFactor = 1.5
	smackSkewShift      = -0.25
)

// Mode selects the transient class being targeted.
type Mode int

const (
	ModeClick Mode = iota
	ModeSmack
)

func (m Mode) String() string {
	switch m {
	case ModeClick:
		return "click"
	case ModeSmack:
		return "smack"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "click" or "smack", ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "click":
		return ModeClick, nil
	case "smack":
		return ModeSmack, nil
	default:
		return ModeClick, fmt.Errorf("unknown mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m != ModeClick && m != ModeSmack {
		return nil, fmt.Errorf("invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Parameters are the five detection tunables.
type Parameters struct {
	Sensitivity     float64 `json:"sensitivity"`
	FrequencySkew   float64 `json:"skew"`
	ClickWideningMs float64 `json:"widening"`
	ReductionDB     float64 `json:"reduction"`
	Mode            Mode    `json:"mode"`
}

// Default returns the factory settings.
func Default() Parameters {
	return Parameters{
		Sensitivity:     1.0,
		FrequencySkew:   0,
		ClickWideningMs: 5,
		ReductionDB:     -24,
		Mode:            ModeClick,
	}
}

// Clamp returns p with every field forced into its valid range. Non-finite
// fields and unknown modes fall back to the defaults.
func (p Parameters) Clamp() Parameters {
	d := Default()
	p.Sensitivity = clampField(p.Sensitivity, d.Sensitivity, MinSensitivity, MaxSensitivity)
	p.FrequencySkew = clampField(p.FrequencySkew, d.FrequencySkew, MinSkew, MaxSkew)
	p.ClickWideningMs = clampField(p.ClickWideningMs, d.ClickWideningMs, MinWideningMs, MaxWideningMs)
	p.ReductionDB = clampField(p.ReductionDB, d.ReductionDB, MinReductionDB, MaxReductionDB)
	if p.Mode != ModeClick && p.Mode != ModeSmack {
		p.Mode = d.Mode
	}
	return p
}

func clampField(v, fallback, lo, hi float64) float64 {
	return core.Clamp(core.FiniteOr(v, fallback), lo, hi)
}

// Partial is a configuration update. Nil fields keep their prior value.
type Partial struct {
	Sensitivity     *float64 `json:"sensitivity,omitempty"`
	FrequencySkew   *float64 `json:"skew,omitempty"`
	ClickWideningMs *float64 `json:"widening,omitempty"`
	ReductionDB     *float64 `json:"reduction,omitempty"`
	Mode            *Mode    `json:"mode,omitempty"`
}

// Float returns a pointer to v for building a Partial.
func Float(v float64) *float64 { return &v }

// ModeOf returns a pointer to m for building a Partial.
func ModeOf(m Mode) *Mode { return &m }

// Full returns a Partial that sets every field of p.
func Full(p Parameters) Partial {
	return Partial{
		Sensitivity:     Float(p.Sensitivity),
		FrequencySkew:   Float(p.FrequencySkew),
		ClickWideningMs: Float(p.ClickWideningMs),
		ReductionDB:     Float(p.ReductionDB),
		Mode:            ModeOf(p.Mode),
	}
}

// Empty reports whether the update sets nothing.
func (u Partial) Empty() bool {
	return u.Sensitivity == nil && u.FrequencySkew == nil && u.ClickWideningMs == nil &&
		u.ReductionDB == nil && u.Mode == nil
}

func (u Partial) String() string {
	b, err := json.Marshal(u)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Apply merges u into p. Each set field is clamped independently; a
// non-finite value or unknown mode keeps the prior value.
func (p Parameters) Apply(u Partial) Parameters {
	p = p.Clamp()
	p.Sensitivity = applyField(p.Sensitivity, u.Sensitivity, MinSensitivity, MaxSensitivity)
	p.FrequencySkew = applyField(p.FrequencySkew, u.FrequencySkew, MinSkew, MaxSkew)
	p.ClickWideningMs = applyField(p.ClickWideningMs, u.ClickWideningMs, MinWideningMs, MaxWideningMs)
	p.ReductionDB = applyField(p.ReductionDB, u.ReductionDB, MinReductionDB, MaxReductionDB)
	if u.Mode != nil && (*u.Mode == ModeClick || *u.Mode == ModeSmack) {
		p.Mode = *u.Mode
	}
	return p
}

func applyField(prior float64, v *float64, lo, hi float64) float64 {
	if v == nil || !core.IsFinite(*v) {
		return prior
	}
	return core.Clamp(*v, lo, hi)
}

// Effective is the parameter set one analysis tick runs with.
type Effective struct {
	Sensitivity     float64
	FrequencySkew   float64
	ClickWideningMs float64
	ReductionDB     float64
	Mode            Mode
	// WideningFactor multiplies ClickWideningMs when resolving events.
	WideningFactor float64
}

// Resolve derives the effective parameters for p's mode. It never modifies
// p, so resolving repeatedly yields the same result.
func Resolve(p Parameters) Effective {
	p = p.Clamp()
	e := Effective{
		Sensitivity:     p.Sensitivity,
		FrequencySkew:   p.FrequencySkew,
		ClickWideningMs: p.ClickWideningMs,
		ReductionDB:     p.ReductionDB,
		Mode:            p.Mode,
		WideningFactor:  1,
	}
	if p.Mode == ModeSmack {
		e.WideningFactor = smackWideningFactor
		e.FrequencySkew = core.Clamp(e.FrequencySkew+smackSkewShift, MinSkew, MaxSkew)
	}
	return e
}

// WideningMs returns the widening in milliseconds including the mode factor.
func (e Effective) WideningMs() float64 {
	return e.ClickWideningMs * e.WideningFactor
}

// Widening returns WideningMs as a duration.
func (e Effective) Widening() time.Duration {
	return time.Duration(e.WideningMs() * float64(time.Millisecond))
}

// Store publishes Parameters snapshots to a reader on another goroutine.
// Readers always observe a complete, clamped set.
type Store struct {
	cur atomic.Pointer[Parameters]
}

// NewStore returns a store holding p clamped.
func NewStore(p Parameters) *Store {
	s := &Store{}
	p = p.Clamp()
	s.cur.Store(&p)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() Parameters {
	return *s.cur.Load()
}

// Apply merges u into the current snapshot and publishes the result.
func (s *Store) Apply(u Partial) Parameters {
	for {
		old := s.cur.Load()
		next := old.Apply(u)
		if s.cur.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// Replace publishes p clamped.
func (s *Store) Replace(p Parameters) {
	p = p.Clamp()
	s.cur.Store(&p)
}
