package ratelimit

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/algo-declick/dsp/core"
)

const ms = time.Millisecond

func newLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	l, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// assertTrailingWindow checks that no trailing window ending at an admitted
// event holds more than max events, and that spacing holds.
func assertTrailingWindow(t *testing.T, admitted []time.Duration, window, spacing time.Duration, maxEvents int) {
	t.Helper()
	for i, end := range admitted {
		n := 0
		for _, ts := range admitted[:i+1] {
			if end-ts < window {
				n++
			}
		}
		if n > maxEvents {
			t.Fatalf("%d events in window ending at %v, max %d", n, end, maxEvents)
		}
		if i > 0 && end-admitted[i-1] < spacing {
			t.Fatalf("spacing %v before %v below %v", end-admitted[i-1], end, spacing)
		}
	}
}

func TestBurstOfImpulses(t *testing.T) {
	l := newLimiter(t, DefaultConfig())

	var admitted []time.Duration
	for i := range 20 {
		now := time.Duration(i) * 25 * ms
		if l.Admit(now, 2, 1).Admitted {
			admitted = append(admitted, now)
		}
	}

	want := []time.Duration{0, 125 * ms, 250 * ms, 375 * ms}
	if len(admitted) != len(want) {
		t.Fatalf("admitted %v, want %v", admitted, want)
	}
	for i := range want {
		if admitted[i] != want[i] {
			t.Fatalf("admitted %v, want %v", admitted, want)
		}
	}
	assertTrailingWindow(t, admitted, time.Second, 125*ms, 8)
}

func TestSustainedStreamNeverExceedsCap(t *testing.T) {
	l := newLimiter(t, DefaultConfig())

	var admitted []time.Duration
	for now := time.Duration(0); now < 5*time.Second; now += 10 * ms {
		if l.Admit(now, 2, 2).Admitted {
			admitted = append(admitted, now)
		}
		if l.Count() > 8 {
			t.Fatalf("Count = %d at %v", l.Count(), now)
		}
	}
	if len(admitted) < 30 {
		t.Fatalf("admitted only %d events over 5s", len(admitted))
	}
	assertTrailingWindow(t, admitted, time.Second, 125*ms, 8)
}

func TestReasons(t *testing.T) {
	l := newLimiter(t, DefaultConfig())
	if d := l.Admit(time.Second, 1, 1); !d.Admitted || d.Reason != ReasonAdmitted {
		t.Fatalf("first event = %+v", d)
	}

	tests := []struct {
		name       string
		now        time.Duration
		confidence float64
		want       Reason
	}{
		{"suppressed", time.Second + 10*ms, 2, ReasonSuppressed},
		{"spacing", time.Second + 60*ms, 2, ReasonSpacing},
		{"confidence", time.Second + 200*ms, 0.1, ReasonConfidence},
		{"nan confidence", time.Second + 200*ms, math.NaN(), ReasonConfidence},
		{"inf confidence", time.Second + 200*ms, math.Inf(1), ReasonConfidence},
		{"non-monotonic", 500 * ms, 2, ReasonNonMonotonic},
		{"admitted", time.Second + 200*ms, 2, ReasonAdmitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := l.Evaluate(tt.now, tt.confidence, 1)
			if d.Reason != tt.want {
				t.Fatalf("Reason = %v, want %v", d.Reason, tt.want)
			}
			if d.Admitted != (tt.want == ReasonAdmitted) {
				t.Fatalf("Admitted = %v for reason %v", d.Admitted, d.Reason)
			}
		})
	}
	if l.Count() != 1 {
		t.Fatalf("Evaluate changed Count to %d", l.Count())
	}
}

func TestRequiredConfidence(t *testing.T) {
	l := newLimiter(t, DefaultConfig())

	if got := l.Required(0, 1); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("Required(0) = %v, want 0.3", got)
	}
	if got := l.Required(4, 1); math.Abs(got-0.55) > 1e-12 {
		t.Fatalf("Required(4) = %v, want 0.55", got)
	}
	if got, want := l.Required(8, 2), 0.8/math.Pow(2, SensitivityExponent); math.Abs(got-want) > 1e-12 {
		t.Fatalf("Required(8, s=2) = %v, want %v", got, want)
	}

	prev := math.Inf(1)
	for s := 0.1; s <= 2.0001; s += 0.1 {
		r := l.Required(4, s)
		if r > prev {
			t.Fatalf("required confidence rose with sensitivity at %.1f", s)
		}
		prev = r
	}
}

func TestWindowFullAndPrune(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 3
	cfg.Suppression = 0
	cfg.MinSpacing = 0
	cfg.BaseRequired = 0
	cfg.FullnessSlope = 0
	l := newLimiter(t, cfg)

	for i := range 3 {
		if !l.Admit(time.Duration(i)*ms, 1, 1).Admitted {
			t.Fatalf("event %d rejected", i)
		}
	}

	d := l.Admit(10*ms, 1, 1)
	if d.Reason != ReasonWindowFull || d.InWindow != 3 {
		t.Fatalf("decision = %+v, want window full", d)
	}

	d = l.Admit(time.Second+1*ms, 1, 1)
	if !d.Admitted {
		t.Fatalf("decision after window = %+v", d)
	}
	if l.Count() != 2 {
		t.Fatalf("Count = %d after prune, want 2", l.Count())
	}
}

func TestReset(t *testing.T) {
	l := newLimiter(t, DefaultConfig())
	l.Admit(time.Second, 2, 1)
	l.Reset()

	if l.Count() != 0 {
		t.Fatalf("Count = %d after Reset", l.Count())
	}
	if d := l.Admit(0, 2, 1); !d.Admitted {
		t.Fatalf("post-reset decision = %+v", d)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero events", func(c *Config) { c.MaxEvents = 0 }},
		{"zero window", func(c *Config) { c.Window = 0 }},
		{"negative spacing", func(c *Config) { c.MinSpacing = -ms }},
		{"nan base", func(c *Config) { c.BaseRequired = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			_, err := New(cfg)
			if !errors.Is(err, errInvalidConfig) {
				t.Fatalf("err = %v, want errInvalidConfig", err)
			}
		})
	}
}

func TestReasonString(t *testing.T) {
	if ReasonWindowFull.String() != "window full" || Reason(42).String() != "Reason(42)" {
		t.Fatal("unexpected Reason strings")
	}
}

func TestAdmissionExponentIsShared(t *testing.T) {
	if SensitivityExponent != core.AdmissionExponent {
		t.Fatalf("SensitivityExponent = %v, core.AdmissionExponent = %v, want both 0.8",
			SensitivityExponent, core.AdmissionExponent)
	}
	if SensitivityExponent != 0.8 {
		t.Fatalf("SensitivityExponent = %v, core.AdmissionExponent = %v, want both 0.8",
			SensitivityExponent, core.AdmissionExponent)
	}

	l := newLimiter(t, DefaultConfig())
	want := l.Required(0, 1) / core.SensitivityScale(2, core.AdmissionExponent)
	if got := l.Required(0, 2); math.Abs(got-want) > 1e-12 {
		t.Fatalf("Required(0, s=2) = %v, want %v", got, want)
	}
}
