package speech

import (
	"testing"

	"github.com/cwbudde/algo-declick/dsp/frame"
	"github.com/cwbudde/algo-declick/internal/testutil"
)

func buildFrame(t *testing.T, x []float64) frame.Frame {
	t.Helper()
	b, err := frame.NewBuilder()
	if err != nil {
		t.Fatal(err)
	}
	f, err := b.Build(x, 0)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFormantStrength(t *testing.T) {
	tests := []struct {
		peaks int
		want  float64
	}{
		{0, 0},
		{1, 0.5},
		{2, 1},
		{4, 1},
		{5, 0.8},
		{8, 0.5},
	}
	for _, tt := range tests {
		if got := FormantStrength(tt.peaks); got != tt.want {
			t.Fatalf("FormantStrength(%d) = %v, want %v", tt.peaks, got, tt.want)
		}
	}
}

func TestToneIsProtected(t *testing.T) {
	p := NewProtector()
	f := buildFrame(t, testutil.Tone(3000, 48000, 0.5, 1024))

	a := p.Assess(f.Samples, f.MagnitudesDB, f.SampleRate, false)
	if a.Periodicity < 0.9 {
		t.Fatalf("Periodicity = %v, want >= 0.9 for a 16-sample period", a.Periodicity)
	}
	if a.Protection != 0.8 {
		t.Fatalf("Protection = %v, want 0.8", a.Protection)
	}
	if got := a.Apply(1); got < 0.19 || got > 0.21 {
		t.Fatalf("Apply(1) = %v, want 0.2", got)
	}
}

func TestImpulseIsNotProtected(t *testing.T) {
	p := NewProtector()
	f := buildFrame(t, testutil.Impulse(1024, 512, 1))

	a := p.Assess(f.Samples, f.MagnitudesDB, f.SampleRate, false)
	if a.Periodicity != 0 || a.Formants != 0 || a.Protection != 0 {
		t.Fatalf("impulse assessment = %+v, want no protection", a)
	}
}

func TestSilence(t *testing.T) {
	p := NewProtector()
	f := buildFrame(t, testutil.Silence(1024))

	a := p.Assess(f.Samples, f.MagnitudesDB, f.SampleRate, false)
	if a != (Assessment{}) {
		t.Fatalf("silence assessment = %+v, want zero", a)
	}
}

func TestSustainedProtection(t *testing.T) {
	p := NewProtector()
	a := p.Assess(testutil.Impulse(1024, 512, 1), make([]float64, 512), 48000, true)
	if a.Protection != 0.3 {
		t.Fatalf("Protection = %v, want 0.3", a.Protection)
	}
}

func TestFormantPeaks(t *testing.T) {
	p := NewProtector()

	db := make([]float64, 512)
	for i := range db {
		db[i] = -80
	}
	// 46.875 Hz bins: 700 Hz ~ bin 15, 1200 Hz ~ bin 26.
	db[15] = -20
	db[26] = -24

	a := p.Assess(nil, db, 48000, false)
	if a.Formants != 2 || a.FormantStrength != 1 {
		t.Fatalf("formants=%d strength=%v, want 2 and 1", a.Formants, a.FormantStrength)
	}
	if a.Protection != 0.5 {
		t.Fatalf("Protection = %v, want 0.5", a.Protection)
	}

	// Peaks outside the formant range are ignored.
	db[15], db[26] = -80, -80
	db[100] = -10
	if got := p.Assess(nil, db, 48000, false).Formants; got != 0 {
		t.Fatalf("Formants = %d, want 0", got)
	}
}

func TestPlateauIsNotAPeak(t *testing.T) {
	p := NewProtector()
	db := make([]float64, 512)
	for i := range db {
		db[i] = -80
	}
	db[20], db[21] = -20, -20

	if got := p.Assess(nil, db, 48000, false).Formants; got != 0 {
		t.Fatalf("Formants = %d, want 0 for a flat top", got)
	}
}

func TestOptions(t *testing.T) {
	p := NewProtector(WithLagRange(0, 10), WithFormantRange(100, 50))
	if p.Config() != DefaultConfig() {
		t.Fatalf("invalid options changed config: %+v", p.Config())
	}

	p = NewProtector(WithLagRange(4, 20), WithFormantRange(300, 3400), nil)
	cfg := p.Config()
	if cfg.MinLag != 4 || cfg.MaxLag != 20 || cfg.FormantMinHz != 300 || cfg.FormantMaxHz != 3400 {
		t.Fatalf("options not applied: %+v", cfg)
	}
}
