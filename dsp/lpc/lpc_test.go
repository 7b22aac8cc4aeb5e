package lpc

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-declick/internal/testutil"
)

func TestFitDegenerateWindows(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
	}{
		{"silence", testutil.Silence(1024)},
		{"too short", testutil.Noise(1, 1, 31)},
		{"empty", nil},
		{"below energy floor", testutil.Tone(1000, 48000, 1e-6, 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Fit(tt.samples, DefaultOrder)
			if !m.Degenerate {
				t.Fatal("expected degenerate model")
			}
			if m.Error != 1 {
				t.Fatalf("Error = %v, want 1", m.Error)
			}
			if len(m.Coefficients) != DefaultOrder {
				t.Fatalf("len(Coefficients) = %d, want %d", len(m.Coefficients), DefaultOrder)
			}
			for i, c := range m.Coefficients {
				if c != 0 {
					t.Fatalf("coefficient %d = %v, want 0", i, c)
				}
			}
		})
	}
}

func TestFitSinePredictsWell(t *testing.T) {
	m := Fit(testutil.Tone(1000, 48000, 0.5, 1024), DefaultOrder)
	if m.Degenerate {
		t.Fatal("unexpected degenerate model")
	}
	if m.Error > 0.01 {
		t.Fatalf("Error = %v, want < 0.01 for a pure tone", m.Error)
	}
	if m.Order < 2 {
		t.Fatalf("Order = %d, want >= 2", m.Order)
	}
	testutil.RequireFinite(t, m.Coefficients)
}

func TestFitImpulseHasNoPredictableStructure(t *testing.T) {
	m := Fit(testutil.Impulse(1024, 512, 1), DefaultOrder)
	if m.Degenerate {
		t.Fatal("unexpected degenerate model")
	}
	if m.Error != 1 {
		t.Fatalf("Error = %v, want 1", m.Error)
	}
	for i, c := range m.Coefficients {
		if c != 0 {
			t.Fatalf("coefficient %d = %v, want 0", i, c)
		}
	}
}

func TestFitCoefficientsDoNotAlias(t *testing.T) {
	a := Fit(testutil.Tone(1000, 48000, 0.5, 512), 4)
	b := Fit(testutil.Tone(5000, 48000, 0.5, 512), 4)
	if a.Coefficients[0] == b.Coefficients[0] {
		t.Fatal("distinct tones produced identical first coefficients")
	}
}

func TestResidual(t *testing.T) {
	m := Model{Coefficients: []float64{1}}
	x := []float64{1, 2, 4, 7}

	got, err := m.Residual(make([]float64, 3), x)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("residual = %v, want %v", got, want)
		}
	}

	if _, err := m.Residual(make([]float64, 1), x); err == nil {
		t.Fatal("expected error for short dst")
	}
}

func TestNewAnalyzerValidation(t *testing.T) {
	if _, err := NewAnalyzer(0, 1024); err == nil {
		t.Fatal("expected error for zero order")
	}
	if _, err := NewAnalyzer(16, -1); err == nil {
		t.Fatal("expected error for negative window")
	}
	a, err := NewAnalyzer(8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.Order() != 8 {
		t.Fatalf("Order = %d, want 8", a.Order())
	}
}

func TestAnalyzeZeroWindow(t *testing.T) {
	a, _ := NewAnalyzer(DefaultOrder, 1024)
	res := a.Analyze(testutil.Silence(1024), 1, 1)

	if !res.Degenerate() || res.Confidence != 0 || res.Detected {
		t.Fatalf("zero window analysis = %+v", res)
	}
	if res.Model.Error != 1 {
		t.Fatalf("Error = %v, want 1", res.Model.Error)
	}
	if res.ResidualPeakPos != -1 {
		t.Fatalf("ResidualPeakPos = %d, want -1", res.ResidualPeakPos)
	}
}

func TestAnalyzeImpulse(t *testing.T) {
	a, _ := NewAnalyzer(DefaultOrder, 1024)
	res := a.Analyze(testutil.Impulse(1024, 512, 1), 1, 1)

	if math.Abs(res.PeakRatio-32) > 1e-9 {
		t.Fatalf("PeakRatio = %v, want 32", res.PeakRatio)
	}
	if res.Confidence != 2 || !res.Detected {
		t.Fatalf("impulse confidence = %v detected=%v", res.Confidence, res.Detected)
	}
	if res.ResidualPeakPos != 512 {
		t.Fatalf("ResidualPeakPos = %d, want 512", res.ResidualPeakPos)
	}
}

func TestResidualPeakLocatesClickInNoise(t *testing.T) {
	a, _ := NewAnalyzer(DefaultOrder, 1024)
	for _, pos := range []int{40, 300, 700, 1000} {
		x := testutil.Noise(int64(pos), 0.001, 1024)
		x[pos] += 0.6

		res := a.Analyze(x, 1, 1)
		if res.ResidualPeakPos != pos {
			t.Fatalf("click at %d: ResidualPeakPos = %d", pos, res.ResidualPeakPos)
		}
	}
}

func TestAnalyzeToneNotDetected(t *testing.T) {
	a, _ := NewAnalyzer(DefaultOrder, 1024)
	res := a.Analyze(testutil.Tone(3000, 48000, 0.5, 1024), 1, 1)

	if res.RMSRatio > 0.05 {
		t.Fatalf("RMSRatio = %v, want small residual", res.RMSRatio)
	}
	if res.Detected {
		t.Fatalf("tone detected with confidence %v", res.Confidence)
	}
}

func TestAnalyzeGrowsScratch(t *testing.T) {
	a, _ := NewAnalyzer(DefaultOrder, 0)
	res := a.Analyze(testutil.Impulse(2048, 1000, 1), 1, 1)
	if !res.Detected {
		t.Fatal("impulse not detected after growing scratch")
	}
}

func TestAnalyzeMonotonicInSensitivity(t *testing.T) {
	a, _ := NewAnalyzer(DefaultOrder, 1024)
	x := testutil.Mix(testutil.Vowel(48000, 0.3, 1024), testutil.Impulse(1024, 512, 0.2))

	prev := -1.0
	for s := 0.1; s <= 2.0001; s += 0.1 {
		res := a.Analyze(x, s, 1)
		if res.Confidence < prev {
			t.Fatalf("confidence %v at sensitivity %.1f below %v", res.Confidence, s, prev)
		}
		prev = res.Confidence
	}
}

func TestAnalyzeExponentMapping(t *testing.T) {
	a, _ := NewAnalyzer(DefaultOrder, 1024)
	x := testutil.Noise(3, 0.5, 1024)

	lo := a.Analyze(x, 0.5, 1)
	hi := a.Analyze(x, 1, 1)

	want := math.Pow(2, SensitivityExponent)
	if got := lo.RMSThreshold / hi.RMSThreshold; math.Abs(got-want) > 1e-9 {
		t.Fatalf("threshold ratio = %v, want %v", got, want)
	}
}

func TestAnalyzeSNRScaleLowersThresholds(t *testing.T) {
	a, _ := NewAnalyzer(DefaultOrder, 1024)
	x := testutil.Noise(4, 0.5, 1024)

	base := a.Analyze(x, 1, 1)
	scaled := a.Analyze(x, 1, 2)
	if math.Abs(scaled.PeakThreshold*2-base.PeakThreshold) > 1e-12 {
		t.Fatalf("PeakThreshold = %v, want half of %v", scaled.PeakThreshold, base.PeakThreshold)
	}
}
