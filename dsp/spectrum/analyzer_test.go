package spectrum

import (
	"math"
	"testing"
)

const (
	testSampleRate = 48000.0
	testBins       = 512
	testFloorDB    = -160.0
)

func flatSpectrum(db float64) []float64 {
	out := make([]float64, testBins)
	for i := range out {
		out[i] = db
	}
	return out
}

func toneSpectrum(bin int) []float64 {
	out := flatSpectrum(testFloorDB)
	out[bin] = 0
	return out
}

func TestBinRange(t *testing.T) {
	tests := []struct {
		name   string
		minHz  float64
		maxHz  float64
		lo, hi int
	}{
		{"target", 2000, 6000, 43, 128},
		{"clipped", 20000, 30000, 427, 512},
		{"inverted", 6000, 2000, 0, 0},
		{"dc", 0, 100, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := BinRange(tt.minHz, tt.maxHz, testSampleRate, testBins)
			if lo != tt.lo || hi != tt.hi {
				t.Fatalf("BinRange = [%d,%d), want [%d,%d)", lo, hi, tt.lo, tt.hi)
			}
		})
	}
}

func TestAnalyzerCachesRangesPerLayout(t *testing.T) {
	a := NewAnalyzer()
	a.Analyze(flatSpectrum(-40), testSampleRate, 1, 1)

	lo, hi := a.Range(BandTarget)
	if lo != 43 || hi != 128 {
		t.Fatalf("target range = [%d,%d), want [43,128)", lo, hi)
	}

	a.Analyze(flatSpectrum(-40), 24000, 1, 1)
	lo, hi = a.Range(BandTarget)
	if lo != 86 || hi != 256 {
		t.Fatalf("target range after rate change = [%d,%d), want [86,256)", lo, hi)
	}
}

func TestFlatSpectrumRatios(t *testing.T) {
	a := NewAnalyzer()
	f := a.Analyze(flatSpectrum(-20), testSampleRate, 1, 1)

	m := math.Pow(10, -20.0/20)
	b := DefaultBands()
	for id := range NumBands {
		want := m * b[id].Weight
		if math.Abs(f.Energies[id]-want) > 1e-12 {
			t.Fatalf("%s energy = %v, want %v", id, f.Energies[id], want)
		}
	}

	if want := 1.2 / 3.6; math.Abs(f.TargetRatio-want) > 1e-9 {
		t.Fatalf("TargetRatio = %v, want %v", f.TargetRatio, want)
	}

	if want := 1.0 / 1.4; math.Abs(f.BurstRatio-want) > 1e-9 {
		t.Fatalf("BurstRatio = %v, want %v", f.BurstRatio, want)
	}

	for id := range NumBands {
		if math.Abs(f.Means[id]-m) > 1e-12 {
			t.Fatalf("%s mean = %v, want %v", id, f.Means[id], m)
		}
	}

	if f.Sustained() {
		t.Fatal("a flat spectrum must not read as sustained")
	}
}

func TestSustainedUsesUnweightedMeans(t *testing.T) {
	tests := []struct {
		name   string
		lowDB  float64
		highDB float64
		want   bool
	}{
		{"voiced", -20, -50, true},
		{"flat", -30, -30, false},
		{"bright", -50, -20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := flatSpectrum(tt.highDB)
			lo, hi := BinRange(0, 2000, testSampleRate, testBins)
			for i := lo; i < hi; i++ {
				spec[i] = tt.lowDB
			}

			f := NewAnalyzer().Analyze(spec, testSampleRate, 1, 1)
			if got := f.Sustained(); got != tt.want {
				t.Fatalf("Sustained = %v, want %v (means %v)", got, tt.want, f.Means)
			}
		})
	}
}

func TestFluxUsesCommittedReference(t *testing.T) {
	a := NewAnalyzer()
	frame := flatSpectrum(-30)

	first := a.Analyze(frame, testSampleRate, 1, 1)
	if first.Onset != 0 || first.Flux != 0 || first.FluxScore.Confidence != 0 {
		t.Fatalf("first frame flux=%v onset=%v conf=%v, want 0 without a reference",
			first.Flux, first.Onset, first.FluxScore.Confidence)
	}

	// Without Commit the reference stays empty.
	again := a.Analyze(frame, testSampleRate, 1, 1)
	if again.Onset != 0 {
		t.Fatalf("uncommitted onset = %v, want 0", again.Onset)
	}

	a.Commit()
	rise := a.Analyze(flatSpectrum(0), testSampleRate, 1, 1)
	if rise.Onset <= 0.9 || !rise.FluxScore.Detected {
		t.Fatalf("onset over a committed quiet frame = %v, want near 1", rise.Onset)
	}

	steady := a.Analyze(frame, testSampleRate, 1, 1)
	if steady.Onset != 0 || steady.Flux != 0 {
		t.Fatalf("steady frame flux=%v onset=%v, want 0", steady.Flux, steady.Onset)
	}

	a.Commit()
	decay := a.Analyze(flatSpectrum(-60), testSampleRate, 1, 1)
	if decay.Flux != 0 {
		t.Fatalf("decaying frame flux = %v, want 0 (decays are ignored)", decay.Flux)
	}
}

func TestResetForgetsReference(t *testing.T) {
	a := NewAnalyzer()
	a.Analyze(flatSpectrum(-30), testSampleRate, 1, 1)
	a.Commit()
	a.Reset()

	f := a.Analyze(flatSpectrum(-10), testSampleRate, 1, 1)
	if f.Onset != 0 {
		t.Fatalf("onset after Reset = %v, want 0", f.Onset)
	}
}

func TestCentroidOfSingleBin(t *testing.T) {
	a := NewAnalyzer()
	f := a.Analyze(toneSpectrum(64), testSampleRate, 1, 1)

	if math.Abs(f.Centroid-3000) > 1 {
		t.Fatalf("Centroid = %v, want ~3000", f.Centroid)
	}

	if f.Spread > 50 {
		t.Fatalf("Spread = %v, want near zero for a single bin", f.Spread)
	}

	if !f.TargetScore.Detected {
		t.Fatalf("tone inside target band should trip the target score: %+v", f.TargetScore)
	}
}

func TestScoresMonotonicInSensitivity(t *testing.T) {
	frame := flatSpectrum(-30)
	var prev Features
	for i, s := range []float64{0.1, 0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2} {
		f := NewAnalyzer().Analyze(frame, testSampleRate, s, 1)
		if i > 0 {
			if f.FluxScore.Confidence < prev.FluxScore.Confidence ||
				f.TargetScore.Confidence < prev.TargetScore.Confidence ||
				f.BurstScore.Confidence < prev.BurstScore.Confidence {
				t.Fatalf("confidence decreased at sensitivity %v", s)
			}
		}
		prev = f
	}
}

func TestScoreExponents(t *testing.T) {
	frame := flatSpectrum(-30)
	lo := NewAnalyzer().Analyze(frame, testSampleRate, 1, 1)
	hi := NewAnalyzer().Analyze(frame, testSampleRate, 2, 1)

	tests := []struct {
		name     string
		lo, hi   Score
		exponent float64
	}{
		{"flux", lo.FluxScore, hi.FluxScore, FluxExponent},
		{"target", lo.TargetScore, hi.TargetScore, TargetExponent},
		{"burst", lo.BurstScore, hi.BurstScore, BurstExponent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio := tt.lo.Threshold / tt.hi.Threshold
			want := math.Pow(2, tt.exponent)
			if math.Abs(ratio-want) > 1e-9 {
				t.Fatalf("threshold ratio = %v, want %v", ratio, want)
			}
		})
	}
}

func TestEmptySpectrum(t *testing.T) {
	f := NewAnalyzer().Analyze(nil, testSampleRate, 1, 1)
	if f.FluxScore.Detected || f.TargetScore.Detected || f.BurstScore.Detected {
		t.Fatal("empty spectrum must not detect anything")
	}
}

func TestMagnitudeToDB(t *testing.T) {
	mag := []float64{1, 0, math.NaN(), 1e-12}
	MagnitudeToDB(mag, 1, -100)

	want := []float64{0, -100, -100, -100}
	for i := range want {
		if math.Abs(mag[i]-want[i]) > 1e-12 {
			t.Fatalf("bin %d = %v, want %v", i, mag[i], want[i])
		}
	}
}

func TestSilentFrameScoresNothing(t *testing.T) {
	f := NewAnalyzer().Analyze(flatSpectrum(testFloorDB), testSampleRate, 2, 1)
	if f.Onset != 0 || f.TargetRatio != 0 || f.BurstRatio != 0 {
		t.Fatalf("silent frame onset=%v target=%v burst=%v, want 0", f.Onset, f.TargetRatio, f.BurstRatio)
	}
	if f.FluxScore.Detected || f.TargetScore.Detected || f.BurstScore.Detected {
		t.Fatal("silent frame must not detect anything")
	}
}
