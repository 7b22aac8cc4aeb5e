package frequency

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func makeSingleBinSpectrum(n, bin int, amplitude float64) []float64 {
	mag := make([]float64, n)
	mag[bin] = amplitude
	return mag
}

func makeFlatSpectrum(n int, amplitude float64) []float64 {
	mag := make([]float64, n)
	for i := range mag {
		mag[i] = amplitude
	}
	return mag
}

func TestBinFreqLayout(t *testing.T) {
	// 512 bins of a 1024-point transform at 48 kHz: 46.875 Hz apart.
	if got := binFreq(64, 48000, 512); !almostEqual(got, 3000, tolerance) {
		t.Errorf("binFreq(64) = %v, want 3000", got)
	}
	if got := binFreq(511, 48000, 512); got >= 24000 {
		t.Errorf("last bin = %v, want below Nyquist", got)
	}
}

func TestCalculateEmpty(t *testing.T) {
	s := Calculate(nil, 48000)
	if s != (Stats{}) {
		t.Errorf("Calculate(nil) = %+v, want zero", s)
	}
}

func TestCalculateAllZero(t *testing.T) {
	s := Calculate(make([]float64, 256), 48000)
	if s.Centroid != 0 || s.Spread != 0 || s.Sum != 0 {
		t.Errorf("all-zero stats = %+v", s)
	}
}

func TestCalculateSingleBin(t *testing.T) {
	s := Calculate(makeSingleBinSpectrum(512, 128, 2), 48000)

	if !almostEqual(s.Centroid, 6000, tolerance) {
		t.Errorf("Centroid = %v, want 6000", s.Centroid)
	}
	if !almostEqual(s.Spread, 0, tolerance) {
		t.Errorf("Spread = %v, want 0", s.Spread)
	}
	if !almostEqual(s.Average, 2.0/512, tolerance) {
		t.Errorf("Average = %v, want %v", s.Average, 2.0/512)
	}
}

func TestCalculateFlatSpectrum(t *testing.T) {
	const n = 512
	s := Calculate(makeFlatSpectrum(n, 1), 48000)

	binHz := 48000.0 / (2 * n)
	wantCentroid := binHz * float64(n-1) / 2
	if !almostEqual(s.Centroid, wantCentroid, 1e-6) {
		t.Errorf("Centroid = %v, want %v", s.Centroid, wantCentroid)
	}

	// Uniform distribution over n points spaced binHz apart.
	wantSpread := binHz * math.Sqrt(float64(n*n-1)/12)
	if !almostEqual(s.Spread, wantSpread, 1e-6) {
		t.Errorf("Spread = %v, want %v", s.Spread, wantSpread)
	}
}

func TestSpreadTwoBinsSymmetric(t *testing.T) {
	mag := make([]float64, 512)
	mag[32] = 1
	mag[96] = 1

	if got := Centroid(mag, 48000); !almostEqual(got, 3000, tolerance) {
		t.Errorf("Centroid = %v, want 3000", got)
	}
	if got := Spread(mag, 48000); !almostEqual(got, 1500, tolerance) {
		t.Errorf("Spread = %v, want 1500", got)
	}
}

func TestIndividualFunctionsMatchCalculate(t *testing.T) {
	mag := makeFlatSpectrum(300, 0.1)
	mag[40] = 3
	s := Calculate(mag, 44100)

	if got := Centroid(mag, 44100); !almostEqual(got, s.Centroid, tolerance) {
		t.Errorf("Centroid = %v, Calculate = %v", got, s.Centroid)
	}
	if got := Spread(mag, 44100); !almostEqual(got, s.Spread, tolerance) {
		t.Errorf("Spread = %v, Calculate = %v", got, s.Spread)
	}
}
