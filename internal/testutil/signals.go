// Package testutil provides deterministic signals and assertions shared by the
// declick test suites.
package testutil

import (
	"math"
	"math/rand"
)

// Silence returns n zero samples.
func Silence(n int) []float64 {
	return make([]float64, n)
}

// Tone generates a sine at freqHz.
func Tone(freqHz, sampleRate, amplitude float64, n int) []float64 {
	out := make([]float64, n)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// Noise generates uniform white noise with a fixed seed.
func Noise(seed int64, amplitude float64, n int) []float64 {
	out := make([]float64, n)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse returns n samples with a single spike of the given height at pos.
// Out of range positions yield silence.
func Impulse(n, pos int, height float64) []float64 {
	out := make([]float64, n)
	if pos >= 0 && pos < n {
		out[pos] = height
	}
	return out
}

// Vowel approximates a voiced vowel: a 150 Hz glottal series whose harmonics
// are shaped by two formant resonances at 700 and 1200 Hz.
func Vowel(sampleRate, amplitude float64, n int) []float64 {
	const f0 = 150.0
	formants := [...]struct{ hz, bw float64 }{{700, 130}, {1200, 150}}

	out := make([]float64, n)
	peak := 0.0
	for h := 1; float64(h)*f0 < math.Min(4000, sampleRate/2); h++ {
		hz := float64(h) * f0
		gain := 0.0
		for _, f := range formants {
			d := (hz - f.hz) / f.bw
			gain += 1 / (1 + d*d)
		}
		gain += 0.02
		step := 2 * math.Pi * hz / sampleRate
		for i := range out {
			out[i] += gain * math.Sin(step*float64(i))
		}
	}
	for _, v := range out {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak > 0 {
		for i := range out {
			out[i] *= amplitude / peak
		}
	}
	return out
}

// Mix adds src into dst sample by sample and returns dst.
func Mix(dst, src []float64) []float64 {
	for i := range dst {
		if i >= len(src) {
			break
		}
		dst[i] += src[i]
	}
	return dst
}
