// Package lpc fits linear-prediction models with the Levinson-Durbin
// recursion and scores how poorly a model predicts its own window.
//
// Speech and tonal material is predicted well by a short all-pole model;
// clicks are not, so a large prediction residual relative to the signal level
// marks a transient.
package lpc

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// DefaultOrder is the predictor order used for live analysis.
const DefaultOrder = 16

const (
	silenceEnergy   = 1e-10
	convergenceRate = 1e-10
)

// Model is an all-pole predictor x[n] ~ sum(Coefficients[k] * x[n-1-k]).
type Model struct {
	Coefficients []float64
	// Error is the final prediction error energy relative to the signal
	// energy, in [0, 1]. Degenerate windows report 1.
	Error float64
	// Order is the recursion depth actually reached.
	Order int
	// Degenerate marks windows too short or too quiet to analyze. Their
	// coefficients are all zero.
	Degenerate bool
}

// Fit returns a model of the given order for samples. It allocates; use an
// Analyzer on the audio path.
func Fit(samples []float64, order int) Model {
	if order <= 0 {
		return Model{Error: 1, Degenerate: true}
	}

	f := newFitter(order)
	m, _ := f.fit(samples)
	m.Coefficients = append([]float64(nil), m.Coefficients...)
	return m
}

// fitter owns the recursion scratch for one order.
type fitter struct {
	order int
	r     []float64
	a     []float64
	tmp   []float64
}

func newFitter(order int) *fitter {
	return &fitter{
		order: order,
		r:     make([]float64, order+1),
		a:     make([]float64, order),
		tmp:   make([]float64, order),
	}
}

// fit runs Levinson-Durbin on the biased autocorrelation of x. The returned
// coefficients alias the fitter's scratch. energy is r[0], the mean square.
func (f *fitter) fit(x []float64) (m Model, energy float64) {
	for i := range f.a {
		f.a[i] = 0
	}
	m = Model{Coefficients: f.a, Error: 1, Degenerate: true}

	n := len(x)
	if n < 2*f.order {
		return m, 0
	}

	for k := range f.r {
		f.r[k] = vecmath.DotProduct(x[k:], x[:n-k]) / float64(n)
	}

	r0 := f.r[0]
	if !(r0 >= silenceEnergy) || math.IsInf(r0, 0) {
		return m, 0
	}

	m.Degenerate = false
	errEnergy := r0
	for i := 0; i < f.order; i++ {
		acc := f.r[i+1]
		for j := 0; j < i; j++ {
			acc -= f.a[j] * f.r[i-j]
		}

		k := acc / errEnergy
		if !(math.Abs(k) < 1) {
			break
		}

		copy(f.tmp, f.a[:i])
		f.a[i] = k
		for j := 0; j < i; j++ {
			f.a[j] = f.tmp[j] - k*f.tmp[i-1-j]
		}

		errEnergy *= 1 - k*k
		m.Order = i + 1

		if errEnergy <= convergenceRate*r0 {
			break
		}
	}

	m.Error = errEnergy / r0
	return m, r0
}

// Residual writes e[n] = x[n] - prediction for n >= order into dst and
// returns the written prefix. dst must hold len(x)-order values.
func (m Model) Residual(dst, x []float64) ([]float64, error) {
	order := len(m.Coefficients)
	if len(x) <= order {
		return dst[:0], nil
	}
	need := len(x) - order
	if len(dst) < need {
		return nil, fmt.Errorf("lpc residual: dst length %d < %d", len(dst), need)
	}

	dst = dst[:need]
	for n := order; n < len(x); n++ {
		pred := 0.0
		for k, c := range m.Coefficients {
			pred += c * x[n-1-k]
		}
		dst[n-order] = x[n] - pred
	}
	return dst, nil
}
