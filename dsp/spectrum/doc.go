// Package spectrum provides per-frame multi-band analysis of a one-sided
// magnitude spectrum in dB.
//
// The package does not implement an FFT. It consumes magnitude bins produced
// by an external backend (see package frame) and derives band energies,
// spectral flux, centroid and spread, plus the band-ratio scores used for
// click detection. Bin boundaries per band are cached and recomputed only when
// the sample rate or bin count changes.
package spectrum
