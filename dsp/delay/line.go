// Package delay provides the fixed lookahead delay used on the program path
// so gain automation can start slightly before a detected onset.
package delay

import (
	"fmt"
	"math"
	"time"
)

// Line is a circular delay line with a fixed integer delay.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line delaying its input by exactly delay samples.
// A delay of 0 passes samples through unchanged.
func New(delay int) (*Line, error) {
	if delay < 0 {
		return nil, fmt.Errorf("delay must be >= 0: %d", delay)
	}
	return &Line{buffer: make([]float64, delay)}, nil
}

// ForDuration returns a delay line for d at the given sample rate, rounded to
// the nearest sample.
func ForDuration(d time.Duration, sampleRate float64) (*Line, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("delay sample rate must be positive and finite: %f", sampleRate)
	}
	if d < 0 {
		return nil, fmt.Errorf("delay duration must be >= 0: %s", d)
	}
	return New(int(math.Round(d.Seconds() * sampleRate)))
}

// Delay returns the delay in samples.
func (d *Line) Delay() int {
	return len(d.buffer)
}

// Process writes one sample and returns the sample written Delay() calls ago.
func (d *Line) Process(sample float64) float64 {
	if len(d.buffer) == 0 {
		return sample
	}

	out := d.buffer[d.writePos]
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
	return out
}

// ProcessInPlace delays buf in place.
func (d *Line) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = d.Process(buf[i])
	}
}

// Reset clears line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
}
