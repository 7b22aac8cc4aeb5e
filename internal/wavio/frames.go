package wavio

import (
	"errors"
	"fmt"
	"io"

	"github.com/cwbudde/algo-declick/dsp/frame"
)

// FrameSource slides an analysis window over a Reader, advancing by hop
// samples per frame. Frames always cover a full window: the first Next reads
// a whole window, later calls one hop. Each frame's timestamp is the stream
// position of its first sample. A stream shorter than the window yields one
// zero-padded frame at time zero.
type FrameSource struct {
	r   *Reader
	b   *frame.Builder
	hop int

	window   []float64
	block    []float64
	consumed int64
}

// NewFrameSource returns a source reading hop samples per frame.
func NewFrameSource(r *Reader, b *frame.Builder, hop int) (*FrameSource, error) {
	if hop <= 0 || hop > b.Size() {
		return nil, fmt.Errorf("wavio hop must be in [1, %d]: %d", b.Size(), hop)
	}
	if r.SampleRate() != b.SampleRate() {
		return nil, fmt.Errorf("wavio: stream rate %.0f does not match analysis rate %.0f", r.SampleRate(), b.SampleRate())
	}

	return &FrameSource{
		r:      r,
		b:      b,
		hop:    hop,
		window: make([]float64, b.Size()),
		block:  make([]float64, 0, b.Size()),
	}, nil
}

// Hop returns the samples read per frame once the window is full.
func (s *FrameSource) Hop() int { return s.hop }

// Block returns the samples read by the last Next call. It is overwritten by
// the next call.
func (s *FrameSource) Block() []float64 { return s.block }

// Next reads up to one hop (a whole window on the first call) and returns
// the updated frame. It returns io.EOF when the stream is exhausted.
func (s *FrameSource) Next() (frame.Frame, error) {
	size := len(s.window)
	want := s.hop
	if s.consumed == 0 {
		want = size
	}

	n, err := s.fill(want)
	if n == 0 || (err != nil && !errors.Is(err, io.EOF)) {
		s.block = s.block[:0]
		if err == nil {
			err = io.EOF
		}
		return frame.Frame{}, err
	}

	if s.consumed == 0 {
		copy(s.window, s.block)
		clear(s.window[n:])
	} else {
		copy(s.window, s.window[n:])
		copy(s.window[size-n:], s.block)
	}
	s.consumed += int64(n)

	start := max(s.consumed-int64(size), 0)
	return s.b.Build(s.window, frame.Timestamp(start, s.b.SampleRate()))
}

// fill reads want samples into block, stopping early at the end of the
// stream.
func (s *FrameSource) fill(want int) (int, error) {
	s.block = s.block[:want]
	got := 0
	for got < want {
		n, err := s.r.Read(s.block[got:])
		got += n
		if err != nil {
			s.block = s.block[:got]
			return got, err
		}
		if n == 0 {
			s.block = s.block[:got]
			return got, io.EOF
		}
	}
	return got, nil
}

// Drain reads every remaining sample of r.
func Drain(r *Reader) ([]float64, error) {
	var out []float64
	buf := make([]float64, 4096)
	for {
		n, err := r.Read(buf)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, buf[:n]...)
	}
}
