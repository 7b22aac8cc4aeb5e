// Package wavio reads and writes mono float sample blocks from WAV files and
// turns a WAV stream into analysis frames.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-declick/dsp/core"
)

const pcmFormat = 1

var errInvalidWAV = errors.New("wavio: not a readable PCM WAV stream")

// Reader decodes a PCM WAV stream into mono float blocks in [-1, 1].
// Multichannel input is mixed down by averaging.
type Reader struct {
	closer   io.Closer
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	bitDepth int
	scale    float64
	offset   float64
}

// Open opens a WAV file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio open: %w", err)
	}

	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("wavio open %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads the WAV header from rs.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidWAV, err)
		}
		return nil, errInvalidWAV
	}
	if dec.WavAudioFormat != pcmFormat {
		return nil, fmt.Errorf("%w: audio format %d", errInvalidWAV, dec.WavAudioFormat)
	}

	bits := int(dec.BitDepth)
	r := &Reader{
		dec:      dec,
		channels: int(dec.NumChans),
		bitDepth: bits,
		buf:      &audio.IntBuffer{},
	}

	switch bits {
	case 8:
		// 8-bit PCM is unsigned.
		r.scale, r.offset = 128, 128
	case 16, 24, 32:
		r.scale = float64(int64(1) << (bits - 1))
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", errInvalidWAV, bits)
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wavio: %w", err)
	}
	return r, nil
}

// SampleRate returns the stream's sample rate.
func (r *Reader) SampleRate() float64 { return float64(r.dec.SampleRate) }

// Channels returns the stream's channel count.
func (r *Reader) Channels() int { return r.channels }

// BitDepth returns the stream's sample width.
func (r *Reader) BitDepth() int { return r.bitDepth }

// Read fills dst with up to len(dst) mono samples and returns how many were
// read. It returns io.EOF once no samples are left.
func (r *Reader) Read(dst []float64) (int, error) {
	want := len(dst) * r.channels
	if cap(r.buf.Data) < want {
		r.buf.Data = make([]int, want)
	}
	r.buf.Data = r.buf.Data[:want]

	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil {
		return 0, fmt.Errorf("wavio read: %w", err)
	}

	frames := n / r.channels
	if frames == 0 {
		return 0, io.EOF
	}

	norm := 1 / (r.scale * float64(r.channels))
	for i := range frames {
		sum := 0.0
		for c := range r.channels {
			sum += float64(r.buf.Data[i*r.channels+c]) - r.offset
		}
		dst[i] = sum * norm
	}
	return frames, nil
}

// Close closes the underlying file when the reader was opened by path.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Writer encodes mono float samples as integer PCM.
type Writer struct {
	closer io.Closer
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	max    float64
}

// Create creates a mono WAV file.
func Create(path string, sampleRate, bitDepth int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavio create: %w", err)
	}

	w, err := NewWriter(f, sampleRate, bitDepth)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter returns a mono writer on ws. Supported depths are 16, 24 and 32
// bits.
func NewWriter(ws io.WriteSeeker, sampleRate, bitDepth int) (*Writer, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("wavio: unsupported output depth %d", bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wavio: sample rate must be > 0: %d", sampleRate)
	}

	return &Writer{
		enc: wav.NewEncoder(ws, sampleRate, bitDepth, 1, pcmFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		max: float64(int64(1)<<(bitDepth-1)) - 1,
	}, nil
}

// Write appends samples, clipping them to [-1, 1].
func (w *Writer) Write(samples []float64) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]

	for i, v := range samples {
		v = core.Clamp(core.FiniteOr(v, 0), -1, 1)
		w.buf.Data[i] = int(v * w.max)
	}

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wavio write: %w", err)
	}
	return nil
}

// Close finalizes the WAV header and closes the file when created by path.
func (w *Writer) Close() error {
	err := w.enc.Close()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}
	if err != nil {
		return fmt.Errorf("wavio close: %w", err)
	}
	return nil
}
