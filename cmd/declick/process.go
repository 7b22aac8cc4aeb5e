package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-declick/declick/engine"
	"github.com/cwbudde/algo-declick/declick/params"
	"github.com/cwbudde/algo-declick/declick/render"
	"github.com/cwbudde/algo-declick/declick/repair"
	"github.com/cwbudde/algo-declick/dsp/core"
	"github.com/cwbudde/algo-declick/dsp/frame"
	"github.com/cwbudde/algo-declick/internal/wavio"
)

type summary struct {
	params   string
	enabled  bool
	duration time.Duration
	samples  int64
	elapsed  time.Duration
	stats    engine.Stats
	events   []repair.ClickEvent
}

// process streams the input through the engine and writes the repaired
// signal. Output lines up with the input sample for sample: the renderer's
// lookahead is trimmed from the front and flushed with silence at the end.
func process(ctx context.Context, cli *CLI, logger *zap.Logger) (*summary, error) {
	start := time.Now()

	if err := cli.validate(); err != nil {
		return nil, err
	}
	p, err := cli.parameters()
	if err != nil {
		return nil, err
	}

	r, err := wavio.Open(cli.Input)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	sampleRate := r.SampleRate()
	b, err := frame.NewBuilder(core.WithSampleRate(sampleRate), core.WithFrameSize(cli.FrameSize))
	if err != nil {
		return nil, err
	}

	frames, err := wavio.NewFrameSource(r, b, cli.Hop)
	if err != nil {
		return nil, err
	}

	ren, err := render.New(
		render.WithSampleRate(sampleRate),
		render.WithLookahead(repair.DefaultConfig().Lookahead),
	)
	if err != nil {
		return nil, err
	}

	depth := cli.BitDepth
	if depth == 0 {
		depth = r.BitDepth()
	}
	w, err := wavio.Create(cli.Output, int(sampleRate), depth)
	if err != nil {
		return nil, err
	}

	s := &summary{params: params.Full(p).String(), enabled: cli.enabled()}
	eng, err := engine.New(ren, cli.engineOptions(p, logger, s)...)
	if err != nil {
		return nil, errors.Join(err, w.Close())
	}
	defer eng.Stop()

	logger.Info("processing",
		zap.String("input", cli.Input),
		zap.Float64("sample_rate", sampleRate),
		zap.Int("channels", r.Channels()),
		zap.Bool("enabled", s.enabled),
		zap.Stringer("parameters", params.Full(p)),
	)

	out := newOutput(ren, w, cli.FrameSize)
	src := engine.SourceFunc(func() (frame.Frame, error) {
		// The previous frame has been analyzed, so its automation is queued.
		if err := out.renderUntilWindow(); err != nil {
			return frame.Frame{}, err
		}

		f, err := frames.Next()
		if err != nil {
			return f, err
		}
		out.push(frames.Block())
		return f, nil
	})

	runErr := eng.Run(ctx, src)
	if runErr == nil {
		runErr = out.flush()
	}
	runErr = errors.Join(runErr, w.Close())

	s.samples = out.read
	s.duration = frame.Timestamp(out.read, sampleRate)
	s.elapsed = time.Since(start)
	s.stats = eng.Stats()

	if runErr != nil {
		return s, fmt.Errorf("declick %s: %w", cli.Input, runErr)
	}

	logger.Info("done",
		zap.String("output", cli.Output),
		zap.Int("events", len(s.events)),
		zap.Duration("elapsed", s.elapsed),
	)
	return s, nil
}

// output renders input samples once every frame that could still automate
// them has been analyzed: anything before the newest window's start.
type output struct {
	ren    *render.Renderer
	w      *wavio.Writer
	window int

	pending  []float64
	rendered int64
	read     int64
	skip     int
	buf      []float64
}

func newOutput(ren *render.Renderer, w *wavio.Writer, window int) *output {
	return &output{
		ren:    ren,
		w:      w,
		window: window,
		skip:   ren.Latency(),
	}
}

func (o *output) push(block []float64) {
	o.pending = append(o.pending, block...)
	o.read += int64(len(block))
}

func (o *output) renderUntilWindow() error {
	due := o.read - int64(o.window) - o.rendered
	if due <= 0 {
		return nil
	}
	return o.render(int(due))
}

func (o *output) render(n int) error {
	if cap(o.buf) < n {
		o.buf = make([]float64, n)
	}
	dst := o.buf[:n]

	if err := o.ren.Process(dst, o.pending[:n]); err != nil {
		return err
	}
	o.pending = append(o.pending[:0], o.pending[n:]...)
	o.rendered += int64(n)

	if o.skip > 0 {
		d := min(o.skip, len(dst))
		dst = dst[d:]
		o.skip -= d
	}
	return o.w.Write(dst)
}

// flush renders the tail and drains the lookahead delay.
func (o *output) flush() error {
	tail := o.ren.Latency()
	o.pending = append(o.pending, make([]float64, tail)...)
	return o.render(len(o.pending))
}
