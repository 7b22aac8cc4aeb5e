// Command declick detects and attenuates mouth clicks in a WAV file.
//
// Usage:
//
//	declick [flags] <input.wav> -o <output.wav>
//
// Settings may be persisted in a JSON file passed with --config; flags given
// on the command line take precedence.
//
// Examples:
//
//	declick take1.wav -o take1.clean.wav
//	declick --sensitivity 1.4 --mode smack take1.wav -o out.wav
//	declick --config declick.json --debug take1.wav -o out.wav
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-declick/declick/engine"
	"github.com/cwbudde/algo-declick/declick/params"
	"github.com/cwbudde/algo-declick/declick/repair"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Input  string `arg:"" name:"input" type:"existingfile" help:"WAV file to process."`
	Output string `short:"o" required:"" type:"path" help:"Destination WAV file."`

	Config  kong.ConfigFlag  `short:"c" help:"JSON settings file."`
	Version kong.VersionFlag `short:"v" help:"Show version information."`

	Enabled        *bool `help:"Enable repair for this input. Overrides --default-enabled."`
	DefaultEnabled bool  `default:"true" negatable:"" help:"Enable repair unless --enabled says otherwise."`
	Debug          bool  `help:"Log every detection."`

	Sensitivity float64 `default:"1" help:"Detection sensitivity (${sensitivity_range})."`
	Skew        float64 `default:"0" help:"Frequency skew towards low (-1) or high (+1) clicks."`
	Widening    float64 `default:"5" help:"Repair widening in milliseconds (${widening_range})."`
	Reduction   float64 `default:"-24" help:"Gain reduction in dB (${reduction_range})."`
	Mode        string  `default:"click" enum:"click,smack" help:"Detection mode (click, smack)."`

	FrameSize int `default:"1024" help:"Analysis window in samples (power of two)."`
	Hop       int `default:"256" help:"Samples read per tick."`
	Every     int `default:"1" help:"Analyze every Nth tick. Hop times every must not exceed the frame size."`
	BitDepth  int `default:"0" help:"Output bit depth (16, 24, 32). 0 keeps the input depth."`
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("declick"),
		kong.Description("Mouth click detection and suppression"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON),
		kong.Vars{
			"version":           version,
			"sensitivity_range": fmt.Sprintf("%g to %g", params.MinSensitivity, params.MaxSensitivity),
			"widening_range":    fmt.Sprintf("%g to %g", params.MinWideningMs, params.MaxWideningMs),
			"reduction_range":   fmt.Sprintf("%g to %g", params.MinReductionDB, params.MaxReductionDB),
		},
	)

	logger, err := newLogger(cli.Debug)
	kctx.FatalIfErrorf(err)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := process(ctx, cli, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		printError(err.Error())
		os.Exit(1)
	}

	printSummary(cli, summary)
	if err != nil {
		os.Exit(130)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// enabled resolves the per-input flag against the global default.
func (c *CLI) enabled() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return c.DefaultEnabled
}

// validate rejects analysis settings that would leave samples unanalyzed.
func (c *CLI) validate() error {
	if c.Every < 1 {
		return fmt.Errorf("every must be >= 1: %d", c.Every)
	}
	if c.Hop < 1 || c.Hop*c.Every > c.FrameSize {
		return fmt.Errorf("hop %d x every %d exceeds the %d sample frame", c.Hop, c.Every, c.FrameSize)
	}
	return nil
}

// parameters converts the flags into clamped tunables.
func (c *CLI) parameters() (params.Parameters, error) {
	mode, err := params.ParseMode(c.Mode)
	if err != nil {
		return params.Parameters{}, err
	}

	return params.Default().Apply(params.Partial{
		Sensitivity:     params.Float(c.Sensitivity),
		FrequencySkew:   params.Float(c.Skew),
		ClickWideningMs: params.Float(c.Widening),
		ReductionDB:     params.Float(c.Reduction),
		Mode:            params.ModeOf(mode),
	}), nil
}

func (c *CLI) engineOptions(p params.Parameters, logger *zap.Logger, s *summary) []engine.Option {
	return []engine.Option{
		engine.WithLogger(logger),
		engine.WithParameters(p),
		engine.WithEnabled(c.enabled()),
		engine.WithLookahead(repair.DefaultConfig().Lookahead),
		// Analyzed windows overlap, so every sample is seen at least once.
		engine.WithProcessEvery(c.Every),
		engine.WithMinInterval(0),
		engine.WithEventHandler(func(ev repair.ClickEvent) {
			s.events = append(s.events, ev)
		}),
	}
}
