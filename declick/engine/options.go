package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-declick/declick/detect"
	"github.com/cwbudde/algo-declick/declick/params"
	"github.com/cwbudde/algo-declick/declick/ratelimit"
	"github.com/cwbudde/algo-declick/declick/repair"
)

// Config configures an Engine.
type Config struct {
	// ProcessEvery analyzes one of every ProcessEvery ticks.
	ProcessEvery int
	// MinInterval is the least stream time between analyzed frames.
	MinInterval time.Duration

	Enabled    bool
	Parameters params.Parameters

	RateLimit ratelimit.Config
	Repair    repair.Config
	Detector  []detect.Option

	Logger        *zap.Logger
	OnEvent       func(repair.ClickEvent)
	OnDiagnostics func(detect.Result)
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the live defaults.
func DefaultConfig() Config {
	return Config{
		ProcessEvery: 2,
		MinInterval:  30 * time.Millisecond,
		Enabled:      true,
		Parameters:   params.Default(),
		RateLimit:    ratelimit.DefaultConfig(),
		Repair:       repair.DefaultConfig(),
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

// WithEventHandler is called for every emitted click event.
func WithEventHandler(fn func(repair.ClickEvent)) Option {
	return func(cfg *Config) { cfg.OnEvent = fn }
}

// WithDiagnostics is called with every analyzed frame's result.
func WithDiagnostics(fn func(detect.Result)) Option {
	return func(cfg *Config) { cfg.OnDiagnostics = fn }
}

// WithProcessEvery sets the tick decimation.
func WithProcessEvery(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.ProcessEvery = n
		}
	}
}

// WithMinInterval sets the minimum stream time between analyzed frames.
func WithMinInterval(d time.Duration) Option {
	return func(cfg *Config) {
		if d >= 0 {
			cfg.MinInterval = d
		}
	}
}

// WithLookahead sets the output path delay the repair curves are anchored
// to. It must match the sink's delay.
func WithLookahead(d time.Duration) Option {
	return func(cfg *Config) {
		if d >= 0 {
			cfg.Repair.Lookahead = d
		}
	}
}

// WithRateLimit replaces the admission limits.
func WithRateLimit(rl ratelimit.Config) Option {
	return func(cfg *Config) { cfg.RateLimit = rl }
}

// WithRepair replaces the repair curve shape.
func WithRepair(rc repair.Config) Option {
	return func(cfg *Config) { cfg.Repair = rc }
}

// WithLPCOrder sets the predictor order.
func WithLPCOrder(order int) Option {
	return func(cfg *Config) {
		cfg.Detector = append(cfg.Detector, detect.WithLPCOrder(order))
	}
}

// WithDetectorOptions passes options to the detector.
func WithDetectorOptions(opts ...detect.Option) Option {
	return func(cfg *Config) { cfg.Detector = append(cfg.Detector, opts...) }
}

// WithParameters sets the initial tunables.
func WithParameters(p params.Parameters) Option {
	return func(cfg *Config) { cfg.Parameters = p }
}

// WithEnabled sets whether processing starts enabled.
func WithEnabled(enabled bool) Option {
	return func(cfg *Config) { cfg.Enabled = enabled }
}
