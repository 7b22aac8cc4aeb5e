package loudness

// TrackerConfig defines the rolling loudness history.
type TrackerConfig struct {
	// History is the number of committed readings the background estimate
	// looks at.
	History int
	// FloorDB is the lowest loudness reported.
	FloorDB float64
	// Percentile selects the background level from the history, in (0, 1).
	Percentile float64
}

// TrackerOption mutates a TrackerConfig.
type TrackerOption func(*TrackerConfig)

// DefaultTrackerConfig returns the defaults used for live analysis.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		History:    30,
		FloorDB:    -60,
		Percentile: 0.1,
	}
}

// WithHistory sets the number of readings kept.
func WithHistory(n int) TrackerOption {
	return func(cfg *TrackerConfig) {
		if n > 0 {
			cfg.History = n
		}
	}
}

// WithFloorDB sets the loudness floor.
func WithFloorDB(db float64) TrackerOption {
	return func(cfg *TrackerConfig) {
		if db < 0 {
			cfg.FloorDB = db
		}
	}
}

// WithPercentile sets the background percentile.
func WithPercentile(p float64) TrackerOption {
	return func(cfg *TrackerConfig) {
		if p > 0 && p < 1 {
			cfg.Percentile = p
		}
	}
}

// ApplyTrackerOptions applies zero or more options to the default config.
func ApplyTrackerOptions(opts ...TrackerOption) TrackerConfig {
	cfg := DefaultTrackerConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}
