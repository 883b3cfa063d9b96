package animation

import (
	"log/slog"
	"time"
)

// Config controls scheduler behavior.
type Config struct {
	// Throttle is the minimum gap between started animations.
	Throttle time.Duration

	// HistoryLimit bounds the retained animation history.
	HistoryLimit int

	// MinDuration and MaxDuration bound accepted animation durations in
	// seconds. Out-of-range requests are clamped.
	MinDuration float64
	MaxDuration float64

	Logger *slog.Logger
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the standard scheduler tuning.
func DefaultConfig() *Config {
	return &Config{
		Throttle:     500 * time.Millisecond,
		HistoryLimit: 10,
		MinDuration:  0.1,
		MaxDuration:  10.0,
		Logger:       slog.Default(),
	}
}

// Apply applies options in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithThrottle sets the minimum gap between started animations.
func WithThrottle(d time.Duration) Option {
	return func(c *Config) { c.Throttle = d }
}

// WithHistoryLimit sets the history capacity.
func WithHistoryLimit(n int) Option {
	return func(c *Config) { c.HistoryLimit = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
