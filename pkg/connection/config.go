package connection

import (
	"log/slog"
	"time"
)

// Config holds connection manager configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// URL is the WebSocket endpoint to dial.
	URL string

	// Handshake and health timing
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration

	// Reconnection behavior
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int

	// Logical channel protection
	MaxConsecutiveErrors int

	// Latency tracking
	LatencyWindow   int
	StaleSampleAge  time.Duration
	CleanupInterval time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the connection manager.
type Option func(*Config)

// WithURL sets the WebSocket endpoint.
func WithURL(url string) Option {
	return func(c *Config) {
		c.URL = url
	}
}

// WithHandshakeTimeout sets how long a connect attempt may take before it
// is treated as an error.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = timeout
	}
}

// WithPingInterval sets how often latency pings are sent while connected.
func WithPingInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.PingInterval = interval
	}
}

// WithReconnectBackoff configures the exponential backoff schedule.
func WithReconnectBackoff(base, max time.Duration, maxAttempts int) Option {
	return func(c *Config) {
		c.ReconnectBaseDelay = base
		c.ReconnectMaxDelay = max
		c.MaxReconnectAttempts = maxAttempts
	}
}

// WithMaxConsecutiveErrors sets the validation-failure threshold that
// forces a reconnect of an apparently open transport.
func WithMaxConsecutiveErrors(n int) Option {
	return func(c *Config) {
		c.MaxConsecutiveErrors = n
	}
}

// WithLatencyWindow sets the capacity of the latency sample buffer.
func WithLatencyWindow(n int) Option {
	return func(c *Config) {
		c.LatencyWindow = n
	}
}

// WithLogger sets the structured logger for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout:     10 * time.Second,
		PingInterval:         10 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 5,
		MaxConsecutiveErrors: 5,
		LatencyWindow:        20,
		StaleSampleAge:       5 * time.Minute,
		CleanupInterval:      60 * time.Second,
		Logger:               slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrNoURL
	}
	return nil
}
