package throttle

import (
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Bounds enforced when a Config is loaded.
const (
	// MaxMinDelay is the largest accepted pacing delay.
	MaxMinDelay = 60 * time.Second

	// MaxRetriesLimit is the largest accepted retry count.
	MaxRetriesLimit = 10

	// MinBackoffMultiplier and MaxBackoffMultiplier bound the backoff growth factor.
	MinBackoffMultiplier = 1.0
	MaxBackoffMultiplier = 5.0
)

// Config holds the throttling configuration. It is read once, when the
// Throttler is constructed.
type Config struct {
	// Enabled turns pacing and retries on. A disabled Throttler invokes the
	// wrapped function exactly once with no delay.
	Enabled bool

	// MinDelay is the minimum spacing between two host calls. It is also the
	// base of the retry backoff.
	MinDelay time.Duration

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BackoffMultiplier is the exponential growth factor of the retry backoff.
	BackoffMultiplier float64

	// Jitter randomizes the pacing delay by a factor in [0.8, 1.2].
	Jitter bool
}

// DefaultConfig returns the default throttling configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		MinDelay:          2 * time.Second,
		MaxRetries:        3,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// ValidMinDelay reports whether d is an accepted pacing delay.
func ValidMinDelay(d time.Duration) bool {
	return d >= 0 && d <= MaxMinDelay
}

// ValidMaxRetries reports whether n is an accepted retry count.
func ValidMaxRetries(n int) bool {
	return n >= 0 && n <= MaxRetriesLimit
}

// ValidBackoffMultiplier reports whether m is an accepted backoff multiplier.
func ValidBackoffMultiplier(m float64) bool {
	return !math.IsNaN(m) && m >= MinBackoffMultiplier && m <= MaxBackoffMultiplier
}

// Sanitize replaces every out-of-range field with its default and logs a
// warning for each replacement. Fields are checked independently.
func (c Config) Sanitize(logger zerolog.Logger) Config {
	defaults := DefaultConfig()

	if !ValidMinDelay(c.MinDelay) {
		logger.Warn().
			Dur("value", c.MinDelay).
			Dur("default", defaults.MinDelay).
			Msg("Invalid minimum delay, using default")
		c.MinDelay = defaults.MinDelay
	}

	if !ValidMaxRetries(c.MaxRetries) {
		logger.Warn().
			Int("value", c.MaxRetries).
			Int("default", defaults.MaxRetries).
			Msg("Invalid max retries, using default")
		c.MaxRetries = defaults.MaxRetries
	}

	if !ValidBackoffMultiplier(c.BackoffMultiplier) {
		logger.Warn().
			Float64("value", c.BackoffMultiplier).
			Float64("default", defaults.BackoffMultiplier).
			Msg("Invalid backoff multiplier, using default")
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}

	return c
}
