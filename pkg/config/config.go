// Package config loads the transcript client configuration from the
// environment. Every option is validated on its own: an unparsable or
// out-of-range value is replaced by its default and a warning is logged, so
// one bad variable never discards the others.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/transcript-client/pkg/logging"
	"github.com/Sternrassler/transcript-client/pkg/stream"
	"github.com/Sternrassler/transcript-client/pkg/throttle"
	"github.com/rs/zerolog"
)

// Environment variable names.
const (
	EnvThrottleEnabled           = "TRANSCRIPT_THROTTLE_ENABLED"
	EnvThrottleMinDelayMS        = "TRANSCRIPT_THROTTLE_MIN_DELAY_MS"
	EnvThrottleMaxRetries        = "TRANSCRIPT_THROTTLE_MAX_RETRIES"
	EnvThrottleBackoffMultiplier = "TRANSCRIPT_THROTTLE_BACKOFF_MULTIPLIER"
	EnvThrottleJitter            = "TRANSCRIPT_THROTTLE_JITTER"

	EnvHostURL   = "TRANSCRIPT_HOST_URL"
	EnvUserAgent = "TRANSCRIPT_USER_AGENT"

	EnvRedisAddr = "REDIS_ADDR"
	EnvRedisDB   = "REDIS_DB"
	EnvCacheTTL  = "TRANSCRIPT_CACHE_TTL"

	EnvChunkSize        = "TRANSCRIPT_CHUNK_SIZE"
	EnvProgressInterval = "TRANSCRIPT_PROGRESS_INTERVAL"

	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
)

// Defaults for options that have no home package.
const (
	DefaultHostURL   = "http://localhost:8080"
	DefaultUserAgent = "transcript-client/0.1.0"
	DefaultCacheTTL  = 24 * time.Hour
)

// LookupFunc reads one environment variable. os.LookupEnv is the default.
type LookupFunc func(key string) (string, bool)

// Config is the complete client configuration.
type Config struct {
	Throttle throttle.Config
	Stream   stream.Config

	HostURL   string
	UserAgent string

	// RedisAddr enables the transcript cache when set.
	RedisAddr string
	RedisDB   int
	CacheTTL  time.Duration

	LogLevel  logging.LogLevel
	LogFormat logging.Format
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Throttle:  throttle.DefaultConfig(),
		Stream:    stream.DefaultConfig(),
		HostURL:   DefaultHostURL,
		UserAgent: DefaultUserAgent,
		CacheTTL:  DefaultCacheTTL,
		LogLevel:  logging.LevelInfo,
		LogFormat: logging.FormatAuto,
	}
}

// CacheEnabled reports whether a Redis address is configured.
func (c Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads the configuration from the process environment.
func Load(logger zerolog.Logger) Config {
	return LoadFrom(os.LookupEnv, logger)
}

// LoadFrom reads the configuration through lookup.
func LoadFrom(lookup LookupFunc, logger zerolog.Logger) Config {
	l := loader{lookup: lookup, logger: logger.With().Str("component", "config").Logger()}
	cfg := Default()

	l.boolean(EnvThrottleEnabled, &cfg.Throttle.Enabled)
	l.millis(EnvThrottleMinDelayMS, &cfg.Throttle.MinDelay, throttle.ValidMinDelay)
	l.integer(EnvThrottleMaxRetries, &cfg.Throttle.MaxRetries, throttle.ValidMaxRetries)
	l.float(EnvThrottleBackoffMultiplier, &cfg.Throttle.BackoffMultiplier, throttle.ValidBackoffMultiplier)
	l.boolean(EnvThrottleJitter, &cfg.Throttle.Jitter)

	l.str(EnvHostURL, &cfg.HostURL)
	l.str(EnvUserAgent, &cfg.UserAgent)

	l.str(EnvRedisAddr, &cfg.RedisAddr)
	l.integer(EnvRedisDB, &cfg.RedisDB, func(n int) bool { return n >= 0 && n <= 15 })
	l.duration(EnvCacheTTL, &cfg.CacheTTL, func(d time.Duration) bool { return d > 0 })

	l.integer(EnvChunkSize, &cfg.Stream.ChunkSize, positive)
	l.integer(EnvProgressInterval, &cfg.Stream.ProgressInterval, positive)

	if v, ok := l.get(EnvLogLevel); ok {
		cfg.LogLevel = logging.LogLevel(strings.ToLower(v))
	}
	if v, ok := l.get(EnvLogFormat); ok {
		format, err := logging.ParseFormat(v)
		if err != nil {
			l.invalid(EnvLogFormat, v, cfg.LogFormat)
		} else {
			cfg.LogFormat = format
		}
	}

	return cfg
}

func positive(n int) bool { return n > 0 }

// maxMillis is the largest millisecond count representable as a Duration.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// loader applies environment values onto defaults.
type loader struct {
	lookup LookupFunc
	logger zerolog.Logger
}

// get returns the trimmed value of key. Unset and blank are the same.
func (l loader) get(key string) (string, bool) {
	v, ok := l.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (l loader) invalid(key, value string, def any) {
	l.logger.Warn().
		Str("variable", key).
		Str("value", value).
		Interface("default", def).
		Msg("Invalid configuration value, using default")
}

func (l loader) str(key string, dst *string) {
	if v, ok := l.get(key); ok {
		*dst = v
	}
}

func (l loader) boolean(key string, dst *bool) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		l.invalid(key, v, *dst)
		return
	}
	*dst = parsed
}

func (l loader) integer(key string, dst *int, valid func(int) bool) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || !valid(parsed) {
		l.invalid(key, v, *dst)
		return
	}
	*dst = parsed
}

func (l loader) float(key string, dst *float64, valid func(float64) bool) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || !valid(parsed) {
		l.invalid(key, v, *dst)
		return
	}
	*dst = parsed
}

// millis reads an integer number of milliseconds.
func (l loader) millis(key string, dst *time.Duration, valid func(time.Duration) bool) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil || parsed < 0 || parsed > maxMillis {
		l.invalid(key, v, dst.Milliseconds())
		return
	}
	d := time.Duration(parsed) * time.Millisecond
	if !valid(d) {
		l.invalid(key, v, dst.Milliseconds())
		return
	}
	*dst = d
}

// duration reads a Go duration string such as "12h".
func (l loader) duration(key string, dst *time.Duration, valid func(time.Duration) bool) {
	v, ok := l.get(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || !valid(parsed) {
		l.invalid(key, v, dst.String())
		return
	}
	*dst = parsed
}
