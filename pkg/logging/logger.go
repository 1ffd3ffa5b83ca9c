// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Format selects the log encoding.
type Format string

const (
	// FormatAuto uses console output on a terminal and JSON otherwise.
	FormatAuto Format = "auto"

	// FormatJSON always writes JSON lines.
	FormatJSON Format = "json"

	// FormatConsole always writes human-readable output.
	FormatConsole Format = "console"
)

// ParseFormat parses a format name. The empty string is FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatJSON, FormatConsole:
		return f, nil
	default:
		return FormatAuto, fmt.Errorf("unknown log format %q", s)
	}
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Format is the log encoding (default: auto).
	Format Format

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatAuto,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if pretty(cfg.Format, cfg.Output) {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// pretty reports whether console output should be used for out.
func pretty(format Format, out io.Writer) bool {
	switch format {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}

	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Pacing delays before host calls
//   - Cache operations (hit, key)
//   - Output session lifecycle
//
// Info: Normal operation events
//   - Items saved, batch start and completion
//   - Write progress every progress interval
//   - Success after a retry
//   - Metrics server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts after a rate limit
//   - Invalid configuration values replaced by defaults
//   - Cache errors (fallback to the host)
//   - Failed batch items, partial-file cleanup failures
//
// Error: Error conditions requiring attention
//   - Retries exhausted
//   - Output write failures, aggregate output lost
//   - Configuration errors
//
// Context Fields:
//   - component: throttle, transcript, stream, batch, cache, config
//   - video_id: host video identifier
//   - run_id: batch run identifier
//   - error_class: rate_limit, not_found, disabled, network, io, invalid, cancelled, unknown
//   - attempt, max_retries, backoff, delay: retry and pacing state
//   - path, processed, total: output file progress
//   - duration: item or batch duration
