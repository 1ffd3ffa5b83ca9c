// Package stream persists transcript entries to disk incrementally.
//
// Entries are decoded and written in fixed-size chunks through a buffered
// writer, so memory stays bounded by one chunk. Every output file is owned by
// a Session, which is the only place write failures are recorded. When a
// session fails, Close removes the partial file and returns one wrapped error.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Sternrassler/transcript-client/pkg/errclass"
	"github.com/Sternrassler/transcript-client/pkg/transcript"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for stream writes.
var (
	streamEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_stream_entries_total",
		Help: "Total transcript entries written to disk",
	})

	streamBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_stream_bytes_total",
		Help: "Total bytes handed to output files",
	})

	streamFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_stream_failures_total",
		Help: "Total output files that failed and were cleaned up",
	})

	streamCleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_stream_cleanup_failures_total",
		Help: "Total partial output files that could not be removed",
	})
)

// Default writer configuration.
const (
	// DefaultChunkSize is the number of entries decoded and written per step.
	DefaultChunkSize = 1000

	// DefaultProgressInterval is the number of entries between progress notifications.
	DefaultProgressInterval = 5000

	// DefaultBufferSize is the size of the buffered writer in front of each file.
	DefaultBufferSize = 64 * 1024
)

// ErrSessionClosed is returned when a closed session is used again.
var ErrSessionClosed = errors.New("stream session already closed")

// Config holds the writer configuration.
type Config struct {
	// ChunkSize is the number of entries per write step.
	ChunkSize int

	// ProgressInterval is the number of entries between progress notifications.
	ProgressInterval int

	// BufferSize is the buffered writer size in bytes.
	BufferSize int
}

// DefaultConfig returns the default writer configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:        DefaultChunkSize,
		ProgressInterval: DefaultProgressInterval,
		BufferSize:       DefaultBufferSize,
	}
}

// Progress is reported while entries are written.
type Progress struct {
	// Path is the output file.
	Path string

	// Processed is the number of entries written so far in the current stream.
	Processed int

	// Total is the number of entries in the current stream.
	Total int
}

// ProgressFunc receives progress notifications.
type ProgressFunc func(Progress)

// file is the subset of *os.File a session writes through.
type file interface {
	io.Writer
	Close() error
}

// Writer creates output sessions and streams entries into them.
type Writer struct {
	config     Config
	decode     func(string) string
	onProgress ProgressFunc
	logger     zerolog.Logger

	openFile func(path string) (file, error)
}

// NewWriter creates a Writer. Non-positive sizes fall back to defaults.
func NewWriter(cfg Config, logger zerolog.Logger) *Writer {
	defaults := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaults.ProgressInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}

	return &Writer{
		config: cfg,
		decode: transcript.Decode,
		logger: logger.With().Str("component", "stream").Logger(),
		openFile: func(path string) (file, error) {
			return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		},
	}
}

// WithProgress sets the progress callback.
func (w *Writer) WithProgress(fn ProgressFunc) *Writer {
	w.onProgress = fn
	return w
}

// WithDecoder replaces the entry text decoder.
func (w *Writer) WithDecoder(fn func(string) string) *Writer {
	if fn != nil {
		w.decode = fn
	}
	return w
}

// Config returns the effective configuration.
func (w *Writer) Config() Config {
	return w.config
}

// WriteStream writes header followed by the decoded entries to path. On any
// write or close failure the partial file is removed and a wrapped error is
// returned.
func (w *Writer) WriteStream(ctx context.Context, entries []transcript.Entry, path, header string) error {
	session, err := w.Open(path)
	if err != nil {
		return err
	}

	_ = session.WriteString(header)
	_ = session.WriteEntries(ctx, entries)

	return session.Close()
}

// Open creates the parent directories of path and opens a session on it.
func (w *Writer) Open(path string) (*Session, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", errclass.WrapIO("", err))
	}

	f, err := w.openFile(path)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", errclass.WrapIO("", err))
	}

	w.logger.Debug().Str("path", path).Msg("Output session opened")
	return newSession(w, path, f), nil
}
