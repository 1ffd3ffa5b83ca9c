package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/transcript-client/pkg/errclass"
	"github.com/Sternrassler/transcript-client/pkg/transcript"
	"github.com/rs/zerolog"
)

// Session owns one output file for its whole lifetime. All writes go through
// it, and fail is the single place a failure is recorded: the first failure
// wins, later writes become no-ops, and Close performs cleanup once.
type Session struct {
	writer *Writer
	path   string
	file   file
	buf    *bufio.Writer
	logger zerolog.Logger

	err    error
	closed bool
}

func newSession(w *Writer, path string, f file) *Session {
	return &Session{
		writer: w,
		path:   path,
		file:   f,
		buf:    bufio.NewWriterSize(f, w.config.BufferSize),
		logger: w.logger.With().Str("path", path).Logger(),
	}
}

// Path returns the output file path.
func (s *Session) Path() string {
	return s.path
}

// Err returns the failure recorded by the session, if any.
func (s *Session) Err() error {
	return s.err
}

// fail records err as the session failure unless one is already recorded.
func (s *Session) fail(err error) {
	if err == nil || s.err != nil {
		return
	}
	s.err = err
	s.logger.Error().Err(err).Msg("Output write failed")
}

// WriteString writes str to the file. It is a no-op once the session failed.
func (s *Session) WriteString(str string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.err != nil {
		return s.err
	}

	n, err := s.buf.WriteString(str)
	streamBytesTotal.Add(float64(n))
	s.fail(err)
	return s.err
}

// WriteEntries decodes entries and writes them chunk by chunk, separated by
// single spaces and terminated by a newline. Progress is reported whenever
// the number of processed entries reaches a multiple of the progress
// interval, independent of the chunk size.
func (s *Session) WriteEntries(ctx context.Context, entries []transcript.Entry) error {
	if s.closed {
		return ErrSessionClosed
	}

	cfg := s.writer.config
	total := len(entries)
	processed := 0
	wrote := false

	var chunk strings.Builder
	for start := 0; start < total && s.err == nil; start += cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			s.fail(err)
			break
		}

		end := min(start+cfg.ChunkSize, total)

		chunk.Reset()
		var reached []int
		for _, entry := range entries[start:end] {
			text := s.writer.decode(entry.Text)
			if text != "" {
				if wrote {
					chunk.WriteByte(' ')
				}
				chunk.WriteString(text)
				wrote = true
			}

			processed++
			if processed%cfg.ProgressInterval == 0 {
				reached = append(reached, processed)
			}
		}

		if err := s.WriteString(chunk.String()); err != nil {
			break
		}
		streamEntriesTotal.Add(float64(end - start))

		for _, position := range reached {
			s.notify(position, total)
		}
	}

	if wrote && s.err == nil {
		_ = s.WriteString("\n")
	}

	return s.err
}

func (s *Session) notify(processed, total int) {
	s.logger.Info().
		Int("processed", processed).
		Int("total", total).
		Msg("Write progress")

	if s.writer.onProgress != nil {
		s.writer.onProgress(Progress{Path: s.path, Processed: processed, Total: total})
	}
}

// Close flushes and closes the file. If any failure was recorded the partial
// file is removed and the failure is returned wrapped; a removal failure is
// logged and never replaces the original error.
func (s *Session) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	if s.err == nil {
		s.fail(s.buf.Flush())
	}
	s.fail(s.file.Close())

	if s.err == nil {
		s.logger.Debug().Msg("Output session closed")
		return nil
	}

	streamFailuresTotal.Inc()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		streamCleanupFailuresTotal.Inc()
		s.logger.Warn().Err(err).Msg("Failed to remove partial output")
	}

	return fmt.Errorf("write %s: %w", s.path, errclass.WrapIO("", s.err))
}
