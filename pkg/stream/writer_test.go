package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/transcript-client/pkg/errclass"
	"github.com/Sternrassler/transcript-client/pkg/transcript"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func makeEntries(n int) []transcript.Entry {
	entries := make([]transcript.Entry, n)
	for i := range entries {
		entries[i] = transcript.Entry{Text: fmt.Sprintf("w%d", i), Offset: float64(i), Duration: 1}
	}
	return entries
}

// failingFile wraps a real file and fails every write after limit bytes.
type failingFile struct {
	f        *os.File
	limit    int
	written  int
	closeErr error
}

func (ff *failingFile) Write(p []byte) (int, error) {
	if ff.written+len(p) > ff.limit {
		return 0, errors.New("disk full")
	}
	n, err := ff.f.Write(p)
	ff.written += n
	return n, err
}

func (ff *failingFile) Close() error {
	err := ff.f.Close()
	if ff.closeErr != nil {
		return ff.closeErr
	}
	return err
}

func TestNewWriter_Defaults(t *testing.T) {
	w := NewWriter(Config{}, testLogger())

	assert.Equal(t, DefaultConfig(), w.Config())
}

func TestWriteStream_Success(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "out.md")

	w := NewWriter(Config{ChunkSize: 2}, testLogger())
	entries := []transcript.Entry{
		{Text: "hello"},
		{Text: "rock &amp; roll"},
		{Text: "  "},
		{Text: "it&#39;s\nfine"},
		{Text: "end"},
	}

	err := w.WriteStream(context.Background(), entries, path, "# Transcript: abc\n\n")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Transcript: abc\n\nhello rock & roll it's fine end\n", string(data))
}

func TestWriteStream_NoEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.md")

	var calls int
	w := NewWriter(DefaultConfig(), testLogger()).WithProgress(func(Progress) { calls++ })

	require.NoError(t, w.WriteStream(context.Background(), nil, path, "header\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "header\n", string(data))
	assert.Zero(t, calls)
}

func TestWriteStream_ProgressIndependentOfChunkSize(t *testing.T) {
	entries := makeEntries(10000)

	for _, chunkSize := range []int{500, 1000, 3000, 10000, 7} {
		t.Run(fmt.Sprintf("chunk_%d", chunkSize), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.md")

			var positions []int
			w := NewWriter(Config{ChunkSize: chunkSize, ProgressInterval: 5000}, testLogger()).
				WithProgress(func(p Progress) {
					positions = append(positions, p.Processed)
					assert.Equal(t, 10000, p.Total)
					assert.Equal(t, path, p.Path)
				})

			require.NoError(t, w.WriteStream(context.Background(), entries, path, ""))
			assert.Equal(t, []int{5000, 10000}, positions)
		})
	}
}

func TestWriteStream_ProgressNeverAtZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")

	var positions []int
	w := NewWriter(Config{ChunkSize: 10, ProgressInterval: 5000}, testLogger()).
		WithProgress(func(p Progress) { positions = append(positions, p.Processed) })

	require.NoError(t, w.WriteStream(context.Background(), makeEntries(4999), path, ""))
	assert.Empty(t, positions)
}

func TestWriteStream_WriteFailureRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")

	w := NewWriter(Config{ChunkSize: 100, BufferSize: 64}, testLogger())
	w.openFile = func(p string) (file, error) {
		f, err := os.Create(p)
		if err != nil {
			return nil, err
		}
		return &failingFile{f: f, limit: 2048}, nil
	}

	err := w.WriteStream(context.Background(), makeEntries(5000), path, "header\n")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, errclass.IO, errclass.Classify(err))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "partial output must be removed, stat err = %v", statErr)
}

func TestWriteStream_CloseFailureRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")

	w := NewWriter(DefaultConfig(), testLogger())
	w.openFile = func(p string) (file, error) {
		f, err := os.Create(p)
		if err != nil {
			return nil, err
		}
		return &failingFile{f: f, limit: 1 << 20, closeErr: errors.New("close failed")}, nil
	}

	err := w.WriteStream(context.Background(), makeEntries(10), path, "h\n")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

// brokenFile never reaches the disk.
type brokenFile struct{}

func (brokenFile) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (brokenFile) Close() error              { return errors.New("bad descriptor") }

func TestWriteStream_MissingPartialFileKeepsOriginalError(t *testing.T) {
	w := NewWriter(Config{BufferSize: 16}, testLogger())
	w.openFile = func(string) (file, error) { return brokenFile{}, nil }

	err := w.WriteStream(context.Background(), makeEntries(10), filepath.Join(t.TempDir(), "x.md"), "header")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestWriteStream_ContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	ctx, cancel := context.WithCancel(context.Background())

	w := NewWriter(Config{ChunkSize: 10, ProgressInterval: 10}, testLogger()).
		WithProgress(func(Progress) { cancel() })

	err := w.WriteStream(ctx, makeEntries(100), path, "")

	require.Error(t, err)
	assert.Equal(t, errclass.Cancelled, errclass.Classify(err))
	assert.True(t, errors.Is(err, context.Canceled))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteStream_OpenFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := NewWriter(DefaultConfig(), testLogger())
	err := w.WriteStream(context.Background(), makeEntries(1), filepath.Join(blocker, "out.md"), "")

	require.Error(t, err)
	assert.Equal(t, errclass.IO, errclass.Classify(err))
}

func TestSession_SectionsAndDoubleClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.md")
	w := NewWriter(Config{ChunkSize: 1}, testLogger())

	session, err := w.Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, session.Path())

	require.NoError(t, session.WriteString("## one\n\n"))
	require.NoError(t, session.WriteEntries(context.Background(), []transcript.Entry{{Text: "a"}, {Text: "b"}}))
	require.NoError(t, session.WriteString("## two\n\n"))
	require.NoError(t, session.WriteEntries(context.Background(), []transcript.Entry{{Text: "c"}}))
	require.NoError(t, session.Close())

	assert.ErrorIs(t, session.Close(), ErrSessionClosed)
	assert.ErrorIs(t, session.WriteString("late"), ErrSessionClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "## one\n\na b\n## two\n\nc\n", string(data))
}

func TestSession_FirstFailureWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	w := NewWriter(Config{BufferSize: 16}, testLogger())

	w.openFile = func(p string) (file, error) {
		f, err := os.Create(p)
		if err != nil {
			return nil, err
		}
		return &failingFile{f: f, limit: 0, closeErr: errors.New("second failure")}, nil
	}

	session, err := w.Open(path)
	require.NoError(t, err)

	firstErr := session.WriteString(strings.Repeat("x", 64))
	require.Error(t, firstErr)
	assert.Equal(t, firstErr, session.WriteString("more"))
	assert.Equal(t, firstErr, session.Err())

	closeErr := session.Close()
	require.Error(t, closeErr)
	assert.Contains(t, closeErr.Error(), "disk full")
	assert.NotContains(t, closeErr.Error(), "second failure")
}

func TestWithDecoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	w := NewWriter(DefaultConfig(), testLogger()).WithDecoder(strings.ToUpper)

	require.NoError(t, w.WriteStream(context.Background(), []transcript.Entry{{Text: "abc"}}, path, ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ABC\n", string(data))
}
