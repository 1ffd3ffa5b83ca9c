package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/transcript-client/internal/testutil"
	"github.com/Sternrassler/transcript-client/pkg/batch"
	"github.com/Sternrassler/transcript-client/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(hostURL string) config.LookupFunc {
	vars := map[string]string{
		config.EnvHostURL:            hostURL,
		config.EnvThrottleMinDelayMS: "0",
		config.EnvLogFormat:          "json",
		config.EnvLogLevel:           "warn",
	}
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// execute runs the CLI with args against host and returns stdout.
func execute(t *testing.T, host *testutil.MockHost, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(testEnv(host.URL()))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRootCmd(t *testing.T) {
	cmd := newRootCmd(testEnv("http://localhost"))
	assert.Equal(t, "transcript-fetch", cmd.Use)

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "get")
	assert.Contains(t, names, "batch")
}

func TestGet_Success(t *testing.T) {
	host := testutil.NewMockHost()
	defer host.Close()
	host.SetResponses("abc123", testutil.NewTranscriptResponse("hello", "world"))

	path := filepath.Join(t.TempDir(), "out.md")
	stdout, err := execute(t, host, "get", "abc123", "--title", "Greeting", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Saved "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Transcript: Greeting\n"))
	assert.True(t, strings.HasSuffix(string(data), "hello world\n"))
}

func TestGet_RetriesRateLimit(t *testing.T) {
	host := testutil.NewMockHost()
	defer host.Close()
	host.SetResponses("abc123", testutil.NewRateLimitResponse(), testutil.NewTranscriptResponse("ok"))

	_, err := execute(t, host, "get", "abc123", "--out", filepath.Join(t.TempDir(), "out.md"))
	require.NoError(t, err)
	assert.Equal(t, 2, host.RequestCount("abc123"))
}

func TestGet_NotFound(t *testing.T) {
	host := testutil.NewMockHost()
	defer host.Close()

	path := filepath.Join(t.TempDir(), "out.md")
	_, err := execute(t, host, "get", "missing", "--out", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGet_NoThrottleDoesNotRetry(t *testing.T) {
	host := testutil.NewMockHost()
	defer host.Close()
	host.SetResponses("abc123", testutil.NewRateLimitResponse(), testutil.NewTranscriptResponse("ok"))

	_, err := execute(t, host, "get", "abc123", "--no-throttle", "--out", filepath.Join(t.TempDir(), "out.md"))
	require.Error(t, err)
	assert.Equal(t, 1, host.RequestCount("abc123"))
}

func TestBatch_IndividualPartialFailure(t *testing.T) {
	host := testutil.NewMockHost()
	defer host.Close()
	host.SetResponses("good", testutil.NewTranscriptResponse("fine"))
	host.SetResponses("off", testutil.NewDisabledResponse())

	dir := t.TempDir()
	stdout, err := execute(t, host, "batch", "good", "off", "--out", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 items failed")

	assert.Contains(t, stdout, "1/2 succeeded")
	assert.Contains(t, stdout, "[disabled]")
	assert.FileExists(t, filepath.Join(dir, "good.md"))
	assert.NoFileExists(t, filepath.Join(dir, "off.md"))
}

func TestBatch_AggregatedFromFileJSON(t *testing.T) {
	host := testutil.NewMockHost()
	defer host.Close()
	host.SetResponses("a", testutil.NewTranscriptResponse("alpha"))
	host.SetResponses("b", testutil.NewTranscriptResponse("beta"))

	dir := t.TempDir()
	itemsPath := filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(itemsPath, []byte("items:\n  - id: a\n    title: First\n  - id: b\n    lang: de\n"), 0o644))

	out := filepath.Join(dir, "all.md")
	stdout, err := execute(t, host, "batch", "--file", itemsPath, "--mode", "aggregated", "--out", out, "--json")
	require.NoError(t, err)

	var report batch.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, batch.ModeAggregated, report.Mode)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, "First", report.Results[0].Label)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## First")
	assert.Contains(t, string(data), "beta")
}

func TestBatch_InvalidMode(t *testing.T) {
	host := testutil.NewMockHost()
	defer host.Close()

	_, err := execute(t, host, "batch", "a", "--mode", "zip", "--out", t.TempDir())
	require.ErrorIs(t, err, batch.ErrInvalidMode)
	assert.Equal(t, 0, host.TotalRequests())
}

func TestBatch_RequiresOut(t *testing.T) {
	host := testutil.NewMockHost()
	defer host.Close()

	_, err := execute(t, host, "batch", "a")
	require.Error(t, err)
	assert.Equal(t, 0, host.TotalRequests())
}

func TestCollectItems(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("items:\n  - id: x\n"), 0o644))
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("items:\n  - id: x\n    color: red\n"), 0o644))

	items, err := collectItems([]string{"a"}, "en", good)
	require.NoError(t, err)
	assert.Equal(t, []batch.WorkItem{{ID: "a", Lang: "en"}, {ID: "x"}}, items)

	_, err = collectItems(nil, "", "")
	assert.Error(t, err)

	_, err = collectItems(nil, "", empty)
	assert.ErrorContains(t, err, "empty")

	_, err = collectItems(nil, "", unknown)
	assert.Error(t, err)

	_, err = collectItems(nil, "", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMetricsMux(t *testing.T) {
	mux := metricsMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWithMetrics_NoAddrRunsDirectly(t *testing.T) {
	called := false
	err := withMetrics(context.Background(), "", testLogger(), func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWithMetrics_ServesWhileRunning(t *testing.T) {
	err := withMetrics(context.Background(), "127.0.0.1:0", testLogger(), func(ctx context.Context) error {
		return ctx.Err()
	})
	require.NoError(t, err)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
