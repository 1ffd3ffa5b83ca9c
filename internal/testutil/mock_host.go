// Package testutil provides testing utilities for the transcript client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mock host response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockHost is a configurable mock transcript host. Each video can be given a
// sequence of responses that are served in order; the last one repeats.
type MockHost struct {
	server    *httptest.Server
	mu        sync.Mutex
	sequences map[string][]MockResponse
	requests  map[string]int

	// LastRequestHeader is the header of the most recent request.
	LastRequestHeader http.Header
	// LastQuery is the query of the most recent request.
	LastQuery string
}

// NewMockHost creates and starts a mock transcript host.
func NewMockHost() *MockHost {
	mock := &MockHost{
		sequences: make(map[string][]MockResponse),
		requests:  make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockHost) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHost) Close() {
	m.server.Close()
}

// SetResponses configures the responses served for a video, in order.
func (m *MockHost) SetResponses(videoID string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[videoID] = responses
}

// RequestCount returns the number of requests made for a video.
func (m *MockHost) RequestCount(videoID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[videoID]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockHost) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

func (m *MockHost) handle(w http.ResponseWriter, r *http.Request) {
	videoID, ok := strings.CutPrefix(r.URL.Path, "/transcripts/")
	if !ok || videoID == "" {
		http.NotFound(w, r)
		return
	}

	m.mu.Lock()
	m.requests[videoID]++
	m.LastRequestHeader = r.Header.Clone()
	m.LastQuery = r.URL.RawQuery

	var resp MockResponse
	seq, exists := m.sequences[videoID]
	switch {
	case !exists || len(seq) == 0:
		resp = NewNotFoundResponse()
	case len(seq) == 1:
		resp = seq[0]
	default:
		resp = seq[0]
		m.sequences[videoID] = seq[1:]
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

type mockEntry struct {
	Text     string  `json:"text"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// NewTranscriptResponse creates a 200 OK response carrying one entry per text.
func NewTranscriptResponse(texts ...string) MockResponse {
	entries := make([]mockEntry, len(texts))
	for i, text := range texts {
		entries[i] = mockEntry{Text: text, Offset: float64(i) * 2.5, Duration: 2.5}
	}

	body, err := json.Marshal(map[string]any{"entries": entries})
	if err != nil {
		panic(fmt.Sprintf("marshal mock transcript: %v", err))
	}

	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Too many requests"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8", "Retry-After": "1"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Video not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewDisabledResponse creates a 403 response for a video with transcripts disabled.
func NewDisabledResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error": "Transcripts are disabled for this video"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
