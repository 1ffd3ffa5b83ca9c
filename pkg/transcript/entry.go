// Package transcript defines transcript entries, the Fetcher contract used by
// the batch pipeline, text decoding, and an HTTP client for the transcript
// host.
package transcript

import (
	"context"
	"html"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Entry is one fragment of a transcript.
type Entry struct {
	// Text is the raw fragment as returned by the host, possibly HTML-escaped.
	Text string `json:"text"`

	// Offset is the start position of the fragment in seconds.
	Offset float64 `json:"offset"`

	// Duration is the length of the fragment in seconds.
	Duration float64 `json:"duration"`
}

// Request identifies the transcript to fetch.
type Request struct {
	// ID is the host's identifier of the video.
	ID string

	// Lang is an optional language code. Empty lets the host choose.
	Lang string
}

// Fetcher retrieves the transcript entries of one video.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]Entry, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req Request) ([]Entry, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req Request) ([]Entry, error) {
	return f(ctx, req)
}

// Decode turns a raw fragment into plain text: HTML entities are resolved
// (twice, the host double-escapes some characters), the result is NFC
// normalized and runs of whitespace collapse to a single space.
func Decode(raw string) string {
	text := html.UnescapeString(html.UnescapeString(raw))
	text = norm.NFC.String(text)
	return strings.Join(strings.Fields(text), " ")
}
