package cache

import (
	"strings"

	"github.com/Sternrassler/transcript-client/pkg/transcript"
)

// keyPrefix namespaces every cache key in Redis.
const keyPrefix = "transcript"

// defaultLang stands in for an unset language in keys.
const defaultLang = "default"

// CacheKey identifies one cached transcript.
type CacheKey struct {
	// VideoID is the host's video identifier.
	VideoID string

	// Lang is the requested language; empty means the host default.
	Lang string
}

// KeyFor returns the cache key of a fetch request.
func KeyFor(req transcript.Request) CacheKey {
	return CacheKey{VideoID: req.ID, Lang: req.Lang}
}

// String generates a deterministic cache key string.
// Format: transcript:lang:video_id
//
// Example:
//
//	transcript:en:dQw4w9WgXcQ
//
// The language is lower-cased; the video ID is kept as-is because host IDs
// are case-sensitive.
func (k CacheKey) String() string {
	lang := strings.ToLower(strings.TrimSpace(k.Lang))
	if lang == "" {
		lang = defaultLang
	}
	return strings.Join([]string{keyPrefix, lang, strings.TrimSpace(k.VideoID)}, ":")
}
