package cache

import (
	"time"

	"github.com/Sternrassler/transcript-client/pkg/transcript"
)

// CacheEntry is a cached transcript.
type CacheEntry struct {
	// Entries are the transcript entries as returned by the host.
	Entries []transcript.Entry `json:"entries"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// NewCacheEntry creates an entry that expires ttl from now.
func NewCacheEntry(entries []transcript.Entry, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Entries:  entries,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
