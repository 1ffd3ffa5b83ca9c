package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/transcript-client/pkg/transcript"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long a cached transcript stays valid.
const DefaultTTL = 24 * time.Hour

// CachedFetcher serves transcripts from the cache and falls back to another
// Fetcher on a miss. Cache failures never fail a fetch; they are logged and
// the fallback is used.
type CachedFetcher struct {
	next    transcript.Fetcher
	manager *Manager
	ttl     time.Duration
	logger  zerolog.Logger
}

// NewCachedFetcher wraps next with the cache. A non-positive ttl uses
// DefaultTTL.
func NewCachedFetcher(next transcript.Fetcher, manager *Manager, ttl time.Duration, logger zerolog.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedFetcher{
		next:    next,
		manager: manager,
		ttl:     ttl,
		logger:  logger.With().Str("component", "cache").Logger(),
	}
}

// Lookup returns the cached entries for req, if present.
func (f *CachedFetcher) Lookup(ctx context.Context, req transcript.Request) ([]transcript.Entry, bool) {
	key := KeyFor(req)
	entry, err := f.manager.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			f.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache lookup failed")
		}
		return nil, false
	}

	f.logger.Debug().Str("key", key.String()).Int("entries", len(entry.Entries)).Msg("Cache hit")
	return entry.Entries, true
}

// Fetch implements transcript.Fetcher.
func (f *CachedFetcher) Fetch(ctx context.Context, req transcript.Request) ([]transcript.Entry, error) {
	if entries, ok := f.Lookup(ctx, req); ok {
		return entries, nil
	}
	return f.Refresh(ctx, req)
}

// Refresh fetches req from the wrapped Fetcher and stores a successful
// result, bypassing any cached copy.
func (f *CachedFetcher) Refresh(ctx context.Context, req transcript.Request) ([]transcript.Entry, error) {
	entries, err := f.next.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	key := KeyFor(req)
	if err := f.manager.Set(ctx, key, NewCacheEntry(entries, f.ttl)); err != nil {
		f.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache store failed")
	}
	return entries, nil
}
