// Package cache provides a Redis-backed transcript cache.
//
// Transcripts rarely change once published, so a fetched transcript can be
// reused across runs. The cache is optional: when no Redis address is
// configured the host is always asked directly.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//	fetcher := cache.NewCachedFetcher(hostClient, manager, 24*time.Hour, logger)
//
//	entries, err := fetcher.Fetch(ctx, transcript.Request{ID: "dQw4w9WgXcQ"})
//
// Only successful fetches are stored. Failures of any class pass through
// untouched so a rate-limited or missing transcript is retried next run.
//
// # Metrics
//
//   - transcript_cache_hits_total - Cache hits
//   - transcript_cache_misses_total - Cache misses
//   - transcript_cache_bytes_total - Bytes written to and read from Redis
//   - transcript_cache_errors_total{operation} - Redis errors by operation
package cache
