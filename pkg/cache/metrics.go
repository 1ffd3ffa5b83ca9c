package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_cache_hits_total",
			Help: "Total number of transcript cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcript_cache_misses_total",
			Help: "Total number of transcript cache misses",
		},
	)

	// CacheBytes tracks bytes moved through the cache by layer
	CacheBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_cache_bytes_total",
			Help: "Total bytes written to and read from the transcript cache",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
