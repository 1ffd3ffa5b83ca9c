// Package metrics provides the Prometheus registry reference for the
// transcript client. All metrics are defined in their respective packages
// (throttle, transcript, stream, batch, cache) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the transcript client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler exposing every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Throttle Metrics (pkg/throttle):
//   - transcript_throttle_calls_total{outcome} (Counter): Throttled calls by outcome
//   - transcript_throttle_pacing_seconds (Histogram): Pacing delay before a host call
//   - transcript_throttle_retries_total{error_class} (Counter): Retry attempts by error class
//   - transcript_throttle_backoff_seconds (Histogram): Backoff duration before a retry
//   - transcript_throttle_retry_exhausted_total (Counter): Calls that exhausted their retries
//
// Host Metrics (pkg/transcript):
//   - transcript_host_requests_total{status} (Counter): Host requests by HTTP status
//   - transcript_host_request_duration_seconds (Histogram): Host request duration
//   - transcript_host_errors_total{class} (Counter): Host failures by error class
//
// Output Metrics (pkg/stream):
//   - transcript_stream_entries_total (Counter): Entries written
//   - transcript_stream_bytes_total (Counter): Bytes written
//   - transcript_stream_failures_total (Counter): Output sessions that failed
//   - transcript_stream_cleanup_failures_total (Counter): Partial files that could not be removed
//
// Batch Metrics (pkg/batch):
//   - transcript_batch_runs_total{mode} (Counter): Batch runs by mode
//   - transcript_batch_items_total{outcome, error_class} (Counter): Items by outcome
//   - transcript_batch_cache_hits_total (Counter): Items served without a host call
//   - transcript_batch_duration_seconds{mode} (Histogram): Batch duration
//
// Cache Metrics (pkg/cache):
//   - transcript_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - transcript_cache_misses_total (Counter): Cache misses
//   - transcript_cache_bytes_total{layer="redis"} (Counter): Bytes moved through the cache
//   - transcript_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(transcript_cache_hits_total[5m])) /
//   (sum(rate(transcript_cache_hits_total[5m])) + sum(rate(transcript_cache_misses_total[5m])))
//
//   # Rate Limit Pressure
//   rate(transcript_throttle_retries_total{error_class="rate_limit"}[5m])
//
//   # Batch Failure Ratio
//   sum(rate(transcript_batch_items_total{outcome="failed"}[1h])) /
//   sum(rate(transcript_batch_items_total[1h]))
//
//   # P95 Host Latency
//   histogram_quantile(0.95, rate(transcript_host_request_duration_seconds_bucket[5m]))
