// Package metrics provides the centralized Prometheus metrics registry for
// the noise cache. All metrics are defined in their owning packages (store,
// statsapi) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the noise cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Result Store Metrics (pkg/store):
//   - noise_cache_hits_total (Counter): Result-store lookups that found an entry
//   - noise_cache_misses_total (Counter): Result-store lookups that found nothing
//   - noise_cache_evictions_total (Counter): Entries evicted by the LRU policy
//   - noise_cache_entries (Gauge): Current number of cached entries
//
// Statistics Client Metrics (pkg/statsapi):
//   - noise_stats_requests_total{mode, status} (Counter): Requests by query mode and HTTP status
//   - noise_stats_request_duration_seconds{mode} (Histogram): Request duration by query mode
//   - noise_stats_errors_total{kind} (Counter): Errors by kind (validation, network, server, cancelled, data_shape)
//
// Retry Metrics (pkg/statsapi):
//   - noise_stats_retries_total{kind} (Counter): Retry attempts by error kind
//   - noise_stats_retry_exhausted_total{kind} (Counter): Fetches that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(noise_cache_hits_total[5m])) /
//   (sum(rate(noise_cache_hits_total[5m])) + sum(rate(noise_cache_misses_total[5m])))
//
//   # Fetch Error Rate
//   rate(noise_stats_errors_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(noise_stats_request_duration_seconds_bucket[5m]))
//
//   # Eviction Pressure
//   rate(noise_cache_evictions_total[5m])
