// Package metrics provides the centralized Prometheus metrics registry for
// scrollfeed. All metrics are defined in their respective packages (feed,
// fetcher, source, cache, quota) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by scrollfeed.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Controller Metrics (pkg/feed):
//   - feed_batches_total (Counter): Image batches issued
//   - feed_batch_duration_seconds (Histogram): Image batch duration
//   - feed_items_total{status} (Counter): Feed items by outcome (loaded, failed)
//   - feed_url_pages_total{status} (Counter): URL page fetches by outcome (ok, empty, error)
//   - feed_url_buffer_length (Gauge): Current URL buffer length
//   - feed_invalid_urls_total (Counter): Rows dropped by URL validation
//
// Fetcher Metrics (pkg/fetcher):
//   - feed_fetch_requests_total{status} (Counter): Image fetch requests by HTTP status
//   - feed_fetch_duration_seconds (Histogram): Image fetch duration
//   - feed_fetch_errors_total{kind} (Counter): Fetch errors by kind
//     (connection, protocol, empty_payload, decode)
//   - feed_fetch_bytes_total (Counter): Image bytes downloaded
//
// Source Metrics (pkg/source):
//   - feed_source_requests_total{status} (Counter): URL source requests by status
//   - feed_source_request_duration_seconds (Histogram): URL source request duration
//
// Cache Metrics (pkg/cache):
//   - feed_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - feed_cache_misses_total (Counter): Cache misses
//   - feed_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - feed_cache_errors_total{operation} (Counter): Cache operation errors
//
// Quota Metrics (pkg/quota):
//   - feed_source_quota_remaining (Gauge): Reads remaining in the quota window
//   - feed_source_quota_blocks_total (Counter): Page fetches blocked on quota
//   - feed_source_quota_throttles_total (Counter): Page fetches throttled on quota
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(feed_cache_hits_total[5m])) /
//   (sum(rate(feed_cache_hits_total[5m])) + sum(rate(feed_cache_misses_total[5m])))
//
//   # Item Failure Rate
//   rate(feed_items_total{status="failed"}[5m]) / rate(feed_items_total[5m])
//
//   # P95 Image Fetch Latency
//   histogram_quantile(0.95, rate(feed_fetch_duration_seconds_bucket[5m]))
//
//   # Quota Status
//   feed_source_quota_remaining < 10
