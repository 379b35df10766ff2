// Package metrics provides the centralized Prometheus metrics registry for
// the exporter. All metrics are defined in their respective packages
// (client, fetch, download, cache) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the exporter.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - formsite_requests_total{endpoint, status} (Counter): Total API requests by endpoint and HTTP status
//   - formsite_request_duration_seconds{endpoint} (Histogram): API request duration by endpoint
//   - formsite_errors_total{kind} (Counter): API errors by kind (rate_limit, auth, forbidden, not_found, invalid_param, server, client, network)
//
// Fetch Metrics (pkg/fetch):
//   - formsite_fetch_pages_total (Counter): Result pages fetched across sessions
//   - formsite_fetch_rate_limit_waits_total (Counter): Rate-limit cooldowns taken
//   - formsite_fetch_network_retries_total (Counter): Connection-failure retries
//
// Download Metrics (pkg/download):
//   - formsite_downloads_total{outcome} (Counter): Completed tasks by outcome (success, failed)
//   - formsite_download_retries_total (Counter): Task re-enqueues after retryable failures
//   - formsite_download_duration_seconds{outcome} (Histogram): Per-file download duration
//
// Cache Metrics (pkg/cache):
//   - formsite_cache_hits_total (Counter): Cached-table hits
//   - formsite_cache_misses_total (Counter): Cached-table misses
//   - formsite_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Rate-limit pressure
//   rate(formsite_fetch_rate_limit_waits_total[15m])
//
//   # Download failure ratio
//   sum(rate(formsite_downloads_total{outcome="failed"}[5m])) /
//   sum(rate(formsite_downloads_total[5m]))
//
//   # P95 API latency
//   histogram_quantile(0.95, rate(formsite_request_duration_seconds_bucket[5m]))
