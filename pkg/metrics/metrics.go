// Package metrics provides the centralized Prometheus metrics registry.
// All metrics are defined in their respective packages (cache, router,
// client, query, scan) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the shelf client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - shelf_cache_hits_total (Counter): Asset cache hits
//   - shelf_cache_misses_total (Counter): Asset cache misses
//   - shelf_cache_size_bytes (Gauge): Bytes written into the current generation
//   - shelf_cache_errors_total{operation} (Counter): Cache operation errors
//   - shelf_cache_installs_total (Counter): Completed generation installs
//   - shelf_cache_install_failures_total (Counter): Aborted generation installs
//   - shelf_cache_evictions_total (Counter): Entries removed from stale generations
//
// Router Metrics (pkg/router):
//   - shelf_router_requests_total{class, outcome} (Counter): Routed requests by class (api, asset)
//   - shelf_router_offline_responses_total (Counter): Synthesized offline fallbacks
//
// Request Metrics (pkg/client):
//   - shelf_client_requests_total{endpoint, status} (Counter): Catalog requests by endpoint and HTTP status
//   - shelf_client_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - shelf_client_errors_total{class} (Counter): Errors by class (client, server, network, offline)
//
// Retry Metrics (pkg/client):
//   - shelf_client_retries_total{error_class} (Counter): Retry attempts by error class
//   - shelf_client_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - shelf_client_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Query Metrics (pkg/query):
//   - shelf_query_fetches_total (Counter): List fetches issued
//   - shelf_query_stale_dropped_total (Counter): Responses dropped because the query state moved on
//   - shelf_query_debounce_fires_total (Counter): Debounce timers that fired
//
// Scan Metrics (pkg/scan):
//   - shelf_scan_sessions_total (Counter): Scan sessions opened
//   - shelf_scan_detections_total (Counter): Accepted barcode detections
//   - shelf_scan_rejected_candidates_total (Counter): Candidates that failed ISBN validation
//   - shelf_scan_lookup_failures_total (Counter): ISBN lookups that failed or found nothing
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(shelf_cache_hits_total[5m])) /
//   (sum(rate(shelf_cache_hits_total[5m])) + sum(rate(shelf_cache_misses_total[5m])))
//
//   # Offline Fallback Rate
//   rate(shelf_router_offline_responses_total[5m])
//
//   # Request Error Rate
//   rate(shelf_client_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(shelf_client_request_duration_seconds_bucket[5m]))
//
//   # Stale Response Drop Rate
//   rate(shelf_query_stale_dropped_total[5m]) / rate(shelf_query_fetches_total[5m])
