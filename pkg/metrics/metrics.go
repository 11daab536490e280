// Package metrics provides the central Prometheus registry reference for
// the harvest tool. All metrics are defined in their respective packages
// (client, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the harvest tool.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns an HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - harvest_rate_limit_wait_seconds (Histogram): Admission wait per request
//   - harvest_rate_limit_server_pauses_total (Counter): Server-directed backoff pauses
//
// Cache Metrics (pkg/cache):
//   - harvest_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - harvest_cache_misses_total (Counter): Cache misses
//   - harvest_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - harvest_304_responses_total (Counter): 304 Not Modified responses
//   - harvest_conditional_requests_total (Counter): Conditional requests sent
//   - harvest_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - harvest_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - harvest_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - harvest_errors_total{class} (Counter): Errors by class (rate_limit, server, network, auth, client)
//
// Retry Metrics (pkg/client):
//   - harvest_retries_total{error_class} (Counter): Retry attempts by error class
//   - harvest_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - harvest_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
