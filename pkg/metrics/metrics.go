// Package metrics exposes the Prometheus registry used by the image finder.
// Collectors live next to the code they measure (pexels, quota, finder) and
// register themselves via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves every registered collector in the text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Search Client Metrics (pkg/pexels):
//   - pexels_requests_total{status} (Counter): Requests by HTTP status or "network_error"
//   - pexels_request_duration_seconds (Histogram): Request duration
//   - pexels_errors_total{class} (Counter): Failures by class (client, server, network, decode)
//
// Quota Metrics (pkg/quota):
//   - pexels_quota_remaining (Gauge): Requests left in the current window
//   - pexels_quota_limit (Gauge): Requests allowed per window
//   - pexels_quota_low_total (Counter): Responses seen below the low watermark
//
// Controller Metrics (pkg/finder):
//   - finder_fetches_total{outcome} (Counter): success, failure, stale
//   - finder_fetches_in_flight (Gauge): Outstanding fetches
//
// Example Prometheus Queries:
//
//   # Search failure rate
//   sum(rate(finder_fetches_total{outcome="failure"}[5m])) /
//   sum(rate(finder_fetches_total[5m]))
//
//   # Superseded responses (user typed faster than the API answered)
//   rate(finder_fetches_total{outcome="stale"}[5m])
//
//   # P95 search latency
//   histogram_quantile(0.95, rate(pexels_request_duration_seconds_bucket[5m]))
