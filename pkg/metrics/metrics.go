// Package metrics documents the Prometheus metrics exposed by the renewal
// client. All metrics are defined in their respective packages (client,
// ratelimit) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the renewal client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - subrenew_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - subrenew_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//
// Retry Metrics (pkg/client):
//   - subrenew_retries_total{status} (Counter): Retry attempts by failing status
//   - subrenew_retry_backoff_seconds{status} (Histogram): Backoff duration by failing status
//   - subrenew_retry_exhausted_total{status} (Counter): Requests that exhausted max retries
//
// Error Budget Metrics (pkg/ratelimit):
//   - subrenew_errors_remaining (Gauge): Errors remaining in the current budget window
//   - subrenew_budget_blocks_total (Counter): Requests blocked due to critical error budget
//   - subrenew_budget_throttles_total (Counter): Requests throttled due to low error budget
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   sum(rate(subrenew_requests_total{status=~"4..|5..|network_error"}[5m]))
//
//   # Retry Rate by Status
//   rate(subrenew_retries_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(subrenew_request_duration_seconds_bucket[5m]))
//
//   # Budget Pressure
//   subrenew_errors_remaining < 20
