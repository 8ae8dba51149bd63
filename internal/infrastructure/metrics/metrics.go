// Package metrics provides Prometheus business metrics for audit operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics query outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
	OutcomeHTTPError = "http_error"
)

var (
	directoryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audits_directory_requests_total",
			Help: "Total number of route directory requests",
		},
		[]string{"status"},
	)

	directoryRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audits_directory_request_duration_seconds",
			Help:    "Duration of route directory requests in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	metricsQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audits_metrics_queries_total",
			Help: "Total number of metrics backend queries",
		},
		[]string{"kind", "outcome"},
	)

	metricsQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audits_metrics_query_duration_seconds",
			Help:    "Duration of metrics backend queries in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	enrichmentFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audits_enrichment_fallbacks_total",
			Help: "Total number of audits served with default metrics",
		},
	)

	auditOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audits_operations_total",
			Help: "Total number of audit operations",
		},
		[]string{"operation", "status"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audits_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"store"},
	)

	breakerStateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audits_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "to"},
	)
)

// RecordDirectoryRequest records a route directory call.
func RecordDirectoryRequest(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	directoryRequestsTotal.WithLabelValues(status).Inc()
	directoryRequestDuration.Observe(duration.Seconds())
}

// RecordMetricsQuery records a metrics backend query.
// kind is "summary" or "periods".
func RecordMetricsQuery(kind, outcome string, duration time.Duration) {
	metricsQueriesTotal.WithLabelValues(kind, outcome).Inc()
	metricsQueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordEnrichmentFallback records an audit served with default metrics.
func RecordEnrichmentFallback() {
	enrichmentFallbacksTotal.Inc()
}

// RecordAuditOperation records an audit use case outcome.
func RecordAuditOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	auditOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRateLimited records a rejected request.
func RecordRateLimited(store string) {
	rateLimitedTotal.WithLabelValues(store).Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(name, to string) {
	breakerStateChangesTotal.WithLabelValues(name, to).Inc()
}
