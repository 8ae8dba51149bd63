package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDirectoryRequest(t *testing.T) {
	before := testutil.ToFloat64(directoryRequestsTotal.WithLabelValues("failure"))
	RecordDirectoryRequest(false, 20*time.Millisecond)
	assert.InDelta(t, before+1, testutil.ToFloat64(directoryRequestsTotal.WithLabelValues("failure")), 1e-9)
}

func TestRecordMetricsQuery(t *testing.T) {
	before := testutil.ToFloat64(metricsQueriesTotal.WithLabelValues("periods", OutcomeTimeout))
	RecordMetricsQuery("periods", OutcomeTimeout, 5*time.Second)
	assert.InDelta(t, before+1, testutil.ToFloat64(metricsQueriesTotal.WithLabelValues("periods", OutcomeTimeout)), 1e-9)
}

func TestRecordCounters(t *testing.T) {
	fallbacks := testutil.ToFloat64(enrichmentFallbacksTotal)
	RecordEnrichmentFallback()
	RecordEnrichmentFallback()
	assert.InDelta(t, fallbacks+2, testutil.ToFloat64(enrichmentFallbacksTotal), 1e-9)

	ops := testutil.ToFloat64(auditOperationsTotal.WithLabelValues("list", "success"))
	RecordAuditOperation("list", true)
	assert.InDelta(t, ops+1, testutil.ToFloat64(auditOperationsTotal.WithLabelValues("list", "success")), 1e-9)

	limited := testutil.ToFloat64(rateLimitedTotal.WithLabelValues("memory"))
	RecordRateLimited("memory")
	assert.InDelta(t, limited+1, testutil.ToFloat64(rateLimitedTotal.WithLabelValues("memory")), 1e-9)

	opened := testutil.ToFloat64(breakerStateChangesTotal.WithLabelValues("directory", "open"))
	RecordBreakerTransition("directory", "open")
	assert.InDelta(t, opened+1, testutil.ToFloat64(breakerStateChangesTotal.WithLabelValues("directory", "open")), 1e-9)
}
