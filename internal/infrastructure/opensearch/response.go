package opensearch

import (
	"math"
	"time"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
)

// searchResponse is the part of a search response the folding reads.
type searchResponse struct {
	Aggregations struct {
		UniqueExecutions *termsResult `json:"unique_executions"`
		Periods          *struct {
			Buckets []periodBucket `json:"buckets"`
		} `json:"periods"`
	} `json:"aggregations"`
}

type termsResult struct {
	Buckets []executionBucket `json:"buckets"`
}

type executionBucket struct {
	Key         any `json:"key"`
	DocCount    int `json:"doc_count"`
	FailedCount *struct {
		DocCount int `json:"doc_count"`
	} `json:"failed_count"`
}

type periodBucket struct {
	Key              float64      `json:"key"`
	KeyAsString      string       `json:"key_as_string"`
	DocCount         int          `json:"doc_count"`
	UniqueExecutions *termsResult `json:"unique_executions"`
}

// foldExecutions counts executions and those with at least one failed record.
func foldExecutions(t *termsResult) audit.Metrics {
	var m audit.Metrics
	if t == nil {
		return m
	}
	m.Executions = len(t.Buckets)
	for _, b := range t.Buckets {
		if b.FailedCount != nil && b.FailedCount.DocCount > 0 {
			m.Failures++
		}
	}
	return m
}

// bucketTime returns the bucket start, preferring key_as_string.
func (b periodBucket) bucketTime() time.Time {
	if b.KeyAsString != "" {
		for _, layout := range []string{time.RFC3339Nano, TimestampLayout} {
			if t, err := time.Parse(layout, b.KeyAsString); err == nil {
				return t.UTC()
			}
		}
	}
	return time.UnixMilli(int64(math.Round(b.Key))).UTC()
}

// foldPeriods converts histogram buckets into periods in response order.
func foldPeriods(buckets []periodBucket) []audit.Period {
	periods := make([]audit.Period, 0, len(buckets))
	for _, b := range buckets {
		m := foldExecutions(b.UniqueExecutions)
		periods = append(periods, audit.NewPeriod(b.bucketTime(), m.Executions, m.Failures))
	}
	return periods
}
