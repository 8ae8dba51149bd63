package opensearch_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/opensearch"
)

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{4 * time.Hour, "4h"},
		{24 * time.Hour, "1d"},
		{7 * 24 * time.Hour, "1w"},
		{14 * 24 * time.Hour, "2w"},
		{36 * time.Hour, "36h"},
		{90 * time.Second, "90s"},
		{30 * time.Second, "30s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, opensearch.FormatInterval(tt.in))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2024-06-01T10:00:00.000Z", opensearch.FormatTimestamp(ts))
}

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

var (
	queryStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	queryEnd   = time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
)

func expectedUniqueExecutions() map[string]any {
	return map[string]any{
		"terms": map[string]any{"field": "routeExecutionID.keyword", "size": float64(10000)},
		"aggs": map[string]any{
			"failed_count": map[string]any{
				"filter": map[string]any{"term": map[string]any{"routeResult.keyword": "failed"}},
			},
		},
	}
}

func expectedQuery(name string) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"must": []any{
				map[string]any{"term": map[string]any{"routeName.keyword": name}},
				map[string]any{"range": map[string]any{"routeStopDate": map[string]any{
					"gte": "2024-06-01T00:00:00.000Z",
					"lt":  "2024-06-02T00:00:00.000Z",
				}}},
			},
		},
	}
}

func TestBuildAggregationQuery_Summary(t *testing.T) {
	q := toMap(t, opensearch.BuildAggregationQuery("Nightly Sync", queryStart, queryEnd, 0))

	assert.Equal(t, float64(0), q["size"])
	assert.Equal(t, expectedQuery("Nightly Sync"), q["query"])
	assert.Equal(t, map[string]any{"unique_executions": expectedUniqueExecutions()}, q["aggs"])
}

func TestBuildAggregationQuery_Periods(t *testing.T) {
	q := toMap(t, opensearch.BuildAggregationQuery("Nightly Sync", queryStart, queryEnd, time.Hour))

	assert.Equal(t, float64(0), q["size"])
	assert.Equal(t, expectedQuery("Nightly Sync"), q["query"])

	want := map[string]any{
		"periods": map[string]any{
			"date_histogram": map[string]any{
				"field":          "routeStopDate",
				"fixed_interval": "1h",
				"min_doc_count":  float64(0),
				"extended_bounds": map[string]any{
					"min": "2024-06-01T00:00:00.000Z",
					"max": "2024-06-02T00:00:00.000Z",
				},
			},
			"aggs": map[string]any{"unique_executions": expectedUniqueExecutions()},
		},
	}
	assert.Equal(t, want, q["aggs"])
}
