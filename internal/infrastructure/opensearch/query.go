// Package opensearch provides the OpenSearch-backed audit metrics source.
package opensearch

import (
	"strconv"
	"time"
)

// Index field names of route execution records.
const (
	FieldRouteName   = "routeName.keyword"
	FieldStopDate    = "routeStopDate"
	FieldExecutionID = "routeExecutionID.keyword"
	FieldResult      = "routeResult.keyword"

	resultFailed = "failed"

	aggPeriods          = "periods"
	aggUniqueExecutions = "unique_executions"
	aggFailedCount      = "failed_count"

	// maxExecutionsPerBucket caps the distinct executions counted per aggregation.
	maxExecutionsPerBucket = 10000
)

// TimestampLayout is the wire format of query bounds: UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Query is an aggregation-only search request body.
type Query struct {
	Query QueryClause            `json:"query"`
	Size  int                    `json:"size"`
	Aggs  map[string]Aggregation `json:"aggs"`
}

// QueryClause is the top-level query.
type QueryClause struct {
	Bool BoolClause `json:"bool"`
}

// BoolClause combines clauses that must all match.
type BoolClause struct {
	Must []Clause `json:"must"`
}

// Clause is a single leaf query; exactly one field is set.
type Clause struct {
	Term  map[string]string      `json:"term,omitempty"`
	Range map[string]RangeBounds `json:"range,omitempty"`
}

// RangeBounds is a half-open [gte, lt) range.
type RangeBounds struct {
	GTE string `json:"gte"`
	LT  string `json:"lt"`
}

// Aggregation is one named aggregation; exactly one kind is set.
type Aggregation struct {
	Terms         *TermsAgg              `json:"terms,omitempty"`
	Filter        *Clause                `json:"filter,omitempty"`
	DateHistogram *DateHistogramAgg      `json:"date_histogram,omitempty"`
	Aggs          map[string]Aggregation `json:"aggs,omitempty"`
}

// TermsAgg buckets documents by distinct field value.
type TermsAgg struct {
	Field string `json:"field"`
	Size  int    `json:"size"`
}

// DateHistogramAgg buckets documents by fixed time interval.
type DateHistogramAgg struct {
	Field          string `json:"field"`
	FixedInterval  string `json:"fixed_interval"`
	MinDocCount    int    `json:"min_doc_count"`
	ExtendedBounds Bounds `json:"extended_bounds"`
}

// Bounds forces histogram buckets over the full requested range.
type Bounds struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// FormatTimestamp renders t in the query wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatInterval renders d in the largest unit that divides it evenly:
// weeks, days, hours, minutes, else seconds.
func FormatInterval(d time.Duration) string {
	units := []struct {
		size   time.Duration
		suffix string
	}{
		{7 * 24 * time.Hour, "w"},
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
	}
	for _, u := range units {
		if d >= u.size && d%u.size == 0 {
			return strconv.FormatInt(int64(d/u.size), 10) + u.suffix
		}
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

func uniqueExecutions() Aggregation {
	return Aggregation{
		Terms: &TermsAgg{Field: FieldExecutionID, Size: maxExecutionsPerBucket},
		Aggs: map[string]Aggregation{
			aggFailedCount: {
				Filter: &Clause{Term: map[string]string{FieldResult: resultFailed}},
			},
		},
	}
}

// BuildAggregationQuery builds the query counting distinct executions of the
// named route that stopped within [start, end), and how many of them failed.
// A positive interval buckets the counts by time over the whole range.
func BuildAggregationQuery(name string, start, end time.Time, interval time.Duration) Query {
	startStr := FormatTimestamp(start)
	endStr := FormatTimestamp(end)

	q := Query{
		Query: QueryClause{Bool: BoolClause{Must: []Clause{
			{Term: map[string]string{FieldRouteName: name}},
			{Range: map[string]RangeBounds{FieldStopDate: {GTE: startStr, LT: endStr}}},
		}}},
		Size: 0,
	}

	if interval <= 0 {
		q.Aggs = map[string]Aggregation{aggUniqueExecutions: uniqueExecutions()}
		return q
	}

	q.Aggs = map[string]Aggregation{
		aggPeriods: {
			DateHistogram: &DateHistogramAgg{
				Field:          FieldStopDate,
				FixedInterval:  FormatInterval(interval),
				MinDocCount:    0,
				ExtendedBounds: Bounds{Min: startStr, Max: endStr},
			},
			Aggs: map[string]Aggregation{aggUniqueExecutions: uniqueExecutions()},
		},
	}
	return q
}
