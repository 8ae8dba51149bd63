package audit

import "time"

// Period holds execution counters for one bucket of a history range.
type Period struct {
	Timestamp time.Time
	Samples   int
	Failures  int
}

// NewPeriod creates a period, clamping failures to [0, samples].
func NewPeriod(timestamp time.Time, samples, failures int) Period {
	if samples < 0 {
		samples = 0
	}
	if failures < 0 {
		failures = 0
	}
	if failures > samples {
		failures = samples
	}
	return Period{Timestamp: timestamp.UTC(), Samples: samples, Failures: failures}
}

// SuccessRate returns the fraction of samples that did not fail.
func (p Period) SuccessRate() float64 {
	return SuccessRate(p.Samples, p.Failures)
}

// AlignToGrid places periods onto the grid buckets.
// Each grid bucket takes the counters of the period starting inside it; buckets
// without a period are empty and periods outside the grid are dropped.
func AlignToGrid(grid Grid, periods []Period) []Period {
	aligned := make([]Period, grid.Count)
	for i := range aligned {
		aligned[i] = NewPeriod(grid.BucketStart(i), 0, 0)
	}
	for _, p := range periods {
		i, ok := grid.Index(p.Timestamp)
		if !ok {
			continue
		}
		aligned[i] = NewPeriod(aligned[i].Timestamp, aligned[i].Samples+p.Samples, aligned[i].Failures+p.Failures)
	}
	return aligned
}

// SumPeriods totals the counters of the given periods.
func SumPeriods(periods []Period) Metrics {
	var m Metrics
	for _, p := range periods {
		m.Executions += p.Samples
		m.Failures += p.Failures
	}
	return m
}
