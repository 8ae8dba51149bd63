package audit

import (
	"strings"
	"time"
)

// TimeRange is a supported history range key.
type TimeRange string

// TimeRange constants.
const (
	Range1H TimeRange = "1H"
	Range1D TimeRange = "1D"
	Range1W TimeRange = "1W"
	Range1M TimeRange = "1M"
	Range3M TimeRange = "3M"
	Range1Y TimeRange = "1Y"
)

type rangeSpec struct {
	count    int
	interval time.Duration
}

const day = 24 * time.Hour

var rangeTable = map[TimeRange]rangeSpec{
	Range1H: {count: 12, interval: 5 * time.Minute},
	Range1D: {count: 24, interval: time.Hour},
	Range1W: {count: 42, interval: 4 * time.Hour},
	Range1M: {count: 30, interval: day},
	Range3M: {count: 90, interval: day},
	Range1Y: {count: 52, interval: 7 * day},
}

// ParseTimeRange validates a range key. Keys are case-sensitive.
func ParseTimeRange(value string) (TimeRange, error) {
	r := TimeRange(strings.TrimSpace(value))
	if _, ok := rangeTable[r]; !ok {
		return "", ErrInvalidRange
	}
	return r, nil
}

// String returns the range key.
func (r TimeRange) String() string {
	return string(r)
}

// IsValid reports whether the range is one of the supported keys.
func (r TimeRange) IsValid() bool {
	_, ok := rangeTable[r]
	return ok
}

// Count returns the number of buckets in the range.
func (r TimeRange) Count() int {
	return rangeTable[r].count
}

// Interval returns the bucket width of the range.
func (r TimeRange) Interval() time.Duration {
	return rangeTable[r].interval
}

// AllTimeRanges returns the supported ranges, shortest first.
func AllTimeRanges() []TimeRange {
	return []TimeRange{Range1H, Range1D, Range1W, Range1M, Range3M, Range1Y}
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// LookbackWindow returns the window of the given length ending at now.
func LookbackWindow(now time.Time, lookback time.Duration) Window {
	end := now.UTC()
	return Window{Start: end.Add(-lookback), End: end}
}

// Grid is the fixed bucket layout of a range.
type Grid struct {
	Range    TimeRange
	Start    time.Time
	End      time.Time
	Interval time.Duration
	Count    int
}

// NewGrid lays out the buckets of r so that the last bucket contains now.
// Bucket boundaries are multiples of the interval counted from the Unix epoch,
// which is how fixed-interval histograms align their buckets.
func NewGrid(r TimeRange, now time.Time) Grid {
	entry := rangeTable[r]
	step := entry.interval.Milliseconds()
	nowMs := now.UnixMilli()

	endMs := (nowMs/step + 1) * step
	startMs := endMs - int64(entry.count)*step

	return Grid{
		Range:    r,
		Start:    time.UnixMilli(startMs).UTC(),
		End:      time.UnixMilli(endMs).UTC(),
		Interval: entry.interval,
		Count:    entry.count,
	}
}

// Window returns the grid as a time window.
func (g Grid) Window() Window {
	return Window{Start: g.Start, End: g.End}
}

// BucketStart returns the start of bucket i.
func (g Grid) BucketStart(i int) time.Time {
	return g.Start.Add(time.Duration(i) * g.Interval)
}

// BucketStarts returns every bucket start in ascending order.
func (g Grid) BucketStarts() []time.Time {
	starts := make([]time.Time, g.Count)
	for i := range starts {
		starts[i] = g.BucketStart(i)
	}
	return starts
}

// Index returns the bucket holding t, or false when t is outside the grid.
func (g Grid) Index(t time.Time) (int, bool) {
	if t.Before(g.Start) || !t.Before(g.End) || g.Interval <= 0 {
		return 0, false
	}
	return int(t.Sub(g.Start) / g.Interval), true
}
