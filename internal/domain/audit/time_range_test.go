package audit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{input: "1H"},
		{input: "1D"},
		{input: "1W"},
		{input: "1M"},
		{input: "3M"},
		{input: "1Y"},
		{input: "1h", wantErr: true},
		{input: "2D", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("range "+tt.input, func(t *testing.T) {
			r, err := audit.ParseTimeRange(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, audit.ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, r.String())
		})
	}
}

func TestTimeRange_Table(t *testing.T) {
	tests := []struct {
		r        audit.TimeRange
		count    int
		interval time.Duration
	}{
		{audit.Range1H, 12, 5 * time.Minute},
		{audit.Range1D, 24, time.Hour},
		{audit.Range1W, 42, 4 * time.Hour},
		{audit.Range1M, 30, 24 * time.Hour},
		{audit.Range3M, 90, 24 * time.Hour},
		{audit.Range1Y, 52, 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.r.String(), func(t *testing.T) {
			assert.True(t, tt.r.IsValid())
			assert.Equal(t, tt.count, tt.r.Count())
			assert.Equal(t, tt.interval, tt.r.Interval())
		})
	}
}

func TestNewGrid(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 34, 56, 0, time.UTC)

	for _, r := range audit.AllTimeRanges() {
		t.Run(r.String(), func(t *testing.T) {
			g := audit.NewGrid(r, now)

			assert.Equal(t, r.Count(), g.Count)
			assert.Equal(t, r.Interval(), g.Interval)
			assert.Equal(t, time.Duration(g.Count)*g.Interval, g.End.Sub(g.Start))
			assert.True(t, now.Before(g.End))
			assert.False(t, now.Before(g.End.Add(-g.Interval)), "last bucket contains now")
			assert.Zero(t, g.Start.UnixMilli()%g.Interval.Milliseconds(), "start is epoch aligned")

			starts := g.BucketStarts()
			require.Len(t, starts, g.Count)
			for i := 1; i < len(starts); i++ {
				assert.Equal(t, g.Interval, starts[i].Sub(starts[i-1]))
			}
		})
	}
}

func TestNewGrid_HourlyAlignment(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 34, 56, 0, time.UTC)
	g := audit.NewGrid(audit.Range1D, now)

	assert.Equal(t, time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC), g.End)
	assert.Equal(t, time.Date(2024, 5, 31, 13, 0, 0, 0, time.UTC), g.Start)
}

func TestGrid_Index(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 34, 56, 0, time.UTC)
	g := audit.NewGrid(audit.Range1D, now)

	i, ok := g.Index(g.Start)
	require.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = g.Index(now)
	require.True(t, ok)
	assert.Equal(t, g.Count-1, i)

	_, ok = g.Index(g.End)
	assert.False(t, ok)

	_, ok = g.Index(g.Start.Add(-time.Millisecond))
	assert.False(t, ok)
}

func TestLookbackWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w := audit.LookbackWindow(now, 24*time.Hour)

	assert.Equal(t, now, w.End)
	assert.Equal(t, now.Add(-24*time.Hour), w.Start)
}
