package synthetic_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/synthetic"
)

func TestTrendDirection(t *testing.T) {
	tests := []struct {
		id   string
		want synthetic.Trend
	}{
		{"route-0", synthetic.TrendUp},
		{"route-3", synthetic.TrendUp},
		{"route-4", synthetic.TrendDown},
		{"route-7", synthetic.TrendDown},
		{"route-8", synthetic.TrendNeutral},
		{"route-9", synthetic.TrendNeutral},
		// "a": hash = 97, 97 % 10 = 7.
		{"a", synthetic.TrendDown},
		// "ab": hash = 98 + (97*32 - 97) = 3105, 3105 % 10 = 5.
		{"ab", synthetic.TrendDown},
		// "b": hash = 98, 98 % 10 = 8.
		{"b", synthetic.TrendNeutral},
		// "c": hash = 99.
		{"c", synthetic.TrendNeutral},
		// "d": hash = 100, 100 % 10 = 0.
		{"d", synthetic.TrendUp},
		{"", synthetic.TrendNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, synthetic.TrendDirection(tt.id))
		})
	}
}

func TestTrendDirection_Deterministic(t *testing.T) {
	id := "65f1c0ffee5eedbeefcafe0a"
	first := synthetic.TrendDirection(id)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, synthetic.TrendDirection(id))
	}
}

func TestBaseSuccessRate_Bounds(t *testing.T) {
	for _, id := range []string{"a", "a1", "65f1c0ffee5eedbeefcafe0a", "ruta-ñandú", ""} {
		rate := synthetic.BaseSuccessRate(id)
		assert.GreaterOrEqual(t, rate, 0.90, id)
		assert.LessOrEqual(t, rate, 0.995, id)
	}
}

func TestGenerator_SeriesShape(t *testing.T) {
	g := synthetic.New(rand.New(rand.NewSource(7)), 0)
	now := time.Date(2024, 6, 3, 10, 17, 0, 0, time.UTC)

	for _, r := range audit.AllTimeRanges() {
		t.Run(r.String(), func(t *testing.T) {
			grid := audit.NewGrid(r, now)
			periods := g.Series(audit.Ref{ID: "a7", Name: "Notification System"}, grid)

			require.Len(t, periods, r.Count())
			for i, p := range periods {
				assert.Equal(t, grid.BucketStart(i), p.Timestamp)
				assert.GreaterOrEqual(t, p.Samples, 1)
				assert.GreaterOrEqual(t, p.Failures, 0)
				assert.LessOrEqual(t, p.Failures, p.Samples)
				if i > 0 {
					assert.True(t, p.Timestamp.After(periods[i-1].Timestamp))
				}
			}
		})
	}
}

func TestGenerator_SameSeedSameSeries(t *testing.T) {
	now := time.Date(2024, 6, 3, 10, 17, 0, 0, time.UTC)
	grid := audit.NewGrid(audit.Range1W, now)
	ref := audit.Ref{ID: "a2", Name: "Onboarding App"}

	first := synthetic.NewFromConfig(config.SyntheticConfig{Seed: 99}).Series(ref, grid)
	second := synthetic.NewFromConfig(config.SyntheticConfig{Seed: 99}).Series(ref, grid)

	assert.Equal(t, first, second)
}

func TestGenerator_LowBaseRateProducesFailures(t *testing.T) {
	g := synthetic.New(rand.New(rand.NewSource(1)), 0.5)
	grid := audit.NewGrid(audit.Range1D, time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC))

	total := audit.SumPeriods(g.Series(audit.Ref{ID: "x8"}, grid))
	assert.Positive(t, total.Failures)
	assert.Less(t, audit.SuccessRate(total.Executions, total.Failures), 0.95)
}

func TestGenerator_MetricsSource(t *testing.T) {
	g := synthetic.New(rand.New(rand.NewSource(3)), 0)
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

	periods, err := g.Periods(ctx, audit.Ref{ID: "a1"}, audit.NewGrid(audit.Range1H, now))
	require.NoError(t, err)
	assert.Len(t, periods, 12)

	m, err := g.Summary(ctx, audit.Ref{ID: "a1"}, audit.LookbackWindow(now, 24*time.Hour))
	require.NoError(t, err)
	assert.Positive(t, m.Executions)
	assert.LessOrEqual(t, m.Failures, m.Executions)
}

var _ audit.MetricsSource = (*synthetic.Generator)(nil)
