// Package synthetic generates plausible audit execution series when no metrics backend is available.
package synthetic

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
)

// Trend is the long-run direction of an audit's success rate.
type Trend string

// Trend constants.
const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

const (
	trendStep = 0.001

	incidentShare       = 0.15
	incidentPenaltyMin  = 0.03
	incidentPenaltySpan = 0.02

	noiseSpan = 0.015

	minBaseRate = 0.90
	maxBaseRate = 0.995
)

var baseSamples = map[audit.TimeRange]int{
	audit.Range1H: 50,
	audit.Range1D: 120,
	audit.Range1W: 200,
	audit.Range1M: 300,
	audit.Range3M: 500,
	audit.Range1Y: 1000,
}

// Generator implements audit.MetricsSource with randomized series.
// The shape of a series is a function of the audit id; the randomness comes
// from the injected source, so a fixed seed reproduces the same output.
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	baseRate float64
}

// New creates a generator drawing from rng. A baseRate of 0 derives the base
// success rate from each audit id.
func New(rng *rand.Rand, baseRate float64) *Generator {
	return &Generator{rng: rng, baseRate: baseRate}
}

// NewFromConfig creates a generator from configuration. Seed 0 is time based.
func NewFromConfig(cfg config.SyntheticConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return New(rand.New(rand.NewSource(seed)), cfg.BaseSuccessRate) //nolint:gosec // not security sensitive
}

// idHash folds id through hash = c + ((hash << 5) - hash), where the shift
// operates on the low 32 bits and c are UTF-16 code units.
func idHash(id string) int64 {
	var hash int64
	for _, c := range utf16.Encode([]rune(id)) {
		shifted := int64(int32(hash) << 5)
		hash = int64(c) + (shifted - hash)
	}
	return hash
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// TrendDirection returns the trend of an audit: the last character when it is
// a digit, otherwise the id hash modulo 10; 0-3 up, 4-7 down, 8-9 neutral.
func TrendDirection(id string) Trend {
	if id == "" {
		return TrendNeutral
	}
	var digit int64
	last := id[len(id)-1]
	if last >= '0' && last <= '9' {
		digit = int64(last - '0')
	} else {
		digit = absInt64(idHash(id)) % 10
	}
	switch {
	case digit < 4:
		return TrendUp
	case digit < 8:
		return TrendDown
	default:
		return TrendNeutral
	}
}

func (t Trend) step() float64 {
	switch t {
	case TrendUp:
		return trendStep
	case TrendDown:
		return -trendStep
	default:
		return 0
	}
}

// BaseSuccessRate returns the id-derived base success rate in [0.90, 0.995].
func BaseSuccessRate(id string) float64 {
	h := absInt64(idHash(id)) % 1000
	return minBaseRate + float64(h)/999*(maxBaseRate-minBaseRate)
}

func firstCodeUnit(id string) int {
	units := utf16.Encode([]rune(id))
	if len(units) == 0 {
		return 0
	}
	return int(units[0])
}

// uniform returns a value in [lo, hi). Callers hold g.mu.
func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// errorMultiplier scales the failure count by time of day and day of week (UTC).
// Callers hold g.mu.
func (g *Generator) errorMultiplier(t time.Time, firstCode int) float64 {
	t = t.UTC()
	hour := t.Hour()

	var m float64
	switch {
	case hour >= 9 && hour <= 11:
		m = g.uniform(1.5, 2.0)
	case hour >= 14 && hour <= 16:
		m = g.uniform(1.3, 1.7)
	case hour >= 22 || hour <= 6:
		m = g.uniform(0.3, 0.6)
	default:
		m = g.uniform(0.8, 1.2)
	}

	switch wd := t.Weekday(); {
	case wd == time.Monday:
		m *= 1.4
	case wd == time.Friday && hour >= 15 && hour <= 17:
		m *= 1.6
	case wd == time.Saturday || wd == time.Sunday:
		m *= 0.5
	}

	if offset := (firstCode%10 + hour) % 24; offset >= 10 && offset <= 12 {
		m *= 1.2
	}
	return m
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Series generates one period per grid bucket, oldest first.
func (g *Generator) Series(ref audit.Ref, grid audit.Grid) []audit.Period {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := grid.Count
	periods := make([]audit.Period, count)
	if count == 0 {
		return periods
	}

	base := g.baseRate
	if base <= 0 {
		base = BaseSuccessRate(ref.ID)
	}
	step := TrendDirection(ref.ID).step()
	firstCode := firstCodeUnit(ref.ID)

	samplesBase, ok := baseSamples[grid.Range]
	if !ok {
		samplesBase = baseSamples[audit.Range1D]
	}

	// Incident buckets are drawn with replacement; repeated draws compound.
	incidents := make([]int, count)
	for i := 0; i < int(math.Floor(float64(count)*incidentShare)); i++ {
		incidents[g.rng.Intn(count)]++
	}

	for i := 0; i < count; i++ {
		ts := grid.BucketStart(i)

		rate := base + (g.rng.Float64()-0.5)*noiseSpan
		for n := 0; n < incidents[i]; n++ {
			rate -= incidentPenaltyMin + g.rng.Float64()*incidentPenaltySpan
		}
		rate = clamp01(rate + float64(i)*step)

		errMult := g.errorMultiplier(ts, firstCode)
		volume := g.errorMultiplier(ts, firstCode)

		samples := int(math.Round(float64(samplesBase) * volume * g.uniform(0.8, 1.2)))
		if samples < 1 {
			samples = 1
		}
		failures := int(math.Round(float64(samples)*(1-rate)*errMult + g.uniform(-0.5, 0.5)))

		periods[i] = audit.NewPeriod(ts, samples, failures)
	}
	return periods
}

// Periods returns a generated series over grid.
func (g *Generator) Periods(_ context.Context, ref audit.Ref, grid audit.Grid) ([]audit.Period, error) {
	return g.Series(ref, grid), nil
}

// Summary returns the totals of a generated 24 hour series ending at window.End.
func (g *Generator) Summary(_ context.Context, ref audit.Ref, window audit.Window) (audit.Metrics, error) {
	end := window.End
	if end.IsZero() {
		end = time.Now()
	}
	return audit.SumPeriods(g.Series(ref, audit.NewGrid(audit.Range1D, end))), nil
}
