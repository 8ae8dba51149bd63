// Package audit provides application layer handlers for audit operations.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
)

// DefaultLookback is the window audit summaries are computed over.
const DefaultLookback = 24 * time.Hour

// Enricher fills audits with execution metrics from a metrics source.
type Enricher struct {
	source     audit.MetricsSource
	lookback   time.Duration
	limit      int
	onFallback func(a audit.Audit, err error)
	now        func() time.Time
}

// EnricherOption customises an Enricher.
type EnricherOption func(*Enricher)

// WithFallbackHook is called for every audit served with default metrics.
func WithFallbackHook(fn func(a audit.Audit, err error)) EnricherOption {
	return func(e *Enricher) {
		e.onFallback = fn
	}
}

// WithClock replaces the time source of the lookback window.
func WithClock(now func() time.Time) EnricherOption {
	return func(e *Enricher) {
		e.now = now
	}
}

// NewEnricher creates a new Enricher. maxConcurrency <= 0 queries every audit at once.
func NewEnricher(source audit.MetricsSource, lookback time.Duration, maxConcurrency int, opts ...EnricherOption) *Enricher {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	e := &Enricher{
		source:   source,
		lookback: lookback,
		limit:    maxConcurrency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns the audits with metrics over the lookback window, in input order.
// One query is issued per audit, concurrently. An audit whose query fails keeps
// the no-data defaults; Enrich itself never fails.
func (e *Enricher) Enrich(ctx context.Context, audits []audit.Audit) []audit.Audit {
	enriched := make([]audit.Audit, len(audits))
	if len(audits) == 0 {
		return enriched
	}

	window := audit.LookbackWindow(e.now(), e.lookback)

	var g errgroup.Group
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, a := range audits {
		g.Go(func() error {
			enriched[i] = e.enrichOne(ctx, a, window)
			return nil
		})
	}
	_ = g.Wait()

	return enriched
}

func (e *Enricher) enrichOne(ctx context.Context, a audit.Audit, window audit.Window) audit.Audit {
	m, err := e.source.Summary(ctx, a.Ref(), window)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("audit_id", a.ID).Str("audit_name", a.Name).
			Msg("Using default metrics for audit")
		if e.onFallback != nil {
			e.onFallback(a, err)
		}
		return a.WithDefaultMetrics()
	}
	return a.WithMetrics(m)
}
