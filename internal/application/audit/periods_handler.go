// Package audit provides application layer handlers for audit operations.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
)

// PeriodsQuery represents the get periods query.
type PeriodsQuery struct {
	AuditID string
	Range   string
	Auth    identity.Request
}

// PeriodsResult represents the get periods result.
type PeriodsResult struct {
	AuditID string
	Range   audit.TimeRange
	Periods []audit.Period
}

// PeriodsHandler handles the GetPeriods query.
type PeriodsHandler struct {
	auth      Authenticator
	directory audit.Directory
	source    audit.MetricsSource
	now       func() time.Time
}

// NewPeriodsHandler creates a new PeriodsHandler.
func NewPeriodsHandler(auth Authenticator, directory audit.Directory, source audit.MetricsSource) *PeriodsHandler {
	return &PeriodsHandler{auth: auth, directory: directory, source: source, now: time.Now}
}

// Handle executes the get periods query.
// When the metrics source fails the result carries no periods rather than an error.
func (h *PeriodsHandler) Handle(ctx context.Context, query PeriodsQuery) (*PeriodsResult, error) {
	id := strings.TrimSpace(query.AuditID)
	rangeKey := strings.TrimSpace(query.Range)
	if id == "" || rangeKey == "" {
		return nil, audit.ErrPeriodsArgsRequired
	}

	r, err := audit.ParseTimeRange(rangeKey)
	if err != nil {
		return nil, err
	}

	creds, err := h.auth.Resolve(query.Auth)
	if err != nil {
		return nil, err
	}

	routes, err := listRoutes(ctx, h.directory, creds)
	if err != nil {
		return nil, err
	}

	route, ok := audit.FindRoute(routes, id)
	if !ok {
		return nil, audit.ErrNotFound
	}

	now := h.now().UTC()
	grid := audit.NewGrid(r, now)

	periods, err := h.source.Periods(ctx, route.Audit(now).Ref(), grid)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("audit_id", id).Str("range", r.String()).
			Msg("Periods unavailable, returning empty series")
		periods = []audit.Period{}
	}

	return &PeriodsResult{AuditID: id, Range: r, Periods: periods}, nil
}
