// Package audit provides application layer handlers for audit operations.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
)

// GetQuery represents the get audit query.
type GetQuery struct {
	AuditID string
	Auth    identity.Request
}

// GetHandler handles the GetAudit query.
type GetHandler struct {
	auth      Authenticator
	directory audit.Directory
	enricher  *Enricher
	now       func() time.Time
}

// NewGetHandler creates a new GetHandler.
func NewGetHandler(auth Authenticator, directory audit.Directory, enricher *Enricher) *GetHandler {
	return &GetHandler{auth: auth, directory: directory, enricher: enricher, now: time.Now}
}

// Handle executes the get audit query.
// Any route known to the directory can be fetched, tracked or not.
func (h *GetHandler) Handle(ctx context.Context, query GetQuery) (*audit.Audit, error) {
	id := strings.TrimSpace(query.AuditID)
	if id == "" {
		return nil, audit.ErrAuditIDRequired
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

	enriched := h.enricher.Enrich(ctx, []audit.Audit{route.Audit(h.now().UTC())})
	return &enriched[0], nil
}
