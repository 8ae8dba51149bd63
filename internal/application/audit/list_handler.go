// Package audit provides application layer handlers for audit operations.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
)

// Authenticator resolves caller credentials from request authentication inputs.
type Authenticator interface {
	Resolve(req identity.Request) (identity.Credentials, error)
}

// ListQuery represents the list audits query.
type ListQuery struct {
	Auth identity.Request
}

// ListResult represents the list audits result.
type ListResult struct {
	Audits []audit.Audit
}

// ListHandler handles the ListAudits query.
type ListHandler struct {
	auth      Authenticator
	directory audit.Directory
	enricher  *Enricher
	now       func() time.Time
}

// NewListHandler creates a new ListHandler.
func NewListHandler(auth Authenticator, directory audit.Directory, enricher *Enricher) *ListHandler {
	return &ListHandler{auth: auth, directory: directory, enricher: enricher, now: time.Now}
}

// Handle executes the list audits query.
// Only tracked routes are listed, sorted by name.
func (h *ListHandler) Handle(ctx context.Context, query ListQuery) (*ListResult, error) {
	creds, err := h.auth.Resolve(query.Auth)
	if err != nil {
		return nil, err
	}

	routes, err := listRoutes(ctx, h.directory, creds)
	if err != nil {
		return nil, err
	}

	now := h.now().UTC()
	audits := make([]audit.Audit, 0, len(routes))
	for _, r := range routes {
		if !r.InTracking {
			continue
		}
		audits = append(audits, r.Audit(now))
	}

	audits = h.enricher.Enrich(ctx, audits)
	SortByName(audits)

	return &ListResult{Audits: audits}, nil
}

// SortByName orders audits by locale-aware name collation, then by id.
func SortByName(audits []audit.Audit) {
	c := collate.New(language.Und)
	sort.SliceStable(audits, func(i, j int) bool {
		if cmp := c.CompareString(audits[i].Name, audits[j].Name); cmp != 0 {
			return cmp < 0
		}
		return audits[i].ID < audits[j].ID
	})
}

// listRoutes queries the directory, reporting every failure as unavailability.
func listRoutes(ctx context.Context, directory audit.Directory, creds identity.Credentials) ([]audit.Route, error) {
	routes, err := directory.ListRoutes(ctx, creds)
	if err != nil {
		if errors.Is(err, audit.ErrDirectoryUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", audit.ErrDirectoryUnavailable, err)
	}
	return routes, nil
}
