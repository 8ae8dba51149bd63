// Package audit provides domain logic for monitored route (audit) health metrics.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
)

// Route is a monitored route as reported by the route directory.
type Route struct {
	ID            string
	Name          string
	InTracking    bool
	LastExecution *time.Time
}

// Audit returns the placeholder audit for the route.
// lastUpdate is used when the directory did not report a last execution.
func (r Route) Audit(lastUpdate time.Time) Audit {
	if r.LastExecution != nil && !r.LastExecution.IsZero() {
		lastUpdate = *r.LastExecution
	}
	return NewAudit(r.ID, r.Name, lastUpdate.UTC())
}

// Directory defines the interface for the route directory.
// This interface is defined in domain layer, implemented in infrastructure layer.
type Directory interface {
	// ListRoutes returns every route visible to the caller, on behalf of the caller.
	ListRoutes(ctx context.Context, creds identity.Credentials) ([]Route, error)
}

// MetricsSource defines the interface for execution metrics.
type MetricsSource interface {
	// Summary returns the execution counters of the audit within the window.
	Summary(ctx context.Context, ref Ref, window Window) (Metrics, error)

	// Periods returns the per-bucket counters of the audit over the grid.
	// The result always has grid.Count entries in ascending time order.
	Periods(ctx context.Context, ref Ref, grid Grid) ([]Period, error)
}

// FindRoute returns the route with the given id.
// A route without a name cannot be queried for metrics and is treated as unknown.
func FindRoute(routes []Route, id string) (Route, bool) {
	for _, r := range routes {
		if r.ID == id {
			if strings.TrimSpace(r.Name) == "" {
				return Route{}, false
			}
			return r, true
		}
	}
	return Route{}, false
}
