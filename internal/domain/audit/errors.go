// Package audit provides domain logic for monitored route (audit) health metrics.
package audit

import "errors"

// Domain errors for audit operations.
var (
	// ErrAuditIDRequired is returned when the audit id is missing.
	ErrAuditIDRequired = errors.New("auditId is required")

	// ErrPeriodsArgsRequired is returned when a periods request lacks the audit id or range.
	ErrPeriodsArgsRequired = errors.New("auditId and range are required")

	// ErrInvalidRange is returned when the range is not one of the supported keys.
	ErrInvalidRange = errors.New("range must be one of: 1H, 1D, 1W, 1M, 3M, 1Y")

	// ErrNotFound is returned when the directory does not know the audit.
	ErrNotFound = errors.New("audit not found")

	// ErrDirectoryUnavailable is returned when the route directory cannot be queried.
	ErrDirectoryUnavailable = errors.New("route directory unavailable")

	// ErrNoMetrics is returned by a metrics source that could not produce data.
	ErrNoMetrics = errors.New("no metrics available")
)
