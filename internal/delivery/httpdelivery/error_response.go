// Package httpdelivery provides the HTTP server for the audits API.
package httpdelivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/logger"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/response"
)

const (
	internalErrorMessage = "An internal error occurred"
	upstreamErrorMessage = "Failed to fetch audits from the route directory"
)

// errorCode maps a domain error to its API error code and client message.
func errorCode(err error, auditID string) (code, message string) {
	switch {
	case identity.IsUnauthenticated(err):
		return response.CodeUnauthorized, unauthenticatedMessage(err)
	case errors.Is(err, audit.ErrAuditIDRequired), errors.Is(err, audit.ErrPeriodsArgsRequired):
		return response.CodeValidation, err.Error()
	case errors.Is(err, audit.ErrInvalidRange):
		return response.CodeInvalidRange, err.Error()
	case errors.Is(err, audit.ErrNotFound):
		return response.CodeAuditNotFound, fmt.Sprintf("Audit with id '%s' not found", auditID)
	case errors.Is(err, audit.ErrDirectoryUnavailable):
		return response.CodeUpstream, upstreamErrorMessage
	default:
		return response.CodeInternal, internalErrorMessage
	}
}

func unauthenticatedMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrMissingToken):
		return "Authorization bearer token is required"
	case errors.Is(err, identity.ErrMalformedHeader):
		return "Authorization header must use the Bearer scheme"
	default:
		return "Caller identity could not be resolved"
	}
}

// writeError writes the envelope for err and logs failures the client cannot fix.
func writeError(ctx context.Context, w http.ResponseWriter, err error, auditID string) {
	code, message := errorCode(err, auditID)

	status := response.StatusFor(code)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Ctx(ctx).Error().Err(err).Str("code", code).Str("audit_id", auditID).Msg("Request failed")
	case code == response.CodeUnauthorized:
		logger.Ctx(ctx).Debug().Err(err).Msg("Unauthenticated request")
	}

	response.Fail(w, code, message)
}
