// Package httpdelivery provides the HTTP server for the audits API.
package httpdelivery

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	auditapp "github.com/japbujan/rork-winking-owl-audits-api/internal/application/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/metrics"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/logger"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/response"
)

// timestampLayout renders instants as UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// AuditDTO is the wire form of an audit.
type AuditDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	SuccessRate float64 `json:"successRate"`
	Executions  int     `json:"executions"`
	Failures    int     `json:"failures"`
	LastUpdate  string  `json:"lastUpdate"`
}

// PeriodDTO is the wire form of a history bucket.
type PeriodDTO struct {
	Timestamp string `json:"timestamp"`
	Samples   int    `json:"samples"`
	Failures  int    `json:"failures"`
}

// ListAuditsResponse is the data of GET /audits.
type ListAuditsResponse struct {
	Audits []AuditDTO `json:"audits"`
}

// GetAuditResponse is the data of GET /audits/{auditId}.
type GetAuditResponse struct {
	Audit AuditDTO `json:"audit"`
}

// PeriodsResponse is the data of GET /audits/{auditId}/periods.
type PeriodsResponse struct {
	AuditID string      `json:"auditId"`
	Range   string      `json:"range"`
	Periods []PeriodDTO `json:"periods"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func toAuditDTO(a audit.Audit) AuditDTO {
	return AuditDTO{
		ID:          a.ID,
		Name:        a.Name,
		Status:      string(a.Status),
		SuccessRate: a.SuccessRate,
		Executions:  a.Executions,
		Failures:    a.Failures,
		LastUpdate:  formatTime(a.LastUpdate),
	}
}

func toPeriodDTOs(periods []audit.Period) []PeriodDTO {
	out := make([]PeriodDTO, 0, len(periods))
	for _, p := range periods {
		out = append(out, PeriodDTO{
			Timestamp: formatTime(p.Timestamp),
			Samples:   p.Samples,
			Failures:  p.Failures,
		})
	}
	return out
}

// AuditHandler serves the audit endpoints.
type AuditHandler struct {
	list         *auditapp.ListHandler
	get          *auditapp.GetHandler
	periods      *auditapp.PeriodsHandler
	claimsHeader string
}

// NewAuditHandler creates a new AuditHandler.
// claimsHeader names the header carrying authorizer-verified claims as JSON; empty disables it.
func NewAuditHandler(
	list *auditapp.ListHandler,
	get *auditapp.GetHandler,
	periods *auditapp.PeriodsHandler,
	claimsHeader string,
) *AuditHandler {
	return &AuditHandler{
		list:         list,
		get:          get,
		periods:      periods,
		claimsHeader: claimsHeader,
	}
}

// ListAudits handles GET /audits.
func (h *AuditHandler) ListAudits(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	result, err := h.list.Handle(r.Context(), auditapp.ListQuery{Auth: h.authRequest(r)})
	metrics.RecordAuditOperation("list", err == nil)
	if err != nil {
		writeError(r.Context(), w, err, "")
		return
	}

	audits := make([]AuditDTO, 0, len(result.Audits))
	for _, a := range result.Audits {
		audits = append(audits, toAuditDTO(a))
	}
	response.OK(w, ListAuditsResponse{Audits: audits})
}

// GetAudit handles GET /audits/{auditId}.
func (h *AuditHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	auditID := r.PathValue("auditId")
	result, err := h.get.Handle(r.Context(), auditapp.GetQuery{AuditID: auditID, Auth: h.authRequest(r)})
	metrics.RecordAuditOperation("get", err == nil)
	if err != nil {
		writeError(r.Context(), w, err, auditID)
		return
	}

	response.OK(w, GetAuditResponse{Audit: toAuditDTO(*result)})
}

// GetPeriods handles GET /audits/{auditId}/periods and its candles alias.
func (h *AuditHandler) GetPeriods(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	auditID := r.PathValue("auditId")
	result, err := h.periods.Handle(r.Context(), auditapp.PeriodsQuery{
		AuditID: auditID,
		Range:   r.URL.Query().Get("range"),
		Auth:    h.authRequest(r),
	})
	metrics.RecordAuditOperation("periods", err == nil)
	if err != nil {
		writeError(r.Context(), w, err, auditID)
		return
	}

	response.OK(w, PeriodsResponse{
		AuditID: result.AuditID,
		Range:   result.Range.String(),
		Periods: toPeriodDTOs(result.Periods),
	})
}

// MissingAuditID handles GET /audits/ where the id segment is empty.
func (h *AuditHandler) MissingAuditID(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeError(r.Context(), w, audit.ErrAuditIDRequired, "")
}

// authRequest collects the authentication inputs of r.
func (h *AuditHandler) authRequest(r *http.Request) identity.Request {
	req := identity.Request{Authorization: r.Header.Get("Authorization")}
	if h.claimsHeader == "" {
		return req
	}

	raw := strings.TrimSpace(r.Header.Get(h.claimsHeader))
	if raw == "" {
		return req
	}
	var claims map[string]any
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		logger.Ctx(r.Context()).Debug().Err(err).Str("header", h.claimsHeader).Msg("Ignoring unparseable claims header")
		return req
	}
	req.GatewayClaims = claims
	return req
}

// allowGet answers non-GET requests with METHOD_NOT_ALLOWED.
func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	response.Fail(w, response.CodeMethodNotAllowed, "method "+r.Method+" is not allowed")
	return false
}

// notFound answers unknown routes.
func notFound(w http.ResponseWriter, r *http.Request) {
	response.Fail(w, response.CodeNotFound, "route "+r.URL.Path+" not found")
}
