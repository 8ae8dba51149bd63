// Package response provides utilities for building API responses.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Error codes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidRange     = "INVALID_RANGE"
	CodeAuditNotFound    = "AUDIT_NOT_FOUND"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
	CodeRateLimited      = "RATE_LIMITED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ErrorBody is the error part of the envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the standard response format.
type Envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp string     `json:"timestamp,omitempty"`
}

// Clock returns the envelope timestamp. Replaced in tests.
var Clock = func() time.Time { return time.Now().UTC() }

func timestamp() string {
	return Clock().UTC().Format(time.RFC3339Nano)
}

// Success creates a successful response.
func Success(data any) Envelope {
	return Envelope{
		Success:   true,
		Data:      data,
		Timestamp: timestamp(),
	}
}

// Failure creates an error response.
func Failure(code, message string) Envelope {
	return Envelope{
		Success:   false,
		Error:     &ErrorBody{Code: code, Message: message},
		Timestamp: timestamp(),
	}
}

// StatusFor returns the HTTP status of an error code.
func StatusFor(code string) int {
	switch code {
	case CodeValidation, CodeInvalidRange:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeAuditNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Success(data))
}

// Fail writes an error envelope with the status of code.
func Fail(w http.ResponseWriter, code, message string) {
	WriteJSON(w, StatusFor(code), Failure(code, message))
}
