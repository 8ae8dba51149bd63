// Package httpdelivery provides the HTTP server for the audits API.
package httpdelivery

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/metrics"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/ratelimit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/tracing"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/logger"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/response"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// chain applies middlewares so that the first one is the outermost.
func chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// statusRecorder captures the status written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func recorderFrom(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestIDMiddleware adds a unique request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := logger.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoveryMiddleware turns panics into INTERNAL_ERROR responses.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorderFrom(w)
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Ctx(r.Context()).Error().
					Str("panic", fmt.Sprint(p)).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Msg("Panic recovered")
				if !rec.wroteHeader {
					response.Fail(rec, response.CodeInternal, internalErrorMessage)
				}
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

// loggingMiddleware logs every request once it completes.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorderFrom(w)

		next.ServeHTTP(rec, r)

		l := logger.Ctx(r.Context())
		event := l.Info()
		switch {
		case rec.status >= http.StatusInternalServerError:
			event = l.Error()
		case rec.status >= http.StatusBadRequest:
			event = l.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Str("remote", clientKey(r)).
			Msg("HTTP request completed")
	})
}

// tracingMiddleware starts a server span per request, continuing any incoming trace.
func tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartServerSpan(r.Context(), r.Header, r.Method, r.URL.Path)
		defer span.End()

		if reqID := w.Header().Get(RequestIDHeader); reqID != "" {
			span.SetAttributes(attribute.String("request.id", reqID))
		}

		rec := recorderFrom(w)
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			tracing.SetError(ctx, fmt.Errorf("HTTP %d", rec.status))
		}
	})
}

// exemptFromRateLimit lists probe and scrape endpoints.
var exemptFromRateLimit = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/livez":   true,
	"/metrics": true,
}

// rateLimitMiddleware rejects clients that exceed the limiter's budget.
func rateLimitMiddleware(limiter ratelimit.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || exemptFromRateLimit[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			d := limiter.Allow(r.Context(), clientKey(r))
			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter(time.Now()))))
				metrics.RecordRateLimited(limiter.Name())
				logger.Ctx(r.Context()).Warn().
					Str("client", clientKey(r)).
					Str("store", limiter.Name()).
					Msg("Rate limit exceeded")
				response.Fail(w, response.CodeRateLimited, "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
