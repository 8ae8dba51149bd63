// Package directory provides the route directory client.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/metrics"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/tracing"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/circuitbreaker"
)

// AuthUserHeader carries the serialized caller identity.
const AuthUserHeader = "X-Auth-User"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 1024

// StatusError is returned when the directory answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("route directory responded with status %d", e.Status)
	}
	return fmt.Sprintf("route directory responded with status %d: %s", e.Status, e.Body)
}

// IsBreakerFailure reports whether err says the directory itself is unhealthy.
// Caller cancellation and 4xx answers, such as an expired token, are the
// caller's problem and must not open the shared circuit.
func IsBreakerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= http.StatusInternalServerError
	}
	return true
}

// Client implements audit.Directory over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithBreaker overrides the default circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		if cb != nil {
			c.breaker = cb
		}
	}
}

// NewClient creates a directory client for the configured base URL.
func NewClient(cfg config.DirectoryConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("directory base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid directory base url: %w", err)
	}
	path := cfg.RoutesPath
	if path == "" {
		path = "/route-service/route"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := circuitbreaker.DefaultSettings("route-directory")
	if cfg.MaxFailures > 0 {
		settings.MaxFailures = cfg.MaxFailures
	}
	if cfg.BreakerReset > 0 {
		settings.Timeout = cfg.BreakerReset
	}
	settings.IsFailure = IsBreakerFailure
	settings.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
			Msg("Circuit breaker state changed")
		metrics.RecordBreakerTransition(name, to.String())
	}

	c := &Client{
		endpoint:   base + path,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.New(settings),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// routeRecord is the directory's wire shape of a route.
type routeRecord struct {
	MongoID       string `json:"_id"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsInTracking  *bool  `json:"isInTracking"`
	LastExecution any    `json:"lastExecution"`
}

func (r routeRecord) toRoute() audit.Route {
	id := r.MongoID
	if id == "" {
		id = r.ID
	}
	route := audit.Route{
		ID:         id,
		Name:       r.Name,
		InTracking: r.IsInTracking != nil && *r.IsInTracking,
	}
	if s, ok := r.LastExecution.(string); ok && s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			route.LastExecution = &t
		}
	}
	return route
}

// ListRoutes returns every route visible to the caller.
// Any failure is reported as audit.ErrDirectoryUnavailable.
func (c *Client) ListRoutes(ctx context.Context, creds identity.Credentials) ([]audit.Route, error) {
	ctx, span := tracing.StartClientSpan(ctx, "directory", "ListRoutes", attribute.String("url.full", c.endpoint))
	defer span.End()

	authUser, err := creds.AuthUser().Header()
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", audit.ErrDirectoryUnavailable, AuthUserHeader, err)
	}

	start := time.Now()
	var records []routeRecord
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.fetch(ctx, creds.Token, authUser, &records)
	})
	metrics.RecordDirectoryRequest(err == nil, time.Since(start))

	if err != nil {
		tracing.SetError(ctx, err)
		log.Error().Err(err).Str("endpoint", c.endpoint).Msg("Route directory request failed")
		return nil, fmt.Errorf("%w: %w", audit.ErrDirectoryUnavailable, err)
	}

	routes := make([]audit.Route, 0, len(records))
	for _, r := range records {
		route := r.toRoute()
		if route.ID == "" {
			continue
		}
		routes = append(routes, route)
	}
	span.SetAttributes(attribute.Int("directory.routes", len(routes)))
	return routes, nil
}

// Ready reports whether calls to the directory are currently admitted.
// It does not contact the directory, which needs caller credentials.
func (c *Client) Ready(_ context.Context) error {
	if state := c.breaker.State(); state == circuitbreaker.StateOpen {
		return fmt.Errorf("%w: circuit %s is %s", audit.ErrDirectoryUnavailable, c.breaker.Name(), state)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, token, authUser string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(AuthUserHeader, authUser)
	req.Header.Set("Accept", "application/json")
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
