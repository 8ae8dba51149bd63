// Package httpdelivery provides the HTTP server for the audits API.
package httpdelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/ratelimit"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/response"
)

// readinessTimeout bounds each dependency check of /readyz.
const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server represents the HTTP server.
type Server struct {
	server  *http.Server
	config  *config.ServerConfig
	handler http.Handler
	checks  []ReadinessCheck
}

// NewServer creates a new HTTP server. A nil limiter disables rate limiting.
func NewServer(cfg *config.Config, audits *AuditHandler, limiter ratelimit.Limiter, checks ...ReadinessCheck) *Server {
	s := &Server{
		config: &cfg.Server,
		checks: checks,
	}

	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/audits", audits.ListAudits)
	mux.HandleFunc("/audits/{$}", audits.MissingAuditID)
	mux.HandleFunc("/audits/{auditId}", audits.GetAudit)
	mux.HandleFunc("/audits/{auditId}/periods", audits.GetPeriods)
	mux.HandleFunc("/audits/{auditId}/candles", audits.GetPeriods)

	// Health check endpoints
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/readyz", s.readyHandler)
	mux.HandleFunc("/livez", s.liveHandler)

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", notFound)

	trusted, err := cfg.RateLimit.TrustedPrefixes()
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring trusted proxies, keying clients on the socket address")
		trusted = nil
	}

	mws := []Middleware{
		corsMiddleware(cfg.CORS),
		requestIDMiddleware,
		clientIPMiddleware(newClientResolver(trusted)),
		recoveryMiddleware,
		loggingMiddleware,
		tracingMiddleware,
	}
	if limiter != nil {
		mws = append(mws, rateLimitMiddleware(limiter))
	}
	mws = append(mws, metricsMiddleware)

	s.handler = chain(mux, mws...)
	s.server = &http.Server{
		Addr:         s.config.Address(),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	return s
}

// corsMiddleware answers preflight requests and sets CORS headers.
func corsMiddleware(cfg config.CORSConfig) Middleware {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodOptions}
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		ExposedHeaders: []string{RequestIDHeader, "Retry-After"},
		MaxAge:         cfg.MaxAge,
	})
	return c.Handler
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server. It returns nil once the server is shut down.
func (s *Server) Start() error {
	log.Info().
		Int("port", s.config.HTTPPort).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handlers
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, healthStatus{Status: "healthy"})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := healthStatus{Status: "ready"}

	if len(s.checks) > 0 {
		body.Checks = make(map[string]string, len(s.checks))
	}
	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			log.Warn().Err(err).Str("check", c.Name).Msg("Readiness check failed")
			body.Checks[c.Name] = "unavailable"
			body.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		body.Checks[c.Name] = "ok"
	}

	response.WriteJSON(w, status, body)
}

func (s *Server) liveHandler(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, healthStatus{Status: "live"})
}
