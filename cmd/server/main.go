// Package main is the entry point for the audits API.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	auditapp "github.com/japbujan/rork-winking-owl-audits-api/internal/application/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/delivery/httpdelivery"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/claims"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/directory"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/metrics"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/opensearch"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/ratelimit"
	redisinfra "github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/redis"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/synthetic"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/tracing"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run() error {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	setupLogger(cfg)

	log.Info().
		Str("service", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Env).
		Str("metrics_backend", cfg.Metrics.Backend).
		Msg("Starting audits API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup tracing (optional)
	cleanupTracing := setupTracing(ctx, cfg)
	defer cleanupTracing()

	// Setup route directory
	dir, err := directory.NewClient(cfg.Directory)
	if err != nil {
		return err
	}

	// Setup metrics source
	source, checks, err := setupMetricsSource(cfg)
	if err != nil {
		return err
	}
	checks = append(checks, httpdelivery.ReadinessCheck{Name: "directory", Check: dir.Ready})

	// Setup Redis (optional - graceful degradation)
	redisClient := setupRedis(ctx, cfg)
	if redisClient != nil {
		defer closeRedis(redisClient)
		checks = append(checks, httpdelivery.ReadinessCheck{Name: "redis", Check: redisClient.Ping})
	}

	// Setup application handlers
	extractor := claims.NewExtractor()
	enricher := auditapp.NewEnricher(source, cfg.Metrics.Lookback, cfg.Metrics.MaxConcurrency,
		auditapp.WithFallbackHook(func(audit.Audit, error) {
			metrics.RecordEnrichmentFallback()
		}),
	)
	auditHandler := httpdelivery.NewAuditHandler(
		auditapp.NewListHandler(extractor, dir, enricher),
		auditapp.NewGetHandler(extractor, dir, enricher),
		auditapp.NewPeriodsHandler(extractor, dir, source),
		cfg.Auth.ClaimsHeader,
	)

	limiter := setupRateLimiter(cfg, redisClient)

	// Setup and start server
	return startServer(cfg, httpdelivery.NewServer(cfg, auditHandler, limiter, checks...))
}

// setupLogger configures the application logger.
func setupLogger(cfg *config.Config) {
	logger.Setup(logger.Options{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		PrettyJSON: cfg.Logger.PrettyJSON,
		Service:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
}

// setupTracing initializes tracing and returns a cleanup function.
func setupTracing(ctx context.Context, cfg *config.Config) func() {
	tracingProvider, err := tracing.NewProvider(ctx, &cfg.Tracing, cfg.App)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to setup tracing, continuing without it")
		return func() {}
	}

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shutdown tracing provider")
		}
	}
}

// setupMetricsSource selects the execution metrics backend.
func setupMetricsSource(cfg *config.Config) (audit.MetricsSource, []httpdelivery.ReadinessCheck, error) {
	if cfg.Metrics.Backend == config.BackendSynthetic {
		log.Warn().Int64("seed", cfg.Synthetic.Seed).Msg("Serving synthetic audit metrics")
		return synthetic.NewFromConfig(cfg.Synthetic), nil, nil
	}

	aggregator, err := opensearch.NewAggregator(cfg.OpenSearch)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("url", cfg.OpenSearch.BaseURL).
		Str("index", cfg.OpenSearch.Index).
		Msg("OpenSearch metrics backend configured")

	return aggregator, []httpdelivery.ReadinessCheck{{Name: "opensearch", Check: aggregator.Ping}}, nil
}

// setupRedis creates a Redis connection when the rate limiter is backed by it.
func setupRedis(ctx context.Context, cfg *config.Config) *redisinfra.Client {
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Store != config.RateLimitStoreRedis {
		return nil
	}

	redisClient, err := redisinfra.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis, falling back to in-memory rate limiting")
		return nil
	}

	log.Info().
		Str("host", cfg.Redis.Host).
		Int("port", cfg.Redis.Port).
		Msg("Redis connection established")

	return redisClient
}

// closeRedis closes the Redis connection.
func closeRedis(client *redisinfra.Client) {
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis connection")
	}
}

// setupRateLimiter returns the configured limiter, or nil when rate limiting is off.
func setupRateLimiter(cfg *config.Config, redisClient *redisinfra.Client) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	if redisClient != nil {
		return redisinfra.NewRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
}

// startServer starts the HTTP server and handles graceful shutdown.
func startServer(cfg *config.Config, server *httpdelivery.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return errors.New("HTTP server stopped unexpectedly")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}
