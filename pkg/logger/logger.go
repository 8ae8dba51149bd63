// Package logger provides structured logging using zerolog.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures the global logger.
type Options struct {
	Level      string
	Format     string
	PrettyJSON bool
	Service    string
	Version    string
}

// Setup configures the global logger.
func Setup(opts Options) {
	logLevel, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer = os.Stdout
	if opts.Format == "console" || opts.PrettyJSON {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	lctx := zerolog.New(output).With().Timestamp().Caller()
	if opts.Service != "" {
		lctx = lctx.Str("service", opts.Service)
	}
	if opts.Version != "" {
		lctx = lctx.Str("version", opts.Version)
	}
	log.Logger = lctx.Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

// WithRequestID stores a request-scoped logger carrying the request id in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := log.With().Str("request_id", requestID).Logger()
	return l.WithContext(ctx)
}

// Ctx returns the request-scoped logger from ctx, or the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
