package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.Emit(), true
		}
	}
	return "", false
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), &config.TracingConfig{Enabled: false}, config.AppConfig{Name: "audits"})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestStartServerSpan_ContinuesIncomingTrace(t *testing.T) {
	recorder := installRecorder(t)

	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	header := http.Header{}
	header.Set("traceparent", traceparent)

	_, span := StartServerSpan(context.Background(), header, http.MethodGet, "/audits")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "GET /audits", got.Name())
	assert.Equal(t, trace.SpanKindServer, got.SpanKind())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", got.Parent().SpanID().String())

	path, ok := attrValue(got.Attributes(), "url.path")
	require.True(t, ok)
	assert.Equal(t, "/audits", path)
}

func TestStartClientSpan_PropagatesAndRecordsErrors(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartClientSpan(context.Background(), "directory", "ListRoutes",
		attribute.String("url.full", "http://directory.local/routes"))

	header := http.Header{}
	InjectHeaders(ctx, header)
	assert.Contains(t, header.Get("traceparent"), span.SpanContext().TraceID().String())

	SetError(ctx, errors.New("connection refused"))
	SetError(ctx, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "directory.ListRoutes", got.Name())
	assert.Equal(t, trace.SpanKindClient, got.SpanKind())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "connection refused", got.Status().Description)
	require.Len(t, got.Events(), 1)

	peer, ok := attrValue(got.Attributes(), "peer.service")
	require.True(t, ok)
	assert.Equal(t, "directory", peer)
	_, ok = attrValue(got.Attributes(), "url.full")
	assert.True(t, ok)
}
