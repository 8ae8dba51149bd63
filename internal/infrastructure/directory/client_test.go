package directory_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/directory"
	"github.com/japbujan/rork-winking-owl-audits-api/pkg/circuitbreaker"
)

func testCreds() identity.Credentials {
	return identity.Credentials{
		Token: "tok-123",
		Claims: identity.ClaimsFromMap(map[string]any{
			"sub":              "user-1",
			"cognito:username": "jdoe",
			"custom:language":  "es",
		}),
	}
}

func newClient(t *testing.T, srv *httptest.Server, opts ...directory.Option) *directory.Client {
	t.Helper()
	c, err := directory.NewClient(config.DirectoryConfig{BaseURL: srv.URL, Timeout: time.Second}, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_ListRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/route-service/route", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var authUser map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get(directory.AuthUserHeader)), &authUser))
		assert.Equal(t, "user-1", authUser["sub"])
		assert.Equal(t, "jdoe", authUser["name"])
		assert.Equal(t, "es", authUser["custom:language"])
		assert.NotContains(t, authUser, "custom:theme")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"_id": "a1", "name": "Alpha", "isInTracking": true, "lastExecution": "2024-06-01T10:00:00Z"},
			{"id": "b2", "name": "Beta", "isInTracking": false},
			{"id": "c3", "name": "Gamma"},
			{"name": "no id"}
		]`))
	}))
	defer srv.Close()

	routes, err := newClient(t, srv).ListRoutes(context.Background(), testCreds())
	require.NoError(t, err)
	require.Len(t, routes, 3)

	assert.Equal(t, "a1", routes[0].ID)
	assert.True(t, routes[0].InTracking)
	require.NotNil(t, routes[0].LastExecution)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), routes[0].LastExecution.UTC())

	assert.Equal(t, "b2", routes[1].ID)
	assert.False(t, routes[1].InTracking)
	assert.False(t, routes[2].InTracking, "missing flag means not tracked")
	assert.Nil(t, routes[2].LastExecution)
}

func TestClient_ListRoutes_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).ListRoutes(context.Background(), testCreds())
	require.Error(t, err)
	assert.ErrorIs(t, err, audit.ErrDirectoryUnavailable)

	var statusErr *directory.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
}

func TestClient_ListRoutes_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv).ListRoutes(context.Background(), testCreds())
	assert.ErrorIs(t, err, audit.ErrDirectoryUnavailable)
}

func TestClient_ListRoutes_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	settings := circuitbreaker.DefaultSettings("test-directory")
	settings.MaxFailures = 2
	client := newClient(t, srv, directory.WithBreaker(circuitbreaker.New(settings)))

	for i := 0; i < 4; i++ {
		_, err := client.ListRoutes(context.Background(), testCreds())
		assert.ErrorIs(t, err, audit.ErrDirectoryUnavailable)
	}

	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ListRoutes_CallerErrorsKeepCircuitClosed(t *testing.T) {
	var goodCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer expired" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		goodCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": "a1", "name": "Alpha", "isInTracking": true}]`))
	}))
	defer srv.Close()

	client := newClient(t, srv)

	expired := testCreds()
	expired.Token = "expired"
	for i := 0; i < 10; i++ {
		_, err := client.ListRoutes(context.Background(), expired)
		var statusErr *directory.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	}

	routes, err := client.ListRoutes(context.Background(), testCreds())
	require.NoError(t, err)
	assert.Len(t, routes, 1)
	assert.Equal(t, int32(1), goodCalls.Load())
	assert.NoError(t, client.Ready(context.Background()))
}

func TestIsBreakerFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "unauthorized", err: &directory.StatusError{Status: http.StatusUnauthorized}, want: false},
		{name: "forbidden wrapped", err: fmt.Errorf("fetch: %w", &directory.StatusError{Status: http.StatusForbidden}), want: false},
		{name: "bad gateway", err: &directory.StatusError{Status: http.StatusBadGateway}, want: true},
		{name: "transport", err: errors.New("connection refused"), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, directory.IsBreakerFailure(tt.err))
		})
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := directory.NewClient(config.DirectoryConfig{})
	assert.Error(t, err)
}

func TestClient_Ready(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	settings := circuitbreaker.DefaultSettings("ready-directory")
	settings.MaxFailures = 1
	settings.Timeout = time.Hour
	client := newClient(t, srv, directory.WithBreaker(circuitbreaker.New(settings)))

	require.NoError(t, client.Ready(context.Background()))

	_, err := client.ListRoutes(context.Background(), testCreds())
	require.Error(t, err)

	err = client.Ready(context.Background())
	assert.ErrorIs(t, err, audit.ErrDirectoryUnavailable)
}
