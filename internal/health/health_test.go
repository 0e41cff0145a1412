package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/client"
	"github.com/croit/mcp-croit-ceph/internal/config"
)

func newTestChecker(t *testing.T, status int) *Checker {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/swagger.json", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"openapi": "3.0.1"}`))
	}))
	t.Cleanup(api.Close)

	c, err := client.New(&config.Config{
		Host:     api.URL,
		APIToken: "test-api-token", // pragma: allowlist secret
		Timeout:  2 * time.Second,
	}, zap.NewNop(), "test")
	require.NoError(t, err)
	return New(c, zap.NewNop())
}

func TestCheckAll(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Status
	}{
		{"reachable", http.StatusOK, StatusHealthy},
		{"token rejected", http.StatusUnauthorized, StatusUnhealthy},
		{"not found", http.StatusNotFound, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, checks := newTestChecker(t, tt.status).CheckAll(context.Background())
			assert.Equal(t, tt.want, status)
			require.Len(t, checks, 2)
			assert.Equal(t, "configuration", checks[0].Name)
			assert.Equal(t, StatusHealthy, checks[0].Status)
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "test"}))
	s := NewServer(newTestChecker(t, http.StatusOK), zap.NewNop(), 0, "", registry)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.SetReady(true)
	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, StatusHealthy, body.Status)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/live", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
