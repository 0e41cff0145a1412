// Package health provides health checking and HTTP endpoints for the MCP server.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// checkTimeout bounds a /health request, which probes the cluster.
const checkTimeout = 10 * time.Second

// Server serves probe endpoints next to the stdio MCP session:
//
//	/health   cluster reachability and configuration
//	/ready    200 once the MCP session is being served
//	/live     200 while the process runs
//	/metrics  Prometheus exposition, when a registry is given
type Server struct {
	checker    *Checker
	logger     *zap.Logger
	registry   *prometheus.Registry
	httpServer *http.Server
	ready      atomic.Bool
}

// Response is the body of /health.
type Response struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// NewServer creates a probe server on bindAddr:port, bindAddr defaulting to
// loopback. A nil registry disables /metrics.
func NewServer(checker *Checker, logger *zap.Logger, port int, bindAddr string, registry *prometheus.Registry) *Server {
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	s := &Server{
		checker:  checker,
		logger:   logger.Named("health"),
		registry: registry,
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(bindAddr, strconv.Itoa(port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      checkTimeout + 5*time.Second,
		IdleTimeout:       time.Minute,
	}
	return s
}

// Handler returns the mux serving the probe endpoints. Methods other than
// GET are answered with 405 by the mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /live", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting health HTTP server",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("metrics_enabled", s.registry != nil),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down health HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status, checks := s.checker.CheckAll(ctx)
	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, Response{Status: status, Timestamp: time.Now().UTC(), Checks: checks})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to write probe response", zap.Error(err))
	}
}
