package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is reported by /healthz
type Status struct {
	State      string `json:"state"`
	QueueDepth int    `json:"queue_depth"`
	QueueLimit int    `json:"queue_limit"`
	Dropped    uint64 `json:"dropped_batches"`
}

// StatusFunc returns the current pipeline status
type StatusFunc func() Status

// Server serves metrics and health endpoints
type Server struct {
	addr     string
	registry *prometheus.Registry
	status   StatusFunc
	logger   *slog.Logger
	srv      *http.Server
}

// New creates a new web server
func New(addr string, registry *prometheus.Registry, status StatusFunc, logger *slog.Logger) *Server {
	s := &Server{
		addr:     addr,
		registry: registry,
		status:   status,
		logger:   logger,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info("Metrics server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleHealth handles /healthz requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	w.Header().Set("Content-Type", "application/json")
	if st.State != "running" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(st)
}
