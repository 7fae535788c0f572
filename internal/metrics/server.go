package metrics

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/argo-trader/internal/engine"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"go.uber.org/zap"
)

// StatusFunc returns the latest engine status, nil before the first cycle.
type StatusFunc func() *engine.Status

// Server serves /metrics, /state and /healthz.
type Server struct {
	metrics    *Metrics
	status     StatusFunc
	log        *logger.Logger
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a Server. Start binds it.
func NewServer(m *Metrics, status StatusFunc, log *logger.Logger) *Server {
	return &Server{
		metrics:    m,
		status:     status,
		log:        log,
		httpServer: nil,
		listener:   nil,
	}
}

// Handler returns the router with every endpoint.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return router
}

// Start listens on address and serves in the background. An empty address or
// ":0" picks a free port.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to listen on %s", address)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	s.log.Info("Metrics server listening", zap.String("address", listener.Addr().String()))

	return nil
}

// Address returns the bound address, empty before Start.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := s.status()
	if status == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no cycle completed yet"})

		return
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.log.Warn("Failed to encode state", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok\n"))
}
