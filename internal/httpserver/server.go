package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/httpserver/middleware"
	"github.com/davidbz/ember/internal/metrics"
	"github.com/davidbz/ember/internal/observability"
)

const metricsReadTimeout = 10 * time.Second

// Server represents an HTTP listener with graceful shutdown.
type Server struct {
	name string
	srv  *http.Server
}

// NewServer creates the API server.
func NewServer(
	cfg *config.ServerConfig,
	handler *Handler,
	middlewares middleware.Middleware,
) *Server {
	return &Server{
		name: "api",
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           NewRouter(handler, middlewares),
			ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
			ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server",
		observability.String("server", s.name),
		observability.String("addr", s.srv.Addr),
	)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server failed: %w", s.name, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server", observability.String("server", s.name))

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown %s server: %w", s.name, err)
	}

	return nil
}

// MetricsServer exposes /metrics on its own port.
type MetricsServer struct {
	*Server
}

// NewMetricsServer creates the Prometheus scrape server.
func NewMetricsServer(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, registry *metrics.Registry) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	return &MetricsServer{
		Server: &Server{
			name: "metrics",
			srv: &http.Server{
				Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(metricsCfg.Port)),
				Handler:           mux,
				ReadHeaderTimeout: metricsReadTimeout,
			},
		},
	}
}
