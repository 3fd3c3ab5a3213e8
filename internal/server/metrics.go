package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calm-cli/calm/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the listener address suggested by serve --help.
	DefaultMetricsAddr = "127.0.0.1:9090"

	// DefaultShutdownTimeout bounds graceful shutdown of the HTTP listeners.
	DefaultShutdownTimeout = 5 * time.Second

	metricsReadHeaderTimeout = 10 * time.Second
	metricsWriteTimeout      = 10 * time.Second
	metricsIdleTimeout       = 60 * time.Second
)

// MetricsServerConfig configures a MetricsServer.
type MetricsServerConfig struct {
	// Addr defaults to DefaultMetricsAddr.
	Addr string

	// InstrumentationProvider must be enabled. Its Prometheus exporter feeds
	// the default registry behind /metrics.
	InstrumentationProvider *instrumentation.Provider

	// Health serves the probes. A checker without a server context is used
	// when nil.
	Health *HealthChecker

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// MetricsServer serves /metrics and the health probes next to the MCP
// transport.
type MetricsServer struct {
	srv    *http.Server
	health *HealthChecker
	logger *slog.Logger
}

// NewMetricsServer validates config and builds the listener without starting it.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	switch {
	case config.InstrumentationProvider == nil:
		return nil, errors.New("instrumentation provider is required for metrics server")
	case !config.InstrumentationProvider.Enabled():
		return nil, errors.New("instrumentation provider is not enabled")
	}
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Health == nil {
		config.Health = NewHealthChecker(nil, "")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	config.Health.RegisterHealthEndpoints(mux)

	return &MetricsServer{
		srv: &http.Server{
			Addr:              config.Addr,
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
			WriteTimeout:      metricsWriteTimeout,
			IdleTimeout:       metricsIdleTimeout,
		},
		health: config.Health,
		logger: config.Logger,
	}, nil
}

// Handler returns the mux serving /metrics and the probes.
func (s *MetricsServer) Handler() http.Handler {
	return s.srv.Handler
}

// Addr returns the listen address.
func (s *MetricsServer) Addr() string {
	return s.srv.Addr
}

// Start blocks serving until Shutdown. It returns http.ErrServerClosed after
// a clean shutdown.
func (s *MetricsServer) Start() error {
	s.logger.Info("starting metrics server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown marks the server not ready and drains open connections. It is
// safe to call without Start.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.logger.Info("shutting down metrics server")
	return s.srv.Shutdown(ctx)
}
