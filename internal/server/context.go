package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/calm-cli/calm/internal/calendar"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/google"
	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/logging"
	"github.com/calm-cli/calm/internal/tools/common"
	"github.com/calm-cli/calm/internal/tools/executor"
)

// StoreFactory creates the calendar store backing the tool executor.
type StoreFactory func(ctx context.Context) (executor.Store, error)

// ServerContext holds the dependencies shared by every MCP request.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg     *config.Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	newStore StoreFactory
	executor executor.ToolExecutor

	mu       sync.RWMutex
	shutdown bool
}

// Option customizes a ServerContext.
type Option func(*ServerContext)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = l }
}

// WithInstrumentation records tool calls on metrics and audit.
func WithInstrumentation(metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) {
		sc.metrics = metrics
		sc.audit = audit
	}
}

// WithStoreFactory replaces the Google Calendar client, e.g. with a fake.
func WithStoreFactory(f StoreFactory) Option {
	return func(sc *ServerContext) { sc.newStore = f }
}

// NewServerContext creates a new server context. The calendar client is
// created on first use, so the server starts even before authorization.
func NewServerContext(ctx context.Context, cfg *config.Config, provider google.TokenProvider, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		cfg:    cfg,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(sc)
	}

	if sc.newStore == nil {
		sc.newStore = func(ctx context.Context) (executor.Store, error) {
			return calendar.NewClient(ctx, cfg, provider,
				calendar.WithMetrics(sc.metrics),
				calendar.WithLogger(sc.logger))
		}
	}
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the configuration the server was started with.
func (sc *ServerContext) Config() *config.Config {
	return sc.cfg
}

// Metrics returns the metrics recorder, possibly nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, possibly nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// Executor returns the shared tool executor, creating the calendar client on
// first use. A failed creation is not cached so a later call can succeed
// once the user has authorized.
func (sc *ServerContext) Executor() (executor.ToolExecutor, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, fmt.Errorf("server is shutting down")
	}
	if sc.executor != nil {
		return sc.executor, nil
	}

	store, err := sc.newStore(sc.ctx)
	if err != nil {
		sc.logger.Warn("failed to create calendar client", logging.Err(err))
		return nil, err
	}

	sc.executor = common.NewInstrumentedExecutor(
		executor.New(store, sc.cfg, executor.WithLogger(sc.logger)),
		sc.metrics, sc.audit, common.OriginMCP,
	)
	return sc.executor, nil
}

// CalendarReady reports whether the calendar client has been created.
func (sc *ServerContext) CalendarReady() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.executor != nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
