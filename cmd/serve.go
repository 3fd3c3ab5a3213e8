package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/logging"
	"github.com/calm-cli/calm/internal/resources"
	"github.com/calm-cli/calm/internal/server"
	"github.com/calm-cli/calm/internal/tools/calendar_tools"
	"github.com/calm-cli/calm/internal/tools/executor"
	"github.com/calm-cli/calm/internal/tools/google_tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
	defaultHTTPAddr         = "127.0.0.1:8080"
)

type serveOptions struct {
	transport   string
	httpAddr    string
	yolo        bool
	metricsAddr string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server, exposing the calendar tools
to AI assistants.

Transports:
  stdio            Standard input/output (default)
  streamable-http  Streamable HTTP on --http-addr at /mcp. There is no client
                   authentication; keep it on a loopback address.

Safety Mode:
  By default, the server operates in read-only mode and only offers
  list_events_between. Use --yolo to enable create, update and delete.

Authorization:
  The server never opens a browser. Run "calm configure oauth" first, or
  let the assistant use google_get_auth_url and google_save_auth_code.

Resources:
  calm://settings reports the time zone and local time; calendar://today
  lists today's events.

Metrics:
  --metrics-addr starts a Prometheus /metrics and /healthz listener. It
  requires instrumentation.enabled with the prometheus exporter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", defaultHTTPAddr, "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Enable write operations (create, update, delete). Default is read-only mode.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Metrics server address, e.g. "+server.DefaultMetricsAddr+" (disabled when empty)")
	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	if opts.transport != transportStdio && opts.transport != transportStreamableHTTP {
		return fmt.Errorf("unsupported transport: %s (supported: %s, %s)", opts.transport, transportStdio, transportStreamableHTTP)
	}
	readOnly := !opts.yolo

	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	serverContext := server.NewServerContext(ctx, rt.cfg, nil,
		server.WithLogger(rt.logger),
		server.WithInstrumentation(rt.metrics(), rt.audit),
		server.WithStoreFactory(func(ctx context.Context) (executor.Store, error) {
			return storeFactory(ctx, cmd, rt, false)
		}),
	)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			rt.logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	if opts.metricsAddr != "" {
		stop, err := startMetricsServer(rt, serverContext, opts.metricsAddr)
		if err != nil {
			return err
		}
		defer stop()
	}

	mcpSrv := newMCPServer()
	if err := registerTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}
	if err := resources.RegisterCalendarResources(mcpSrv, serverContext, time.Now); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}
	rt.logger.Info("starting MCP server", "transport", opts.transport, "read_only", readOnly)

	if opts.transport == transportStreamableHTTP {
		return runStreamableHTTPServer(ctx, mcpSrv, opts.httpAddr, rt)
	}
	return runStdioServer(ctx, mcpSrv)
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("calm", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)
}

// registerTools adds the OAuth tools and the calendar tools; calendar write
// tools only when readOnly is false.
func registerTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := google_tools.RegisterGoogleTools(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register Google tools: %w", err)
	}
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}
	return nil
}

// runStdioServer serves until stdin closes or ctx is cancelled.
func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// runStreamableHTTPServer serves /mcp on addr until ctx is cancelled.
func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr string, rt *runtime) error {
	httpSrv := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		rt.logger.Info("streamable HTTP server listening", "addr", addr, "endpoint", "/mcp")
		if err := httpSrv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
		return nil
	}
}

// startMetricsServer starts the /metrics listener and returns a function
// that stops it.
func startMetricsServer(rt *runtime, sc *server.ServerContext, addr string) (func(), error) {
	if !rt.provider.PrometheusEnabled() {
		return nil, fmt.Errorf("--metrics-addr requires instrumentation.enabled with metrics_exporter %q", instrumentation.ExporterPrometheus)
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: rt.provider,
		Health:                  server.NewHealthChecker(sc, version),
		Logger:                  rt.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server failed", logging.Err(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			rt.logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
	}, nil
}
