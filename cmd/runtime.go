package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calm-cli/calm/internal/calendar"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/google"
	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/llm"
	"github.com/calm-cli/calm/internal/logging"
	"github.com/calm-cli/calm/internal/tools/executor"
)

// runtime bundles what every command needs: the loaded configuration, the
// logger and the instrumentation provider.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	audit    *instrumentation.AuditLogger
}

// storeFactory builds the calendar store. Tests replace it with a fake.
var storeFactory = func(ctx context.Context, cmd *cobra.Command, rt *runtime, interactive bool) (executor.Store, error) {
	opts := []google.ProviderOption{
		google.WithProviderMetrics(rt.metrics()),
		google.WithProviderLogger(rt.logger),
	}
	if interactive {
		opts = append(opts, google.WithInteractive(cmd.ErrOrStderr(), google.OpenBrowser))
	}
	return calendar.NewClient(ctx, rt.cfg, google.NewFileTokenProvider(rt.cfg, opts...),
		calendar.WithMetrics(rt.metrics()),
		calendar.WithLogger(rt.logger))
}

// engineFactory builds the completion engine. Tests replace it with a fake.
var engineFactory = func(rt *runtime, apiKey, model string) (llm.Engine, error) {
	return llm.NewOpenAI(llm.Config{
		APIKey:  apiKey,
		BaseURL: rt.cfg.Agent.BaseURL,
		Model:   model,
	}, llm.WithMetrics(rt.metrics()), llm.WithLogger(rt.logger))
}

// loadRuntime reads the configuration with the global flags bound over the
// file and environment.
func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	v := viper.New()
	root := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"timezone":   "timezone",
		"log.level":  "log-level",
		"log.format": "log-format",
	} {
		if f := root.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}
	configFile, _ := root.GetString("config")

	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Enabled = cfg.Instrumentation.Enabled
	instrConfig.MetricsExporter = cfg.Instrumentation.MetricsExporter
	instrConfig.TracingExporter = cfg.Instrumentation.TracingExporter
	instrConfig.OTLPEndpoint = cfg.Instrumentation.OTLPEndpoint
	instrConfig.OTLPInsecure = cfg.Instrumentation.OTLPInsecure
	instrConfig.TraceSamplingRate = cfg.Instrumentation.SamplingRate
	instrConfig.AuditLogging.Enabled = cfg.Instrumentation.Enabled

	provider, err := instrumentation.NewProvider(cmd.Context(), instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		audit:    instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging),
	}, nil
}

func (rt *runtime) metrics() *instrumentation.Metrics {
	if rt.provider == nil {
		return nil
	}
	return rt.provider.Metrics()
}

// Close flushes instrumentation. It uses a fresh context so an interrupted
// command still exports what it recorded.
func (rt *runtime) Close() {
	if rt.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.provider.Shutdown(ctx); err != nil {
		rt.logger.Warn("instrumentation shutdown failed", logging.Err(err))
	}
}
