package instrumentation

import (
	"fmt"
	"slices"
	"time"
)

// Config selects the exporters and audit behaviour of a Provider.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Enabled turns on metrics, tracing and audit logging. The CLI leaves it
	// off unless instrumentation.enabled is set.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp, stdout or none.
	MetricsExporter string
	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme, e.g. localhost:4318.
	OTLPEndpoint string
	// OTLPInsecure sends OTLP over plain HTTP. Spans carry event ids.
	OTLPInsecure bool

	TraceSamplingRate float64

	// DetailedLabels adds the model name to completion metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the tool-call audit log.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludeArguments records raw tool arguments, which hold event titles
	// and descriptions.
	IncludeArguments bool
}

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout, ExporterNone}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// DefaultConfig returns a disabled Config whose other fields are usable
// once Enabled is switched on.
func DefaultConfig() Config {
	return Config{
		ServiceName:       "calm",
		ServiceVersion:    "unknown",
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 1.0,
		AuditLogging:      AuditLoggingConfig{Enabled: true},
	}
}

// Validate reports the first invalid setting. Empty exporter names mean the
// default.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: %v", c.MetricsExporter, metricsExporters)
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: %v", c.TracingExporter, tracingExporters)
	}
	if c.OTLPEndpoint == "" && (c.MetricsExporter == ExporterOTLP || c.TracingExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when an exporter is %q", ExporterOTLP)
	}
	return nil
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// OAuth result values
	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	// Google service names
	ServiceCalendar = "calendar"

	// Completion modes
	ModeComplete = "complete"
	ModeStream   = "stream"

	// Agent run outcomes
	OutcomeFinal     = "final"
	OutcomeExhausted = "exhausted"
	OutcomeAborted   = "aborted"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// Metric recording intervals
	DefaultMetricInterval = 10 * time.Second
)
