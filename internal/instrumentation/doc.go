// Package instrumentation provides OpenTelemetry instrumentation for calm.
//
// Instrumentation is off by default so the CLI stays quiet; it is enabled
// through the instrumentation.* configuration keys or for long-running
// `calm serve` sessions.
//
// # Metrics
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Calendar API operations by operation and status
//   - google_api_operation_duration_seconds: Histogram of Calendar API operation durations
//
// OAuth Metrics:
//   - oauth_auth_total: Counter of interactive authorization flows by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Tool Metrics:
//   - calm_tool_invocations_total: Counter of tool invocations by tool, status and kind
//   - calm_tool_invocation_duration_seconds: Histogram of tool execution durations
//
// Completion Engine Metrics:
//   - llm_completions_total: Counter of completion requests by mode and status
//   - llm_completion_duration_seconds: Histogram of completion request durations
//
// Agent Metrics:
//   - agent_runs_total: Counter of agent runs by outcome (final, exhausted, aborted)
//
// # Tracing
//
// Spans are created for agent runs, every completion request (llm.<mode>),
// tool invocations (tool.<name>) and Calendar API calls
// (google.calendar.<operation>).
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:     "calm",
//		ServiceVersion:  version,
//		Enabled:         true,
//		MetricsExporter: instrumentation.ExporterPrometheus,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordGoogleAPIOperation(ctx, "calendar", "list", "success", time.Since(start))
package instrumentation
