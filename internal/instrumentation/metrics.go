package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrKind      = "kind"
	attrMode      = "mode"
	attrModel     = "model"
	attrOutcome   = "outcome"
)

var (
	apiBuckets        = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
	completionBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0}
)

// timed is a counter and a duration histogram recorded with the same labels.
type timed struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func (t timed) record(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	if t.total == nil {
		return
	}
	opt := metric.WithAttributes(attrs...)
	t.total.Add(ctx, 1, opt)
	t.duration.Record(ctx, d.Seconds(), opt)
}

// Metrics records calm's metrics. The zero value and a nil *Metrics are
// valid no-op recorders.
type Metrics struct {
	googleAPI  timed
	tools      timed
	completion timed

	oauthAuth    metric.Int64Counter
	oauthRefresh metric.Int64Counter
	agentRuns    metric.Int64Counter

	// detailedLabels adds the model label to completion metrics
	detailedLabels bool
}

// instruments creates instruments on meter and collects every error.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		in.err = errors.Join(in.err, fmt.Errorf("failed to create %s counter: %w", name, err))
	}
	return c
}

func (in *instruments) pair(prefix, what, unit string, buckets []float64) timed {
	h, err := in.meter.Float64Histogram(prefix+"_duration_seconds",
		metric.WithDescription(what+" duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		in.err = errors.Join(in.err, fmt.Errorf("failed to create %s_duration_seconds histogram: %w", prefix, err))
	}
	return timed{
		total:    in.counter(prefix+"s_total", "Total number of "+what+"s", unit),
		duration: h,
	}
}

// NewMetrics creates every instrument on meter.
//
// Instruments:
//   - google_api_operations_total, google_api_operation_duration_seconds
//   - calm_tool_invocations_total, calm_tool_invocation_duration_seconds
//   - llm_completions_total, llm_completion_duration_seconds
//   - oauth_auth_total, oauth_token_refresh_total
//   - agent_runs_total
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	in := &instruments{meter: meter}
	m := &Metrics{
		googleAPI:  in.pair("google_api_operation", "Google API operation", "{operation}", apiBuckets),
		tools:      in.pair("calm_tool_invocation", "calendar tool invocation", "{invocation}", apiBuckets),
		completion: in.pair("llm_completion", "completion request", "{request}", completionBuckets),

		oauthAuth:    in.counter("oauth_auth_total", "Total number of OAuth authorization flows", "{attempt}"),
		oauthRefresh: in.counter("oauth_token_refresh_total", "Total number of OAuth token refresh attempts", "{attempt}"),
		agentRuns:    in.counter("agent_runs_total", "Total number of agent runs by outcome", "{run}"),

		detailedLabels: detailedLabels,
	}
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// RecordGoogleAPIOperation records one Calendar API call.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.googleAPI.record(ctx, duration,
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
}

// RecordOAuthAuth records an authorization flow: "success" or "failure".
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuth == nil {
		return
	}
	m.oauthAuth.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a refresh: "success", "failure" or "expired".
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthRefresh == nil {
		return
	}
	m.oauthRefresh.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records one tool call. kind is empty on success.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(attrKind, kind))
	}
	m.tools.record(ctx, duration, attrs...)
}

// RecordCompletion records one engine request. The model label is only
// added with detailed labels.
func (m *Metrics) RecordCompletion(ctx context.Context, mode, model, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrMode, mode),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels {
		attrs = append(attrs, attribute.String(attrModel, BoundLabel(model)))
	}
	m.completion.record(ctx, duration, attrs...)
}

// RecordAgentRun records a finished agent run by outcome.
func (m *Metrics) RecordAgentRun(ctx context.Context, outcome string) {
	if m == nil || m.agentRuns == nil {
		return
	}
	m.agentRuns.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}
