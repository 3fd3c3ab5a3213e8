package common

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"

	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/tools/catalog"
	"github.com/calm-cli/calm/internal/tools/executor"
)

// Origins of a tool call, recorded in the audit log.
const (
	OriginAgent = "agent"
	OriginMCP   = "mcp"
)

// InstrumentedExecutor wraps a tool executor with metrics, a span per call
// and audit logging. A nil metrics or audit logger disables that part.
type InstrumentedExecutor struct {
	next    executor.ToolExecutor
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	origin  string
}

// NewInstrumentedExecutor wraps next.
//
// Usage:
//
//	ex := common.NewInstrumentedExecutor(executor.New(client, cfg), metrics, audit, common.OriginAgent)
func NewInstrumentedExecutor(next executor.ToolExecutor, metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger, origin string) *InstrumentedExecutor {
	return &InstrumentedExecutor{
		next:    next,
		metrics: metrics,
		audit:   audit,
		origin:  origin,
	}
}

// Execute runs the call through the wrapped executor and records it.
func (ie *InstrumentedExecutor) Execute(ctx context.Context, name string, args map[string]any) executor.Result {
	label := toolLabel(name)
	attrs := instrumentation.NewSpanAttributeBuilder().
		WithReadOnly(readOnly(name))
	if id, ok := args["event_id"].(string); ok {
		attrs.WithEventID(id)
	}
	ctx, span := instrumentation.StartToolSpan(ctx, label, attrs.Build()...)
	defer span.End()

	invocation := instrumentation.NewToolInvocation(name).
		WithOrigin(ie.origin).
		WithSpanContext(ctx)
	if raw, err := json.Marshal(args); err == nil {
		invocation.WithArguments(string(raw))
	}

	res := ie.next.Execute(ctx, name, args)

	kind := string(res.Kind())
	invocation.Complete(res.OK, kind, res.Err)

	if res.OK {
		instrumentation.SetSpanSuccess(span)
	} else {
		instrumentation.AddSpanEvent(span, "tool.failed", attribute.String(instrumentation.SpanAttrErrorKind, kind))
		instrumentation.SetSpanError(span, res.Err)
	}

	ie.metrics.RecordToolInvocation(ctx, label, invocation.Status(), kind, invocation.Duration)
	ie.audit.LogToolInvocation(invocation)

	return res
}

// toolLabel keeps model-invented tool names out of metric labels.
func toolLabel(name string) string {
	if _, ok := catalog.Lookup(name); ok {
		return name
	}
	return "unknown"
}

func readOnly(name string) bool {
	tool, ok := catalog.Lookup(name)
	return ok && tool.Annotations.ReadOnlyHint != nil && *tool.Annotations.ReadOnlyHint
}

var _ executor.ToolExecutor = (*InstrumentedExecutor)(nil)
