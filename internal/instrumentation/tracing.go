package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer every calm span is started from.
const TracerName = "github.com/calm-cli/calm"

// Span attribute keys.
const (
	SpanAttrTool      = "calm.tool"
	SpanAttrEventID   = "calm.event_id"
	SpanAttrStep      = "calm.step"
	SpanAttrReadOnly  = "calm.read_only"
	SpanAttrErrorKind = "calm.error_kind"

	SpanAttrService   = "google.service"
	SpanAttrOperation = "google.operation"

	SpanAttrModel = "llm.model"
	SpanAttrMode  = "llm.mode"
)

// SpanAttributeBuilder collects span attributes, skipping empty strings.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder returns an empty builder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{}
}

func (b *SpanAttributeBuilder) str(key, value string) *SpanAttributeBuilder {
	if value != "" {
		b.attrs = append(b.attrs, attribute.String(key, value))
	}
	return b
}

// WithTool sets calm.tool.
func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	return b.str(SpanAttrTool, tool)
}

// WithEventID sets calm.event_id.
func (b *SpanAttributeBuilder) WithEventID(id string) *SpanAttributeBuilder {
	return b.str(SpanAttrEventID, id)
}

// WithStep sets calm.step, the 1-based agent round-trip.
func (b *SpanAttributeBuilder) WithStep(step int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrStep, step))
	return b
}

// WithModel sets llm.model.
func (b *SpanAttributeBuilder) WithModel(model string) *SpanAttributeBuilder {
	return b.str(SpanAttrModel, model)
}

// WithReadOnly sets calm.read_only.
func (b *SpanAttributeBuilder) WithReadOnly(readOnly bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrReadOnly, readOnly))
	return b
}

// Build returns the collected attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

func start(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

// StartSpan starts an internal span. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindInternal, attrs)
}

// StartToolSpan starts the span "tool.<name>" for one tool call.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, "tool."+toolName, trace.SpanKindInternal,
		append(NewSpanAttributeBuilder().WithTool(toolName).Build(), attrs...))
}

// StartGoogleAPISpan starts the client span "google.<service>.<operation>".
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	}
	return start(ctx, "google."+service+"."+operation, trace.SpanKindClient, append(base, attrs...))
}

// StartCompletionSpan starts the client span "llm.<mode>" for one engine request.
func StartCompletionSpan(ctx context.Context, mode, model string) (context.Context, trace.Span) {
	return start(ctx, "llm."+mode, trace.SpanKindClient, []attribute.KeyValue{
		attribute.String(SpanAttrMode, mode),
		attribute.String(SpanAttrModel, model),
	})
}

// SetSpanError records err and marks the span failed. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanSuccess marks the span OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds a named event to the span.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace id of the span in ctx, or "" when there is
// no recording span.
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID is GetTraceID for the span id.
func GetSpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}
