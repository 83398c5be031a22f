package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProcedureMeta identifies a remote procedure for telemetry purposes.
type ProcedureMeta struct {
	Path string   // Dotted procedure path, e.g. "post.byId"
	Kind string   // query|mutation|subscription
	Tags []string // Optional free-form tags
}

// SpanName returns the deterministic span name: rpc.<kind>.<path>.
func (m ProcedureMeta) SpanName() string {
	if m.Kind == "" {
		return "rpc." + m.Path
	}
	return "rpc." + m.Kind + "." + m.Path
}

func (m ProcedureMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("rpc.path", m.Path)}
	if m.Kind != "" {
		attrs = append(attrs, attribute.String("rpc.kind", m.Kind))
	}
	if len(m.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("rpc.tags", m.Tags))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with per-procedure span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a client span for a procedure call.
	StartSpan(ctx context.Context, meta ProcedureMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error. Cancellation is recorded
	// as an event rather than an error status.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ProcedureMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled):
		span.AddEvent("canceled")
	default:
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("rpc.error", true))
		span.RecordError(err)
	}
	span.End()
}
