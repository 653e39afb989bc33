package observe

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/reqcore/resilience"
)

// CallMeta identifies one logical API call for telemetry purposes.
type CallMeta struct {
	Endpoint string // Logical endpoint name, e.g. "contacts"
	Method   string // HTTP method (optional)
	Path     string // Request path relative to the base URL (optional)
}

// SpanName returns the deterministic span name for this call.
// Format: api.call.<endpoint> or api.call
func (m CallMeta) SpanName() string {
	if m.Endpoint == "" {
		return "api.call"
	}
	return "api.call." + m.Endpoint
}

type callMetaKey struct{}

// ContextWithCallMeta returns a copy of ctx carrying meta.
func ContextWithCallMeta(ctx context.Context, meta CallMeta) context.Context {
	return context.WithValue(ctx, callMetaKey{}, meta)
}

// CallMetaFromContext returns the CallMeta stored by ContextWithCallMeta.
func CallMetaFromContext(ctx context.Context) (CallMeta, bool) {
	meta, ok := ctx.Value(callMetaKey{}).(CallMeta)
	return meta, ok
}

func (m CallMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("api.endpoint", m.Endpoint),
	}
	if m.Method != "" {
		attrs = append(attrs, attribute.String("http.request.method", m.Method))
	}
	if m.Path != "" {
		attrs = append(attrs, attribute.String("url.path", m.Path))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with per-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an API call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("api.error", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span. A status code carried by err is recorded as
// http.response.status_code.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("api.error", true))
		if code, ok := resilience.StatusCode(err); ok {
			span.SetAttributes(attribute.Int("http.response.status_code", code))
		}
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := resilience.StatusCode(err); ok {
		return strconv.Itoa(code)
	}
	if resilience.IsNetworkError(err) {
		return "network"
	}
	return "error"
}
