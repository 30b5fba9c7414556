package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fxding/forks/pkg/errdefs"
)

const defaultTracerName = "forks"

// Attribute keys used across spans.
var (
	SourceKey    = attribute.Key("forks.source")
	SkillKey     = attribute.Key("forks.skill")
	AgentKey     = attribute.Key("forks.agent")
	CountKey     = attribute.Key("forks.count")
	OperationKey = attribute.Key("forks.operation")
)

// Tracer returns a tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(defaultTracerName)
}

// WithSpan runs f inside a span named name. Errors mark the span failed,
// except cancellations which are recorded as an event only.
func WithSpan(ctx context.Context, name string, f func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	err := f(ctx)
	finish(span, err)
	return err
}

// WithSpanResult is WithSpan for functions returning a value.
func WithSpanResult[T any](ctx context.Context, name string, f func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	v, err := f(ctx)
	finish(span, err)
	return v, err
}

func finish(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errdefs.IsCancelled(err):
		span.AddEvent("cancelled")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds an event to the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
