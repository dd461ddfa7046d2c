package core

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for dispatch spans.
const tracerName = "github.com/Swind/go-thread-manager"

// defaultTracer returns the global tracer. Without a configured
// TracerProvider it is a no-op and spans cost nothing.
func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startDispatchSpan opens the span that wraps one job function call.
func startDispatchSpan(ctx context.Context, tracer trace.Tracer, family string, job *RuntimeJob) (context.Context, trace.Span) {
	return tracer.Start(ctx, "threadmanager.job.dispatch",
		trace.WithAttributes(
			attribute.String("threadmanager.family", family),
			attribute.String("threadmanager.handle", job.Handle.String()),
			attribute.String("threadmanager.request_id", strconv.FormatUint(job.RequestID, 10)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func endDispatchSpan(span trace.Span, err error, panicked bool) {
	defer span.End()

	switch {
	case panicked:
		span.SetAttributes(attribute.Bool("threadmanager.panicked", true))
		span.SetStatus(codes.Error, "job panicked")
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}
}
