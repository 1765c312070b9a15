package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskbridge"

// StartTaskSpan starts a span covering one tool execution.
func StartTaskSpan(ctx context.Context, taskID, traceID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.trace_id", traceID),
			attribute.String("task.tool", tool),
		),
	)
}

// StartDelegationSpan starts a span for a streaming call to a remote agent.
func StartDelegationSpan(ctx context.Context, tool, endpoint string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delegation",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("delegation.tool", tool),
			attribute.String("delegation.endpoint", endpoint),
		),
	)
}

// StartConsumeSpan starts a span for handling one broker delivery.
func StartConsumeSpan(ctx context.Context, subject string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination", subject)),
	)
}
