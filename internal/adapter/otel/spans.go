package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskpad"

// StartAssistantSpan starts a span covering one assistant submission.
func StartAssistantSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "assistant.submit",
		trace.WithAttributes(attribute.String("assistant.session_id", sessionID)),
	)
}

// StartLLMSpan starts a span for a completion request.
func StartLLMSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "llm.completion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.model", model)),
	)
}

// StartActionSpan starts a span for an assistant action against the task store.
func StartActionSpan(ctx context.Context, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "assistant.action",
		trace.WithAttributes(attribute.String("assistant.action", action)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
