package memory

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const memoryTracerName = "convmem.memory"

const (
	spanRecord       = "memory.record"
	spanNewSession   = "memory.session.rotate"
	spanFeedback     = "memory.feedback"
	spanBuildContext = "memory.context.build"
	spanExport       = "memory.export"
	spanErase        = "memory.erase"
	spanSummarize    = "memory.analytics.summarize"
)

func memoryTracer() trace.Tracer {
	return otel.Tracer(memoryTracerName)
}

func startSpan(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return memoryTracer().Start(ctx, name, trace.WithAttributes(attribute.String("memory.user_id", userID)))
}

func endSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(otelcodes.Ok, "ok")
		return
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}
