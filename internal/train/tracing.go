package train

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation name of the epoch runners' spans.
const TracerName = "github.com/born-ml/born-train/internal/train"

// Span names recorded by TrainEpoch.
const (
	SpanTrainEpoch = "train epoch"
	SpanTrainStep  = "train step"
	SpanAccumulate = "accumulate"
	SpanOptimize   = "optimize"
	SpanProcess    = "process train"
)

func tracerOrNoop(t trace.Tracer) trace.Tracer {
	if t == nil {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return t
}

func (e *TrainEpoch[TI, TO]) startEpochSpan(devices int) (context.Context, trace.Span) {
	return e.tracer.Start(context.Background(), SpanTrainEpoch, trace.WithAttributes(
		attribute.Int("epoch", e.epoch),
		attribute.Int("epoch_total", e.epochTotal),
		attribute.Int("devices", devices),
	))
}

func (e *TrainEpoch[TI, TO]) span(ctx context.Context, name string, iteration int) trace.Span {
	_, span := e.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("iteration", iteration)))
	return span
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
