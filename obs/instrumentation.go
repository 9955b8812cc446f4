package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OperationRecorder encapsulates per-operation tracing/metrics bookkeeping.
type OperationRecorder struct {
	start time.Time
	span  trace.Span
	attrs []attribute.KeyValue
}

// StartOperation starts a span covering one analysis operation from submit
// to settlement.
func StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *OperationRecorder) {
	tracer := Tracer()
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &OperationRecorder{start: time.Now(), span: span, attrs: attrs}
}

// End finalizes span/metrics for the operation. status is the terminal
// status and finalProgress the last progress value observed before
// settlement.
func (r *OperationRecorder) End(err error, status string, finalProgress int) {
	if r == nil {
		return
	}
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	}
	if status != "" {
		r.span.SetAttributes(attribute.String("analysis.status", status))
		recordOperation(status, r.attrs...)
	}
	latency := time.Since(r.start).Seconds() * 1000
	recordLatency(latency, r.attrs...)
	recordFinalProgress(finalProgress, r.attrs...)
	r.span.End()
}

// AddAttributes appends attributes to both span and subsequent metrics.
func (r *OperationRecorder) AddAttributes(attrs ...attribute.KeyValue) {
	if r == nil {
		return
	}
	r.attrs = append(r.attrs, attrs...)
	r.span.SetAttributes(attrs...)
}
