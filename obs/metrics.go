package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce       sync.Once
	operationCounter  metric.Int64Counter
	latencyHistogram  metric.Float64Histogram
	retryCounter      metric.Int64Counter
	framesCounter     metric.Int64Counter
	skippedCounter    metric.Int64Counter
	progressHistogram metric.Int64Histogram

	bgOnce sync.Once
	bgCtx  context.Context
)

func installMetrics(m meter) {
	metricsOnce.Do(func() {
		if m == nil {
			return
		}
		operationCounter, _ = m.Int64Counter("ruleforge.operations", metric.WithDescription("Analysis operations by terminal status"))
		latencyHistogram, _ = m.Float64Histogram("ruleforge.operation.latency_ms", metric.WithDescription("Operation duration (ms)"))
		retryCounter, _ = m.Int64Counter("ruleforge.transport.retries", metric.WithDescription("Transport retries by reason"))
		framesCounter, _ = m.Int64Counter("ruleforge.frames.decoded", metric.WithDescription("Progress frames decoded"))
		skippedCounter, _ = m.Int64Counter("ruleforge.frames.skipped", metric.WithDescription("Malformed frames skipped"))
		progressHistogram, _ = m.Int64Histogram("ruleforge.operation.final_progress", metric.WithDescription("Progress value at settlement"))
	})
}

type meter interface {
	Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error)
	Float64Histogram(string, ...metric.Float64HistogramOption) (metric.Float64Histogram, error)
	Int64Histogram(string, ...metric.Int64HistogramOption) (metric.Int64Histogram, error)
}

func recordOperation(status string, attrs ...attribute.KeyValue) {
	if operationCounter != nil {
		all := append([]attribute.KeyValue{attribute.String("analysis.status", status)}, attrs...)
		operationCounter.Add(backgroundContext(), 1, metric.WithAttributes(all...))
	}
}

func recordLatency(ms float64, attrs ...attribute.KeyValue) {
	if latencyHistogram != nil {
		if len(attrs) > 0 {
			latencyHistogram.Record(backgroundContext(), ms, metric.WithAttributes(attrs...))
		} else {
			latencyHistogram.Record(backgroundContext(), ms)
		}
	}
}

func recordRetry(reason string) {
	if retryCounter != nil {
		retryCounter.Add(backgroundContext(), 1, metric.WithAttributes(attribute.String("retry.reason", reason)))
	}
}

func recordFrames(decoded, skipped int) {
	ctx := backgroundContext()
	if framesCounter != nil && decoded > 0 {
		framesCounter.Add(ctx, int64(decoded))
	}
	if skippedCounter != nil && skipped > 0 {
		skippedCounter.Add(ctx, int64(skipped))
	}
}

func recordFinalProgress(progress int, attrs ...attribute.KeyValue) {
	if progressHistogram != nil {
		if len(attrs) > 0 {
			progressHistogram.Record(backgroundContext(), int64(progress), metric.WithAttributes(attrs...))
		} else {
			progressHistogram.Record(backgroundContext(), int64(progress))
		}
	}
}

func backgroundContext() context.Context {
	bgOnce.Do(func() {
		bgCtx = context.Background()
	})
	return bgCtx
}
