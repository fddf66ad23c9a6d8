package internal

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.eggybyte.com/orchid/retryx"
)

// newBreaker trips after five consecutive failed export batches and stays
// open for the max backoff. While open, batches are dropped without retrying.
func newBreaker(name string, retry retryx.Settings) *gobreaker.CircuitBreaker {
	open := retry.MaxBackoff
	if open <= 0 {
		open = 5 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// RetryingSpanExporter retries failed span batches with the backoff policy.
// Sleeps block the batch processor goroutine, never a request.
type RetryingSpanExporter struct {
	next    sdktrace.SpanExporter
	retry   retryx.Settings
	breaker *gobreaker.CircuitBreaker
	notify  retryx.Notify
}

// NewRetryingSpanExporter wraps next.
func NewRetryingSpanExporter(next sdktrace.SpanExporter, retry retryx.Settings, notify retryx.Notify) *RetryingSpanExporter {
	return &RetryingSpanExporter{
		next:    next,
		retry:   retry,
		breaker: newBreaker("otlp-traces", retry),
		notify:  notify,
	}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *RetryingSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, retryx.DoBlocking(e.retry, func() error {
			return e.next.ExportSpans(ctx, spans)
		}, e.notify)
	})
	return err
}

// Shutdown implements sdktrace.SpanExporter.
func (e *RetryingSpanExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// RetryingMetricExporter retries failed metric pushes with the backoff policy.
type RetryingMetricExporter struct {
	next    sdkmetric.Exporter
	retry   retryx.Settings
	breaker *gobreaker.CircuitBreaker
	notify  retryx.Notify
}

// NewRetryingMetricExporter wraps next.
func NewRetryingMetricExporter(next sdkmetric.Exporter, retry retryx.Settings, notify retryx.Notify) *RetryingMetricExporter {
	return &RetryingMetricExporter{
		next:    next,
		retry:   retry,
		breaker: newBreaker("otlp-metrics", retry),
		notify:  notify,
	}
}

// Temporality implements sdkmetric.Exporter.
func (e *RetryingMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return e.next.Temporality(k)
}

// Aggregation implements sdkmetric.Exporter.
func (e *RetryingMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return e.next.Aggregation(k)
}

// Export implements sdkmetric.Exporter.
func (e *RetryingMetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, retryx.DoBlocking(e.retry, func() error {
			return e.next.Export(ctx, rm)
		}, e.notify)
	})
	return err
}

// ForceFlush implements sdkmetric.Exporter.
func (e *RetryingMetricExporter) ForceFlush(ctx context.Context) error {
	return e.next.ForceFlush(ctx)
}

// Shutdown implements sdkmetric.Exporter.
func (e *RetryingMetricExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}
