package obsx

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the meter and tracer name used by orchid.
const InstrumentationName = "go.eggybyte.com/orchid"

// OTelRecorder records resource metrics through OpenTelemetry instruments and
// emits one span per observed operation. The span is built after the fact,
// starting at now minus the measured duration.
type OTelRecorder struct {
	tracer     trace.Tracer
	operations metric.Int64Counter
	duration   metric.Float64Histogram
	errors     metric.Int64Counter
	pool       metric.Int64Gauge
}

// NewOTelRecorder creates the instruments on meter and spans on tracer.
func NewOTelRecorder(meter metric.Meter, tracer trace.Tracer) (*OTelRecorder, error) {
	operations, err := meter.Int64Counter(
		"orchid.resources.operations.total",
		metric.WithDescription("Count of shared resource operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operations counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"orchid.resources.operations.duration",
		metric.WithDescription("Latency of shared resource operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(LatencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	errs, err := meter.Int64Counter(
		"orchid.resources.operations.errors",
		metric.WithDescription("Count of failed shared resource operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors counter: %w", err)
	}

	pool, err := meter.Int64Gauge(
		"orchid.pool.connections",
		metric.WithDescription("Snapshot of connection pool counts"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool gauge: %w", err)
	}

	return &OTelRecorder{
		tracer:     tracer,
		operations: operations,
		duration:   duration,
		errors:     errs,
		pool:       pool,
	}, nil
}

// ObserveOperation implements Recorder.
func (o *OTelRecorder) ObserveOperation(resource, operation string, d time.Duration, success bool) {
	d = max(0, d)
	status := statusLabel(success)
	ctx := context.Background()

	attrs := metric.WithAttributes(
		attribute.String("resource.name", resource),
		attribute.String("resource.operation", operation),
		attribute.String("status", status),
	)
	o.operations.Add(ctx, 1, attrs)
	o.duration.Record(ctx, d.Seconds(), attrs)

	end := time.Now()
	_, span := o.tracer.Start(ctx, "resource."+resource+"."+operation,
		trace.WithTimestamp(end.Add(-d)),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("resource.name", resource),
			attribute.String("resource.operation", operation),
			attribute.String("resource.status", status),
			attribute.Float64("operation.duration_seconds", d.Seconds()),
		),
	)
	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, operation+" failed")
	}
	span.End(trace.WithTimestamp(end))
}

// ObserveError implements Recorder.
func (o *OTelRecorder) ObserveError(resource, operation, errType string) {
	o.errors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("resource.name", resource),
		attribute.String("resource.operation", operation),
		attribute.String("error.type", errType),
	))
}

// ObservePoolUsage implements Recorder.
func (o *OTelRecorder) ObservePoolUsage(resource string, stats PoolStats) {
	ctx := context.Background()
	for _, s := range []struct {
		state string
		value int
	}{
		{"used", stats.Used},
		{"idle", stats.Idle},
		{"min", stats.Min},
		{"max", stats.Max},
	} {
		o.pool.Record(ctx, int64(max(0, s.value)), metric.WithAttributes(
			attribute.String("resource.name", resource),
			attribute.String("state", s.state),
		))
	}
}
