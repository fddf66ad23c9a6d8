// Package internal builds the OpenTelemetry providers behind obsx.
package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"go.eggybyte.com/orchid/retryx"
)

// ProviderOptions holds everything needed to build the providers.
type ProviderOptions struct {
	ServiceName          string
	ServiceVersion       string
	Environment          string
	ResourceAttrs        map[string]string
	OTLPEndpoint         string
	OTLPInsecure         bool
	OTLPTimeout          time.Duration
	SampleRatio          float64
	MetricExportInterval time.Duration
	Prometheus           bool
	Retry                retryx.Settings
	OnExportRetry        func(signal string, attempt int, delay time.Duration, err error)
}

// Provider owns the tracer and meter providers built for one bootstrap.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *promclient.Registry
	InstanceID     string
}

// NewProvider builds a tracer provider sampling at SampleRatio (parent based)
// and a meter provider with an optional Prometheus reader. When OTLPEndpoint
// is set, spans and metrics are also pushed over OTLP/gRPC through retrying exporters.
func NewProvider(ctx context.Context, opts ProviderOptions) (*Provider, error) {
	if opts.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	instanceID := uuid.NewString()
	res, err := createResource(ctx, opts, instanceID)
	if err != nil {
		return nil, err
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	}
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	var registry *promclient.Registry
	if opts.Prometheus {
		registry = promclient.NewRegistry()
		promExporter, err := prometheus.New(
			prometheus.WithRegisterer(registry),
			prometheus.WithoutUnits(),
			prometheus.WithoutScopeInfo(),
			prometheus.WithoutCounterSuffixes(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(promExporter))
	}

	if opts.OTLPEndpoint != "" {
		spanExporter, metricExporter, err := createOTLPExporters(ctx, opts)
		if err != nil {
			return nil, err
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			metricExporter,
			sdkmetric.WithInterval(opts.MetricExportInterval),
			sdkmetric.WithTimeout(opts.OTLPTimeout),
		)))
	}

	return &Provider{
		TracerProvider: sdktrace.NewTracerProvider(traceOpts...),
		MeterProvider:  sdkmetric.NewMeterProvider(meterOpts...),
		Registry:       registry,
		InstanceID:     instanceID,
	}, nil
}

func createResource(ctx context.Context, opts ProviderOptions, instanceID string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		attribute.String("service.instance.id", instanceID),
	}
	if opts.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.ServiceVersion))
	}
	if opts.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", opts.Environment))
	}
	for k, v := range opts.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func createOTLPExporters(ctx context.Context, opts ProviderOptions) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	traceOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.OTLPEndpoint),
		otlptracegrpc.WithTimeout(opts.OTLPTimeout),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{Enabled: false}),
	}
	metricOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(opts.OTLPEndpoint),
		otlpmetricgrpc.WithTimeout(opts.OTLPTimeout),
		otlpmetricgrpc.WithRetry(otlpmetricgrpc.RetryConfig{Enabled: false}),
	}
	if opts.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	spanExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP span exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		return nil, nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	return NewRetryingSpanExporter(spanExporter, opts.Retry, notifier("traces", opts.OnExportRetry)),
		NewRetryingMetricExporter(metricExporter, opts.Retry, notifier("metrics", opts.OnExportRetry)),
		nil
}

func notifier(signal string, fn func(string, int, time.Duration, error)) retryx.Notify {
	return func(attempt int, delay time.Duration, err error) {
		if fn != nil {
			fn(signal, attempt, delay, err)
		}
	}
}

// PrometheusHandler serves the Prometheus registry, or 503 when Prometheus is disabled.
func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.Registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("# Prometheus metrics not available\n"))
		})
	}
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Shutdown flushes and stops both providers. Both are attempted; failures are joined.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
