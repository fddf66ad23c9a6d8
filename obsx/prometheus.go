package obsx

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets are the histogram buckets for resource operation latency, in seconds.
var LatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// PrometheusRecorder writes resource metrics to a Prometheus registry.
//
// Metrics (prefix defaults to "orchid"):
//   - <prefix>_resource_latency_seconds{resource,operation,status}
//   - <prefix>_resource_throughput_total{resource,operation,status}
//   - <prefix>_resource_errors_total{resource,operation,error_type}
//   - <prefix>_pool_usage_connections{resource,state}
type PrometheusRecorder struct {
	latency    *prometheus.HistogramVec
	throughput *prometheus.CounterVec
	errors     *prometheus.CounterVec
	pool       *prometheus.GaugeVec
}

// PrometheusOption configures a PrometheusRecorder.
type PrometheusOption func(*prometheusOptions)

type prometheusOptions struct {
	prefix string
}

// WithPrefix sets the metric name prefix. It is sanitized like a label value.
func WithPrefix(prefix string) PrometheusOption {
	return func(o *prometheusOptions) {
		o.prefix = prefix
	}
}

// NewPrometheusRecorder registers the resource collectors on reg.
// Collectors already registered under the same names are reused, so building
// two recorders on one registry is safe. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer, opts ...PrometheusOption) (*PrometheusRecorder, error) {
	options := prometheusOptions{prefix: "orchid"}
	for _, opt := range opts {
		opt(&options)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	prefix := sanitize(options.prefix, "orchid")

	latency, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prefix + "_resource_latency_seconds",
		Help:    "Resource operation latency in seconds.",
		Buckets: LatencyBuckets,
	}, []string{"resource", "operation", "status"}))
	if err != nil {
		return nil, err
	}

	throughput, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_resource_throughput_total",
		Help: "Resource operation throughput counter.",
	}, []string{"resource", "operation", "status"}))
	if err != nil {
		return nil, err
	}

	errs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_resource_errors_total",
		Help: "Resource operation errors.",
	}, []string{"resource", "operation", "error_type"}))
	if err != nil {
		return nil, err
	}

	pool, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_pool_usage_connections",
		Help: "Current connection pool usage.",
	}, []string{"resource", "state"}))
	if err != nil {
		return nil, err
	}

	return &PrometheusRecorder{
		latency:    latency,
		throughput: throughput,
		errors:     errs,
		pool:       pool,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// ObserveOperation implements Recorder.
func (p *PrometheusRecorder) ObserveOperation(resource, operation string, duration time.Duration, success bool) {
	labels := prometheus.Labels{
		"resource":  SanitizeLabel(resource),
		"operation": SanitizeLabel(operation),
		"status":    statusLabel(success),
	}
	p.latency.With(labels).Observe(max(0, duration.Seconds()))
	p.throughput.With(labels).Inc()
}

// ObserveError implements Recorder.
func (p *PrometheusRecorder) ObserveError(resource, operation, errType string) {
	p.errors.With(prometheus.Labels{
		"resource":   SanitizeLabel(resource),
		"operation":  SanitizeLabel(operation),
		"error_type": SanitizeLabel(errType),
	}).Inc()
}

// ObservePoolUsage implements Recorder.
func (p *PrometheusRecorder) ObservePoolUsage(resource string, stats PoolStats) {
	name := SanitizeLabel(resource)
	p.pool.WithLabelValues(name, "used").Set(float64(max(0, stats.Used)))
	p.pool.WithLabelValues(name, "idle").Set(float64(max(0, stats.Idle)))
	p.pool.WithLabelValues(name, "min").Set(float64(max(0, stats.Min)))
	p.pool.WithLabelValues(name, "max").Set(float64(max(0, stats.Max)))
}
