package obsx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"go.eggybyte.com/orchid/core/errors"
	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/healthx"
	"go.eggybyte.com/orchid/obsx/internal"
	"go.eggybyte.com/orchid/retryx"
)

// ErrAlreadyActive is returned by Bootstrap when the context is already Active.
var ErrAlreadyActive = errors.New(errors.CodeFailedPrecondition, "observability already bootstrapped; call Shutdown first")

// Settings configures tracing and metrics export.
type Settings struct {
	Enabled              bool            `env:"OBSERVABILITY_ENABLED" default:"true" yaml:"enabled"`
	ServiceName          string          `env:"OBSERVABILITY_SERVICE_NAME" default:"orchid" yaml:"service_name"`
	ServiceVersion       string          `env:"OBSERVABILITY_SERVICE_VERSION" yaml:"service_version"`
	Environment          string          `env:"OBSERVABILITY_ENVIRONMENT" yaml:"environment"`
	OTLPEndpoint         string          `env:"OBSERVABILITY_OTLP_ENDPOINT" yaml:"otlp_endpoint"`
	OTLPInsecure         bool            `env:"OBSERVABILITY_OTLP_INSECURE" default:"true" yaml:"otlp_insecure"`
	OTLPTimeout          time.Duration   `env:"OBSERVABILITY_OTLP_TIMEOUT" default:"10s" yaml:"otlp_timeout" validate:"gt=0"`
	SampleRate           float64         `env:"OBSERVABILITY_SAMPLE_RATE" default:"1" yaml:"sample_rate" validate:"gte=0,lte=1"`
	MetricExportInterval time.Duration   `env:"OBSERVABILITY_METRICS_EXPORT_INTERVAL" default:"30s" yaml:"metrics_export_interval" validate:"gt=0"`
	Prometheus           bool            `env:"OBSERVABILITY_PROMETHEUS" default:"true" yaml:"prometheus"`
	RuntimeMetrics       bool            `env:"OBSERVABILITY_RUNTIME_METRICS" default:"true" yaml:"runtime_metrics"`
	Retry                retryx.Settings `envPrefix:"OBSERVABILITY_" yaml:"retry"`
}

// DefaultSettings mirrors the tag defaults for callers that skip configx.
func DefaultSettings() Settings {
	return Settings{
		Enabled:              true,
		ServiceName:          "orchid",
		OTLPInsecure:         true,
		OTLPTimeout:          10 * time.Second,
		SampleRate:           1,
		MetricExportInterval: 30 * time.Second,
		Prometheus:           true,
		RuntimeMetrics:       true,
		Retry:                retryx.DefaultSettings(),
	}
}

// State is the lifecycle state of an Observability context.
type State int

const (
	StateUnconfigured State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "unconfigured"
}

// Observability owns the tracer and meter providers of one bootstrap and the
// recorder it installed. It moves Unconfigured -> Active on Bootstrap and back
// on Shutdown; Bootstrap while Active fails with ErrAlreadyActive.
type Observability struct {
	mu       sync.Mutex
	state    State
	settings Settings
	provider *internal.Provider
	recorder Recorder
	previous Recorder
	logger   log.Logger
	globals  bool
}

// Option configures an Observability context.
type Option func(*Observability)

// WithLogger sets the logger used for bootstrap and export retry messages.
func WithLogger(logger log.Logger) Option {
	return func(o *Observability) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithGlobalProviders controls whether Bootstrap installs its providers as the
// otel globals. Enabled by default.
func WithGlobalProviders(enabled bool) Option {
	return func(o *Observability) {
		o.globals = enabled
	}
}

// New returns an Unconfigured context.
func New(opts ...Option) *Observability {
	o := &Observability{logger: log.Nop(), globals: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// active is the context currently Active in this process. The recorder and
// the otel globals are process-wide, so at most one context may own them.
var (
	activeMu sync.Mutex
	active   *Observability
)

func claimActive(o *Observability) bool {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil && active != o {
		return false
	}
	active = o
	return true
}

func releaseActive(o *Observability) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active == o {
		active = nil
	}
}

// Bootstrap transitions to Active. Only one context per process can be
// Active; Bootstrap on any other returns ErrAlreadyActive until it shuts down.
// With Enabled=false the context still becomes Active but builds no providers
// and leaves the recorder untouched.
// Otherwise it builds the providers, installs an OTelRecorder as the
// process-wide recorder and remembers the one it replaced.
func (o *Observability) Bootstrap(ctx context.Context, s Settings) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateActive || !claimActive(o) {
		return ErrAlreadyActive
	}
	defer func() {
		if o.state != StateActive {
			releaseActive(o)
		}
	}()

	if !s.Enabled {
		o.settings = s
		o.state = StateActive
		o.logger.Info("observability disabled")
		return nil
	}

	if s.ServiceName == "" {
		s.ServiceName = "orchid"
	}
	provider, err := internal.NewProvider(ctx, internal.ProviderOptions{
		ServiceName:          s.ServiceName,
		ServiceVersion:       s.ServiceVersion,
		Environment:          s.Environment,
		OTLPEndpoint:         s.OTLPEndpoint,
		OTLPInsecure:         s.OTLPInsecure,
		OTLPTimeout:          s.OTLPTimeout,
		SampleRatio:          s.SampleRate,
		MetricExportInterval: s.MetricExportInterval,
		Prometheus:           s.Prometheus,
		Retry:                s.Retry,
		OnExportRetry: func(signal string, attempt int, delay time.Duration, err error) {
			o.logger.Warn("otlp export failed, retrying",
				log.Str("signal", signal), log.Int("attempt", attempt), log.Dur("delay", delay), log.Err(err))
		},
	})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "obsx.Bootstrap", err)
	}

	if s.RuntimeMetrics {
		if err := internal.EnableRuntimeMetrics(provider.MeterProvider); err != nil {
			_ = provider.Shutdown(ctx)
			return errors.Wrap(errors.CodeInternal, "obsx.Bootstrap", err)
		}
	}

	rec, err := NewOTelRecorder(
		provider.MeterProvider.Meter(InstrumentationName),
		provider.TracerProvider.Tracer(InstrumentationName),
	)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return errors.Wrap(errors.CodeInternal, "obsx.Bootstrap", err)
	}

	if o.globals {
		otel.SetTracerProvider(provider.TracerProvider)
		otel.SetMeterProvider(provider.MeterProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
	}

	o.provider = provider
	o.recorder = rec
	o.previous = SetRecorder(rec)
	o.settings = s
	o.state = StateActive

	o.logger.Info("observability bootstrapped",
		log.Str("service", s.ServiceName),
		log.Str("otlp_endpoint", s.OTLPEndpoint),
		log.Bool("prometheus", s.Prometheus),
		log.Float("sample_rate", s.SampleRate))
	return nil
}

// Shutdown restores the recorder that Bootstrap replaced, flushes and closes
// the providers and returns to Unconfigured. It is a no-op when Unconfigured.
// The state is reset even if flushing fails.
func (o *Observability) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateUnconfigured {
		return nil
	}

	if o.previous != nil {
		restoreRecorder(o.recorder, o.previous)
	}
	defer releaseActive(o)

	var err error
	if o.provider != nil {
		err = o.provider.Shutdown(ctx)
	}

	o.state = StateUnconfigured
	o.provider = nil
	o.recorder = nil
	o.previous = nil
	o.settings = Settings{}

	if err != nil {
		o.logger.Error(err, "observability shutdown failed")
		return errors.Wrap(errors.CodeInternal, "obsx.Shutdown", err)
	}
	o.logger.Info("observability shut down")
	return nil
}

// State returns the current lifecycle state.
func (o *Observability) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Enabled reports whether the context is Active with providers installed.
func (o *Observability) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateActive && o.provider != nil
}

// Recorder returns the recorder installed by Bootstrap, or the no-op recorder.
func (o *Observability) Recorder() Recorder {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.recorder == nil {
		return NoopRecorder{}
	}
	return o.recorder
}

// TracerProvider returns the active tracer provider or a no-op one.
func (o *Observability) TracerProvider() trace.TracerProvider {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.provider == nil {
		return noop.NewTracerProvider()
	}
	return o.provider.TracerProvider
}

// PrometheusHandler serves the Prometheus registry of the active bootstrap.
// It answers 503 when nothing is bootstrapped or Prometheus is disabled.
func (o *Observability) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		provider := o.provider
		o.mu.Unlock()
		provider.PrometheusHandler().ServeHTTP(w, r)
	})
}

// HealthChecks returns the checks this context contributes to a health report:
// an "otel" check while Active and enabled, nothing otherwise.
func (o *Observability) HealthChecks() map[string]healthx.Check {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateActive || !o.settings.Enabled {
		return nil
	}
	return map[string]healthx.Check{"otel": o.healthCheck}
}

func (o *Observability) healthCheck(context.Context) (healthx.Status, error) {
	start := time.Now()
	o.mu.Lock()
	provider := o.provider
	settings := o.settings
	o.mu.Unlock()

	installed := provider != nil && (provider.TracerProvider != nil || provider.MeterProvider != nil)
	status := healthx.Status{
		Healthy:   installed,
		LatencyMS: healthx.Millis(time.Since(start)),
		Details: map[string]string{
			"service_name": settings.ServiceName,
		},
	}
	if settings.OTLPEndpoint != "" {
		status.Details["otlp_endpoint"] = settings.OTLPEndpoint
	}
	if !installed {
		status.Message = "no telemetry providers installed"
	}
	return status, nil
}
