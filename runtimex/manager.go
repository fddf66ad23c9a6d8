package runtimex

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.eggybyte.com/orchid/core/errors"
	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/faultx"
	"go.eggybyte.com/orchid/healthx"
	"go.eggybyte.com/orchid/obsx"
)

const metricsResource = "runtime"

// DefaultHealthTimeout bounds each check in a health report when the caller
// passes no timeout of its own.
const DefaultHealthTimeout = 5 * time.Second

// Manager owns the named resources of a process: it builds them from
// settings, serves their health checks and closes them on shutdown.
// Register, Get, Has and HealthReport are safe for concurrent use.
// Startup and CloseAll are lifecycle calls and must not overlap.
type Manager struct {
	mu        sync.RWMutex
	resources map[string]Resource
	order     []string

	logger   log.Logger
	recorder obsx.Recorder
	obs      *obsx.Observability
	registry *Registry
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger log.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder sets the recorder for runtime metrics and for resources built
// by Startup. Without it the process-wide recorder is used.
func WithRecorder(r obsx.Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithObservability adds the telemetry health checks to reports built with
// IncludeOptional.
func WithObservability(o *obsx.Observability) Option {
	return func(m *Manager) { m.obs = o }
}

// WithRegistry replaces the default factory registry.
func WithRegistry(r *Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager returns an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		resources: make(map[string]Resource),
		logger:    log.Nop(),
		registry:  defaultRegistry,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register stores v under name, replacing any previous value. The previous
// value is not closed.
func (m *Manager) Register(name string, v any) error {
	if name == "" {
		return errors.New(errors.CodeInvalidArgument, "resource name is empty")
	}
	if v == nil {
		return errors.Newf(errors.CodeInvalidArgument, "resource %s is nil", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(NewResource(name, v))
	return nil
}

func (m *Manager) put(r Resource) {
	if _, ok := m.resources[r.Name]; !ok {
		m.order = append(m.order, r.Name)
	}
	m.resources[r.Name] = r
}

func (m *Manager) remove(name string) {
	delete(m.resources, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
}

// Has reports whether name is registered.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.resources[name]
	return ok
}

// Get returns the value registered under name, or an error matching
// ErrResourceNotFound.
func (m *Manager) Get(name string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[name]
	if !ok {
		return nil, notFound(name)
	}
	return r.Value, nil
}

// Lookup returns the resource registered under name as a T.
func Lookup[T any](m *Manager, name string) (T, error) {
	var zero T
	v, err := m.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Newf(errors.CodeFailedPrecondition, "resource %s is %T, not %T", name, v, zero)
	}
	return t, nil
}

// Names returns the registered names in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

type built struct {
	name  string
	value any
	err   error
}

// Startup builds every registered factory whose settings field is present
// on settings. Factories run concurrently and all of them finish before
// Startup returns.
//
// If any factory fails, the resources that were built are closed, none of
// them are registered, and the first failure in registration order is
// returned unchanged. Once all factories succeed, every name in required
// must be registered or a *MissingRequiredResourceError is returned; the
// new resources stay registered in that case.
func (m *Manager) Startup(ctx context.Context, settings any, required ...string) (err error) {
	start := time.Now()
	defer func() { obsx.Observe(m.recorder, metricsResource, "startup", start, err) }()

	var selected []NamedFactory
	sections := make(map[string]any)
	for _, nf := range m.registry.Factories() {
		if section, ok := sectionOf(settings, nf.Field); ok {
			selected = append(selected, nf)
			sections[nf.Name] = section
		}
	}

	results := make([]built, len(selected))
	var wg sync.WaitGroup
	for i, nf := range selected {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.build(ctx, nf, sections[nf.Name])
		}()
	}
	wg.Wait()

	var first error
	for _, r := range results {
		if r.err == nil {
			continue
		}
		if first == nil {
			first = r.err
			continue
		}
		m.logger.Error(r.err, "resource startup failed", log.Str("resource", r.name))
	}
	if first != nil {
		m.rollback(ctx, results)
		return first
	}

	m.mu.Lock()
	for _, r := range results {
		m.put(NewResource(r.name, r.value))
	}
	m.mu.Unlock()

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.name
	}
	m.logger.Info("resources started", log.Strs("resources", names), log.Dur("elapsed", time.Since(start)))

	var missing []string
	for _, name := range required {
		if !m.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingRequiredResourceError{Names: missing}
	}
	return nil
}

func (m *Manager) build(ctx context.Context, nf NamedFactory, section any) (b built) {
	b.name = nf.Name
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			b.value = nil
			b.err = errors.Newf(errors.CodeInternal, "resource %s: factory panicked: %v", nf.Name, p)
		}
	}()
	b.value, b.err = nf.Build(ctx, section, BuildEnv{
		Name:     nf.Name,
		Logger:   m.logger.With(log.Str("resource", nf.Name)),
		Recorder: m.recorder,
	})
	if b.err == nil && b.value == nil {
		b.err = errors.Newf(errors.CodeInternal, "resource %s: factory returned nil", nf.Name)
	}
	if b.err != nil {
		m.logger.Debug("resource build failed", log.Str("resource", nf.Name), log.Str("error_type", faultx.ErrorType(b.err)))
		return b
	}
	m.logger.Debug("resource built",
		log.Str("resource", nf.Name), log.Str("field", nf.Field), log.Dur("duration", time.Since(start)))
	return b
}

// rollback closes the resources a failed Startup built. Close failures are
// logged and never replace the startup error.
func (m *Manager) rollback(ctx context.Context, results []built) {
	for _, r := range results {
		if r.err != nil {
			continue
		}
		if err := NewResource(r.name, r.value).close(ctx); err != nil {
			m.logger.Warn("rollback close failed", log.Str("resource", r.name), log.Err(err))
			continue
		}
		m.logger.Debug("rolled back resource", log.Str("resource", r.name))
	}
}

// CloseAll closes every registered resource in reverse registration order.
// Every resource gets a close attempt. Resources that closed are removed;
// the ones that failed stay registered and are reported in a
// *ShutdownError, so a second call retries only those.
func (m *Manager) CloseAll(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { obsx.Observe(m.recorder, metricsResource, "shutdown", start, err) }()

	m.mu.RLock()
	pending := make([]Resource, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		pending = append(pending, m.resources[m.order[i]])
	}
	m.mu.RUnlock()

	failures := make(map[string]error)
	for _, r := range pending {
		if cerr := r.close(ctx); cerr != nil {
			failures[r.Name] = cerr
			m.logger.Error(cerr, "resource close failed", log.Str("resource", r.Name))
			continue
		}
		m.mu.Lock()
		m.remove(r.Name)
		m.mu.Unlock()
	}

	if len(failures) > 0 {
		return &ShutdownError{Errors: failures}
	}
	m.logger.Info("resources closed", log.Int("count", len(pending)), log.Dur("elapsed", time.Since(start)))
	return nil
}

// Close closes and removes one resource. A failed close leaves it registered.
func (m *Manager) Close(ctx context.Context, name string) error {
	m.mu.RLock()
	r, ok := m.resources[name]
	m.mu.RUnlock()
	if !ok {
		return notFound(name)
	}
	if err := r.close(ctx); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	m.mu.Lock()
	m.remove(name)
	m.mu.Unlock()
	return nil
}

// ReportOptions tunes HealthReport.
type ReportOptions struct {
	// Timeout bounds each check. Zero means DefaultHealthTimeout and a
	// negative value disables the bound.
	Timeout time.Duration
	// IncludeOptional adds the telemetry checks of WithObservability.
	IncludeOptional bool
}

// HealthReport runs the check of every health-capable resource concurrently.
// Resources without a HealthCheck method are left out of the report.
func (m *Manager) HealthReport(ctx context.Context, opts ReportOptions) healthx.Report {
	checks := make(map[string]healthx.Check)
	m.mu.RLock()
	for name, r := range m.resources {
		if r.Health != nil {
			checks[name] = r.Health.HealthCheck
		}
	}
	m.mu.RUnlock()

	if opts.IncludeOptional && m.obs != nil {
		for name, check := range m.obs.HealthChecks() {
			checks[name] = check
		}
	}

	timeout := opts.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultHealthTimeout
	case timeout < 0:
		timeout = 0
	}
	return healthx.Aggregate(ctx, checks, timeout)
}

// HealthPayload renders HealthReport as JSON.
func (m *Manager) HealthPayload(ctx context.Context, opts ReportOptions) ([]byte, error) {
	return json.Marshal(m.HealthReport(ctx, opts))
}
