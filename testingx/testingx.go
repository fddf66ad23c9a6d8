// Package testingx provides fakes and assertions for tests of orchid packages.
//
// Overview:
//   - Responsibility: capture logs, metrics and lifecycle calls made by code under test
//   - Key Types: MockLogger, FakeResource, RecordingRecorder
//   - Concurrency Model: every fake is safe for concurrent use
//   - Error Semantics: assertion helpers fail the test through testing.TB
//
// Usage:
//
//	logger := testingx.NewMockLogger(t)
//	cache := testingx.NewFakeResource("cache")
//	cache.CloseErr = errors.New("boom")
package testingx

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.eggybyte.com/orchid/core/errors"
	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/faultx"
	"go.eggybyte.com/orchid/healthx"
	"go.eggybyte.com/orchid/obsx"
)

// MockLogger records log entries in memory.
type MockLogger struct {
	t      testing.TB
	fields []any
	sink   *logSink
}

type logSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry represents a single log entry. Fields include those attached
// through With.
type LogEntry struct {
	Level   string
	Message string
	Fields  []any
	Error   error
}

// Field returns the value logged under key.
func (e LogEntry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if pair, ok := f.([]any); ok && len(pair) == 2 && pair[0] == key {
			return pair[1], true
		}
	}
	for i := 0; i+1 < len(e.Fields); i++ {
		if k, ok := e.Fields[i].(string); ok && k == key {
			return e.Fields[i+1], true
		}
	}
	return nil, false
}

// NewMockLogger creates a new mock logger.
func NewMockLogger(t testing.TB) *MockLogger {
	return &MockLogger{t: t, sink: &logSink{}}
}

// With returns a logger that shares the entries and prefixes kv to every entry.
func (m *MockLogger) With(kv ...any) log.Logger {
	fields := append(append([]any{}, m.fields...), kv...)
	return &MockLogger{t: m.t, fields: fields, sink: m.sink}
}

func (m *MockLogger) Debug(msg string, kv ...any)            { m.log("DEBUG", msg, nil, kv) }
func (m *MockLogger) Info(msg string, kv ...any)             { m.log("INFO", msg, nil, kv) }
func (m *MockLogger) Warn(msg string, kv ...any)             { m.log("WARN", msg, nil, kv) }
func (m *MockLogger) Error(err error, msg string, kv ...any) { m.log("ERROR", msg, err, kv) }

func (m *MockLogger) log(level, msg string, err error, kv []any) {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.entries = append(m.sink.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  append(append([]any{}, m.fields...), kv...),
		Error:   err,
	})
}

// Entries returns a copy of all log entries.
func (m *MockLogger) Entries() []LogEntry {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	return append([]LogEntry(nil), m.sink.entries...)
}

// Find returns the entries at level with message msg.
func (m *MockLogger) Find(level, msg string) []LogEntry {
	var out []LogEntry
	for _, e := range m.Entries() {
		if e.Level == level && e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// AssertLogged asserts that a message was logged.
func (m *MockLogger) AssertLogged(level, msg string) {
	m.t.Helper()
	if len(m.Find(level, msg)) == 0 {
		m.t.Errorf("Expected log message not found: level=%s msg=%q", level, msg)
	}
}

// Clear clears all log entries.
func (m *MockLogger) Clear() {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.entries = nil
}

// FakeResource is a resource with a scripted health check and close.
// Set the exported fields before handing it to the code under test.
type FakeResource struct {
	Name      string
	Unhealthy bool
	HealthErr error
	CloseErr  error
	Latency   time.Duration

	// CloseErrOnce fails only the first Close call.
	CloseErrOnce bool
	// ClosePanic, when non-nil, makes Close panic with it after counting.
	ClosePanic any

	mu          sync.Mutex
	closeCalls  int
	healthCalls int
}

// NewFakeResource returns a healthy resource that closes cleanly.
func NewFakeResource(name string) *FakeResource {
	return &FakeResource{Name: name}
}

// HealthCheck reports the scripted status after sleeping Latency, or until
// ctx is done.
func (f *FakeResource) HealthCheck(ctx context.Context) (healthx.Status, error) {
	f.mu.Lock()
	f.healthCalls++
	f.mu.Unlock()

	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
			return healthx.Status{}, ctx.Err()
		}
	}
	if f.HealthErr != nil {
		return healthx.Status{}, f.HealthErr
	}
	if f.Unhealthy {
		return healthx.Status{Healthy: false, Message: f.Name + " is down"}, nil
	}
	return healthx.Healthy(f.Latency), nil
}

// Close counts the call and returns CloseErr, or panics with ClosePanic.
func (f *FakeResource) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.ClosePanic != nil {
		panic(f.ClosePanic)
	}
	if f.CloseErrOnce && f.closeCalls > 1 {
		return nil
	}
	return f.CloseErr
}

// CloseCalls returns how many times Close ran.
func (f *FakeResource) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// HealthCalls returns how many times HealthCheck ran.
func (f *FakeResource) HealthCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthCalls
}

// Observation is one ObserveOperation or ObserveError call.
type Observation struct {
	Resource  string
	Operation string
	Success   bool
	ErrorType string
}

func (o Observation) String() string {
	if o.ErrorType != "" {
		return fmt.Sprintf("%s/%s error=%s", o.Resource, o.Operation, o.ErrorType)
	}
	return fmt.Sprintf("%s/%s success=%t", o.Resource, o.Operation, o.Success)
}

// RecordingRecorder is an obsx.Recorder that keeps every call.
type RecordingRecorder struct {
	mu         sync.Mutex
	operations []Observation
	errors     []Observation
	pools      map[string]obsx.PoolStats
}

var _ obsx.Recorder = (*RecordingRecorder)(nil)

// NewRecordingRecorder returns an empty recorder.
func NewRecordingRecorder() *RecordingRecorder {
	return &RecordingRecorder{pools: make(map[string]obsx.PoolStats)}
}

func (r *RecordingRecorder) ObserveOperation(resource, operation string, _ time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, Observation{Resource: resource, Operation: operation, Success: success})
}

func (r *RecordingRecorder) ObserveError(resource, operation, errType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, Observation{Resource: resource, Operation: operation, ErrorType: errType})
}

func (r *RecordingRecorder) ObservePoolUsage(resource string, stats obsx.PoolStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[resource] = stats
}

// Operations returns the recorded operations in call order.
func (r *RecordingRecorder) Operations() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Observation(nil), r.operations...)
}

// Errors returns the recorded errors in call order.
func (r *RecordingRecorder) Errors() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Observation(nil), r.errors...)
}

// Pool returns the last pool usage recorded for resource.
func (r *RecordingRecorder) Pool(resource string) (obsx.PoolStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.pools[resource]
	return s, ok
}

// UseRecorder installs r as the process-wide recorder for the duration of t.
func UseRecorder(t testing.TB, r obsx.Recorder) {
	t.Helper()
	prev := obsx.SetRecorder(r)
	t.Cleanup(func() { obsx.SetRecorder(prev) })
}

// AssertCode asserts that err carries the expected code.
func AssertCode(t testing.TB, err error, want errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error with code %s, got nil", want)
	}
	if got := errors.CodeOf(err); got != want {
		t.Errorf("Expected error code %s, got %s (%v)", want, got, err)
	}
}

// AssertKind asserts that err was classified as want.
func AssertKind(t testing.TB, err error, want faultx.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", want)
	}
	if got := faultx.KindOf(err); got != want {
		t.Errorf("Expected kind %q, got %q (%v)", want, got, err)
	}
}

// AssertNoError asserts that no error occurred.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}
