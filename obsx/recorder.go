package obsx

import (
	"strings"
	"sync"
	"time"

	"go.eggybyte.com/orchid/faultx"
)

// Recorder receives operation outcomes from resource adapters and the manager.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveOperation records one completed operation.
	ObserveOperation(resource, operation string, duration time.Duration, success bool)
	// ObserveError records a failed operation classified by errType.
	ObserveError(resource, operation, errType string)
	// ObservePoolUsage records a connection pool snapshot.
	ObservePoolUsage(resource string, stats PoolStats)
}

// PoolStats is a point-in-time connection pool snapshot.
type PoolStats struct {
	Used int
	Idle int
	Min  int
	Max  int
}

// NoopRecorder discards everything. It is the process default.
type NoopRecorder struct{}

func (NoopRecorder) ObserveOperation(string, string, time.Duration, bool) {}
func (NoopRecorder) ObserveError(string, string, string)                  {}
func (NoopRecorder) ObservePoolUsage(string, PoolStats)                   {}

var (
	recorderMu sync.RWMutex
	recorder   Recorder = NoopRecorder{}
)

// SetRecorder installs r as the process-wide recorder and returns the one it replaced.
// A nil r restores the no-op recorder.
func SetRecorder(r Recorder) Recorder {
	if r == nil {
		r = NoopRecorder{}
	}
	recorderMu.Lock()
	defer recorderMu.Unlock()
	prev := recorder
	recorder = r
	return prev
}

// restoreRecorder puts prev back only if installed is still the process-wide
// recorder, so a recorder set by someone else in between is kept.
func restoreRecorder(installed, prev Recorder) bool {
	recorderMu.Lock()
	defer recorderMu.Unlock()
	if recorder != installed {
		return false
	}
	recorder = prev
	return true
}

// GetRecorder returns the process-wide recorder.
func GetRecorder() Recorder {
	recorderMu.RLock()
	defer recorderMu.RUnlock()
	return recorder
}

// Observe records the outcome of an operation that started at start.
// A non-nil err also records an error labelled with faultx.ErrorType(err).
// A nil rec uses the process-wide recorder.
func Observe(rec Recorder, resource, operation string, start time.Time, err error) {
	if rec == nil {
		rec = GetRecorder()
	}
	rec.ObserveOperation(resource, operation, time.Since(start), err == nil)
	if err != nil {
		rec.ObserveError(resource, operation, faultx.ErrorType(err))
	}
}

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func statusLabel(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusError
}

// SanitizeLabel lower-cases v, collapses every run of characters outside
// [a-z0-9_] into one underscore and trims underscores from both ends.
// An empty result becomes "unknown".
func SanitizeLabel(v string) string {
	return sanitize(v, "unknown")
}

func sanitize(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	var b strings.Builder
	b.Grow(len(v))
	pending := false
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			if pending {
				b.WriteByte('_')
				pending = false
			}
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return fallback
	}
	return out
}
