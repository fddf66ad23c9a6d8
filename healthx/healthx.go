// Package healthx aggregates independent health checks into one readiness report.
//
// Overview:
//   - Responsibility: run checks concurrently with per-check timeouts and compose a Report
//   - Key Types: Status, Summary, Report, Check
//   - Concurrency Model: Aggregate launches one goroutine per check and joins them all;
//     a check that ignores its context is abandoned once its timeout fires
//   - Error Semantics: check errors, panics and timeouts never escape; they become
//     unhealthy statuses carrying details["error_type"]
//   - Performance Notes: results are collected into a preallocated slice, no locks
//
// Report invariants:
//
//	summary.total == summary.healthy + summary.unhealthy
//	status == ok       <=> unhealthy == 0
//	status == down     <=> healthy == 0 && total > 0
//	status == degraded otherwise
//
// Usage:
//
//	report := healthx.Aggregate(ctx, map[string]healthx.Check{"cache": cache.HealthCheck}, 2*time.Second)
//	if !report.Readiness { ... }
package healthx

import (
	"context"
	"time"

	"go.eggybyte.com/orchid/faultx"
)

// State is the aggregate status of a Report.
type State string

const (
	StateOK       State = "ok"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// Status is the result of one health check.
type Status struct {
	Healthy   bool              `json:"healthy"`
	LatencyMS float64           `json:"latency_ms"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Summary counts check outcomes.
type Summary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
}

// Report is the aggregate view served on /health.
type Report struct {
	Status    State             `json:"status"`
	Healthy   bool              `json:"healthy"`
	Readiness bool              `json:"readiness"`
	Liveness  bool              `json:"liveness"`
	LatencyMS float64           `json:"latency_ms"`
	Summary   Summary           `json:"summary"`
	Checks    map[string]Status `json:"checks"`
}

// Check probes one dependency. Returning an error is equivalent to an
// unhealthy status whose details carry the error type.
type Check func(ctx context.Context) (Status, error)

// Healthy builds a passing status.
func Healthy(latency time.Duration) Status {
	return Status{Healthy: true, LatencyMS: Millis(latency)}
}

// Unhealthy builds a failing status from err.
func Unhealthy(latency time.Duration, err error) Status {
	s := Status{Healthy: false, LatencyMS: Millis(latency)}
	if err != nil {
		s.Message = err.Error()
		s.Details = map[string]string{"error_type": faultx.ErrorType(err)}
	}
	return s
}

// Measure times probe and converts its outcome into a Status.
// Adapters use it to implement their HealthCheck method.
func Measure(ctx context.Context, probe func(context.Context) error) Status {
	start := time.Now()
	if err := probe(ctx); err != nil {
		return Unhealthy(time.Since(start), err)
	}
	return Healthy(time.Since(start))
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

// Summarize computes the summary and aggregate state for a set of statuses.
func Summarize(checks map[string]Status) (Summary, State) {
	sum := Summary{Total: len(checks)}
	for _, s := range checks {
		if s.Healthy {
			sum.Healthy++
		}
	}
	sum.Unhealthy = sum.Total - sum.Healthy

	switch {
	case sum.Unhealthy == 0:
		return sum, StateOK
	case sum.Healthy == 0:
		return sum, StateDown
	default:
		return sum, StateDegraded
	}
}
