package healthx

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrorTypePanic and ErrorTypeTimeout are the error_type details recorded for
// checks that panicked or did not return in time.
const (
	ErrorTypePanic   = "panic"
	ErrorTypeTimeout = "timeout"
)

// Aggregate runs every check concurrently and composes a Report.
// timeout applies to each check independently; timeout <= 0 disables it.
// An empty check set yields an ok, healthy report.
func Aggregate(ctx context.Context, checks map[string]Check, timeout time.Duration) Report {
	start := time.Now()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Status, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(idx int, check Check) {
			defer wg.Done()
			results[idx] = run(ctx, check, timeout)
		}(i, checks[name])
	}
	wg.Wait()

	statuses := make(map[string]Status, len(names))
	for i, name := range names {
		statuses[name] = results[i]
	}

	summary, state := Summarize(statuses)
	return Report{
		Status:    state,
		Healthy:   summary.Unhealthy == 0,
		Readiness: summary.Unhealthy == 0,
		Liveness:  true,
		LatencyMS: Millis(time.Since(start)),
		Summary:   summary,
		Checks:    statuses,
	}
}

type outcome struct {
	status Status
	err    error
	panic  any
}

// run executes one check in its own goroutine so a check that ignores
// cancellation cannot hold the report past its timeout.
func run(parent context.Context, check Check, timeout time.Duration) Status {
	start := time.Now()

	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out.panic = r
			}
			done <- out
		}()
		out.status, out.err = check(ctx)
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		elapsed := time.Since(start)
		errType := ErrorTypeTimeout
		msg := fmt.Sprintf("health check timed out after %s", elapsed.Round(time.Millisecond))
		if parent.Err() != nil && ctx.Err() != context.DeadlineExceeded {
			errType = "canceled"
			msg = "health check canceled"
		}
		return Status{
			Healthy:   false,
			LatencyMS: Millis(elapsed),
			Message:   msg,
			Details:   map[string]string{"error_type": errType},
		}
	}

	elapsed := time.Since(start)
	switch {
	case out.panic != nil:
		return Status{
			Healthy:   false,
			LatencyMS: Millis(elapsed),
			Message:   fmt.Sprint(out.panic),
			Details:   map[string]string{"error_type": ErrorTypePanic},
		}
	case out.err != nil:
		return Unhealthy(elapsed, out.err)
	}

	status := out.status
	if status.LatencyMS < 0 {
		status.LatencyMS = Millis(elapsed)
	}
	if len(status.Details) > 0 {
		details := make(map[string]string, len(status.Details))
		for k, v := range status.Details {
			details[k] = v
		}
		status.Details = details
	}
	return status
}
