// Package retryx implements the capped exponential backoff policy shared by
// adapter startup retries and telemetry export retries.
//
// Overview:
//   - Responsibility: compute delay(attempt) and drive bounded retry loops
//   - Key Types: Settings
//   - Concurrency Model: Settings is an immutable value; Do and DoBlocking keep no shared state
//   - Error Semantics: the final failure is returned unchanged; when cancelled mid-sleep
//     Do returns ctx.Err() joined with the last failure
//   - Performance Notes: one timer per sleep
//
// Usage:
//
//	err := retryx.Do(ctx, settings, faultx.IsTransient, func(ctx context.Context) error {
//		return client.Ping(ctx)
//	})
package retryx

import (
	"context"
	"errors"
	"math"
	"time"
)

// Settings is the retry surface every retrying component consumes.
// Components embed it with their own env prefix, e.g. POSTGRES_RETRY_MAX_ATTEMPTS.
type Settings struct {
	Enabled        bool          `env:"RETRY_ENABLED" default:"true" yaml:"enabled"`
	MaxAttempts    int           `env:"RETRY_MAX_ATTEMPTS" default:"3" yaml:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `env:"RETRY_INITIAL_BACKOFF" default:"200ms" yaml:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `env:"RETRY_MAX_BACKOFF" default:"5s" yaml:"max_backoff" validate:"gt=0"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Enabled:        true,
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Delay returns min(MaxBackoff, InitialBackoff * 2^(attempt-1)).
// Attempts below 1 are treated as 1. The result is never negative.
func (s Settings) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if s.InitialBackoff <= 0 || s.MaxBackoff <= 0 {
		return 0
	}
	d := float64(s.InitialBackoff) * math.Pow(2, float64(attempt-1))
	if d >= float64(s.MaxBackoff) {
		return s.MaxBackoff
	}
	return time.Duration(d)
}

// Attempts returns how many times an operation runs in total.
// A disabled policy runs it exactly once.
func (s Settings) Attempts() int {
	if !s.Enabled || s.MaxAttempts < 1 {
		return 1
	}
	return s.MaxAttempts
}

// Notify observes a failed attempt that is about to be retried after delay.
type Notify func(attempt int, delay time.Duration, err error)

// Do runs fn until it succeeds, returns an error retryable rejects, or the
// attempts are exhausted. Sleeps between attempts stop early when ctx is done;
// the context error is then joined with the last failure so its
// classification survives.
func Do(ctx context.Context, s Settings, retryable func(error) bool, fn func(context.Context) error, notify ...Notify) error {
	attempts := s.Attempts()
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || (retryable != nil && !retryable(err)) {
			return err
		}

		delay := s.Delay(attempt)
		for _, n := range notify {
			n(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return errors.Join(serr, err)
		}
	}
}

// DoBlocking retries fn on any error, sleeping with time.Sleep between attempts.
// It is meant for background export paths that have no caller context to honour.
func DoBlocking(s Settings, fn func() error, notify ...Notify) error {
	attempts := s.Attempts()
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= attempts {
			return err
		}

		delay := s.Delay(attempt)
		for _, n := range notify {
			n(attempt, delay, err)
		}
		time.Sleep(delay)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
