package storex

import (
	"context"
	"time"

	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/faultx"
	"go.eggybyte.com/orchid/obsx"
	"go.eggybyte.com/orchid/retryx"
)

// Option configures an adapter.
type Option func(*options)

type options struct {
	name     string
	logger   log.Logger
	recorder obsx.Recorder
}

func newOptions(defaultName string, opts []Option) options {
	o := options{name: defaultName, logger: log.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithName overrides the resource label used in metrics and log lines.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder pins the adapter to rec instead of the process-wide recorder.
func WithRecorder(rec obsx.Recorder) Option {
	return func(o *options) {
		o.recorder = rec
	}
}

// instrument records metrics for one operation of an adapter. Errors reaching
// it have already been translated.
type instrument struct {
	resource string
	recorder obsx.Recorder
}

func (i instrument) observe(operation string, start time.Time, err error) {
	obsx.Observe(i.recorder, i.resource, operation, start, err)
}

func (i instrument) pool(stats obsx.PoolStats) {
	rec := i.recorder
	if rec == nil {
		rec = obsx.GetRecorder()
	}
	rec.ObservePoolUsage(i.resource, stats)
}

// connect runs dial under the retry policy, retrying only transient failures.
// dial must return translated errors.
func connect(ctx context.Context, o options, retry retryx.Settings, dial func(context.Context) error) error {
	start := time.Now()
	err := retryx.Do(ctx, retry, faultx.IsTransient, dial, func(attempt int, delay time.Duration, err error) {
		o.logger.Warn("connection attempt failed, retrying",
			log.Str("resource", o.name),
			log.Int("attempt", attempt),
			log.Dur("delay", delay),
			log.Err(err))
	})
	instrument{resource: o.name, recorder: o.recorder}.observe("connect", start, err)
	if err != nil {
		return err
	}
	o.logger.Info("resource connected", log.Str("resource", o.name), log.Dur("duration", time.Since(start)))
	return nil
}
