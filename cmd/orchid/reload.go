package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.eggybyte.com/orchid/configx"
	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/logx"
)

// reloadInterval is how often serve polls its config files.
const reloadInterval = 2 * time.Second

// liveSettings holds the settings serve applies without a restart. Resource
// sections and addresses are read once at startup.
type liveSettings struct {
	level         slog.LevelVar
	healthTimeout atomic.Int64
	verbose       bool
}

func newLiveSettings(s configx.AppSettings, verbose bool) *liveSettings {
	l := &liveSettings{verbose: verbose}
	l.apply(s)
	return l
}

func (l *liveSettings) apply(s configx.AppSettings) {
	level := logx.ParseLevel(s.LogLevel)
	if l.verbose {
		level = slog.LevelDebug
	}
	l.level.Set(level)
	l.healthTimeout.Store(int64(s.HealthTimeout))
}

// HealthTimeout is the per-check timeout of the next health report.
func (l *liveSettings) HealthTimeout() time.Duration {
	return time.Duration(l.healthTimeout.Load())
}

// watchSettings polls the config files until ctx is done and applies the log
// level and health timeout of every valid update. An invalid update is logged
// and the previous values stay in effect. The environment is read once.
func watchSettings(ctx context.Context, flags *rootFlags, live *liveSettings, logger log.Logger, interval time.Duration) error {
	if len(flags.configFiles) == 0 {
		return nil
	}
	sources := configx.NewSources(flags.envPrefix, flags.configFiles, configx.FileOptions{
		Watch:    true,
		Interval: interval,
		Logger:   logger,
	})
	mgr, err := configx.NewManager(ctx, configx.Options{Logger: logger, Sources: sources})
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	validate := configx.NewValidator()
	var current configx.AppSettings
	return mgr.Bind(&current, configx.WithUpdateCallback(func() {
		if err := configx.ValidateStruct(validate, &current); err != nil {
			logger.Warn("config update rejected", log.Err(err))
			return
		}
		live.apply(current)
		logger.Info("config reloaded",
			log.Str("log_level", current.LogLevel),
			log.Dur("health_timeout", current.HealthTimeout))
	}))
}
