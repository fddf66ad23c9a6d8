package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.eggybyte.com/orchid/configx"
	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/logx"
	"go.eggybyte.com/orchid/obsx"
	"go.eggybyte.com/orchid/runtimex"
)

// app is a started process: settings, logger, telemetry and resources.
type app struct {
	settings configx.AppSettings
	logger   log.Logger
	obs      *obsx.Observability
	manager  *runtimex.Manager
	live     *liveSettings
}

func loadSettings(ctx context.Context, flags *rootFlags) (configx.AppSettings, error) {
	var s configx.AppSettings
	opts := []configx.LoadOption{configx.WithFiles(flags.configFiles...)}
	if flags.envPrefix != "" {
		opts = append(opts, configx.WithEnvPrefix(flags.envPrefix))
	}
	if err := configx.Load(ctx, &s, opts...); err != nil {
		return s, fmt.Errorf("load config: %w", err)
	}
	if flags.verbose {
		s.LogLevel = "debug"
	}
	return s, nil
}

func newLogger(s configx.AppSettings, w io.Writer, level *slog.LevelVar) log.Logger {
	return logx.New(
		logx.WithFormat(logx.Format(s.LogFormat)),
		logx.WithLevelVar(level),
		logx.WithColor(s.LogColor),
		logx.WithWriter(w),
	).With(log.Str("service", s.ServiceName), log.Str("env", s.Env))
}

// start loads settings, bootstraps telemetry and builds every configured
// resource. On error everything already started is released.
func start(ctx context.Context, flags *rootFlags, logOut io.Writer) (*app, error) {
	settings, err := loadSettings(ctx, flags)
	if err != nil {
		return nil, err
	}
	live := newLiveSettings(settings, flags.verbose)
	logger := newLogger(settings, logOut, &live.level)

	obsSettings := settings.Observability
	if obsSettings.ServiceVersion == "" {
		obsSettings.ServiceVersion = settings.Version
	}
	if obsSettings.Environment == "" {
		obsSettings.Environment = settings.Env
	}
	obs := obsx.New(obsx.WithLogger(logger), obsx.WithGlobalProviders(true))
	if err := obs.Bootstrap(ctx, obsSettings); err != nil {
		return nil, fmt.Errorf("bootstrap observability: %w", err)
	}

	manager := runtimex.NewManager(
		runtimex.WithLogger(logger),
		runtimex.WithObservability(obs),
	)
	logger.Info("starting resources", log.Strs("configured", settings.Resources.Configured()))
	if err := manager.Startup(ctx, settings.Resources, settings.Required...); err != nil {
		a := &app{settings: settings, logger: logger, obs: obs, manager: manager, live: live}
		if cerr := manager.CloseAll(context.WithoutCancel(ctx)); cerr != nil {
			logger.Error(cerr, "close after failed startup")
		}
		a.shutdownTelemetry()
		return nil, fmt.Errorf("start resources: %w", err)
	}

	return &app{settings: settings, logger: logger, obs: obs, manager: manager, live: live}, nil
}

// shutdownTelemetry flushes pending spans and metrics and restores the
// process-wide recorder.
func (a *app) shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := a.obs.Shutdown(ctx); err != nil {
		a.logger.Warn("observability shutdown failed", log.Err(err))
	}
}

func (a *app) shutdownTimeout() time.Duration {
	if a.settings.ShutdownTimeout > 0 {
		return a.settings.ShutdownTimeout
	}
	return runtimex.DefaultShutdownTimeout
}

func (a *app) reportOptions() runtimex.ReportOptions {
	return runtimex.ReportOptions{Timeout: a.live.HealthTimeout(), IncludeOptional: true}
}
