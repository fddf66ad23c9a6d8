package runtimex

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/healthx"
	"go.eggybyte.com/orchid/runtimex/internal"
)

// DefaultShutdownTimeout bounds server shutdown and CloseAll in Serve.
const DefaultShutdownTimeout = 15 * time.Second

// ServeOptions configures Serve. Empty addresses disable the matching server.
type ServeOptions struct {
	HealthAddr  string
	MetricsAddr string
	// MetricsHandler defaults to the observability Prometheus handler when the
	// manager has one, and to the process-wide Prometheus registry otherwise.
	MetricsHandler http.Handler
	HealthTimeout  time.Duration
	// HealthTimeoutFunc, when set, is read on every health request and
	// overrides HealthTimeout.
	HealthTimeoutFunc func() time.Duration
	IncludeOptional   bool
	ShutdownTimeout   time.Duration
	Logger            log.Logger
	// Ready, when set, receives the bound address of each server once all of
	// them are listening.
	Ready func(addrs map[string]string)
}

// Serve exposes the manager's health report and the metrics endpoint until
// ctx is done or a server fails, then stops the servers and closes every
// resource. Errors from serving, stopping and closing are joined.
func Serve(ctx context.Context, m *Manager, opts ServeOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = m.logger
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	metrics := opts.MetricsHandler
	if metrics == nil {
		if m.obs != nil {
			metrics = m.obs.PrometheusHandler()
		} else {
			metrics = promhttp.Handler()
		}
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics)

	reporter := func(ctx context.Context) healthx.Report {
		timeout := opts.HealthTimeout
		if opts.HealthTimeoutFunc != nil {
			timeout = opts.HealthTimeoutFunc()
		}
		return m.HealthReport(ctx, ReportOptions{Timeout: timeout, IncludeOptional: opts.IncludeOptional})
	}

	rt := internal.NewRuntime(logger, shutdownTimeout)
	rt.AddServer("health", &http.Server{
		Addr:              opts.HealthAddr,
		Handler:           healthx.Handler(reporter, logger),
		ReadHeaderTimeout: 5 * time.Second,
	})
	rt.AddServer("metrics", &http.Server{
		Addr:              opts.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	})

	if err := rt.Start(ctx); err != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return errors.Join(err, m.CloseAll(closeCtx))
	}
	if opts.Ready != nil {
		opts.Ready(rt.Addrs())
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", log.Str("reason", context.Cause(ctx).Error()))
	case serveErr = <-rt.Errors():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	stopErr := rt.Stop(stopCtx)
	closeErr := m.CloseAll(stopCtx)
	return errors.Join(serveErr, stopErr, closeErr)
}
