package main

import (
	"context"

	"github.com/spf13/cobra"

	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/runtimex"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start resources and serve health and metrics until signalled",
		Long: `Build every configured resource, then serve /health, /ready and /live
on HEALTH_ADDR and /metrics on METRICS_ADDR. On SIGINT or SIGTERM the
servers stop, every resource is closed and telemetry is flushed.

While serving, the --config files are polled and changes to LOG_LEVEL and
HEALTH_TIMEOUT take effect without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := start(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.shutdownTelemetry()

			if err := watchSettings(ctx, flags, a.live, a.logger, reloadInterval); err != nil {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout())
				defer cancel()
				if cerr := a.manager.CloseAll(closeCtx); cerr != nil {
					a.logger.Error(cerr, "close after failed config watch")
				}
				return err
			}

			a.logger.Info("serving",
				log.Str("health_addr", a.settings.HealthAddr),
				log.Str("metrics_addr", a.settings.MetricsAddr),
				log.Strs("resources", a.manager.Names()))

			return runtimex.Serve(ctx, a.manager, runtimex.ServeOptions{
				HealthAddr:        a.settings.HealthAddr,
				MetricsAddr:       a.settings.MetricsAddr,
				HealthTimeout:     a.settings.HealthTimeout,
				HealthTimeoutFunc: a.live.HealthTimeout,
				IncludeOptional:   true,
				ShutdownTimeout:   a.shutdownTimeout(),
				Logger:            a.logger,
			})
		},
	}
}
