// Package main provides the orchid command.
//
// Usage:
//
//	orchid serve  [--config file]...   run health and metrics endpoints until signalled
//	orchid health [--config file]...   start resources once and print the health report
//	orchid version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configFiles []string
	envPrefix   string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "orchid",
		Short: "Resource runtime for orchid services",
		Long: `orchid builds the backing resources a service is configured for
(SQL databases, Redis, S3-compatible object storage), serves their
aggregated health report and Prometheus metrics, and closes them on
shutdown.

Configuration comes from the environment, optionally overridden by
.env and YAML files given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVarP(&flags.configFiles, "config", "c", nil, "Config file (.env or .yaml), may be repeated")
	cmd.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", "", "Only read environment variables with this prefix")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "V", false, "Force debug logging")

	cmd.AddCommand(newServeCmd(flags), newHealthCmd(flags), newVersionCmd())
	cmd.Version = versionString()
	cmd.SetVersionTemplate("{{.Version}}\n")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "orchid: %v\n", err)
		os.Exit(1)
	}
}
