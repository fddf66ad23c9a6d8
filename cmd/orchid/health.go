package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// errNotReady fails the health command when the report is not ready.
type errNotReady struct{ status string }

func (e errNotReady) Error() string { return "not ready: " + e.status }

func newHealthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Start resources once and print the health report as JSON",
		Long: `Build every configured resource, print the aggregated health report
to stdout and close everything again. The command fails when the report
is not ready, which makes it usable as a container probe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			a, err := start(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.shutdownTelemetry()
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout())
				defer cancel()
				if cerr := a.manager.CloseAll(closeCtx); cerr != nil && err == nil {
					err = cerr
				}
			}()

			report := a.manager.HealthReport(ctx, a.reportOptions())
			payload, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			if !report.Readiness {
				return errNotReady{status: string(report.Status)}
			}
			return nil
		},
	}
}
