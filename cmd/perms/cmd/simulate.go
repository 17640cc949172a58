package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kubiakdev/perms/internal/logging"
	"github.com/kubiakdev/perms/internal/scenario"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		path   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario against a simulated permission host",
		Long: `Simulate plays every round of a scenario file against an in-memory host
that behaves like Android: a first denial makes the rationale visible,
"deny_forever" hides it and later requests are denied without a dialog.

Each round reports whether a dialog was shown and which callbacks fired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := scenario.Load(path)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout := a.cfg.Request.Timeout; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			logger := logging.FromContext(ctx)
			report, err := scenario.Run(ctx, s, a.cfg.PermsOptions(*logger)...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				return report.Write(out)
			case "yaml":
				enc := yaml.NewEncoder(out)
				if err := enc.Encode(report); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
		},
	}

	cmd.Flags().StringVarP(&path, "scenario", "s", "", "scenario file (YAML)")
	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format (text, yaml)")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}
