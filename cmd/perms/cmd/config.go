package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kubiakdev/perms/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect perms.yaml",
	}

	var dir string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Show prints the configuration after defaults, perms.yaml, PERMS_
environment variables and flags are applied. With --dir it prints
perms.yaml from that directory merged over the defaults only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if dir != "" {
				var err error
				if cfg, err = config.LoadOptional(dir); err != nil {
					return err
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	show.Flags().StringVar(&dir, "dir", "", "directory containing perms.yaml")

	cmd.AddCommand(show)
	return cmd
}
