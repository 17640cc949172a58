// Package cmd implements the perms CLI commands.
//
// The root command loads perms.yaml (or the file named by --config), sets up
// logging and the global error handler, then dispatches to simulate,
// classify, config and version.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubiakdev/perms/internal/config"
	"github.com/kubiakdev/perms/internal/logging"
	"github.com/kubiakdev/perms/pkg/errors"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// app carries state shared by subcommands once the root has run.
type app struct {
	configFile string
	cfg        *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "perms",
		Short:         "Simulate and inspect runtime permission requests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.configFile != "" {
				v.SetConfigFile(a.configFile)
			} else {
				v.AddConfigPath(".")
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logCfg := logging.DefaultConfig()
			logCfg.Level = cfg.LogLevel()
			logCfg.Format = cfg.Log.Format
			logCfg.Output = cmd.ErrOrStderr()
			logger := logging.New(logCfg)
			errors.SetHandler(&errors.LogHandler{Verbose: cfg.Errors.Verbose, Logger: &logger})
			cmd.SetContext(logging.WithComponent(logging.WithContext(cmd.Context(), logger), cmd.Name()))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "path to perms.yaml")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	mustBind(v.BindPFlag("log.level", flags.Lookup("log-level")))
	mustBind(v.BindPFlag("log.format", flags.Lookup("log-format")))

	root.AddCommand(newSimulateCmd(a))
	root.AddCommand(newClassifyCmd())
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func mustBind(err error) {
	if err != nil {
		panic(fmt.Sprintf("perms: bind flag: %v", err))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "perms %s (built %s)\n", Version, BuildTime)
			return err
		},
	}
}
