package main

import (
	"fmt"
	"os"

	"appdeck/internal/application/config"

	"github.com/spf13/cobra"
)

type configInitOpts struct {
	configPath string
	force      bool
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the daemon configuration file.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
	}
	cmd.AddCommand((&configInitOpts{}).Command())
	return cmd
}

func (opts *configInitOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings.",
		Example: `  appdeck config init
  appdeck config init -c ./appdeck.json --force`,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to write; .yaml and .yml are written as YAML, anything else as JSON")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing file")
	return cmd
}

func (opts *configInitOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if _, err := os.Stat(opts.configPath); err == nil && !opts.force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", opts.configPath)
	}
	if err := config.SaveConfig(config.NewConfig(), opts.configPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", opts.configPath)
	return nil
}
