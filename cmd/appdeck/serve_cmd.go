package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"appdeck/internal/application/config"
	"appdeck/internal/application/daemon"
	"appdeck/internal/application/version"
	"appdeck/pkg/log"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "/etc/appdeck/config.yaml"

type serveOpts struct {
	configPath string
}

func newServe() *serveOpts {
	return &serveOpts{}
}

func (opts *serveOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the appdeck daemon.",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the JSON or YAML configuration file")
	return cmd
}

func (opts *serveOpts) RunE(_ *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	log.InitLog(cfg.LogLevel, cfg.LogFormat)
	log.Info("Configuration loaded", "path", opts.configPath, "version", version.GetVersion())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("Received signal, initiating graceful shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	d, err := daemon.NewDaemon(ctx, cfg, opts.configPath, daemon.Options{})
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Run(ctx)
}
