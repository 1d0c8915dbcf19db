package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"appdeck/internal/infra/api/client"

	"github.com/spf13/cobra"
)

const (
	EnvVariableURL = "APPDECK_URL"
	defaultURL     = "http://127.0.0.1:8420"
)

type rootOpts struct {
	URL     string
	Timeout time.Duration
	API     *client.Client
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
appdeck installs and updates Docker Compose applications on this host.

Workflow:
  appdeck import https://github.com/org/app.git   # Register an application
  appdeck deploy <id> --follow                    # Install it and watch progress
  appdeck descriptor get <id> > compose.yml       # Edit the descriptor
  appdeck reconcile <id> -f compose.yml           # Preview the change
  appdeck descriptor put <id> -f compose.yml      # Store it for the next deploy
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "appdeck",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", defaultURL,
		fmt.Sprintf("base URL of the appdeck API; you can also set the environment variable %s", EnvVariableURL))
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "HTTP request timeout, 0 for none")

	cmd.AddCommand(
		newServe().Command(),
		newApps(opts).Command(),
		newShow(opts).Command(),
		newImport(opts).Command(),
		newDeploy(opts).Command(),
		newDescriptor(opts).Command(),
		newReconcile(opts).Command(),
		newControl(opts, true).Command(),
		newControl(opts, false).Command(),
		newAutoUpdate(opts).Command(),
		newRemove(opts).Command(),
		newEvents(opts).Command(),
		newDoctor().Command(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}
	opts.API = client.New(&http.Client{Timeout: opts.Timeout}, url)
	return nil
}
