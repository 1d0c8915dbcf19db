package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type appsOpts struct {
	*rootOpts
	json bool
}

func newApps(parent *rootOpts) *appsOpts {
	return &appsOpts{rootOpts: parent}
}

func (opts *appsOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apps",
		Aliases: []string{"list"},
		Short:   "List managed applications.",
		RunE:    opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")
	return cmd
}

func (opts *appsOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	apps, err := opts.API.ListApps(context.Background())
	if err != nil {
		return err
	}
	if opts.json {
		return printJSON(cmd.OutOrStdout(), apps)
	}

	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "ID\tNAME\tSTATUS\tRUNNING\tVERSION\tUPDATE\n")
	for _, a := range apps {
		update := ""
		if a.UpdateAvailable() {
			update = a.LatestVersion
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", a.ID, a.Identity(), a.Status, a.Running, a.CurrentVersion, update)
	}
	return w.Flush()
}

type showOpts struct {
	*rootOpts
	json bool
}

func newShow(parent *rootOpts) *showOpts {
	return &showOpts{rootOpts: parent}
}

func (opts *showOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one application with its containers.",
		RunE:  opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print JSON")
	return cmd
}

func (opts *showOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	details, err := opts.API.GetApp(context.Background(), args[0])
	if err != nil {
		return err
	}
	if opts.json {
		return printJSON(cmd.OutOrStdout(), details)
	}
	printDetails(cmd.OutOrStdout(), details)
	return nil
}
