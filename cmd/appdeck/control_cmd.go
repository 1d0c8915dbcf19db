package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type controlOpts struct {
	*rootOpts
	start bool
}

func newControl(parent *rootOpts, start bool) *controlOpts {
	return &controlOpts{rootOpts: parent, start: start}
}

func (opts *controlOpts) Command() *cobra.Command {
	if opts.start {
		return &cobra.Command{
			Use:   "start <id>",
			Short: "Start an installed application.",
			RunE:  opts.RunE,
		}
	}
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop an installed application without removing it.",
		RunE:  opts.RunE,
	}
}

func (opts *controlOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	details, err := opts.API.SetRunning(context.Background(), args[0], opts.start)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, running: %t\n", details.App.Identity(), details.App.Status, details.App.Running)
	return nil
}

type autoUpdateOpts struct {
	*rootOpts
	disable  bool
	interval int
}

func newAutoUpdate(parent *rootOpts) *autoUpdateOpts {
	return &autoUpdateOpts{rootOpts: parent}
}

func (opts *autoUpdateOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto-update <id>",
		Short: "Turn automatic updates of a source-controlled application on or off.",
		RunE:  opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.disable, "disable", false, "turn automatic updates off")
	cmd.Flags().IntVar(&opts.interval, "interval", 0, "minutes between update checks, at least 5")
	return cmd
}

func (opts *autoUpdateOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	details, err := opts.API.SetAutoUpdate(context.Background(), args[0], !opts.disable, opts.interval)
	if err != nil {
		return err
	}
	a := details.App
	if a.AutoUpdate {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: checking for updates every %d minutes\n", a.Identity(), a.AutoUpdateIntervalMinutes)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: automatic updates off\n", a.Identity())
	}
	return nil
}

type removeOpts struct {
	*rootOpts
	preserveData bool
}

func newRemove(parent *rootOpts) *removeOpts {
	return &removeOpts{rootOpts: parent}
}

func (opts *removeOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Uninstall an application and delete its record.",
		RunE:  opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.preserveData, "preserve-data", false, "keep volumes and managed data directories")
	return cmd
}

func (opts *removeOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	if err := opts.API.Remove(context.Background(), args[0], opts.preserveData); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}
