package main

import (
	"context"

	"appdeck/internal/domain/model"

	"github.com/spf13/cobra"
)

type eventsOpts struct {
	*rootOpts
	follow bool
	after  uint64
	runID  string
}

func newEvents(parent *rootOpts) *eventsOpts {
	return &eventsOpts{rootOpts: parent}
}

func (opts *eventsOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <id>",
		Short: "Print an application's recent pipeline events.",
		RunE:  opts.RunE,
	}
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "keep streaming new events")
	cmd.Flags().Uint64Var(&opts.after, "after", 0, "only events with a higher sequence number")
	cmd.Flags().StringVar(&opts.runID, "run", "", "only events of this run")
	return cmd
}

func (opts *eventsOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if opts.follow {
		return opts.API.StreamEvents(ctx, args[0], opts.after, opts.runID, func(e model.Event) bool {
			printEvent(out, e)
			return true
		})
	}

	events, err := opts.API.Events(ctx, args[0], opts.after, opts.runID)
	if err != nil {
		return err
	}
	for _, e := range events {
		printEvent(out, e)
	}
	return nil
}
