package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"appdeck/internal/domain/model"

	"github.com/spf13/cobra"
)

type deployOpts struct {
	*rootOpts
	wait            bool
	follow          bool
	runAsUser       string
	preInstallHook  bool
	forceDelete     bool
	skipEnvTransfer bool
}

func newDeploy(parent *rootOpts) *deployOpts {
	return &deployOpts{rootOpts: parent}
}

func (opts *deployOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <id>",
		Short: "Install or update an application.",
		Example: `  appdeck deploy 3f1c --follow
  appdeck deploy 3f1c --force-delete-data --pre-install-hook`,
		RunE: opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "block until the run completes")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "stream the run's events until it completes")
	cmd.Flags().StringVar(&opts.runAsUser, "run-as", "", "account lifecycle hooks run as")
	cmd.Flags().BoolVar(&opts.preInstallHook, "pre-install-hook", false, "run the pre-install hook on a first install")
	cmd.Flags().BoolVar(&opts.forceDelete, "force-delete-data", false, "remove existing volumes and managed data first")
	cmd.Flags().BoolVar(&opts.skipEnvTransfer, "no-env-transfer", false, "do not carry customised environment values into the new descriptor")
	return cmd
}

func (opts *deployOpts) runOptions() model.RunOptions {
	o := model.DefaultRunOptions()
	o.RunAsUser = opts.runAsUser
	o.RunPreInstallHook = opts.preInstallHook
	o.ForceDeleteExistingData = opts.forceDelete
	o.TransferEnvironment = !opts.skipEnvTransfer
	return o
}

func (opts *deployOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	if opts.wait && opts.follow {
		return newUsageError("please supply only one of --wait, --follow")
	}
	ctx := context.Background()
	id := args[0]
	out := cmd.OutOrStdout()

	var after uint64
	if opts.follow {
		history, err := opts.API.Events(ctx, id, 0, "")
		if err != nil {
			return err
		}
		if n := len(history); n > 0 {
			after = history[n-1].Seq
		}
	}

	result, err := opts.API.Deploy(ctx, id, opts.runOptions(), opts.wait)
	if err != nil {
		return err
	}

	if opts.follow {
		fmt.Fprintf(out, "Run %s started\n", result.RunID)
		return followRun(ctx, opts.rootOpts, out, id, after, result.RunID)
	}
	if !opts.wait {
		fmt.Fprintf(out, "Run %s started\n", result.RunID)
		return nil
	}
	if !result.Success {
		return fmt.Errorf("run %s failed: %s", result.RunID, result.Message)
	}
	fmt.Fprintf(out, "Run %s succeeded, running: %t\n", result.RunID, result.Running)
	if result.Message != "" {
		fmt.Fprintln(out, result.Message)
	}
	return nil
}

var errRunFailed = errors.New("run failed")

// followRun prints the events of runID until its final event.
func followRun(ctx context.Context, opts *rootOpts, out io.Writer, id string, after uint64, runID string) error {
	var failed bool
	err := opts.API.StreamEvents(ctx, id, after, runID, func(e model.Event) bool {
		printEvent(out, e)
		switch {
		case e.Stage == model.StageDone:
			return false
		case e.Level == model.EventError:
			failed = true
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if failed {
		return errRunFailed
	}
	return nil
}
