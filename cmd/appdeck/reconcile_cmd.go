package main

import (
	"context"
	"fmt"

	"appdeck/internal/domain/model"

	"github.com/spf13/cobra"
)

type reconcileOpts struct {
	*rootOpts
	file string
	json bool
}

func newReconcile(parent *rootOpts) *reconcileOpts {
	return &reconcileOpts{rootOpts: parent}
}

func (opts *reconcileOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <id>",
		Short: "Compare a descriptor with the application's current one without changing anything.",
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "descriptor file, - for stdin")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print JSON")
	return cmd
}

func (opts *reconcileOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	text, err := readInput(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}
	res, err := opts.API.Reconcile(context.Background(), args[0], text)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if opts.json {
		return printJSON(out, res)
	}

	for _, line := range res.Diff {
		switch line.Op {
		case model.DiffValue:
			fmt.Fprintf(out, "%s %s  (was %s)\n", line.Op, line.Text, line.Old)
		default:
			fmt.Fprintf(out, "%s %s\n", line.Op, line.Text)
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if res.StructurallyChanged {
		fmt.Fprintln(out, "Structure changed")
	} else {
		fmt.Fprintln(out, "Structure unchanged")
	}
	for _, k := range res.TransferableKeys {
		fmt.Fprintf(out, "Transferable: %s.%s\n", k.Service, k.Key)
	}
	return nil
}
