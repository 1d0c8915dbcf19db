package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type descriptorOpts struct {
	*rootOpts
	file string
}

func newDescriptor(parent *rootOpts) *descriptorOpts {
	return &descriptorOpts{rootOpts: parent}
}

func (opts *descriptorOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "descriptor",
		Short: "Read or replace an application's working descriptor.",
	}
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print the working descriptor.",
		RunE:  opts.getE,
	}
	put := &cobra.Command{
		Use:   "put <id>",
		Short: "Replace the working descriptor; it is applied by the next deploy.",
		RunE:  opts.putE,
	}
	put.Flags().StringVarP(&opts.file, "file", "f", "-", "descriptor file, - for stdin")
	cmd.AddCommand(get, put)
	return cmd
}

func (opts *descriptorOpts) getE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	text, err := opts.API.GetDescriptor(context.Background(), args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), text)
	return err
}

func (opts *descriptorOpts) putE(cmd *cobra.Command, args []string) error {
	if err := exactlyOneArg(args); err != nil {
		return err
	}
	text, err := readInput(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}
	if err := opts.API.PutDescriptor(context.Background(), args[0], text); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Descriptor stored")
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
