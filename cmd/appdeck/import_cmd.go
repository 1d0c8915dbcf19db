package main

import (
	"context"
	"fmt"
	"os"

	"appdeck/internal/domain/model"

	"github.com/spf13/cobra"
)

type importOpts struct {
	*rootOpts
	descriptorFile string
	name           string
}

func newImport(parent *rootOpts) *importOpts {
	return &importOpts{rootOpts: parent}
}

func (opts *importOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [location]",
		Short: "Register an application from a git location or a descriptor file.",
		Example: `  appdeck import https://github.com/org/app.git
  appdeck import --file compose.yml --name wiki`,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.descriptorFile, "file", "f", "", "register from this descriptor instead of a source location")
	cmd.Flags().StringVar(&opts.name, "name", "", "application name when importing a descriptor")
	return cmd
}

func (opts *importOpts) RunE(cmd *cobra.Command, args []string) error {
	var (
		details *model.AppDetails
		err     error
	)
	switch {
	case opts.descriptorFile != "" && len(args) == 0:
		text, readErr := os.ReadFile(opts.descriptorFile)
		if readErr != nil {
			return readErr
		}
		details, err = opts.API.ImportDescriptor(context.Background(), opts.name, string(text))
	case opts.descriptorFile == "" && len(args) == 1:
		details, err = opts.API.Import(context.Background(), args[0])
	default:
		return newUsageError("please supply either a location or --file")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s\n", details.App.Identity(), details.App.ID)
	return nil
}
