package main

import (
	"context"
	"errors"
	"fmt"

	"appdeck/pkg/capabilities"

	"github.com/spf13/cobra"
)

type doctorOpts struct {
	factory *capabilities.CapabilityFactory
}

func newDoctor() *doctorOpts {
	return &doctorOpts{factory: capabilities.NewCapabilityFactory()}
}

func (opts *doctorOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the host tools the pipeline needs.",
		RunE:  opts.RunE,
	}
}

func (opts *doctorOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	info := capabilities.GetSystemInfo()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Platform: %s/%s\n", info.OS, info.Arch)

	w := newTabwriter(out)
	fmt.Fprintf(w, "TOOL\tAVAILABLE\tVERSION\n")
	missing := 0
	for _, r := range opts.factory.Probe(context.Background()) {
		if !r.Available {
			missing++
		}
		fmt.Fprintf(w, "%s\t%t\t%s\n", r.Name, r.Available, r.Version)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if missing > 0 {
		return errors.New("required tools are missing")
	}
	return nil
}
