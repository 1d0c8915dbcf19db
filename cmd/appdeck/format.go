package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"appdeck/internal/domain/model"
)

func newTabwriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEvent(w io.Writer, e model.Event) {
	stage := string(e.Stage)
	if stage == "" {
		stage = "-"
	}
	fmt.Fprintf(w, "%s  %-5s  %-18s  %s\n", e.Time.Local().Format(time.TimeOnly), e.Level, stage, e.Message)
}

func printDetails(w io.Writer, d *model.AppDetails) {
	a := d.App
	tw := newTabwriter(w)
	fmt.Fprintf(tw, "ID:\t%s\n", a.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", a.Identity())
	fmt.Fprintf(tw, "Source:\t%s %s\n", a.SourceKind, a.SourceLocation)
	fmt.Fprintf(tw, "Status:\t%s\n", a.Status)
	if a.StatusMessage != "" {
		fmt.Fprintf(tw, "Message:\t%s\n", a.StatusMessage)
	}
	fmt.Fprintf(tw, "Installed:\t%t\n", a.Installed)
	fmt.Fprintf(tw, "Running:\t%t\n", a.Running)
	if a.CurrentVersion != "" {
		fmt.Fprintf(tw, "Version:\t%s\n", a.CurrentVersion)
	}
	if d.UpdateAvailable {
		fmt.Fprintf(tw, "Update:\t%s available\n", a.LatestVersion)
	}
	if a.AutoUpdate {
		fmt.Fprintf(tw, "Auto update:\tevery %d minutes\n", a.AutoUpdateIntervalMinutes)
	}
	if d.Runtime != nil {
		for _, c := range d.Runtime.Containers {
			fmt.Fprintf(tw, "Container:\t%s (%s)\n", c.Name, containerState(c.StatusCode))
		}
	}
	tw.Flush()
}

func containerState(code model.ContainerStatusCode) string {
	switch code {
	case model.ContainerStatusActive:
		return "active"
	case model.ContainerStatusIdle:
		return "idle"
	case model.ContainerStatusRestarting:
		return "restarting"
	case model.ContainerStatusProblematic:
		return "problematic"
	case model.ContainerStatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
