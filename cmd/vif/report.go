package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/arach/vif-sub000/internal/history"
	"github.com/arach/vif-sub000/internal/runner"
)

// printReport writes the completion or failure line and the validation summary.
func printReport(w io.Writer, report *runner.Report, runErr error) {
	if report == nil {
		return
	}
	duration := report.Duration.Round(100 * time.Millisecond)

	if runErr == nil {
		fmt.Fprintf(w, "Scene %q completed in %s\n", report.Scene, duration)
	} else {
		fmt.Fprintf(w, "Scene %q %s after %s\n", report.Scene, report.Status, duration)
	}
	for _, out := range report.Outputs {
		fmt.Fprintf(w, "  output: %s\n", out)
	}

	sum := report.Summary
	if sum.Total() == 0 {
		return
	}
	fmt.Fprintf(w, "  validation: %d passed, %d failed, %d unverified\n", sum.Passed, sum.Failed, sum.Unverified)
	for _, f := range sum.Failures {
		fmt.Fprintf(w, "    %s %s: %s\n", f.Action, f.Target, f.Error)
	}
}

// printHistory writes runs as an aligned table, newest first.
func printHistory(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCENE\tMODE\tSTATUS\tSTARTED\tDURATION\tOUTPUT")
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		duration := "-"
		if run.CompletedAt != nil {
			duration = (time.Duration(run.DurationMS) * time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			id, run.Scene, run.Mode, run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), duration, run.Output)
	}
	return tw.Flush()
}
