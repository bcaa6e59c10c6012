package ux

import (
	"fmt"
	"io"

	"github.com/jorge-barreto/tome/internal/state"
)

// RenderStatus prints the full status display for a checkpoint.
func RenderStatus(w io.Writer, cp *state.Checkpoint, timing *state.Timing) {
	total := len(cp.Tasks)

	fmt.Fprintf(w, "%s   %s\n", bold("Topic:"), cp.Topic)
	fmt.Fprintf(w, "%s  %s\n", bold("Output:"), cp.OutputPath)
	fmt.Fprintf(w, "%s     %s\n", bold("Run:"), cp.RunID)
	if cp.Done() {
		fmt.Fprintf(w, "%s   %s\n", bold("State:"), boldGreen("completed"))
	} else {
		fmt.Fprintf(w, "%s   %d/%d (%s) — %s\n",
			bold("State:"), cp.Index+1, total, cp.Tasks[cp.Index].Title, statusColor(cp.Status))
	}
	fmt.Fprintf(w, "%s   %d / %d target\n", bold("Lines:"), cp.LineCount, cp.TargetLines)
	if cp.LastError != "" {
		fmt.Fprintf(w, "%s   %s\n", bold("Error:"), red(cp.LastError))
	}

	if cp.Index > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Completed:"))
		for i := 0; i < cp.Index; i++ {
			t := cp.Tasks[i]
			dur := ""
			if d := timing.Last(i); d != "" {
				dur = "(" + d + ")"
			}
			fmt.Fprintf(w, "  %s  %-40s %s %4d lines  %s\n",
				dim(fmt.Sprintf("%2d", i+1)), t.Title, green("done"), t.Lines, dur)
		}
	}

	if !cp.Done() {
		fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("Remaining (%d):", cp.Remaining())))
		for i := cp.Index; i < total; i++ {
			t := cp.Tasks[i]
			marker := "  "
			if i == cp.Index {
				marker = yellow("→") + " "
			}
			note := ""
			if t.Attempts > 0 {
				note = dim(fmt.Sprintf("(%d failed attempt(s))", t.Attempts))
			}
			fmt.Fprintf(w, "  %s%s  %-40s %s\n", marker, dim(fmt.Sprintf("%2d", i+1)), t.Title, note)
		}
	}
	fmt.Fprintln(w)
}

func statusColor(s string) string {
	switch s {
	case state.StatusCompleted:
		return green(s)
	case state.StatusFailed, state.StatusIncomplete:
		return red(s)
	case state.StatusInterrupted:
		return yellow(s)
	}
	return s
}
