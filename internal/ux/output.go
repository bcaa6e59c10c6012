package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/state"
)

// Color helpers. fatih/color disables them when stdout is not a terminal.
var (
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()

	boldGreen = color.New(color.Bold, color.FgGreen).SprintFunc()
)

// ErrorPrefix is printed ahead of a fatal error by the CLI.
func ErrorPrefix() string {
	return red("error:")
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// Printer writes operator-facing progress lines.
type Printer struct {
	W io.Writer
}

// NewPrinter returns a Printer on w, or on stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{W: w}
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.W, "%s  %s\n", dim("["+timestamp()+"]"), fmt.Sprintf(format, args...))
}

// Plan prints the run banner before the first task.
func (p *Printer) Plan(topic, output string, tasks, target int) {
	fmt.Fprintf(p.W, "%s %s\n", bold("Topic:"), topic)
	fmt.Fprintf(p.W, "%s %s (%d tasks, ~%d lines)\n", bold("Output:"), output, tasks, target)
}

// TaskHeader prints a timestamped task header.
func (p *Printer) TaskHeader(index, total int, task state.Task) {
	rule := cyan(strings.Repeat("═", 38))
	fmt.Fprintf(p.W, "\n%s %s\n", dim("["+timestamp()+"]"), rule)
	flags := requirementTags(task)
	p.line("%s%s", bold(fmt.Sprintf("Task %d/%d: %s", index+1, total, task.Title)), flags)
	fmt.Fprintf(p.W, "%s %s\n", dim("["+timestamp()+"]"), rule)
}

func requirementTags(task state.Task) string {
	var tags []string
	if task.RequireDiagram {
		tags = append(tags, "diagram")
	}
	if task.RequireTable {
		tags = append(tags, "table")
	}
	if task.RequireExamples {
		tags = append(tags, "examples")
	}
	if len(tags) == 0 {
		return ""
	}
	return dim(" [" + strings.Join(tags, ", ") + "]")
}

// Generated prints the size of a freshly generated block.
func (p *Printer) Generated(lines, attempt int) {
	if attempt > 1 {
		p.line("generated %d lines (attempt %d)", lines, attempt)
		return
	}
	p.line("generated %d lines", lines)
}

// Review prints a review verdict for one iteration.
func (p *Printer) Review(iteration, max int, passed bool, issues []string) {
	if passed {
		p.line("%s", green(fmt.Sprintf("✓ review %d/%d passed", iteration, max)))
		return
	}
	p.line("%s", yellow(fmt.Sprintf("↺ review %d/%d: %d issue(s), improving", iteration, max, len(issues))))
	for _, is := range issues {
		fmt.Fprintf(p.W, "             %s %s\n", dim("-"), is)
	}
}

// ReviewExhausted notes that the block is kept despite open issues.
func (p *Printer) ReviewExhausted(max int) {
	p.line("%s", yellow(fmt.Sprintf("review budget of %d iteration(s) spent, keeping current block", max)))
}

// Diagrams summarizes the diagram sub-pipeline for one block.
func (p *Printer) Diagrams(rendered, failed int) {
	if rendered == 0 && failed == 0 {
		return
	}
	msg := fmt.Sprintf("diagrams: %d rendered", rendered)
	if failed > 0 {
		p.line("%s, %s", msg, yellow(fmt.Sprintf("%d kept as source", failed)))
		return
	}
	p.line("%s", msg)
}

// TaskComplete prints a task completion message.
func (p *Printer) TaskComplete(index, totalLines int, duration time.Duration) {
	p.line("%s", green(fmt.Sprintf("✓ Task %d complete, %d lines total (%s)",
		index+1, totalLines, state.FormatDuration(duration))))
}

// TaskFail prints a task failure message.
func (p *Printer) TaskFail(index int, title, errMsg string) {
	p.line("%s", red(fmt.Sprintf("✗ Task %d (%s) failed: %s", index+1, title, errMsg)))
}

// Resumed prints where a resumed run picks up.
func (p *Printer) Resumed(index, total int, trimmed int64) {
	p.line("%s", cyan(fmt.Sprintf("resuming at task %d/%d", index+1, total)))
	if trimmed > 0 {
		p.line("%s", yellow(fmt.Sprintf("trimmed %d uncommitted byte(s) from the output", trimmed)))
	}
}

// ResumeHint prints a resume command hint.
func (p *Printer) ResumeHint(topic, output string) {
	fmt.Fprintf(p.W, "\n%s tome run %q %s\n", yellow("Resume:"), topic, output)
}

// Interrupted prints the interruption notice.
func (p *Printer) Interrupted(index int) {
	p.line("%s", yellow(fmt.Sprintf("interrupted before task %d, progress saved", index+1)))
}

// Success prints a final success message.
func (p *Printer) Success(total, lines int, output string) {
	fmt.Fprintf(p.W, "\n%s  %s\n\n", dim("["+timestamp()+"]"),
		boldGreen(fmt.Sprintf("══ All %d tasks complete: %d lines in %s ══", total, lines, output)))
}

// Usage prints backend call counters.
func (p *Printer) Usage(s llm.Snapshot) {
	if s.Calls == 0 {
		return
	}
	fmt.Fprintf(p.W, "%s %d calls (%d failed, %d retried), %d in / %d out tokens\n",
		bold("Backend:"), s.Calls, s.Failures, s.Retries, s.InputTokens, s.OutputTokens)
	for _, purpose := range s.Purposes() {
		fmt.Fprintf(p.W, "  %-12s %d\n", purpose, s.ByPurpose[purpose])
	}
}

// Warn prints a non-fatal warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.W, "%s %s\n", yellow("warning:"), fmt.Sprintf(format, args...))
}
