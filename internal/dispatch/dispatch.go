// Package dispatch runs external tools out of process with a bounded
// wall-clock timeout and captures their output streams.
package dispatch

import (
	"context"
	"os"
	"time"
)

// Command describes one external invocation.
type Command struct {
	Name    string
	Args    []string
	Env     []string      // appended to the inherited environment
	Timeout time.Duration // zero means no limit beyond ctx
	LogPath string        // when set, combined output is also written here
}

// Result holds the outcome of a command. A non-zero exit is reported here,
// not as an error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Success reports a clean exit within the timeout.
func (r *Result) Success() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// Diagnostic returns the stream a tool reports its errors on, falling back
// to stdout for tools that print failures there.
func (r *Result) Diagnostic() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return r.Stdout
}

// Executor abstracts process execution so callers can be tested without
// real binaries.
type Executor interface {
	Run(ctx context.Context, c Command) (*Result, error)
}

// DefaultExecutor runs commands with os/exec.
type DefaultExecutor struct{}

func (DefaultExecutor) Run(ctx context.Context, c Command) (*Result, error) {
	return Run(ctx, c)
}

func buildEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	return append(os.Environ(), extra...)
}
