package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process
// is killed; renderers often leave child browser processes holding them.
const waitDelay = 2 * time.Second

// Run executes c and waits for it. The returned error is non-nil only when
// the command could not be started or the parent context was cancelled.
func Run(ctx context.Context, c Command) (*Result, error) {
	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Env = buildEnv(c.Env)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	var outW, errW io.Writer = &stdout, &stderr
	if c.LogPath != "" {
		logFile, err := os.Create(c.LogPath)
		if err != nil {
			return nil, fmt.Errorf("creating log %s: %w", c.LogPath, err)
		}
		defer logFile.Close()
		outW = io.MultiWriter(&stdout, logFile)
		errW = io.MultiWriter(&stderr, logFile)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	start := time.Now()
	runErr := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%s: %w", c.Name, err)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	code, err := exitCode(runErr)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", c.Name, err)
	}
	res.ExitCode = code
	return res, nil
}

// exitCode maps a Run error to an exit status; errors that are not exit
// statuses (binary missing, permission denied) are passed through.
func exitCode(err error) (int, error) {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return 0, err
	}
}
