// Package diagram turns fenced mermaid blocks inside a content block into
// rendered images, repairing the source when the renderer rejects it.
package diagram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jorge-barreto/tome/internal/dispatch"
)

// Renderer converts a diagram source file into an image file.
type Renderer interface {
	Render(ctx context.Context, srcPath, outPath string) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, srcPath, outPath string) error

func (f RendererFunc) Render(ctx context.Context, srcPath, outPath string) error {
	return f(ctx, srcPath, outPath)
}

// RenderError is a rejection by the renderer. Output holds its diagnostic
// stream, which is what the fixer needs to see.
type RenderError struct {
	Tool     string
	ExitCode int
	TimedOut bool
	Output   string
}

func (e *RenderError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out", e.Tool)
	}
	msg := strings.TrimSpace(e.Output)
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, msg)
}

// CLIRenderer runs an external renderer such as mmdc as
// "<Binary> -i <src> -o <out> <Args...>". Its combined output goes to a
// .log file beside the source, which is removed after a successful render
// and kept after a rejection.
type CLIRenderer struct {
	Binary  string
	Args    []string
	Env     []string // KEY=VALUE, added to the inherited environment
	Timeout time.Duration
	Exec    dispatch.Executor
}

// LogPath returns the log file a render of srcPath writes.
func LogPath(srcPath string) string {
	return strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".log"
}

func (r *CLIRenderer) Render(ctx context.Context, srcPath, outPath string) error {
	exec := r.Exec
	if exec == nil {
		exec = dispatch.DefaultExecutor{}
	}
	args := append([]string{"-i", srcPath, "-o", outPath}, r.Args...)
	logPath := LogPath(srcPath)
	res, err := exec.Run(ctx, dispatch.Command{
		Name:    r.Binary,
		Args:    args,
		Env:     r.Env,
		Timeout: r.Timeout,
		LogPath: logPath,
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return &RenderError{Tool: r.Binary, ExitCode: res.ExitCode, TimedOut: res.TimedOut, Output: res.Diagnostic()}
	}
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		return &RenderError{Tool: r.Binary, Output: "renderer reported success but wrote no image"}
	}
	os.Remove(logPath)
	return nil
}
