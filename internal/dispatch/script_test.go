package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func bash(script string) Command {
	return Command{Name: "bash", Args: []string{"-c", script}}
}

func TestRun_Success(t *testing.T) {
	result, err := Run(context.Background(), bash("echo hello"))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success() || result.ExitCode != 0 {
		t.Fatalf("result = %+v", result)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Fatalf("stdout = %q", result.Stdout)
	}
}

func TestRun_FailureIsResult(t *testing.T) {
	result, err := Run(context.Background(), bash("echo 'Parse error on line 3' >&2; exit 1"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Success() || result.ExitCode != 1 {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Diagnostic(), "Parse error on line 3") {
		t.Fatalf("diagnostic = %q", result.Diagnostic())
	}
}

func TestRun_DiagnosticFallsBackToStdout(t *testing.T) {
	result, err := Run(context.Background(), bash("echo oops; exit 2"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(result.Diagnostic()) != "oops" {
		t.Fatalf("diagnostic = %q", result.Diagnostic())
	}
}

func TestRun_Timeout(t *testing.T) {
	c := bash("sleep 5")
	c.Timeout = 100 * time.Millisecond
	start := time.Now()
	result, err := Run(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !result.TimedOut || result.Success() {
		t.Fatalf("result = %+v", result)
	}
	if time.Since(start) > 4*time.Second {
		t.Fatal("timeout not enforced")
	}
}

func TestRun_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, bash("echo never")); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRun_MissingBinary(t *testing.T) {
	_, err := Run(context.Background(), Command{Name: "tome-no-such-binary"})
	if err == nil || !strings.Contains(err.Error(), "tome-no-such-binary") {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_EnvAndLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "render.log")
	c := bash("echo $TOME_TEST_VAR; echo warn >&2")
	c.Env = []string{"TOME_TEST_VAR=xyz"}
	c.LogPath = logPath

	result, err := Run(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Stdout, "xyz") {
		t.Fatalf("stdout = %q", result.Stdout)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "xyz") || !strings.Contains(string(data), "warn") {
		t.Fatalf("log = %q", data)
	}
}

func TestExitCode(t *testing.T) {
	if code, err := exitCode(nil); code != 0 || err != nil {
		t.Fatalf("nil: code=%d err=%v", code, err)
	}
	if code, err := exitCode(fmt.Errorf("some error")); code != 0 || err == nil {
		t.Fatalf("other: code=%d err=%v", code, err)
	}
	result, err := Run(context.Background(), bash("exit 42"))
	if err != nil || result.ExitCode != 42 {
		t.Fatalf("exit 42: result=%+v err=%v", result, err)
	}
}
