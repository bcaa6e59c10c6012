package diagram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeRenderer = `#!/bin/bash
while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift 2 ;;
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if grep -q BROKEN "$in"; then
  echo "Parse error on line 2: unexpected BROKEN" >&2
  exit 1
fi
cp "$in" "$out"
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-mmdc")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func TestCLIRenderer_Success(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "d.mmd")
	out := filepath.Join(dir, "d.png")
	require.NoError(t, os.WriteFile(src, []byte("graph TD\n  A --> B\n"), 0644))

	r := &CLIRenderer{Binary: writeScript(t, fakeRenderer), Args: []string{"-b", "transparent"}, Timeout: 10 * time.Second}
	require.NoError(t, r.Render(context.Background(), src, out))
	assert.FileExists(t, out)
	assert.NoFileExists(t, filepath.Join(dir, "d.log"))
}

func TestCLIRenderer_RejectionCarriesDiagnostic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "d.mmd")
	require.NoError(t, os.WriteFile(src, []byte("graph TD\n  A --> BROKEN\n"), 0644))

	r := &CLIRenderer{Binary: writeScript(t, fakeRenderer), Timeout: 10 * time.Second}
	err := r.Render(context.Background(), src, filepath.Join(dir, "d.png"))
	var rerr *RenderError
	require.True(t, errors.As(err, &rerr), "err = %v", err)
	assert.Equal(t, 1, rerr.ExitCode)
	assert.Contains(t, rerr.Output, "Parse error on line 2")

	logData, err := os.ReadFile(filepath.Join(dir, "d.log"))
	require.NoError(t, err, "a rejected render keeps its log")
	assert.Contains(t, string(logData), "Parse error on line 2")
}

func TestCLIRenderer_PassesEnv(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "d.mmd")
	require.NoError(t, os.WriteFile(src, []byte("graph TD\n"), 0644))

	script := "#!/bin/bash\necho \"browser=$TOME_BROWSER\" >&2\nexit 3\n"
	r := &CLIRenderer{Binary: writeScript(t, script), Env: []string{"TOME_BROWSER=/usr/bin/chromium"}, Timeout: 10 * time.Second}
	err := r.Render(context.Background(), src, filepath.Join(dir, "d.png"))
	var rerr *RenderError
	require.True(t, errors.As(err, &rerr), "err = %v", err)
	assert.Contains(t, rerr.Output, "browser=/usr/bin/chromium")
}

func TestLogPath(t *testing.T) {
	assert.Equal(t, filepath.Join("images", "diagram-1-1.log"), LogPath(filepath.Join("images", "diagram-1-1.mmd")))
}

func TestCLIRenderer_NoImageWritten(t *testing.T) {
	dir := t.TempDir()
	r := &CLIRenderer{Binary: writeScript(t, "#!/bin/bash\nexit 0\n"), Timeout: 10 * time.Second}
	err := r.Render(context.Background(), filepath.Join(dir, "d.mmd"), filepath.Join(dir, "d.png"))
	var rerr *RenderError
	assert.True(t, errors.As(err, &rerr))
}

func TestCLIRenderer_Timeout(t *testing.T) {
	dir := t.TempDir()
	r := &CLIRenderer{Binary: writeScript(t, "#!/bin/bash\nexec sleep 5\n"), Timeout: 100 * time.Millisecond}
	err := r.Render(context.Background(), filepath.Join(dir, "d.mmd"), filepath.Join(dir, "d.png"))
	var rerr *RenderError
	require.True(t, errors.As(err, &rerr), "err = %v", err)
	assert.True(t, rerr.TimedOut)
	assert.Contains(t, rerr.Error(), "timed out")
}

func TestCLIRenderer_MissingBinary(t *testing.T) {
	dir := t.TempDir()
	r := &CLIRenderer{Binary: "tome-no-such-mmdc"}
	err := r.Render(context.Background(), filepath.Join(dir, "in.mmd"), filepath.Join(dir, "out.png"))
	require.Error(t, err)
	var rerr *RenderError
	assert.False(t, errors.As(err, &rerr))
}
