package diagram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorge-barreto/tome/internal/llm"
)

// stubRenderer "renders" by copying the source, rejecting any source that
// mentions BROKEN.
type stubRenderer struct {
	calls []string
}

func (s *stubRenderer) Render(_ context.Context, srcPath, outPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	s.calls = append(s.calls, string(data))
	if strings.Contains(string(data), "BROKEN") {
		return &RenderError{Tool: "stub", ExitCode: 1, Output: "Parse error: BROKEN"}
	}
	return os.WriteFile(outPath, data, 0644)
}

type countingFixer struct {
	calls []FixRequest
	fn    func(FixRequest) (string, error)
}

func (c *countingFixer) Fix(_ context.Context, req FixRequest) (string, error) {
	c.calls = append(c.calls, req)
	return c.fn(req)
}

func newPipeline(t *testing.T, r Renderer, f Fixer) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	return &Pipeline{
		Renderer: r,
		Fixer:    f,
		Options: Options{
			ImagesDir:   filepath.Join(dir, "images"),
			LinkBase:    dir,
			FixAttempts: 3,
		},
	}, dir
}

func fence(body string) string {
	return "```mermaid\n" + body + "```"
}

func TestProcess_OffsetCorrectness(t *testing.T) {
	diagrams := []string{
		"graph TD\n  A --> B\n",
		"flowchart LR\n  start --> finish\n  finish --> again\n",
		"sequenceDiagram\n  A->>B: hi\n",
	}
	prose := []string{
		"",
		"\n\n## Maps & Sets\n\nSome text with ```inline``` ticks.\n\n```go\nfmt.Println(\"not a diagram\")\n```\n\n",
		"\nBetween.\n",
		"",
	}
	var input strings.Builder
	for i, d := range diagrams {
		input.WriteString(prose[i])
		input.WriteString(fence(d))
	}
	input.WriteString(prose[3])

	renderer := &stubRenderer{}
	p, _ := newPipeline(t, renderer, nil)
	out, report, err := p.Process(context.Background(), Block{Text: input.String(), TaskIndex: 2, Title: "Maps & Sets"})
	require.NoError(t, err)

	var want strings.Builder
	for i := range diagrams {
		want.WriteString(prose[i])
		fmt.Fprintf(&want, "![Maps & Sets diagram %d](images/diagram-3-%d-maps-sets.png)", i+1, i+1)
	}
	want.WriteString(prose[3])
	assert.Equal(t, want.String(), out)

	require.Len(t, report.Units, 3)
	assert.Equal(t, 3, report.Count(StatusSucceeded))
	for i, u := range report.Units {
		assert.Equal(t, i+1, u.Ordinal)
		assert.FileExists(t, u.ImagePath)
		src, err := os.ReadFile(u.SourcePath)
		require.NoError(t, err)
		assert.Equal(t, Prefix(diagrams[i]), string(src), "sibling .mmd holds the rendered source")
		assert.Equal(t, strings.TrimSuffix(u.ImagePath, ".png"), strings.TrimSuffix(u.SourcePath, ".mmd"))
	}
}

func TestProcess_GracefulDegradation(t *testing.T) {
	failing := RendererFunc(func(ctx context.Context, src, out string) error {
		return &RenderError{Tool: "stub", ExitCode: 1, Output: "always broken"}
	})
	fixer := &countingFixer{fn: func(req FixRequest) (string, error) { return req.Source, nil }}
	p, _ := newPipeline(t, failing, fixer)

	body := "graph TD\n  A[x: y] --> end\n"
	input := "## T\n\nBefore.\n\n" + fence(body) + "\n\nAfter.\n"
	out, report, err := p.Process(context.Background(), Block{Text: input, Title: "T"})
	require.NoError(t, err)

	assert.Equal(t, input, out, "original source must be kept unmodified")
	require.Len(t, report.Units, 1)
	u := report.Units[0]
	assert.Equal(t, StatusFailed, u.Status)
	assert.Equal(t, 3, u.Fixes)
	assert.Len(t, fixer.calls, 3)
	assert.Equal(t, "always broken", fixer.calls[0].Error)
	assert.Contains(t, fixer.calls[0].Context, "Before.")
	assert.NoFileExists(t, u.SourcePath)
	assert.NoFileExists(t, u.ImagePath)
}

func TestProcess_FixLoopRepairs(t *testing.T) {
	renderer := &stubRenderer{}
	fixer := &countingFixer{fn: func(req FixRequest) (string, error) {
		if req.Attempt == 1 {
			return "", fmt.Errorf("%w: empty", llm.ErrMalformed)
		}
		return strings.ReplaceAll(req.Source, "BROKEN", "B"), nil
	}}
	p, _ := newPipeline(t, renderer, fixer)

	input := fence("graph TD\n  A --> BROKEN\n")
	out, report, err := p.Process(context.Background(), Block{Text: input, TaskIndex: 0, Title: "Fixes"})
	require.NoError(t, err)

	u := report.Units[0]
	assert.Equal(t, StatusSucceeded, u.Status)
	assert.Equal(t, 2, u.Fixes)
	assert.Equal(t, 2, u.Attempts)
	assert.Equal(t, "![Fixes diagram 1](images/diagram-1-1-fixes.png)", out)
	src, err := os.ReadFile(u.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n  A --> B\n", string(src))
}

func TestProcess_NonRenderErrorSkipsFixer(t *testing.T) {
	missing := RendererFunc(func(ctx context.Context, src, out string) error {
		return errors.New("exec: \"mmdc\": executable file not found in $PATH")
	})
	fixer := &countingFixer{fn: func(req FixRequest) (string, error) { return "graph TD\n", nil }}
	p, _ := newPipeline(t, missing, fixer)

	input := fence("graph TD\n  A --> B\n")
	out, report, err := p.Process(context.Background(), Block{Text: input})
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Empty(t, fixer.calls)
	assert.Contains(t, report.Units[0].Err, "not found")
}

func TestProcess_NoFix(t *testing.T) {
	renderer := &stubRenderer{}
	fixer := &countingFixer{fn: func(req FixRequest) (string, error) { return "graph TD\n", nil }}
	p, _ := newPipeline(t, renderer, fixer)
	p.Options.NoFix = true

	input := fence("graph TD\n  A --> BROKEN\n")
	out, _, err := p.Process(context.Background(), Block{Text: input})
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Empty(t, fixer.calls)
	assert.Len(t, renderer.calls, 1)
}

func TestProcess_DryRun(t *testing.T) {
	renderer := &stubRenderer{}
	p, dir := newPipeline(t, renderer, nil)
	p.Options.DryRun = true

	input := "x\n" + fence("graph TD\n  A --> B\n") + "\n"
	out, report, err := p.Process(context.Background(), Block{Text: input, Title: "Plan"})
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Empty(t, renderer.calls)
	assert.Equal(t, StatusPending, report.Units[0].Status)
	assert.NoDirExists(t, filepath.Join(dir, "images"))
}

func TestProcess_UnclosedFenceLeftAlone(t *testing.T) {
	renderer := &stubRenderer{}
	p, _ := newPipeline(t, renderer, nil)
	input := "text\n```mermaid\ngraph TD\n  A --> B"
	out, report, err := p.Process(context.Background(), Block{Text: input})
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Equal(t, StatusFailed, report.Units[0].Status)
	assert.Empty(t, renderer.calls)
}

func TestProcess_NoDiagrams(t *testing.T) {
	p, _ := newPipeline(t, &stubRenderer{}, nil)
	out, report, err := p.Process(context.Background(), Block{Text: "plain\n"})
	require.NoError(t, err)
	assert.Equal(t, "plain\n", out)
	assert.Empty(t, report.Units)
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := RendererFunc(func(ctx context.Context, src, out string) error { return ctx.Err() })
	p, _ := newPipeline(t, r, &countingFixer{fn: func(FixRequest) (string, error) { return "", nil }})
	input := fence("graph TD\n  A --> B\n")
	out, _, err := p.Process(ctx, Block{Text: input})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, input, out)
}

func TestLLMFixer(t *testing.T) {
	var got llm.Request
	backend := llm.BackendFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		got = req
		return llm.Response{Content: "Here you go:\n```mermaid\ngraph TD\n  A --> B\n```\n"}, nil
	})
	f := &LLMFixer{Backend: backend}
	src, err := f.Fix(context.Background(), FixRequest{Source: "graph TD\n  A --> end\n", Error: "Parse error on line 2", Context: "Routing"})
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n  A --> B\n", src)
	assert.Equal(t, llm.PurposeDiagramFix, got.Purpose)
	prompt := got.Messages[1].Content
	assert.Contains(t, prompt, "Parse error on line 2")
	assert.Contains(t, prompt, "A --> end")
	assert.Contains(t, prompt, "Routing")
}

func TestExtractSource(t *testing.T) {
	assert.Equal(t, "graph TD\n", ExtractSource("graph TD"))
	assert.Equal(t, "graph LR\n", ExtractSource("```\ngraph LR\n```"))
	assert.Equal(t, "", ExtractSource("   "))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "maps-sets", slug("Maps & Sets"))
	assert.Equal(t, "", slug("¿?"))
	assert.LessOrEqual(t, len(slug(strings.Repeat("abc ", 30))), 40)
}
