package scaffold

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/outline"
)

func TestInit_CreatesDirectoryStructure(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	if err := Init(context.Background(), dir, Options{Out: &out}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for _, path := range []string{
		".tome",
		filepath.Join(".tome", "config.yaml"),
		filepath.Join(".tome", "sections.yaml"),
	} {
		full := filepath.Join(dir, path)
		info, err := os.Stat(full)
		if err != nil {
			t.Fatalf("%s not created: %v", path, err)
		}
		if !info.IsDir() && info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
	if !strings.Contains(out.String(), "Initialized .tome/") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestInit_GeneratedConfigMatchesDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := Init(context.Background(), dir, Options{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	cfg, err := config.Load(filepath.Join(dir, ".tome", "config.yaml"))
	if err != nil {
		t.Fatalf("config.Load failed on generated config: %v", err)
	}
	want := config.Default()
	if err := config.Validate(want); err != nil {
		t.Fatal(err)
	}
	if cfg.LLM != want.LLM || cfg.Generation != want.Generation || cfg.Review != want.Review {
		t.Fatalf("generated config differs from defaults:\n got %+v\nwant %+v", cfg, want)
	}
	if cfg.Diagrams.Timeout != want.Diagrams.Timeout || cfg.Diagrams.FixAttempts != want.Diagrams.FixAttempts {
		t.Fatalf("diagram settings differ: %+v", cfg.Diagrams)
	}
}

func TestInit_ExampleSectionsLoad(t *testing.T) {
	dir := t.TempDir()
	if err := Init(context.Background(), dir, Options{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	tasks, err := outline.LoadFile(filepath.Join(dir, ".tome", "sections.yaml"))
	if err != nil {
		t.Fatalf("example sections do not load: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(tasks))
	}
	if !tasks[1].RequireDiagram || !tasks[2].RequireTable || tasks[2].Level != 2 {
		t.Fatalf("unexpected sections: %+v", tasks)
	}
}

func TestInit_WritesBackendOutline(t *testing.T) {
	dir := t.TempDir()
	backend := llm.BackendFunc(func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{Content: `{"sections": [{"title": "Channels"}, {"title": "Select", "require-table": true}]}`}, nil
	})
	var out bytes.Buffer
	if err := Init(context.Background(), dir, Options{Topic: "Go", Backend: backend, Out: &out}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	tasks, err := outline.LoadFile(filepath.Join(dir, ".tome", "sections.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].Title != "Channels" || !tasks[1].RequireTable {
		t.Fatalf("unexpected sections: %+v", tasks)
	}
	if !strings.Contains(out.String(), `outline for "Go"`) {
		t.Errorf("output should name the generated outline:\n%s", out.String())
	}
}

func TestInit_BackendFailureFallsBackToExample(t *testing.T) {
	dir := t.TempDir()
	backend := llm.BackendFunc(func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, errors.New("401 unauthorized")
	})
	if err := Init(context.Background(), dir, Options{Topic: "Go", Backend: backend}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".tome", "sections.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != sectionsTemplate {
		t.Fatalf("expected example sections, got:\n%s", data)
	}
}

func TestInit_FailsIfDirExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".tome"), 0755); err != nil {
		t.Fatal(err)
	}

	err := Init(context.Background(), dir, Options{})
	if err == nil {
		t.Fatal("expected error when .tome already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected error containing 'already exists', got: %s", err)
	}
}
