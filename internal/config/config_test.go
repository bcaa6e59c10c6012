package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.MaxIterations != 2 || cfg.Generation.CheckpointEvery != 5 {
		t.Fatalf("generation defaults = %+v", cfg.Generation)
	}
	if cfg.Diagrams.Timeout != 30*time.Second || cfg.Diagrams.FixAttempts != 3 {
		t.Fatalf("diagram defaults = %+v", cfg.Diagrams)
	}
	if cfg.LLM.APIKeyEnv != "OPENROUTER_API_KEY" {
		t.Fatalf("APIKeyEnv = %q", cfg.LLM.APIKeyEnv)
	}
	if !cfg.Generation.Header || !cfg.Diagrams.Enabled {
		t.Fatal("boolean defaults lost")
	}
}

func TestLoad_OverridesKeepUnsetDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: openai
  model: gpt-4o
  timeout: 45s
generation:
  max-iterations: 4
diagrams:
  enabled: false
  timeout: 10s
review:
  mode: local
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Model != "gpt-4o" || cfg.LLM.APIKeyEnv != "OPENAI_API_KEY" {
		t.Fatalf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 45*time.Second {
		t.Fatalf("timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Generation.MaxIterations != 4 || cfg.Generation.ContextChars != 1500 {
		t.Fatalf("generation = %+v", cfg.Generation)
	}
	if cfg.Diagrams.Enabled || cfg.Diagrams.Timeout != 10*time.Second || cfg.Diagrams.Renderer != "mmdc" {
		t.Fatalf("diagrams = %+v", cfg.Diagrams)
	}
	if cfg.Review.Mode != ReviewLocal {
		t.Fatalf("review mode = %q", cfg.Review.Mode)
	}
}

func TestLoad_Preferences(t *testing.T) {
	path := writeConfig(t, `
generation:
  preferences:
    audience: advanced
    style: reference
    analogies: false
    language: " rust "
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	p := cfg.Generation.Preferences
	if p.Audience != AudienceAdvanced || p.Style != StyleReference || p.Analogies {
		t.Fatalf("preferences = %+v", p)
	}
	if !p.Code || !p.Tables || p.CodeExamples != 3 {
		t.Fatalf("unset preferences lost their defaults: %+v", p)
	}
	if p.Language != "rust" {
		t.Fatalf("language = %q", p.Language)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "llm: [unterminated")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "acme" }, "unknown provider"},
		{"model", func(c *Config) { c.LLM.Model = " " }, "'model' is required"},
		{"retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "max-retries"},
		{"iterations", func(c *Config) { c.Generation.MaxIterations = -1 }, "max-iterations"},
		{"review mode", func(c *Config) { c.Review.Mode = "strict" }, "unknown mode"},
		{"min lines", func(c *Config) { c.Review.MinLines = -3 }, "min-lines"},
		{"audience", func(c *Config) { c.Generation.Preferences.Audience = "expert" }, "unknown audience"},
		{"style", func(c *Config) { c.Generation.Preferences.Style = "socratic" }, "unknown style"},
		{"code examples", func(c *Config) { c.Generation.Preferences.CodeExamples = -1 }, "code-examples"},
		{"fix attempts", func(c *Config) { c.Diagrams.FixAttempts = -1 }, "fix-attempts"},
		{"renderer args", func(c *Config) { c.Diagrams.RendererArgs = []string{"-o", "x.png"} }, "renderer-args"},
		{"renderer env", func(c *Config) { c.Diagrams.RendererEnv = []string{"PUPPETEER_NO_SANDBOX"} }, "renderer-env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestValidate_FillsZeroValues(t *testing.T) {
	cfg := &Config{LLM: LLM{Model: "m"}}
	if err := Validate(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.CheckpointEvery != 5 || cfg.Generation.MaxTaskAttempts != 2 {
		t.Fatalf("generation = %+v", cfg.Generation)
	}
	if cfg.Review.Mode != ReviewBoth || cfg.Diagrams.ImagesDir != "images" || cfg.Diagrams.Timeout != 30*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	p := cfg.Generation.Preferences
	if p.Audience != AudienceBeginner || p.Style != StyleProgressive || p.CodeExamples != 3 {
		t.Fatalf("preferences = %+v", p)
	}
}

func TestDiscover_WalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, Dir), 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, Dir, File)
	if err := os.WriteFile(want, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	got := Discover(nested)
	wantAbs, _ := filepath.EvalSymlinks(want)
	gotAbs, _ := filepath.EvalSymlinks(got)
	if gotAbs != wantAbs {
		t.Fatalf("Discover = %q, want %q", got, want)
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("TOME_TEST_KEY", "sk-123")
	cfg := Default()
	cfg.LLM.APIKeyEnv = "TOME_TEST_KEY"
	if cfg.APIKey() != "sk-123" {
		t.Fatalf("APIKey = %q", cfg.APIKey())
	}
}
