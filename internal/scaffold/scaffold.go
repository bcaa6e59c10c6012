package scaffold

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/outline"
)

const sectionsFile = "sections.yaml"

var configTemplate = `# tome configuration. Every key is optional; see 'tome docs config'.

llm:
  provider: openrouter
  model: openai/gpt-4o-mini
  timeout: 2m
  max-retries: 3

generation:
  max-iterations: 2
  checkpoint-every: 5
  max-task-attempts: 2
  context-chars: 1500
  header: true
  preferences:
    audience: beginner      # beginner, intermediate, advanced
    style: progressive      # progressive, direct, reference
    analogies: true
    code: true
    tables: true
    language: ""            # empty lets the writer choose
    code-examples: 3

review:
  mode: both
  min-lines: 60

diagrams:
  enabled: true
  images-dir: images
  renderer: mmdc
  renderer-args: ["-b", "transparent"]
  timeout: 30s
  fix-attempts: 3
`

var sectionsTemplate = `# Example outline for 'tome run <topic> <output> --mode custom --sections .tome/sections.yaml'.
title: Example Tutorial
sections:
  - title: Why It Matters
    description: Everyday analogies and the problem this topic solves
    level: 1
  - title: Core Concepts
    description: Formal definitions with a diagram of how the pieces fit
    level: 1
    require-diagram: true
  - title: Comparing Approaches
    description: Trade-offs laid out side by side
    level: 2
    require-table: true
  - title: Worked Examples
    description: Three to five complete examples, simplest first
    level: 1
    require-examples: true
`

// Options controls what Init writes. With a Topic and a Backend the
// sections file is an outline written by the backend; otherwise it is the
// built-in example.
type Options struct {
	Topic       string
	TargetLines int
	Backend     llm.Backend
	Logger      *slog.Logger
	Out         io.Writer
}

// Init creates a new .tome/ directory with a config and a sections file.
func Init(ctx context.Context, targetDir string, opts Options) error {
	dir := filepath.Join(targetDir, config.Dir)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%s directory already exists in %s", config.Dir, targetDir)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	sections, source := []byte(sectionsTemplate), "example outline"
	if opts.Topic != "" && opts.Backend != nil {
		data, err := generatedSections(ctx, opts)
		switch {
		case err == nil:
			sections, source = data, fmt.Sprintf("outline for %q", opts.Topic)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			if opts.Logger != nil {
				opts.Logger.Warn("outline generation failed, writing example sections", "err", err)
			}
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", config.Dir, err)
	}
	configPath := filepath.Join(dir, config.File)
	if err := os.WriteFile(configPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", config.File, err)
	}
	if err := os.WriteFile(filepath.Join(dir, sectionsFile), sections, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", sectionsFile, err)
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	w := opts.Out
	fmt.Fprintf(w, "\n%s\n\n", color.New(color.Bold, color.FgGreen).Sprintf("✓ Initialized %s/ directory", config.Dir))
	fmt.Fprintf(w, "  Created:\n")
	fmt.Fprintf(w, "    %s    generation configuration\n", cyan(filepath.Join(config.Dir, config.File)))
	fmt.Fprintf(w, "    %s  %s\n\n", cyan(filepath.Join(config.Dir, sectionsFile)), source)
	fmt.Fprintf(w, "  Next steps:\n")
	fmt.Fprintf(w, "    1. Set the API key for your provider (OPENROUTER_API_KEY by default)\n")
	fmt.Fprintf(w, "    2. Edit %s to shape the document\n", cyan(filepath.Join(config.Dir, sectionsFile)))
	fmt.Fprintf(w, "    3. Run %s to preview\n\n",
		cyan(fmt.Sprintf("tome run <topic> out.md --mode custom --sections %s --dry-run", filepath.Join(config.Dir, sectionsFile))))
	return nil
}

func generatedSections(ctx context.Context, opts Options) ([]byte, error) {
	lines := opts.TargetLines
	if lines <= 0 {
		lines = 3000
	}
	tasks, err := outline.FromLLM(ctx, opts.Backend, opts.Topic, lines)
	if err != nil {
		return nil, err
	}
	return outline.Encode(opts.Topic, tasks)
}
