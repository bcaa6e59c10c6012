package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/diagram"
	"github.com/jorge-barreto/tome/internal/dispatch"
	"github.com/jorge-barreto/tome/internal/doctor"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/outline"
	"github.com/jorge-barreto/tome/internal/runner"
	"github.com/jorge-barreto/tome/internal/stage"
	"github.com/jorge-barreto/tome/internal/state"
	"github.com/jorge-barreto/tome/internal/ux"
)

// runDocument wires the stages for one document and runs them.
func runDocument(ctx context.Context, cmd *cli.Command, topic, output string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunOverrides(cmd, cfg); err != nil {
		return err
	}
	log := ux.NewLogger(os.Stderr, cmd.Bool("verbose"))
	out := ux.NewPrinter(os.Stdout)
	dryRun := cmd.Bool("dry-run")

	cpPath := cmd.String("checkpoint")
	if cpPath == "" {
		cpPath = state.DefaultCheckpointPath(output)
	}
	if cmd.Bool("force") && !dryRun {
		if err := state.Delete(cpPath); err != nil {
			return fmt.Errorf("removing checkpoint: %w", err)
		}
		if err := removeIfExists(output); err != nil {
			return fmt.Errorf("removing output: %w", err)
		}
	}

	cp, err := state.Load(cpPath)
	if err != nil {
		return fmt.Errorf("%w (use --force to start over)", err)
	}
	resumed := cp != nil
	if resumed && cp.Topic != topic {
		return fmt.Errorf("checkpoint %s is for topic %q, not %q (use --force to start over)", cpPath, cp.Topic, topic)
	}

	metrics := llm.NewMetrics()
	backend, backendErr := newBackend(cfg, metrics, log)
	if backendErr != nil && !dryRun {
		return backendErr
	}

	if !resumed {
		tasks, err := outline.Build(ctx, outline.Options{
			Mode:         cmd.String("mode"),
			Topic:        topic,
			TargetLines:  int(cmd.Int("lines")),
			Parts:        int(cmd.Int("parts")),
			SectionsFile: cmd.String("sections"),
			Backend:      backend,
			Logger:       log,
		})
		if err != nil {
			return fmt.Errorf("building outline: %w", err)
		}
		tasks = outline.Apply(tasks, cfg.Generation.Preferences)
		cp = state.New(topic, output, int(cmd.Int("lines")), tasks)
	}
	out.Plan(cp.Topic, cp.OutputPath, len(cp.Tasks), cp.TargetLines)

	r := &runner.Runner{
		Config:         cfg,
		Checkpoint:     cp,
		CheckpointPath: cpPath,
		Resumed:        resumed,
		KeepCheckpoint: cmd.Bool("keep-checkpoint"),
		Metrics:        metrics,
		Logger:         log,
		Out:            out,
	}
	if dryRun {
		r.DryRunPrint(os.Stdout)
		return nil
	}

	prefs := cfg.Generation.Preferences
	r.Generator = &stage.LLMGenerator{Backend: backend, Preferences: prefs, Attempts: 2}
	r.Improver = &stage.LLMImprover{Backend: backend, Preferences: prefs, Attempts: 2}
	r.Reviewer = newReviewer(cfg, backend, log)
	r.Appender = stage.NewFileAppender(output, cp.LineCount, cp.ArtifactBytes)
	if !cmd.Bool("no-diagrams") {
		if err := preflightRenderer(cfg); err != nil {
			out.Warn("diagrams stay as source: %v", err)
		} else {
			r.Diagrams = newPipeline(cfg, output, backend, log)
		}
	}

	res, runErr := r.Run(ctx)
	if res != nil {
		out.Usage(res.Usage)
	}
	if runErr != nil {
		return runErr
	}

	issues, err := doctor.CheckFile(output)
	if err != nil {
		out.Warn("completeness check skipped: %v", err)
	} else if len(issues) > 0 {
		doctor.Print(os.Stdout, output, issues)
	}
	return nil
}

// loadConfig reads --config, or the nearest .tome/config.yaml, or defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	if path == "" {
		path = config.Discover(".")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func applyRunOverrides(cmd *cli.Command, cfg *config.Config) error {
	if cmd.IsSet("iter") {
		cfg.Generation.MaxIterations = int(cmd.Int("iter"))
	}
	if v := cmd.String("review"); v != "" {
		cfg.Review.Mode = v
	}
	if v := cmd.String("model"); v != "" {
		cfg.LLM.Model = v
	}
	if v := cmd.String("images-dir"); v != "" {
		cfg.Diagrams.ImagesDir = v
	}
	if cmd.Bool("no-diagrams") {
		cfg.Diagrams.Enabled = false
	}

	p := &cfg.Generation.Preferences
	if v := cmd.String("audience"); v != "" {
		p.Audience = v
	}
	if v := cmd.String("style"); v != "" {
		p.Style = v
	}
	if cmd.Bool("no-analogies") {
		p.Analogies = false
	}
	if cmd.Bool("no-code") {
		p.Code = false
	}
	if cmd.Bool("no-tables") {
		p.Tables = false
	}
	if v := cmd.String("language"); v != "" {
		p.Language = v
	}
	if cmd.IsSet("code-examples") {
		p.CodeExamples = int(cmd.Int("code-examples"))
	}
	return config.Validate(cfg)
}

// newBackend builds the metered, retrying backend every stage shares.
func newBackend(cfg *config.Config, metrics *llm.Metrics, log *slog.Logger) (llm.Backend, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%s is not set (provider %s)", cfg.LLM.APIKeyEnv, cfg.LLM.Provider)
	}
	base, err := llm.NewOpenAI(llm.Settings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   key,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &llm.Retrying{
		Backend:    &llm.Metered{Backend: base, Metrics: metrics},
		MaxRetries: cfg.LLM.MaxRetries,
		Metrics:    metrics,
		Logger:     log,
	}, nil
}

func newReviewer(cfg *config.Config, backend llm.Backend, log *slog.Logger) stage.Reviewer {
	prefs := cfg.Generation.Preferences
	checklist := &stage.ChecklistReviewer{
		MinLines:    cfg.Review.MinLines,
		MinExamples: prefs.CodeExamples,
		NoCode:      !prefs.Code,
		NoTables:    !prefs.Tables,
	}
	remote := &stage.LLMReviewer{Backend: backend, MinLines: cfg.Review.MinLines, Preferences: prefs, Attempts: 2}
	switch cfg.Review.Mode {
	case config.ReviewLocal:
		return checklist
	case config.ReviewLLM:
		return remote
	}
	return &stage.CombinedReviewer{Checklist: checklist, Remote: remote, Logger: log}
}

func preflightRenderer(cfg *config.Config) error {
	return dispatch.Preflight(cfg.Diagrams.Renderer)
}

// newPipeline builds the diagram pipeline for a document at output. A
// relative images directory is taken from the document's directory, and
// image links are written relative to it.
func newPipeline(cfg *config.Config, output string, backend llm.Backend, log *slog.Logger) *diagram.Pipeline {
	base := filepath.Dir(output)
	images := cfg.Diagrams.ImagesDir
	if !filepath.IsAbs(images) {
		images = filepath.Join(base, images)
	}
	p := &diagram.Pipeline{
		Renderer: &diagram.CLIRenderer{
			Binary:  cfg.Diagrams.Renderer,
			Args:    cfg.Diagrams.RendererArgs,
			Env:     cfg.Diagrams.RendererEnv,
			Timeout: cfg.Diagrams.Timeout,
		},
		Options: diagram.Options{
			ImagesDir:   images,
			LinkBase:    base,
			FixAttempts: cfg.Diagrams.FixAttempts,
		},
		Logger: log,
	}
	if backend != nil {
		p.Fixer = &diagram.LLMFixer{Backend: backend}
	} else {
		p.Options.NoFix = true
	}
	return p
}
