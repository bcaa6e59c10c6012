package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/jorge-barreto/tome/internal/diagram"
	"github.com/jorge-barreto/tome/internal/docs"
	"github.com/jorge-barreto/tome/internal/doctor"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/outline"
	"github.com/jorge-barreto/tome/internal/runner"
	"github.com/jorge-barreto/tome/internal/scaffold"
	"github.com/jorge-barreto/tome/internal/state"
	"github.com/jorge-barreto/tome/internal/ux"
)

func main() {
	app := &cli.Command{
		Name:        "tome",
		Usage:       "Generate long documents block by block, with review, diagrams and resume",
		Description: "Run 'tome docs' for documentation on configuration, outlines, diagrams and resume.",
		Commands: []*cli.Command{
			initCmd(),
			runCmd(),
			outlineCmd(),
			statusCmd(),
			diagramsCmd(),
			doctorCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ux.ErrorPrefix(), err)
		if runner.KindOf(err) == runner.KindInterrupted {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{Name: "config", Usage: "Config file (default: nearest .tome/config.yaml)"}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Generate a document, resuming from its checkpoint when one exists",
		ArgsUsage: "<topic> <output>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{Name: "lines", Value: 3000, Usage: "Target document size in lines"},
			&cli.IntFlag{Name: "iter", Usage: "Review/improve iterations per block (overrides config)"},
			&cli.StringFlag{Name: "mode", Value: outline.ModeAuto, Usage: "Outline source: auto, llm, parts or custom"},
			&cli.StringFlag{Name: "sections", Usage: "Sections file for --mode custom"},
			&cli.IntFlag{Name: "parts", Usage: "Number of parts for --mode parts (default derived from --lines)"},
			&cli.StringFlag{Name: "review", Usage: "Review mode: local, llm or both (overrides config)"},
			&cli.StringFlag{Name: "model", Usage: "Backend model (overrides config)"},
			&cli.StringFlag{Name: "checkpoint", Usage: "Checkpoint file (default: .<output>.checkpoint.json beside the output)"},
			&cli.BoolFlag{Name: "no-diagrams", Usage: "Leave diagram source in place, even for tasks that require diagrams"},
			&cli.StringFlag{Name: "audience", Usage: "Reader level: beginner, intermediate or advanced (overrides config)"},
			&cli.StringFlag{Name: "style", Usage: "Teaching style: progressive, direct or reference (overrides config)"},
			&cli.BoolFlag{Name: "no-analogies", Usage: "Direct technical explanations without analogies"},
			&cli.BoolFlag{Name: "no-code", Usage: "Concepts only: no code blocks, no worked-example requirement"},
			&cli.BoolFlag{Name: "no-tables", Usage: "No tables, no table requirement"},
			&cli.StringFlag{Name: "language", Usage: "Programming language for code examples"},
			&cli.IntFlag{Name: "code-examples", Usage: "Code examples per section (overrides config)"},
			&cli.StringFlag{Name: "images-dir", Usage: "Directory for rendered diagrams (relative to the output's directory)"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the task plan without generating"},
			&cli.BoolFlag{Name: "keep-checkpoint", Usage: "Keep the checkpoint after a successful run"},
			&cli.BoolFlag{Name: "force", Usage: "Discard any checkpoint and existing output and start over"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Debug logging"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("expected <topic> <output>, got %d argument(s)", cmd.Args().Len())
			}
			topic := strings.TrimSpace(cmd.Args().Get(0))
			if topic == "" {
				return fmt.Errorf("topic must not be empty")
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			return runDocument(ctx, cmd, topic, cmd.Args().Get(1))
		},
	}
}

func outlineCmd() *cli.Command {
	return &cli.Command{
		Name:      "outline",
		Usage:     "Write the task list for a topic as an editable sections file",
		ArgsUsage: "<topic>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Sections file to write (default: stdout)"},
			&cli.StringFlag{Name: "mode", Value: outline.ModeAuto, Usage: "Outline source: auto, llm or parts"},
			&cli.IntFlag{Name: "lines", Value: 3000, Usage: "Target document size in lines"},
			&cli.IntFlag{Name: "parts", Usage: "Number of parts for --mode parts"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Debug logging"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			topic := strings.TrimSpace(cmd.Args().First())
			if topic == "" {
				return fmt.Errorf("topic argument is required")
			}
			mode := cmd.String("mode")
			if mode == outline.ModeCustom {
				return fmt.Errorf("--mode custom reads a sections file; nothing to generate")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := ux.NewLogger(os.Stderr, cmd.Bool("verbose"))

			var backend llm.Backend
			if mode != outline.ModeParts {
				backend, err = newBackend(cfg, llm.NewMetrics(), log)
				if err != nil && mode == outline.ModeLLM {
					return err
				}
			}
			tasks, err := outline.Build(ctx, outline.Options{
				Mode:        mode,
				Topic:       topic,
				TargetLines: int(cmd.Int("lines")),
				Parts:       int(cmd.Int("parts")),
				Backend:     backend,
				Logger:      log,
			})
			if err != nil {
				return err
			}
			tasks = outline.Apply(tasks, cfg.Generation.Preferences)
			data, err := outline.Encode(topic, tasks)
			if err != nil {
				return err
			}
			path := cmd.String("output")
			if path == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("writing sections file: %w", err)
			}
			fmt.Printf("Wrote %d sections to %s\n", len(tasks), path)
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the checkpoint of an interrupted or incomplete run",
		ArgsUsage: "[output]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "checkpoint", Usage: "Checkpoint file (default: derived from <output>)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("checkpoint")
			if path == "" {
				output := cmd.Args().First()
				if output == "" {
					return fmt.Errorf("an <output> argument or --checkpoint is required")
				}
				path = state.DefaultCheckpointPath(output)
			}
			cp, err := state.Load(path)
			if err != nil {
				return fmt.Errorf("loading checkpoint: %w", err)
			}
			if cp == nil {
				fmt.Printf("No checkpoint at %s (nothing to resume)\n", path)
				return nil
			}
			timing, err := state.LoadTiming(path)
			if err != nil {
				timing = &state.Timing{}
			}
			ux.RenderStatus(os.Stdout, cp, timing)
			return nil
		},
	}
}

func diagramsCmd() *cli.Command {
	return &cli.Command{
		Name:      "diagrams",
		Usage:     "Render the mermaid diagrams of an existing markdown file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the result here instead of in place"},
			&cli.StringFlag{Name: "images-dir", Usage: "Directory for rendered diagrams (relative to the output's directory)"},
			&cli.BoolFlag{Name: "no-fix", Usage: "Render once, never ask the backend to repair"},
			&cli.BoolFlag{Name: "dry-run", Usage: "List diagrams without rendering"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Debug logging"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			src := cmd.Args().First()
			if src == "" {
				return fmt.Errorf("file argument is required")
			}
			data, err := os.ReadFile(src)
			if err != nil {
				return err
			}
			dst := cmd.String("output")
			if dst == "" {
				dst = src
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dir := cmd.String("images-dir"); dir != "" {
				cfg.Diagrams.ImagesDir = dir
			}
			log := ux.NewLogger(os.Stderr, cmd.Bool("verbose"))
			out := ux.NewPrinter(os.Stdout)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			dryRun := cmd.Bool("dry-run")
			noFix := cmd.Bool("no-fix")
			if !dryRun {
				if err := preflightRenderer(cfg); err != nil {
					return err
				}
			}
			metrics := llm.NewMetrics()
			var backend llm.Backend
			if !noFix && !dryRun {
				backend, err = newBackend(cfg, metrics, log)
				if err != nil {
					out.Warn("diagram repair disabled: %v", err)
					noFix = true
				}
			}

			p := newPipeline(cfg, dst, backend, log)
			p.Options.NoFix = noFix
			p.Options.DryRun = dryRun
			stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
			text, report, err := p.Process(ctx, diagram.Block{Text: string(data), Title: stem})
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("%d diagram(s) in %s\n", len(report.Units), src)
				for _, u := range report.Units {
					target := u.ImagePath
					if u.Status == diagram.StatusFailed {
						target = u.Err
					}
					fmt.Printf("  %2d. %s\n", u.Ordinal, target)
				}
				return nil
			}
			for _, u := range report.Units {
				if u.Status == diagram.StatusFailed {
					out.Warn("diagram %d left as source: %s", u.Ordinal, u.Err)
				}
			}
			out.Diagrams(report.Count(diagram.StatusSucceeded), report.Count(diagram.StatusFailed))
			if report.Count(diagram.StatusSucceeded) > 0 || dst != src {
				if err := os.WriteFile(dst, []byte(text), 0644); err != nil {
					return err
				}
			}
			if metrics.Snapshot().Calls > 0 {
				out.Usage(metrics.Snapshot())
			}
			return nil
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Check a generated document for unclosed fences, broken diagrams and truncation",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("file argument is required")
			}
			issues, err := doctor.CheckFile(path)
			if err != nil {
				return err
			}
			doctor.Print(os.Stdout, path, issues)
			if len(issues) > 0 {
				return fmt.Errorf("%d issue(s) found in %s", len(issues), path)
			}
			return nil
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new .tome/ directory with a config and an example outline",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "topic", Usage: "Write a backend-generated outline for this topic"},
			&cli.IntFlag{Name: "lines", Value: 3000, Usage: "Target document size for the outline"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			log := ux.NewLogger(os.Stderr, false)
			opts := scaffold.Options{
				Topic:       strings.TrimSpace(cmd.String("topic")),
				TargetLines: int(cmd.Int("lines")),
				Logger:      log,
				Out:         os.Stdout,
			}
			if opts.Topic != "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				opts.Backend, err = newBackend(cfg, llm.NewMetrics(), log)
				if err != nil {
					ux.NewPrinter(os.Stderr).Warn("writing the example outline: %v", err)
				}
			}
			return scaffold.Init(ctx, dir, opts)
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-14s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'tome docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}

// removeIfExists deletes path, treating a missing file as success.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
