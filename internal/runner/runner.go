package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/contextgather"
	"github.com/jorge-barreto/tome/internal/diagram"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/stage"
	"github.com/jorge-barreto/tome/internal/state"
	"github.com/jorge-barreto/tome/internal/ux"
)

// Diagrammer turns diagram source in a block into image references.
type Diagrammer interface {
	Process(ctx context.Context, b diagram.Block) (string, diagram.Report, error)
}

// Runner drives a checkpoint through generate, review/improve, diagrams and
// append, one task at a time.
type Runner struct {
	Config         *config.Config
	Checkpoint     *state.Checkpoint
	CheckpointPath string
	Resumed        bool // Checkpoint was loaded from CheckpointPath
	KeepCheckpoint bool

	Generator stage.Generator
	Reviewer  stage.Reviewer
	Improver  stage.Improver
	Appender  stage.Appender
	Diagrams  Diagrammer // nil disables the diagram sub-pipeline

	Metrics *llm.Metrics
	Logger  *slog.Logger
	Out     *ux.Printer
	Timing  *state.Timing
}

// Result summarizes a run, successful or not.
type Result struct {
	Status    string
	Completed int // tasks complete in the checkpoint
	Total     int
	Lines     int
	Usage     llm.Snapshot
}

func (r *Runner) result() *Result {
	return &Result{
		Status:    r.Checkpoint.Status,
		Completed: r.Checkpoint.Index,
		Total:     len(r.Checkpoint.Tasks),
		Lines:     r.Checkpoint.LineCount,
		Usage:     r.Metrics.Snapshot(),
	}
}

// failAndHint sets the failure status, saves the checkpoint (warning on
// error), flushes timing, prints a resume hint, and returns the given error.
func (r *Runner) failAndHint(status string, err error) (*Result, error) {
	cp := r.Checkpoint
	cp.Status = status
	if status != state.StatusInterrupted {
		cp.LastError = err.Error()
	}
	if saveErr := r.save(); saveErr != nil {
		r.Out.Warn("failed to save checkpoint: %v", saveErr)
	}
	r.report()
	return r.result(), err
}

// report prints how far the document got and how to continue it.
func (r *Runner) report() {
	cp := r.Checkpoint
	fmt.Fprintf(r.Out.W, "\n%d/%d tasks complete, %d lines valid in %s\n",
		cp.Index, len(cp.Tasks), cp.LineCount, cp.OutputPath)
	r.Out.ResumeHint(cp.Topic, cp.OutputPath)
}

func (r *Runner) save() error {
	if err := r.Checkpoint.Save(r.CheckpointPath); err != nil {
		return err
	}
	if r.Timing != nil {
		if err := r.Timing.Flush(r.CheckpointPath); err != nil {
			r.Logger.Warn("failed to flush timing", "err", err)
		}
	}
	return nil
}

func (r *Runner) defaults() {
	if r.Logger == nil {
		r.Logger = ux.Discard()
	}
	if r.Out == nil {
		r.Out = ux.NewPrinter(io.Discard)
	}
	if r.Config == nil {
		r.Config = config.Default()
	}
}

// Run processes tasks from the checkpoint's current index to the end.
//
// A task whose generation still fails after MaxTaskAttempts stops the run
// with KindTask and status incomplete. Later tasks are not attempted: the
// artifact is append-only, so skipping a task would leave a gap that a
// resume cannot fill. Resuming retries the failed task first. Storage
// failures stop the run with KindStorage and a cancelled ctx with
// KindInterrupted; every stop prints progress and a resume hint.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.defaults()
	cp := r.Checkpoint
	total := len(cp.Tasks)

	if r.Timing == nil {
		timing, err := state.LoadTiming(r.CheckpointPath)
		if err != nil {
			r.Logger.Warn("ignoring unreadable timing file", "err", err)
			timing = &state.Timing{}
		}
		r.Timing = timing
	}

	if err := r.prepare(); err != nil {
		return r.result(), err
	}

	cp.Status = state.StatusRunning
	cp.LastError = ""
	if err := r.save(); err != nil {
		r.Out.Warn("failed to save checkpoint: %v", err)
		r.report()
		return r.result(), &RunError{Kind: KindStorage, TaskIndex: -1, Op: "saving checkpoint", Err: err}
	}
	if err := r.writeHeader(); err != nil {
		return r.failAndHint(state.StatusFailed, err)
	}

	every := r.Config.Generation.CheckpointEvery
	if every < 1 {
		every = 1
	}

	for !cp.Done() {
		i := cp.Index
		task := cp.Tasks[i]

		if ctx.Err() != nil {
			r.Out.Interrupted(i)
			return r.failAndHint(state.StatusInterrupted, &RunError{
				Kind: KindInterrupted, TaskIndex: i, TaskTitle: task.Title, Op: "waiting to start", Err: ctx.Err(),
			})
		}

		r.Out.TaskHeader(i, total, task)
		r.Timing.AddStart(i, task.Title)
		start := time.Now()
		log := r.Logger.With("task", i+1, "title", task.Title)

		block, err := r.produce(ctx, i, log)
		if ctx.Err() != nil {
			r.Timing.AddEnd(i)
			r.Out.Interrupted(i)
			return r.failAndHint(state.StatusInterrupted, &RunError{
				Kind: KindInterrupted, TaskIndex: i, TaskTitle: task.Title, Op: "processing", Err: ctx.Err(),
			})
		}
		if err != nil {
			r.Timing.AddEnd(i)
			r.Out.TaskFail(i, task.Title, err.Error())
			cp.RecordFailure(err)
			return r.failAndHint(state.StatusIncomplete, &RunError{
				Kind: KindTask, TaskIndex: i, TaskTitle: task.Title, Op: "generating", Err: err,
			})
		}

		if !strings.HasSuffix(block, "\n") {
			block += "\n"
		}
		prevLines := cp.LineCount
		newTotal, err := r.Appender.Append(block)
		if err != nil {
			r.Timing.AddEnd(i)
			r.Out.TaskFail(i, task.Title, err.Error())
			return r.failAndHint(state.StatusFailed, &RunError{
				Kind: KindStorage, TaskIndex: i, TaskTitle: task.Title, Op: "appending", Err: err,
			})
		}
		cp.Complete(block, newTotal-prevLines, cp.ArtifactBytes+int64(len(block)))
		r.Timing.AddEnd(i)
		log.Debug("appended block", "lines", newTotal-prevLines, "total", newTotal)

		if cp.Index%every == 0 || cp.Done() {
			if cp.Done() {
				cp.Status = state.StatusCompleted
			}
			if err := r.save(); err != nil {
				r.Out.TaskFail(i, task.Title, err.Error())
				return r.failAndHint(state.StatusFailed, &RunError{
					Kind: KindStorage, TaskIndex: i, TaskTitle: task.Title, Op: "saving checkpoint", Err: err,
				})
			}
		}
		r.Out.TaskComplete(i, cp.LineCount, time.Since(start))
	}

	if !r.KeepCheckpoint {
		if err := state.Delete(r.CheckpointPath); err != nil {
			r.Out.Warn("failed to remove checkpoint: %v", err)
		}
	}
	r.Out.Success(total, cp.LineCount, cp.OutputPath)
	return r.result(), nil
}

// prepare reconciles the artifact with the checkpoint on resume and refuses
// a fresh run over an artifact that already has content.
func (r *Runner) prepare() error {
	cp := r.Checkpoint
	if r.Resumed {
		trimmed, err := state.Reconcile(cp)
		if err != nil {
			kind := KindStorage
			if errors.Is(err, state.ErrArtifactMismatch) {
				kind = KindCheckpoint
			}
			return &RunError{Kind: kind, TaskIndex: -1, Op: "reconciling output", Err: err}
		}
		if trimmed > 0 {
			r.Logger.Warn("trimmed uncommitted output", "bytes", trimmed)
		}
		r.Out.Resumed(cp.Index, len(cp.Tasks), trimmed)
	} else {
		size, err := state.ArtifactSize(cp.OutputPath)
		if err != nil {
			return &RunError{Kind: KindStorage, TaskIndex: -1, Op: "inspecting output", Err: err}
		}
		if size > 0 {
			return &RunError{Kind: KindCheckpoint, TaskIndex: -1, Op: "starting fresh run",
				Err: fmt.Errorf("%s already has %d bytes and no checkpoint covers them", cp.OutputPath, size)}
		}
	}

	return nil
}

// writeHeader appends the document title once per artifact. The checkpoint
// is saved before and after so a crash in between is trimmed on resume.
func (r *Runner) writeHeader() error {
	cp := r.Checkpoint
	if cp.HeaderWritten || !r.Config.Generation.Header || cp.Index > 0 {
		return nil
	}
	header := "# " + cp.Topic + "\n\n"
	lines, err := r.Appender.Append(header)
	if err != nil {
		return &RunError{Kind: KindStorage, TaskIndex: -1, Op: "writing header", Err: err}
	}
	cp.SetHeader(lines-cp.LineCount, cp.ArtifactBytes+int64(len(header)))
	if err := r.save(); err != nil {
		return &RunError{Kind: KindStorage, TaskIndex: -1, Op: "saving checkpoint", Err: err}
	}
	return nil
}

// produce generates, reviews and post-processes one block. It returns an
// error only when no usable content could be generated.
func (r *Runner) produce(ctx context.Context, i int, log *slog.Logger) (string, error) {
	cp := r.Checkpoint
	task := cp.Tasks[i]

	block, err := r.generate(ctx, i, log)
	if err != nil {
		return "", err
	}
	r.Out.Generated(stage.CountLines(block), cp.Tasks[i].Attempts+1)

	block, _ = r.reviewAndImprove(ctx, block, task, r.Config.Generation.MaxIterations, log)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if r.Diagrams != nil && (task.RequireDiagram || r.Config.Diagrams.Enabled) {
		out, report, err := r.Diagrams.Process(ctx, diagram.Block{Text: block, TaskIndex: i, Title: task.Title})
		if err != nil {
			return "", err
		}
		r.Out.Diagrams(report.Count(diagram.StatusSucceeded), report.Count(diagram.StatusFailed))
		block = out
	}
	return block, nil
}

// generate calls the generator up to max-task-attempts times.
func (r *Runner) generate(ctx context.Context, i int, log *slog.Logger) (string, error) {
	cp := r.Checkpoint
	task := &cp.Tasks[i]
	req := stage.Request{
		Topic:       cp.Topic,
		Task:        *task,
		Index:       i,
		Total:       len(cp.Tasks),
		Context:     contextgather.Build(cp.Tasks, i, r.Config.Generation.ContextChars),
		TargetLines: cp.TargetLines / max(len(cp.Tasks), 1),
	}

	attempts := max(r.Config.Generation.MaxTaskAttempts, 1)
	var lastErr error
	for a := 0; a < attempts; a++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		block, err := r.Generator.Generate(ctx, req)
		if err == nil && strings.TrimSpace(block) == "" {
			err = fmt.Errorf("%w: generator returned an empty block", llm.ErrMalformed)
		}
		if err == nil {
			return block, nil
		}
		task.Attempts++
		lastErr = err
		log.Warn("generation attempt failed", "attempt", a+1, "of", attempts, "err", err)
	}
	return "", fmt.Errorf("no usable content after %d attempt(s): %w", attempts, lastErr)
}

// DryRunPrint prints the task plan without calling any stage.
func (r *Runner) DryRunPrint(w io.Writer) {
	r.defaults()
	cp := r.Checkpoint
	total := len(cp.Tasks)
	fmt.Fprintf(w, "Dry run: %d tasks for %q → %s (~%d lines)\n\n", total, cp.Topic, cp.OutputPath, cp.TargetLines)
	for i, t := range cp.Tasks {
		status := ""
		if t.Completed {
			status = " (done)"
		} else if i == cp.Index {
			status = " ← next"
		}
		var req []string
		if t.RequireDiagram {
			req = append(req, "diagram")
		}
		if t.RequireTable {
			req = append(req, "table")
		}
		if t.RequireExamples {
			req = append(req, "examples")
		}
		fmt.Fprintf(w, "  %2d. %s%s%s\n", i+1, strings.Repeat("  ", max(t.Level-1, 0)), t.Title, status)
		if t.Description != "" {
			fmt.Fprintf(w, "      %s%s\n", strings.Repeat("  ", max(t.Level-1, 0)), t.Description)
		}
		if len(req) > 0 {
			fmt.Fprintf(w, "      %srequires: %s\n", strings.Repeat("  ", max(t.Level-1, 0)), strings.Join(req, ", "))
		}
	}
	fmt.Fprintf(w, "\nreview: %d iteration(s), mode %s; diagrams: %v; checkpoint every %d task(s)\n",
		r.Config.Generation.MaxIterations, r.Config.Review.Mode, r.Config.Diagrams.Enabled, r.Config.Generation.CheckpointEvery)
	p := r.Config.Generation.Preferences
	fmt.Fprintf(w, "content: %s audience, %s style; analogies: %v; code: %v; tables: %v\n",
		p.Audience, p.Style, p.Analogies, p.Code, p.Tables)
}
