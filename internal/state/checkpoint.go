package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusIncomplete  = "incomplete" // a task exhausted its attempts
	StatusFailed      = "failed"     // storage or checkpoint problem
	StatusInterrupted = "interrupted"
)

const checkpointVersion = 1

var (
	// ErrCorrupt marks a checkpoint file that exists but cannot be trusted.
	ErrCorrupt = errors.New("corrupt checkpoint")

	// ErrArtifactMismatch marks an output artifact that is shorter than the
	// checkpoint says it should be.
	ErrArtifactMismatch = errors.New("artifact does not match checkpoint")
)

// Task is one planned section of the output document.
type Task struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Level           int    `json:"level"`
	RequireDiagram  bool   `json:"require_diagram"`
	RequireTable    bool   `json:"require_table"`
	RequireExamples bool   `json:"require_examples"`
	Completed       bool   `json:"completed"`
	Content         string `json:"content,omitempty"`
	Lines           int    `json:"lines,omitempty"`
	Attempts        int    `json:"attempts,omitempty"`
	LastError       string `json:"last_error,omitempty"`
}

// Checkpoint is the durable state of one document generation run.
type Checkpoint struct {
	Version       int       `json:"version"`
	RunID         string    `json:"run_id"`
	Topic         string    `json:"topic"`
	OutputPath    string    `json:"output_path"`
	TargetLines   int       `json:"target_lines"`
	Tasks         []Task    `json:"tasks"`
	Index         int       `json:"current_index"`
	LineCount     int       `json:"line_count"`
	ArtifactBytes int64     `json:"artifact_bytes"`
	HeaderWritten bool      `json:"header_written"`
	HeaderLines   int       `json:"header_lines,omitempty"`
	Status        string    `json:"status"`
	LastError     string    `json:"last_error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// New returns a fresh checkpoint positioned at the first task.
func New(topic, outputPath string, targetLines int, tasks []Task) *Checkpoint {
	cp := make([]Task, len(tasks))
	copy(cp, tasks)
	for i := range cp {
		cp[i].Completed = false
		cp[i].Content = ""
		cp[i].Lines = 0
	}
	return &Checkpoint{
		Version:     checkpointVersion,
		RunID:       uuid.NewString(),
		Topic:       topic,
		OutputPath:  outputPath,
		TargetLines: targetLines,
		Tasks:       cp,
		Status:      StatusRunning,
		StartedAt:   time.Now(),
	}
}

// Load reads a checkpoint. A missing file returns (nil, nil): there is no
// prior run. A file that exists but does not parse or violates the
// checkpoint invariants returns an error wrapping ErrCorrupt.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// Save overwrites path with the full checkpoint.
func (c *Checkpoint) Save(path string) error {
	c.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", path, err)
	}
	return nil
}

// Delete removes the checkpoint and its timing file. Missing files are fine.
func Delete(path string) error {
	for _, p := range []string{path, TimingPath(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks the structural invariants: tasks before Index are
// complete with content, tasks from Index on are not, and LineCount is the
// sum of every appended block.
func (c *Checkpoint) Validate() error {
	if c.Version != checkpointVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, c.Version)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("%w: output path is empty", ErrCorrupt)
	}
	if c.Index < 0 || c.Index > len(c.Tasks) {
		return fmt.Errorf("%w: current index %d outside [0, %d]", ErrCorrupt, c.Index, len(c.Tasks))
	}
	if c.LineCount < 0 || c.ArtifactBytes < 0 {
		return fmt.Errorf("%w: negative line or byte count", ErrCorrupt)
	}
	sum := c.HeaderLines
	for i, t := range c.Tasks {
		if t.Title == "" {
			return fmt.Errorf("%w: task %d has no title", ErrCorrupt, i+1)
		}
		if t.Level < 1 {
			return fmt.Errorf("%w: task %d (%s) has level %d", ErrCorrupt, i+1, t.Title, t.Level)
		}
		if i < c.Index && !t.Completed {
			return fmt.Errorf("%w: task %d (%s) precedes index %d but is not complete", ErrCorrupt, i+1, t.Title, c.Index)
		}
		if i >= c.Index && t.Completed {
			return fmt.Errorf("%w: task %d (%s) is complete but not before index %d", ErrCorrupt, i+1, t.Title, c.Index)
		}
		if t.Completed != (t.Content != "") {
			return fmt.Errorf("%w: task %d (%s) completion flag disagrees with content", ErrCorrupt, i+1, t.Title)
		}
		sum += t.Lines
	}
	if sum != c.LineCount {
		return fmt.Errorf("%w: line count %d, blocks sum to %d", ErrCorrupt, c.LineCount, sum)
	}
	return nil
}

// Current returns the next task to process, or nil when every task is done.
func (c *Checkpoint) Current() *Task {
	if c.Index >= len(c.Tasks) {
		return nil
	}
	return &c.Tasks[c.Index]
}

// Done reports whether every task has been completed.
func (c *Checkpoint) Done() bool {
	return c.Index >= len(c.Tasks)
}

// Remaining returns the number of tasks not yet completed.
func (c *Checkpoint) Remaining() int {
	return len(c.Tasks) - c.Index
}

// SetHeader records the document header written ahead of the first block.
func (c *Checkpoint) SetHeader(lines int, artifactBytes int64) {
	c.HeaderWritten = true
	c.HeaderLines = lines
	c.LineCount += lines
	c.ArtifactBytes = artifactBytes
}

// Complete marks the current task complete with its final content and
// advances the index. lines is the newline count of the appended block and
// artifactBytes the artifact size after the append.
func (c *Checkpoint) Complete(content string, lines int, artifactBytes int64) {
	t := &c.Tasks[c.Index]
	t.Completed = true
	t.Content = content
	t.Lines = lines
	t.LastError = ""
	c.LineCount += lines
	c.ArtifactBytes = artifactBytes
	c.Index++
}

// RecordFailure notes why the current task could not be produced.
func (c *Checkpoint) RecordFailure(err error) {
	if t := c.Current(); t != nil {
		t.LastError = err.Error()
	}
	c.LastError = err.Error()
}
