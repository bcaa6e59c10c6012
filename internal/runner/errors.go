package runner

import (
	"errors"
	"fmt"
)

// Kind separates content problems from storage problems so operators know
// whether a resume will help.
type Kind string

const (
	KindStorage     Kind = "storage"     // artifact append or checkpoint write failed
	KindCheckpoint  Kind = "checkpoint"  // checkpoint and artifact disagree
	KindTask        Kind = "task"        // a task produced no usable content
	KindInterrupted Kind = "interrupted" // context cancelled
)

// RunError is returned by Run when it stops before every task is complete.
type RunError struct {
	Kind      Kind
	TaskIndex int // 0-based; -1 when no task was involved
	TaskTitle string
	Op        string
	Err       error
}

func (e *RunError) Error() string {
	if e.TaskIndex < 0 {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: task %d (%s): %s: %v", e.Kind, e.TaskIndex+1, e.TaskTitle, e.Op, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// KindOf returns the kind of a RunError anywhere in err's chain, or "".
func KindOf(err error) Kind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
