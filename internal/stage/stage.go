// Package stage defines the per-task pipeline stages (generate, review,
// improve, append) as small interfaces, with backend-driven and local
// implementations.
package stage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jorge-barreto/tome/internal/fileblocks"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/state"
)

// Request carries everything the generator needs for one block.
type Request struct {
	Topic       string
	Task        state.Task
	Index       int
	Total       int
	Context     string // bounded summary of preceding blocks
	TargetLines int    // per-block length goal
}

// ReviewResult is the verdict on one block. Passed is true exactly when
// Issues is empty; use NewReviewResult to keep that true.
type ReviewResult struct {
	Passed      bool
	Issues      []string
	Suggestions []string
}

// NewReviewResult builds a result whose Passed flag agrees with issues.
func NewReviewResult(issues, suggestions []string) ReviewResult {
	return ReviewResult{
		Passed:      len(issues) == 0,
		Issues:      issues,
		Suggestions: suggestions,
	}
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Reviewer interface {
	Review(ctx context.Context, block string, task state.Task) (ReviewResult, error)
}

type Improver interface {
	Improve(ctx context.Context, block string, task state.Task, review ReviewResult) (string, error)
}

// Appender commits a finished block to the artifact and returns the new
// cumulative line count.
type Appender interface {
	Append(block string) (int, error)
}

// CountLines returns the number of newline-terminated lines in s.
func CountLines(s string) int {
	return strings.Count(s, "\n")
}

// Normalize trims surrounding whitespace and unwraps a block the backend
// returned inside a single markdown fence. The result ends with one blank
// line so consecutive blocks stay separate paragraphs in the artifact.
func Normalize(block string) string {
	s := strings.TrimSpace(block)
	if blocks := fileblocks.Scan(s); len(blocks) == 1 {
		b := blocks[0]
		wrapper := b.Lang == "" || b.Lang == "markdown" || b.Lang == "md"
		if wrapper && b.Closed && b.Start == 0 && b.End == len(s) {
			s = strings.TrimSpace(b.Body)
		}
	}
	if s == "" {
		return ""
	}
	return s + "\n\n"
}

// EnsureHeading prefixes the block with the task heading when the backend
// left it out. Level 1 tasks become "##" since "#" is the document title.
func EnsureHeading(block string, task state.Task) string {
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return block
		}
		break
	}
	return strings.Repeat("#", task.Level+1) + " " + task.Title + "\n\n" + block
}

// askWithAttempts re-asks the backend when the answer is unusable. Backend
// transport errors are retried below this layer, so only ErrMalformed from
// parse is retried here.
func askWithAttempts[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var out T
	if attempts < 1 {
		attempts = 1
	}
	op := func() error {
		v, err := fn()
		if err != nil {
			if errors.Is(err, llm.ErrMalformed) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = v
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), uint64(attempts-1)), ctx)
	err := backoff.Retry(op, policy)
	return out, err
}
