package stage

import (
	"context"
	"fmt"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/state"
)

// LLMImprover rewrites a failing block with the review findings.
type LLMImprover struct {
	Backend     llm.Backend
	Preferences config.Preferences
	Attempts    int
}

func (im *LLMImprover) Improve(ctx context.Context, block string, task state.Task, review ReviewResult) (string, error) {
	if review.Passed {
		return block, nil
	}
	prompt := improvePrompt(block, task, review, prefsOrDefault(im.Preferences))
	out, err := askWithAttempts(ctx, im.Attempts, func() (string, error) {
		text, err := llm.Ask(ctx, im.Backend, llm.Request{
			Purpose:     llm.PurposeImprove,
			Messages:    []llm.Message{llm.System(improverSystem), llm.User(prompt)},
			Temperature: 0.5,
			MaxTokens:   4000,
		})
		if err != nil {
			return "", err
		}
		out := Normalize(text)
		if out == "" {
			return "", fmt.Errorf("%w: improved block is empty", llm.ErrMalformed)
		}
		return out, nil
	})
	if err != nil {
		return "", fmt.Errorf("improving %q: %w", task.Title, err)
	}
	return EnsureHeading(out, task), nil
}
