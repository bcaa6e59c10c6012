package stage

import (
	"context"
	"fmt"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/llm"
)

// LLMGenerator writes a block through the generation backend.
type LLMGenerator struct {
	Backend     llm.Backend
	Preferences config.Preferences
	Attempts    int // re-asks on an empty answer
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (string, error) {
	prompt := generatePrompt(req, prefsOrDefault(g.Preferences))
	block, err := askWithAttempts(ctx, g.Attempts, func() (string, error) {
		text, err := llm.Ask(ctx, g.Backend, llm.Request{
			Purpose:     llm.PurposeGenerate,
			Messages:    []llm.Message{llm.System(writerSystem), llm.User(prompt)},
			Temperature: 0.7,
			MaxTokens:   4000,
		})
		if err != nil {
			return "", err
		}
		out := Normalize(text)
		if out == "" {
			return "", fmt.Errorf("%w: block is empty after unwrapping", llm.ErrMalformed)
		}
		return out, nil
	})
	if err != nil {
		return "", fmt.Errorf("generating task %d %q: %w", req.Index+1, req.Task.Title, err)
	}
	return EnsureHeading(block, req.Task), nil
}
