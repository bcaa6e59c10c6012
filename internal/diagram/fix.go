package diagram

import (
	"context"
	"fmt"
	"strings"

	"github.com/jorge-barreto/tome/internal/fileblocks"
	"github.com/jorge-barreto/tome/internal/llm"
)

// FixRequest is one repair attempt for a rejected diagram.
type FixRequest struct {
	Source  string
	Error   string
	Context string // what the diagram is about
	Attempt int
}

// Fixer proposes corrected diagram source.
type Fixer interface {
	Fix(ctx context.Context, req FixRequest) (string, error)
}

// FixerFunc adapts a function to Fixer.
type FixerFunc func(ctx context.Context, req FixRequest) (string, error)

func (f FixerFunc) Fix(ctx context.Context, req FixRequest) (string, error) {
	return f(ctx, req)
}

// LLMFixer asks the generation backend to repair the source.
type LLMFixer struct {
	Backend llm.Backend
}

const fixerSystem = "You repair Mermaid diagram source so that mermaid-cli renders it. Answer only with the corrected source."

func (f *LLMFixer) Fix(ctx context.Context, req FixRequest) (string, error) {
	text, err := llm.Ask(ctx, f.Backend, llm.Request{
		Purpose:     llm.PurposeDiagramFix,
		Messages:    []llm.Message{llm.System(fixerSystem), llm.User(fixPrompt(req))},
		Temperature: 0.2,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", err
	}
	src := ExtractSource(text)
	if src == "" {
		return "", fmt.Errorf("%w: fixer returned no diagram source", llm.ErrMalformed)
	}
	return src, nil
}

// ExtractSource takes the first mermaid (or unlabeled) fenced block from an
// answer, or the whole answer when it is not fenced.
func ExtractSource(answer string) string {
	for _, b := range fileblocks.Scan(answer) {
		if b.Lang == "mermaid" || b.Lang == "" {
			return strings.TrimSpace(b.Body) + "\n"
		}
	}
	s := strings.TrimSpace(answer)
	if s == "" {
		return ""
	}
	return s + "\n"
}

func fixPrompt(req FixRequest) string {
	ctxText := req.Context
	if r := []rune(ctxText); len(r) > 300 {
		ctxText = string(r[len(r)-300:])
	}
	return fmt.Sprintf(`Fix this broken Mermaid diagram.

Error from the renderer:
%s

Mermaid source:
`+"```mermaid\n%s\n```"+`

What the diagram should show:
%s

Common problems:
1. Edge labels containing braces or brackets must be quoted: A -->|"Props: {name}"| B
2. Every classDef needs a style: classDef done fill:#d4edda,stroke:#28a745,stroke-width:2px,color:#155724
3. Node ids must be alphanumeric or underscores; "end" is reserved in flowcharts
4. Labels with special characters must be quoted: A["f(x) = y"]
5. Brackets and parentheses must be balanced

Return ONLY the fixed mermaid source, without explanation.
`, strings.TrimSpace(req.Error), strings.TrimRight(req.Source, "\n"), ctxText)
}
