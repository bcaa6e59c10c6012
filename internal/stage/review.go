package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/state"
)

// Stats are the structural properties of a block.
type Stats struct {
	Lines    int
	Headings int
	Examples int // fenced code blocks other than diagrams
	Diagrams int // fenced mermaid blocks
	Tables   int
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Inspect parses block as Markdown and counts its structural elements.
func Inspect(block string) Stats {
	src := []byte(block)
	st := Stats{Lines: CountLines(block)}
	doc := markdown.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			st.Headings++
		case *ast.FencedCodeBlock:
			if strings.EqualFold(string(node.Language(src)), "mermaid") {
				st.Diagrams++
			} else {
				st.Examples++
			}
			return ast.WalkSkipChildren, nil
		}
		if n.Kind() == extast.KindTable {
			st.Tables++
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return st
}

// ChecklistReviewer checks the structural requirements locally, without a
// backend call.
type ChecklistReviewer struct {
	MinLines    int
	MinExamples int
	NoCode      bool // code blocks other than diagrams are an issue
	NoTables    bool // tables are an issue
}

func (c *ChecklistReviewer) Review(_ context.Context, block string, task state.Task) (ReviewResult, error) {
	return c.check(block, task), nil
}

func (c *ChecklistReviewer) check(block string, task state.Task) ReviewResult {
	st := Inspect(block)
	var issues, suggestions []string
	if st.Lines < c.MinLines {
		issues = append(issues, fmt.Sprintf("block has %d lines, need at least %d", st.Lines, c.MinLines))
	}
	if c.NoCode && st.Examples > 0 {
		issues = append(issues, fmt.Sprintf("block has %d code blocks but code is disabled", st.Examples))
	} else if task.RequireExamples && st.Examples < c.MinExamples {
		issues = append(issues, fmt.Sprintf("block has %d worked examples, need at least %d", st.Examples, c.MinExamples))
	}
	if task.RequireDiagram && st.Diagrams == 0 {
		issues = append(issues, "a mermaid diagram is required but none is present")
	}
	if c.NoTables && st.Tables > 0 {
		issues = append(issues, "block has a table but tables are disabled")
	} else if task.RequireTable && st.Tables == 0 {
		issues = append(issues, "a table is required but none is present")
	}
	if st.Headings == 0 {
		suggestions = append(suggestions, "start the section with its heading")
	}
	return NewReviewResult(issues, suggestions)
}

// LLMReviewer asks the backend for a JSON verdict.
type LLMReviewer struct {
	Backend     llm.Backend
	MinLines    int
	Preferences config.Preferences
	Attempts    int
}

type verdict struct {
	Passed      *bool    `json:"passed"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

func (r *LLMReviewer) Review(ctx context.Context, block string, task state.Task) (ReviewResult, error) {
	prompt := reviewPrompt(block, task, r.MinLines, prefsOrDefault(r.Preferences))
	res, err := askWithAttempts(ctx, r.Attempts, func() (ReviewResult, error) {
		text, err := llm.Ask(ctx, r.Backend, llm.Request{
			Purpose:     llm.PurposeReview,
			Messages:    []llm.Message{llm.System(reviewerSystem), llm.User(prompt)},
			Temperature: 0.3,
			MaxTokens:   1000,
		})
		if err != nil {
			return ReviewResult{}, err
		}
		return ParseVerdict(text)
	})
	if err != nil {
		return ReviewResult{}, fmt.Errorf("reviewing %q: %w", task.Title, err)
	}
	return res, nil
}

// ParseVerdict extracts the JSON object from a reviewer answer. A passing
// verdict keeps any listed issues as suggestions; a failing verdict with no
// issues gets a generic one so Passed and Issues stay consistent.
func ParseVerdict(answer string) (ReviewResult, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return ReviewResult{}, fmt.Errorf("%w: no JSON object in review", llm.ErrMalformed)
	}
	var v verdict
	if err := json.Unmarshal([]byte(answer[start:end+1]), &v); err != nil {
		return ReviewResult{}, fmt.Errorf("%w: review JSON: %v", llm.ErrMalformed, err)
	}
	if v.Passed == nil {
		return ReviewResult{}, fmt.Errorf("%w: review JSON lacks \"passed\"", llm.ErrMalformed)
	}
	issues := compact(v.Issues)
	suggestions := compact(v.Suggestions)
	if *v.Passed {
		return NewReviewResult(nil, append(suggestions, issues...)), nil
	}
	if len(issues) == 0 {
		issues = []string{"reviewer rejected the block without naming an issue"}
	}
	return NewReviewResult(issues, suggestions), nil
}

// CombinedReviewer merges the local checklist with the backend review. A
// failed backend review degrades to the checklist verdict.
type CombinedReviewer struct {
	Checklist *ChecklistReviewer
	Remote    Reviewer
	Logger    *slog.Logger
}

func (c *CombinedReviewer) Review(ctx context.Context, block string, task state.Task) (ReviewResult, error) {
	local := c.Checklist.check(block, task)
	remote, err := c.Remote.Review(ctx, block, task)
	if err != nil {
		if ctx.Err() != nil {
			return ReviewResult{}, ctx.Err()
		}
		if c.Logger != nil {
			c.Logger.Warn("remote review failed, using checklist only", "task", task.Title, "err", err)
		}
		return local, nil
	}
	return NewReviewResult(
		merge(local.Issues, remote.Issues),
		merge(local.Suggestions, remote.Suggestions),
	), nil
}

func compact(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func merge(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
