package stage

import (
	"fmt"
	"strings"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/state"
)

const (
	writerSystem   = "You are an expert technical writer creating long-form educational content."
	reviewerSystem = "You are a strict technical content reviewer. Answer only with JSON."
	improverSystem = "You improve technical content. Answer only with the revised markdown."

	reviewExcerptChars  = 4000
	improveExcerptChars = 6000
)

// prefsOrDefault lets a zero Preferences mean the defaults.
func prefsOrDefault(p config.Preferences) config.Preferences {
	if p == (config.Preferences{}) {
		return config.DefaultPreferences()
	}
	return p
}

func requirementLines(task state.Task, p config.Preferences) []string {
	var reqs []string
	switch {
	case !p.Analogies:
		reqs = append(reqs, "- No analogies: take a direct technical approach")
	case p.Audience == config.AudienceBeginner:
		reqs = append(reqs, "- Introduce every concept with an everyday analogy before its technical term")
	case p.Audience == config.AudienceIntermediate:
		reqs = append(reqs, "- Use analogies to bridge from concepts the reader already knows")
	}
	if task.RequireDiagram {
		reqs = append(reqs, "- Include at least one mermaid diagram in a ```mermaid fenced block, 3-6 nodes each")
	}
	if task.RequireTable && p.Tables {
		reqs = append(reqs, "- Include at least one comparison or summary table in markdown table syntax")
	}
	if !p.Tables {
		reqs = append(reqs, "- Do not use tables")
	}
	if p.Code {
		if task.RequireExamples {
			reqs = append(reqs, fmt.Sprintf("- Include at least %d concrete, runnable code examples%s in fenced blocks", max(p.CodeExamples, 1), languageNote(p)))
		}
	} else {
		reqs = append(reqs, "- Do not include any code blocks; explain with prose, diagrams and tables only")
	}
	return reqs
}

func languageNote(p config.Preferences) string {
	if p.Language == "" {
		return ""
	}
	return " in " + p.Language
}

// teachingStructure describes how a section unfolds for the style and
// audience.
func teachingStructure(p config.Preferences) string {
	switch p.Style {
	case config.StyleReference:
		return "Reference style: hierarchical, definitions and specifications first, comprehensive coverage, quick summaries. Completeness over progression."
	case config.StyleDirect:
		if p.Audience == config.AudienceBeginner {
			return "Direct style: clear definitions up front, simple examples, then practical use and troubleshooting, ending with a short summary."
		}
		return "Direct style: technical overview and architecture first, then production implementation with error handling, then expert pitfalls and performance."
	}
	switch p.Audience {
	case config.AudienceAdvanced:
		return "Progressive style for experts: core concepts and design philosophy, implementation details, trade-offs against alternatives, then mastery topics."
	case config.AudienceIntermediate:
		return "Progressive style for intermediate readers: bridge from known concepts, deep dive with diagrams, production implementation, then anti-patterns and scaling."
	}
	return "Progressive style for beginners: assume zero prior knowledge, build intuition first, then formal concepts, then working code, then performance and real-world use."
}

func generatePrompt(req Request, p config.Preferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write section %d of %d of a comprehensive guide on: %s\n\n", req.Index+1, req.Total, req.Topic)
	fmt.Fprintf(&b, "Section title: %s\n", req.Task.Title)
	fmt.Fprintf(&b, "Heading level: %s\n", strings.Repeat("#", req.Task.Level+1))
	if req.Task.Description != "" {
		fmt.Fprintf(&b, "Section description: %s\n", req.Task.Description)
	}
	fmt.Fprintf(&b, "Audience: %s\n", p.Audience)
	fmt.Fprintf(&b, "Teaching style: %s\n", teachingStructure(p))
	if req.Context != "" {
		b.WriteString("\nWhat came before:\n")
		b.WriteString(req.Context)
		b.WriteString("\n")
	}

	b.WriteString("\nRequirements:\n")
	reqs := requirementLines(req.Task, p)
	if len(reqs) == 0 {
		reqs = []string{"- Clear, progressive explanations"}
	}
	b.WriteString(strings.Join(reqs, "\n"))
	if req.TargetLines > 0 {
		fmt.Fprintf(&b, "\n- Aim for about %d lines", req.TargetLines)
	}
	b.WriteString("\n- Continue naturally from the previous section without repeating it")
	b.WriteString("\n- Do not print structural labels such as \"Foundation layer:\"")
	b.WriteString("\n\nRespond ONLY with the markdown content, starting with the section heading.\n")
	return b.String()
}

func reviewPrompt(block string, task state.Task, minLines int, p config.Preferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review this tutorial section.\n\nSection: %s\n\nContent:\n````\n%s\n````\n\n", task.Title, clip(block, reviewExcerptChars))
	fmt.Fprintf(&b, "Audience: %s. Style: %s.\n\n", p.Audience, p.Style)
	b.WriteString("Check for:\n")
	fmt.Fprintf(&b, "- At least %d lines of content\n", minLines)
	fmt.Fprintf(&b, "- Depth appropriate for the %s audience\n", p.Audience)
	for _, r := range requirementLines(task, p) {
		b.WriteString(r + "\n")
	}
	b.WriteString("- Clear explanations and progressive complexity\n\n")
	b.WriteString(`Respond with JSON only:
{"passed": true or false, "issues": ["..."], "suggestions": ["..."]}
`)
	return b.String()
}

func improvePrompt(block string, task state.Task, review ReviewResult, p config.Preferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Improve this tutorial section titled %q (audience: %s).\n\nOriginal:\n````\n%s\n````\n\n", task.Title, p.Audience, clip(block, improveExcerptChars))
	b.WriteString("Issues to fix:\n")
	for _, i := range review.Issues {
		b.WriteString("- " + i + "\n")
	}
	if len(review.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range review.Suggestions {
			b.WriteString("- " + s + "\n")
		}
	}

	var hints []string
	if p.Audience == config.AudienceBeginner {
		hints = append(hints, "- Start from zero and explain all jargon")
	}
	issues := strings.ToLower(strings.Join(review.Issues, " "))
	if p.Code && (strings.Contains(issues, "code") || strings.Contains(issues, "example")) {
		hints = append(hints, fmt.Sprintf("- Add %d runnable code examples%s", max(p.CodeExamples, 1), languageNote(p)))
	}
	if !p.Code {
		hints = append(hints, "- Keep the section free of code blocks")
	}
	if !p.Tables {
		hints = append(hints, "- Keep the section free of tables")
	}
	if len(hints) > 0 {
		b.WriteString("\nWhile rewriting:\n")
		b.WriteString(strings.Join(hints, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nRewrite the whole section to address every issue. Keep the section heading. Respond ONLY with the improved markdown.\n")
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "\n[truncated]"
}
