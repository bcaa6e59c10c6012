// Package doctor inspects a generated document for signs that generation
// stopped early: unclosed fences, broken diagrams, thin sections and a
// truncated tail.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/jorge-barreto/tome/internal/fileblocks"
)

// Issue kinds.
const (
	KindUnclosedFence     = "unclosed-fence"
	KindUnclosedDiagram   = "unclosed-diagram"
	KindIncompleteDiagram = "incomplete-diagram"
	KindLongDiagram       = "long-diagram"
	KindThinSection       = "thin-section"
	KindTruncated         = "truncated"
)

const (
	maxDiagramLines = 50
	minSectionChars = 100
	contextLines    = 2
	maxContextChars = 500
)

// Issue is one suspected defect. Lines are 1-based.
type Issue struct {
	Kind    string
	Line    int
	EndLine int
	Detail  string
	Context string
}

// CheckFile reads path and runs Check on it.
func CheckFile(path string) ([]Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Check(string(data)), nil
}

// Check returns the issues found in content: fence problems first, then
// thin sections, then a truncated tail.
func Check(content string) []Issue {
	lines := strings.Split(content, "\n")
	var issues []Issue

	blocks := fileblocks.Scan(content)
	for _, b := range blocks {
		start := lineOf(content, b.Start)
		end := lineOf(content, b.End)
		if !b.Closed {
			kind := KindUnclosedFence
			if b.Lang == "mermaid" {
				kind = KindUnclosedDiagram
			}
			issues = append(issues, Issue{
				Kind: kind, Line: start, EndLine: end,
				Detail:  fmt.Sprintf("%s fence opened here is never closed", langName(b.Lang)),
				Context: excerpt(lines, start, end),
			})
			continue
		}
		if b.Lang != "mermaid" {
			continue
		}
		if n := strings.Count(b.Body, "\n"); n > maxDiagramLines {
			issues = append(issues, Issue{
				Kind: KindLongDiagram, Line: start, EndLine: end,
				Detail:  fmt.Sprintf("diagram has %d lines", n),
				Context: excerpt(lines, start, start+contextLines),
			})
		}
		if danglingEdge(b.Body) {
			issues = append(issues, Issue{
				Kind: KindIncompleteDiagram, Line: start, EndLine: end,
				Detail:  "diagram ends with an edge that has no target",
				Context: excerpt(lines, start, end),
			})
		}
	}

	issues = append(issues, thinSections(lines, blocks, content)...)

	if last, n := lastProse(lines, blocks, content); last != "" && looksCut(last) {
		issues = append(issues, Issue{
			Kind: KindTruncated, Line: n, EndLine: n,
			Detail:  "document ends mid-sentence",
			Context: excerpt(lines, n, n),
		})
	}
	return issues
}

// thinSections flags "##" sections with almost no body before the next
// heading of any level.
func thinSections(lines []string, blocks []fileblocks.Block, content string) []Issue {
	inFence := fenceLines(blocks, content)
	var issues []Issue
	for i, line := range lines {
		if inFence[i+1] || !strings.HasPrefix(line, "##") {
			continue
		}
		next := len(lines)
		for j := i + 1; j < len(lines); j++ {
			if !inFence[j+1] && strings.HasPrefix(lines[j], "#") {
				next = j
				break
			}
		}
		body := strings.TrimSpace(strings.Join(lines[i+1:next], "\n"))
		if len(body) >= minSectionChars {
			continue
		}
		// A heading directly followed by a subheading is structure, not a gap.
		if body == "" && next < len(lines) && strings.HasPrefix(lines[next], "###") {
			continue
		}
		issues = append(issues, Issue{
			Kind: KindThinSection, Line: i + 1, EndLine: next,
			Detail:  fmt.Sprintf("%q has %d characters of content", strings.TrimSpace(strings.TrimLeft(line, "#")), len(body)),
			Context: excerpt(lines, i+1, next),
		})
	}
	return issues
}

// lastProse returns the last non-blank line outside any fence and its
// 1-based number.
func lastProse(lines []string, blocks []fileblocks.Block, content string) (string, int) {
	inFence := fenceLines(blocks, content)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if inFence[i+1] {
			return "", 0
		}
		return strings.TrimSpace(lines[i]), i + 1
	}
	return "", 0
}

// looksCut reports whether a final prose line stops without closing
// punctuation. Headings, tables, images and list items end documents
// legitimately.
func looksCut(line string) bool {
	switch {
	case strings.HasPrefix(line, "#"), strings.HasPrefix(line, "|"),
		strings.HasPrefix(line, "!["), strings.HasPrefix(line, ">"):
		return false
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		return len(line) < 20 && !strings.ContainsAny(line[len(line)-1:], ".!?:)`*")
	}
	return !strings.ContainsAny(line[len(line)-1:], ".!?:;)]}\"'`*_")
}

// danglingEdge reports whether the last statement of a diagram is an edge
// without a target node.
func danglingEdge(body string) bool {
	lines := strings.Split(strings.TrimRight(body, "\n "), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	for _, arrow := range []string{"-->", "---", "==>", "-.->", "->>"} {
		if strings.HasSuffix(last, arrow) {
			return true
		}
	}
	return strings.HasSuffix(last, "|") && strings.Contains(last, "-->|")
}

func fenceLines(blocks []fileblocks.Block, content string) map[int]bool {
	in := make(map[int]bool)
	for _, b := range blocks {
		for l := lineOf(content, b.Start); l <= lineOf(content, b.End); l++ {
			in[l] = true
		}
	}
	return in
}

func lineOf(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}

func excerpt(lines []string, start, end int) string {
	from := max(start-1-contextLines, 0)
	to := min(end+contextLines, len(lines))
	s := strings.Join(lines[from:to], "\n")
	if len(s) > maxContextChars {
		s = s[:maxContextChars] + "\n..."
	}
	return s
}

func langName(lang string) string {
	if lang == "" {
		return "code"
	}
	return lang
}

// Print writes a readable report of issues for path.
func Print(w io.Writer, path string, issues []Issue) {
	bold := color.New(color.Bold).SprintFunc()
	if len(issues) == 0 {
		fmt.Fprintf(w, "%s %s: no problems found\n", color.GreenString("✓"), path)
		return
	}
	fmt.Fprintf(w, "%s %s: %d issue(s)\n\n", color.YellowString("⚠"), path, len(issues))
	rule := strings.Repeat("─", 60)
	for i, is := range issues {
		loc := fmt.Sprintf("line %d", is.Line)
		if is.EndLine > is.Line {
			loc = fmt.Sprintf("lines %d-%d", is.Line, is.EndLine)
		}
		fmt.Fprintf(w, "[%d] %s (%s): %s\n", i+1, bold(is.Kind), loc, is.Detail)
		fmt.Fprintf(w, "%s\n%s\n%s\n\n", rule, is.Context, rule)
	}
}
