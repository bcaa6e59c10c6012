// Package contextgather builds the bounded summary of already generated
// blocks that is handed to the generator for the next task.
package contextgather

import (
	"fmt"
	"strings"

	"github.com/jorge-barreto/tome/internal/state"
)

const (
	recentBlocks  = 3   // completed blocks summarized by excerpt
	excerptChars  = 240 // per summarized block
	maxTailChars  = 500 // verbatim tail of the immediately preceding block
	truncatedMark = "..."
)

// Excerpt is the leading text of one completed block.
type Excerpt struct {
	Title string
	Text  string
}

// PriorContext describes what came before the current task.
type PriorContext struct {
	Completed int       // blocks completed so far
	Recent    []Excerpt // up to the last three, oldest first
	Tail      string    // end of the block right before the current task
}

// Gather collects the context for the task at index. Only tasks before index
// are considered, so the result depends solely on completed work.
func Gather(tasks []state.Task, index int) *PriorContext {
	if index > len(tasks) {
		index = len(tasks)
	}
	pc := &PriorContext{}
	for i := 0; i < index; i++ {
		if tasks[i].Completed {
			pc.Completed++
		}
	}
	start := index - recentBlocks
	if start < 0 {
		start = 0
	}
	for i := start; i < index; i++ {
		t := tasks[i]
		if !t.Completed {
			continue
		}
		pc.Recent = append(pc.Recent, Excerpt{Title: t.Title, Text: head(flatten(stripHeadings(t.Content)), excerptChars)})
	}
	if index > 0 && tasks[index-1].Completed {
		pc.Tail = tail(strings.TrimSpace(tasks[index-1].Content), maxTailChars)
	}
	return pc
}

// Render formats the context as a prompt section of at most limit runes.
// The tail gets at most a third of the budget; excerpts fill the rest.
func (pc *PriorContext) Render(limit int) string {
	if limit <= 0 || (len(pc.Recent) == 0 && pc.Tail == "") {
		return ""
	}

	tailBudget := limit / 3
	if tailBudget > maxTailChars {
		tailBudget = maxTailChars
	}
	var tailPart string
	if pc.Tail != "" {
		tailPart = "\nThe previous section ended with:\n" + tail(pc.Tail, tailBudget) + "\n"
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "Sections already written: %d.\n", pc.Completed)
	if len(pc.Recent) > 0 {
		buf.WriteString("Most recent sections:\n")
		for _, e := range pc.Recent {
			fmt.Fprintf(&buf, "- %s: %s\n", e.Title, e.Text)
		}
	}

	summary := buf.String()
	room := limit - runeLen(tailPart)
	if room < 0 {
		return clip(tailPart, limit)
	}
	return clip(summary, room) + tailPart
}

// Build is Gather followed by Render.
func Build(tasks []state.Task, index, limit int) string {
	return Gather(tasks, index).Render(limit)
}

func stripHeadings(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= len(truncatedMark) {
		return string(r[:n])
	}
	return string(r[:n-len(truncatedMark)]) + truncatedMark
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= len(truncatedMark) {
		return string(r[len(r)-n:])
	}
	return truncatedMark + string(r[len(r)-n+len(truncatedMark):])
}

// clip cuts s to n runes without a marker.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
