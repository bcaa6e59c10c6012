// Package outline builds the ordered task list a run works through: from a
// backend-written outline, numbered parts, or a sections file.
package outline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/fileblocks"
	"github.com/jorge-barreto/tome/internal/llm"
	"github.com/jorge-barreto/tome/internal/state"
)

// Modes accepted by Build.
const (
	ModeAuto   = "auto"   // backend outline, falling back to parts
	ModeLLM    = "llm"    // backend outline only
	ModeParts  = "parts"  // numbered parts
	ModeCustom = "custom" // sections file
)

// ErrNoSections is returned when a source yields an empty task list.
var ErrNoSections = errors.New("outline has no sections")

// Section is one entry of a sections file or backend outline. JSON is read
// through the YAML decoder, so both formats share these keys.
type Section struct {
	Title           string `yaml:"title"`
	Description     string `yaml:"description,omitempty"`
	Level           int    `yaml:"level"`
	RequireDiagram  bool   `yaml:"require-diagram,omitempty"`
	RequireTable    bool   `yaml:"require-table,omitempty"`
	RequireExamples *bool  `yaml:"require-examples"`
}

type document struct {
	Title    string    `yaml:"title,omitempty"`
	Sections []Section `yaml:"sections"`
}

// Options selects and parameterizes a task source.
type Options struct {
	Mode         string
	Topic        string
	TargetLines  int
	Parts        int // explicit part count, 0 derives it from TargetLines
	SectionsFile string
	Backend      llm.Backend
	Logger       *slog.Logger
}

// Build returns the task list for opts.Mode.
func Build(ctx context.Context, opts Options) ([]state.Task, error) {
	switch opts.Mode {
	case ModeParts:
		return Parts(opts.Topic, opts.TargetLines, opts.Parts), nil
	case ModeCustom:
		if opts.SectionsFile == "" {
			return nil, fmt.Errorf("outline: mode %q needs a sections file", ModeCustom)
		}
		return LoadFile(opts.SectionsFile)
	case ModeLLM:
		return FromLLM(ctx, opts.Backend, opts.Topic, opts.TargetLines)
	case ModeAuto, "":
		tasks, err := FromLLM(ctx, opts.Backend, opts.Topic, opts.TargetLines)
		if err == nil {
			return tasks, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if opts.Logger != nil {
			opts.Logger.Warn("backend outline failed, falling back to parts", "err", err)
		}
		return Parts(opts.Topic, opts.TargetLines, opts.Parts), nil
	}
	return nil, fmt.Errorf("outline: unknown mode %q (must be auto, llm, parts, or custom)", opts.Mode)
}

// Parts returns n numbered parts of topic. When n is zero it is derived from
// the target size at roughly 150 lines per part, with at least five parts.
// Every third part asks for a diagram and every second for a table.
func Parts(topic string, targetLines, n int) []state.Task {
	if n <= 0 {
		n = max(5, targetLines/150)
	}
	tasks := make([]state.Task, n)
	for i := range tasks {
		k := i + 1
		tasks[i] = state.Task{
			Title:           fmt.Sprintf("%s - Part %d", topic, k),
			Description:     fmt.Sprintf("Part %d of %s", k, topic),
			Level:           1,
			RequireDiagram:  k%3 == 0,
			RequireTable:    k%2 == 0,
			RequireExamples: true,
		}
	}
	return tasks
}

// Apply clears requirements the preferences rule out: no worked examples
// without code, no tables when tables are off.
func Apply(tasks []state.Task, p config.Preferences) []state.Task {
	for i := range tasks {
		if !p.Code {
			tasks[i].RequireExamples = false
		}
		if !p.Tables {
			tasks[i].RequireTable = false
		}
	}
	return tasks
}

// LoadFile reads a YAML or JSON sections file.
func LoadFile(path string) ([]state.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sections file: %w", err)
	}
	tasks, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tasks, nil
}

// Parse decodes a sections document into tasks. Sections without a title
// are rejected; a missing level means 1 and a missing require-examples
// means true.
func Parse(data []byte) ([]state.Task, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing sections: %w", err)
	}
	if len(doc.Sections) == 0 {
		return nil, ErrNoSections
	}
	tasks := make([]state.Task, 0, len(doc.Sections))
	for i, s := range doc.Sections {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			return nil, fmt.Errorf("section %d: title is required", i+1)
		}
		if s.Level < 0 {
			return nil, fmt.Errorf("section %d (%s): level must be positive", i+1, title)
		}
		t := state.Task{
			Title:           title,
			Description:     strings.TrimSpace(s.Description),
			Level:           max(s.Level, 1),
			RequireDiagram:  s.RequireDiagram,
			RequireTable:    s.RequireTable,
			RequireExamples: true,
		}
		if s.RequireExamples != nil {
			t.RequireExamples = *s.RequireExamples
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Encode renders tasks as a sections document that LoadFile accepts.
func Encode(title string, tasks []state.Task) ([]byte, error) {
	doc := document{Title: title}
	for _, t := range tasks {
		examples := t.RequireExamples
		doc.Sections = append(doc.Sections, Section{
			Title:           t.Title,
			Description:     t.Description,
			Level:           t.Level,
			RequireDiagram:  t.RequireDiagram,
			RequireTable:    t.RequireTable,
			RequireExamples: &examples,
		})
	}
	return yaml.Marshal(doc)
}

// FromLLM asks the backend for an outline of topic. The answer may be bare
// JSON or JSON inside a fence. An unusable answer gets one follow-up turn
// quoting it back with the parse error.
func FromLLM(ctx context.Context, b llm.Backend, topic string, targetLines int) ([]state.Task, error) {
	if b == nil {
		return nil, errors.New("outline: no backend configured")
	}
	messages := []llm.Message{llm.User(outlinePrompt(topic, targetLines))}
	var lastErr error
	for turn := 0; turn < 2; turn++ {
		answer, err := llm.Ask(ctx, b, llm.Request{
			Purpose:     llm.PurposeOutline,
			Messages:    messages,
			Temperature: 0.5,
			MaxTokens:   8000,
		})
		if err != nil {
			return nil, fmt.Errorf("requesting outline: %w", err)
		}
		tasks, err := parseAnswer(answer)
		if err == nil {
			return tasks, nil
		}
		lastErr = err
		messages = append(messages,
			llm.Assistant(answer),
			llm.User(fmt.Sprintf("That answer could not be used (%v). Reply with only the JSON object described above.", err)),
		)
	}
	return nil, fmt.Errorf("%w: %v", llm.ErrMalformed, lastErr)
}

func parseAnswer(answer string) ([]state.Task, error) {
	raw := ExtractJSON(answer)
	if raw == "" {
		return nil, errors.New("no JSON object in outline answer")
	}
	return Parse([]byte(raw))
}

// ExtractJSON returns the JSON object in answer: the body of the first json
// (or untagged) fence, else the span from the first '{' to the last '}'.
func ExtractJSON(answer string) string {
	for _, b := range fileblocks.Scan(answer) {
		if (b.Lang == "json" || b.Lang == "") && b.Closed {
			if body := strings.TrimSpace(b.Body); strings.HasPrefix(body, "{") {
				return body
			}
		}
	}
	start := strings.IndexByte(answer, '{')
	end := strings.LastIndexByte(answer, '}')
	if start < 0 || end < start {
		return ""
	}
	return answer[start : end+1]
}

func outlinePrompt(topic string, targetLines int) string {
	return fmt.Sprintf(`Create a detailed outline for a %d-line comprehensive tutorial on: %s

Teach progressively, from absolute zero to advanced mastery.
Early sections: analogies and intuition, no jargon.
Middle sections: formal concepts with diagrams.
Later sections: real code with 3-5 worked examples each.
Final sections: performance, real-world use cases, interview preparation.

Create 20-40 sections, each about 100-200 lines when written.

Respond ONLY with a JSON object of this shape:
{
  "title": "Tutorial title",
  "sections": [
    {
      "title": "Section title",
      "level": 1,
      "description": "What this section covers",
      "require-diagram": true,
      "require-table": false,
      "require-examples": true
    }
  ]
}`, targetLines, topic)
}
