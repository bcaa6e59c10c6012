package docs

import (
	"strings"
	"testing"
)

func TestAll_ReturnsTopics(t *testing.T) {
	topics := All()
	if len(topics) == 0 {
		t.Fatal("All() returned no topics")
	}
	if topics[0].Name != "quickstart" {
		t.Errorf("first topic = %q, want %q", topics[0].Name, "quickstart")
	}
}

func TestAll_NoDuplicateNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, topic := range All() {
		if seen[topic.Name] {
			t.Errorf("duplicate topic name: %q", topic.Name)
		}
		seen[topic.Name] = true
	}
}

func TestAll_AllFieldsPopulated(t *testing.T) {
	for _, topic := range All() {
		if topic.Name == "" {
			t.Error("topic has empty Name")
		}
		if topic.Title == "" {
			t.Errorf("topic %q has empty Title", topic.Name)
		}
		if topic.Summary == "" {
			t.Errorf("topic %q has empty Summary", topic.Name)
		}
		if topic.Content == "" {
			t.Errorf("topic %q has empty Content", topic.Name)
		}
	}
}

func TestAll_ContentStartsWithTitle(t *testing.T) {
	for _, topic := range All() {
		if !strings.HasPrefix(topic.Content, topic.Title+"\n") {
			t.Errorf("topic %q content does not start with its title", topic.Name)
		}
	}
}

func TestGet_Found(t *testing.T) {
	topic, err := Get("resume")
	if err != nil {
		t.Fatalf("Get(resume) error: %v", err)
	}
	if topic.Name != "resume" {
		t.Errorf("Name = %q, want %q", topic.Name, "resume")
	}
}

func TestGet_NotFound(t *testing.T) {
	_, err := Get("nonexistent")
	if err == nil {
		t.Fatal("Get(nonexistent) should return error")
	}
	if !strings.Contains(err.Error(), "tome docs") {
		t.Errorf("error should hint at 'tome docs': %v", err)
	}
}

func TestConfigTopic_MentionsEverySection(t *testing.T) {
	topic, err := Get("config")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"llm:", "generation:", "review:", "diagrams:", "checkpoint-every", "fix-attempts"} {
		if !strings.Contains(topic.Content, key) {
			t.Errorf("config topic missing %q", key)
		}
	}
}

func TestGet_AliasAndPrefix(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"checkpoint", "resume"},
		{"mermaid", "diagrams"},
		{"preferences", "config"},
		{"diag", "diagrams"},
		{"  Quick ", "quickstart"},
		{"RESUME", "resume"},
	} {
		topic, err := Get(tc.in)
		if err != nil {
			t.Errorf("Get(%q) error: %v", tc.in, err)
			continue
		}
		if topic.Name != tc.want {
			t.Errorf("Get(%q) = %q, want %q", tc.in, topic.Name, tc.want)
		}
	}
}

func TestGet_AmbiguousPrefix(t *testing.T) {
	saved := topics
	t.Cleanup(func() { topics = saved })
	topics = []Topic{{Name: "render"}, {Name: "resume"}}

	_, err := Get("re")
	if err == nil {
		t.Fatal("Get(re) should be ambiguous")
	}
	if !strings.Contains(err.Error(), "render, resume") {
		t.Errorf("error should list the candidates: %v", err)
	}
	if _, err := Get(""); err == nil {
		t.Error("Get(\"\") should not match every topic")
	}
}

func TestAll_AliasesDoNotCollide(t *testing.T) {
	seen := make(map[string]string)
	for _, topic := range All() {
		seen[topic.Name] = topic.Name
	}
	for _, topic := range All() {
		for _, a := range topic.Aliases {
			if other, ok := seen[a]; ok {
				t.Errorf("alias %q of %q collides with %q", a, topic.Name, other)
			}
			seen[a] = topic.Name
		}
	}
}

func TestConfigTopic_DocumentsPreferences(t *testing.T) {
	topic, err := Get("config")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"preferences:", "audience:", "code-examples:", "--no-code", "--no-tables"} {
		if !strings.Contains(topic.Content, key) {
			t.Errorf("config topic missing %q", key)
		}
	}
	if strings.Contains(topic.Content, "min-examples") {
		t.Error("config topic still documents min-examples")
	}
}
