package docs

import (
	"fmt"
	"sort"
	"strings"
)

// Topic holds a single documentation article.
type Topic struct {
	Name    string   // short slug used as CLI argument
	Aliases []string // other words a reader might look the topic up by
	Title   string
	Summary string // one-line description for topic listing
	Content string // plain text, no ANSI
}

// All returns every topic in display order.
func All() []Topic {
	return topics
}

// Get looks up a topic by name, alias, or unambiguous name prefix, ignoring
// case. "checkpoint" finds resume and "diag" finds diagrams.
func Get(name string) (Topic, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, t := range topics {
		if t.Name == key {
			return t, nil
		}
		for _, a := range t.Aliases {
			if a == key {
				return t, nil
			}
		}
	}

	var matches []Topic
	if key != "" {
		for _, t := range topics {
			if strings.HasPrefix(t.Name, key) {
				matches = append(matches, t)
			}
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Topic{}, fmt.Errorf("unknown topic %q (run 'tome docs' to list available topics)", name)
	}
	names := make([]string, len(matches))
	for i, t := range matches {
		names[i] = t.Name
	}
	sort.Strings(names)
	return Topic{}, fmt.Errorf("topic %q is ambiguous: %s (run 'tome docs' to list available topics)", name, strings.Join(names, ", "))
}
