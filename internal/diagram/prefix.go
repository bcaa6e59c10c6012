package diagram

import (
	"regexp"
	"strings"
)

// DefaultClassStyle completes a classDef that names a class but no style.
const DefaultClassStyle = "fill:#e2e3e5,stroke:#6c757d,stroke-width:2px,color:#383d41"

const (
	labelSpecials = "[](){}<>:=+-*/"
	edgeSpecials  = "[](){}"
	shapeOpeners  = "([/\\"
)

var (
	classTypoRe    = regexp.MustCompile(`\bclass[Dd]\b`)
	bareClassDefRe = regexp.MustCompile(`^(\s*)classDef\s+(\w+)\s*;?$`)
	edgeLabelRe    = regexp.MustCompile(`(-->|---|==>|-\.->)\|([^|"]*)\|`)
	reservedIDRe   = regexp.MustCompile(`\b(end|graph|subgraph|flowchart|style|class|classDef|linkStyle|click|call|default)\b`)
)

// statementKeyword marks lines whose first word is a keyword, not a node id.
var statementKeyword = map[string]bool{
	"graph": true, "flowchart": true, "subgraph": true, "direction": true,
	"classDef": true, "class": true, "style": true, "linkStyle": true, "click": true,
}

// Prefix applies deterministic repairs for constructs the renderer is known
// to reject. It is idempotent: Prefix(Prefix(s)) == Prefix(s).
//
// Every diagram type gets keyword typo and classDef completion. Flowcharts
// additionally get special-character labels quoted and reserved words used
// as node ids renamed with a trailing underscore.
func Prefix(src string) string {
	lines := strings.Split(src, "\n")
	flow := isFlowchart(lines)
	header := true
	for i, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%%") {
			lines[i] = line
			continue
		}

		line = classTypoRe.ReplaceAllString(line, "classDef")
		if m := bareClassDefRe.FindStringSubmatch(line); m != nil {
			line = m[1] + "classDef " + m[2] + " " + DefaultClassStyle
		}

		if flow && !header {
			line = fixFlowLine(line)
		}
		header = false
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func isFlowchart(lines []string) bool {
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "%%") {
			continue
		}
		f := strings.Fields(t)[0]
		return f == "graph" || f == "flowchart"
	}
	return false
}

// fixFlowLine quotes labels and renames reserved ids in one flowchart
// statement. Text inside quotes, brackets and edge labels is never renamed.
func fixFlowLine(line string) string {
	line = edgeLabelRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := edgeLabelRe.FindStringSubmatch(m)
		if !strings.ContainsAny(sub[2], edgeSpecials) {
			return m
		}
		return sub[1] + `|"` + sub[2] + `"|`
	})

	fields := strings.Fields(line)
	rename := !statementKeyword[fields[0]] && strings.TrimSpace(line) != "end"

	var out strings.Builder
	outside := 0
	flush := func(end int) {
		chunk := line[outside:end]
		if rename {
			chunk = renameReserved(chunk)
		}
		out.WriteString(chunk)
	}
	emit := func(start, end int, text string) {
		flush(start)
		out.WriteString(text)
		outside = end
	}

	for i := 0; i < len(line); {
		switch c := line[i]; c {
		case '"', '|':
			j := strings.IndexByte(line[i+1:], c)
			if j < 0 {
				i++
				continue
			}
			end := i + j + 2
			emit(i, end, line[i:end])
			i = end
		case '[', '(', '{':
			closeAt := matchBracket(line, i)
			if closeAt < 0 {
				i++
				continue
			}
			label := line[i : closeAt+1]
			if c == '[' && i > 0 && isWordByte(line[i-1]) {
				label = quoteLabel(label)
			}
			emit(i, closeAt+1, label)
			i = closeAt + 1
		case '-', '=':
			end := inlineLabelEnd(line, i)
			if end < 0 {
				i++
				continue
			}
			emit(i, end, line[i:end])
			i = end
		default:
			i++
		}
	}
	flush(len(line))
	return out.String()
}

// inlineEdgeClosers maps the opener of an inline edge label, as in
// "A -- text --> B", to the arrows that may close it.
var inlineEdgeClosers = map[string][]string{
	"--": {" -->", " ---"},
	"==": {" ==>", " ==="},
	"-.": {" .->"},
}

// inlineLabelEnd returns the index just past the arrow closing an inline
// edge label opened at i, or -1 when no label starts there. The opener must
// stand alone between spaces so arrows like "-->" never open a label.
func inlineLabelEnd(line string, i int) int {
	if i > 0 && line[i-1] != ' ' && line[i-1] != '\t' {
		return -1
	}
	if i+2 >= len(line) || line[i+2] != ' ' {
		return -1
	}
	closers, ok := inlineEdgeClosers[line[i:i+2]]
	if !ok {
		return -1
	}
	best := -1
	for _, c := range closers {
		if j := strings.Index(line[i+2:], c); j >= 0 && (best < 0 || i+2+j+len(c) < best) {
			best = i + 2 + j + len(c)
		}
	}
	return best
}

// renameReserved appends an underscore to reserved words used as node ids.
// A word joined to an id by a single hyphen, as in sub-end or graph-x, is
// part of that id and stays.
func renameReserved(s string) string {
	var b strings.Builder
	last := 0
	for _, m := range reservedIDRe.FindAllStringIndex(s, -1) {
		start, end := m[0], m[1]
		if start > 0 {
			p := s[start-1]
			if p == ':' || p == '.' || p == '-' && start > 1 && isWordByte(s[start-2]) {
				continue
			}
		}
		if end+1 < len(s) && s[end] == '-' && isWordByte(s[end+1]) {
			continue
		}
		b.WriteString(s[last:end])
		b.WriteByte('_')
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

// matchBracket returns the index of the bracket closing the one at open,
// honoring nesting of the same kind and skipping quoted text.
func matchBracket(s string, open int) int {
	var closer byte
	switch s[open] {
	case '[':
		closer = ']'
	case '(':
		closer = ')'
	default:
		closer = '}'
	}
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == s[open]:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func quoteLabel(label string) string {
	inner := label[1 : len(label)-1]
	switch {
	case inner == "":
		return label
	case strings.ContainsAny(inner, `"'`):
		return label
	case strings.ContainsRune(shapeOpeners, rune(inner[0])):
		return label
	case !strings.ContainsAny(inner, labelSpecials):
		return label
	}
	return `["` + inner + `"]`
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
