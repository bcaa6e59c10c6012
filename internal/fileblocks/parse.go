// Package fileblocks scans Markdown text for fenced code blocks and reports
// their exact byte offsets so callers can splice replacements back in.
package fileblocks

import (
	"strings"
)

// Block is one fenced code block.
//
// Start..End covers the whole region from the opening fence through the
// closing fence line, excluding the closing line's newline. BodyStart..BodyEnd
// covers the lines between the fences. An unclosed block runs to the end of
// the text.
type Block struct {
	Lang      string // first word of the info string, lowercased
	Info      string // full info string after the fence
	Body      string
	Start     int
	End       int
	BodyStart int
	BodyEnd   int
	Closed    bool
}

// Scan returns every fenced block in text in document order. Both ``` and
// ~~~ fences of length three or more are recognized; a block closes on a
// line made only of the same fence character, at least as long as the
// opener.
func Scan(text string) []Block {
	var blocks []Block
	var cur *Block
	var fence string

	for pos := 0; pos < len(text); {
		end, next := len(text), len(text)
		if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
			end = pos + i
			next = end + 1
		}
		line := text[pos:end]

		switch {
		case cur == nil:
			if f, info, ok := openFence(line); ok {
				cur = &Block{
					Info:      info,
					Lang:      langOf(info),
					Start:     pos,
					BodyStart: next,
				}
				fence = f
			}
		case closesFence(line, fence):
			cur.BodyEnd = pos
			cur.End = end
			cur.Closed = true
			cur.Body = text[cur.BodyStart:cur.BodyEnd]
			blocks = append(blocks, *cur)
			cur = nil
		}
		pos = next
	}

	if cur != nil {
		cur.BodyEnd = len(text)
		cur.End = len(text)
		cur.Body = text[cur.BodyStart:]
		blocks = append(blocks, *cur)
	}
	return blocks
}

// Filter returns the blocks whose Lang equals lang.
func Filter(blocks []Block, lang string) []Block {
	var out []Block
	for _, b := range blocks {
		if b.Lang == lang {
			out = append(out, b)
		}
	}
	return out
}

func openFence(line string) (fence, info string, ok bool) {
	s := strings.TrimLeft(line, " ")
	if len(line)-len(s) > 3 || len(s) < 3 {
		return "", "", false
	}
	ch := s[0]
	if ch != '`' && ch != '~' {
		return "", "", false
	}
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}
	if n < 3 {
		return "", "", false
	}
	info = strings.TrimSpace(s[n:])
	if ch == '`' && strings.ContainsRune(info, '`') {
		return "", "", false
	}
	return s[:n], info, true
}

func closesFence(line, fence string) bool {
	s := strings.TrimSpace(line)
	if len(s) < len(fence) {
		return false
	}
	return strings.Trim(s, fence[:1]) == ""
}

func langOf(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[0], "{}."))
}
