package fileblocks

import (
	"testing"
)

func TestScan_SingleBlockOffsets(t *testing.T) {
	input := "intro\n```mermaid\ngraph TD\n  A-->B\n```\noutro\n"
	blocks := Scan(input)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Lang != "mermaid" || !b.Closed {
		t.Fatalf("lang=%q closed=%v", b.Lang, b.Closed)
	}
	if b.Body != "graph TD\n  A-->B\n" {
		t.Fatalf("body = %q", b.Body)
	}
	if got := input[b.Start:b.End]; got != "```mermaid\ngraph TD\n  A-->B\n```" {
		t.Fatalf("region = %q", got)
	}
	if input[b.BodyStart:b.BodyEnd] != b.Body {
		t.Fatal("body offsets disagree with Body")
	}
}

func TestScan_MultipleBlocksInOrder(t *testing.T) {
	input := "```go\nfmt.Println()\n```\n\ntext\n\n```Mermaid\nflowchart LR\n```\n"
	blocks := Scan(input)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Lang != "go" || blocks[1].Lang != "mermaid" {
		t.Fatalf("langs = %q, %q", blocks[0].Lang, blocks[1].Lang)
	}
	if blocks[0].End >= blocks[1].Start {
		t.Fatal("blocks overlap")
	}
	if got := Filter(blocks, "mermaid"); len(got) != 1 || got[0].Body != "flowchart LR\n" {
		t.Fatalf("Filter = %+v", got)
	}
}

func TestScan_NoLanguageTag(t *testing.T) {
	blocks := Scan("```\nplain\n```\n")
	if len(blocks) != 1 || blocks[0].Lang != "" || blocks[0].Body != "plain\n" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestScan_InfoString(t *testing.T) {
	blocks := Scan("```python title=demo.py\nx = 1\n```")
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Lang != "python" || blocks[0].Info != "python title=demo.py" {
		t.Fatalf("lang=%q info=%q", blocks[0].Lang, blocks[0].Info)
	}
	if !blocks[0].Closed || blocks[0].End != len("```python title=demo.py\nx = 1\n```") {
		t.Fatalf("closed=%v end=%d", blocks[0].Closed, blocks[0].End)
	}
}

func TestScan_LongerFenceNestsShorter(t *testing.T) {
	input := "````markdown\n```mermaid\ngraph TD\n```\n````\n"
	blocks := Scan(input)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 outer block, got %d", len(blocks))
	}
	if blocks[0].Body != "```mermaid\ngraph TD\n```\n" {
		t.Fatalf("body = %q", blocks[0].Body)
	}
}

func TestScan_TildeFence(t *testing.T) {
	blocks := Scan("~~~mermaid\ngraph TD\n```\n~~~\n")
	if len(blocks) != 1 || blocks[0].Body != "graph TD\n```\n" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestScan_Unclosed(t *testing.T) {
	input := "text\n```mermaid\ngraph TD\n  A-->B"
	blocks := Scan(input)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Closed || blocks[0].End != len(input) {
		t.Fatalf("closed=%v end=%d", blocks[0].Closed, blocks[0].End)
	}
}

func TestScan_IndentedTooFarIsNotFence(t *testing.T) {
	if blocks := Scan("    ```go\n    x\n    ```\n"); len(blocks) != 0 {
		t.Fatalf("expected no blocks, got %+v", blocks)
	}
}

func TestScan_Empty(t *testing.T) {
	if blocks := Scan(""); len(blocks) != 0 {
		t.Fatalf("expected 0 blocks, got %d", len(blocks))
	}
}
