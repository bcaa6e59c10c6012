package diagram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/jorge-barreto/tome/internal/fileblocks"
)

// Status is the terminal state of one diagram unit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Unit is one diagram region of a block.
type Unit struct {
	Ordinal    int // 1-based position within the block
	Start, End int // region offsets in the original block text
	Source     string
	Status     Status
	ImagePath  string
	SourcePath string
	Attempts   int // renders tried
	Fixes      int // fixer calls made
	Err        string
}

// Report lists what happened to every diagram in a block.
type Report struct {
	Units []Unit
}

func (r Report) Count(s Status) int {
	n := 0
	for _, u := range r.Units {
		if u.Status == s {
			n++
		}
	}
	return n
}

// Block is the input to Process.
type Block struct {
	Text      string
	TaskIndex int
	Title     string
}

type Options struct {
	ImagesDir   string // where images and sources are written
	LinkBase    string // image references are relative to this directory
	FixAttempts int
	NoFix       bool // render once, never call the fixer
	DryRun      bool // plan only, write nothing
}

// Pipeline converts diagrams in a block to image references. Rendering
// problems never fail the block: a diagram that cannot be rendered keeps its
// original source.
type Pipeline struct {
	Renderer Renderer
	Fixer    Fixer
	Options  Options
	Logger   *slog.Logger
}

// Process extracts every closed mermaid region of b, renders each in order
// and splices the successful ones back, last region first so earlier
// offsets stay valid. The only error returned is context cancellation.
func (p *Pipeline) Process(ctx context.Context, b Block) (string, Report, error) {
	log := p.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var report Report
	regions := fileblocks.Filter(fileblocks.Scan(b.Text), "mermaid")
	for i, region := range regions {
		u := Unit{
			Ordinal: i + 1,
			Start:   region.Start,
			End:     region.End,
			Source:  region.Body,
			Status:  StatusPending,
		}
		if !region.Closed {
			u.Status = StatusFailed
			u.Err = "unclosed mermaid fence"
			report.Units = append(report.Units, u)
			continue
		}
		stem := filepath.Join(p.Options.ImagesDir, imageStem(b, u.Ordinal))
		u.ImagePath = stem + ".png"
		u.SourcePath = stem + ".mmd"
		if !p.Options.DryRun {
			if err := p.convert(ctx, &u, b, log); err != nil {
				return b.Text, report, err
			}
		}
		report.Units = append(report.Units, u)
	}

	out := b.Text
	for i := len(report.Units) - 1; i >= 0; i-- {
		u := report.Units[i]
		if u.Status != StatusSucceeded {
			continue
		}
		out = out[:u.Start] + p.reference(b, u) + out[u.End:]
	}
	return out, report, nil
}

// convert runs pre-fix, render and the bounded fix loop for one unit.
func (p *Pipeline) convert(ctx context.Context, u *Unit, b Block, log *slog.Logger) error {
	log = log.With("task", b.TaskIndex+1, "diagram", u.Ordinal)
	src := Prefix(u.Source)

	renderErr := p.render(ctx, u, src)
	attempts := p.Options.FixAttempts
	if p.Options.NoFix || p.Fixer == nil {
		attempts = 0
	}
	for fix := 1; renderErr != nil && fix <= attempts; fix++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rerr *RenderError
		if !errors.As(renderErr, &rerr) {
			break
		}
		u.Fixes++
		diag := rerr.Output
		if strings.TrimSpace(diag) == "" {
			diag = rerr.Error()
		}
		fixed, err := p.Fixer.Fix(ctx, FixRequest{
			Source:  src,
			Error:   diag,
			Context: fixContext(b, u.Start),
			Attempt: fix,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("diagram fix call failed", "attempt", fix, "err", err)
			continue
		}
		fixed = Prefix(fixed)
		if strings.TrimSpace(fixed) == strings.TrimSpace(src) {
			log.Debug("fixer returned unchanged source", "attempt", fix)
			continue
		}
		src = fixed
		renderErr = p.render(ctx, u, src)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if renderErr != nil {
		u.Status = StatusFailed
		u.Err = renderErr.Error()
		// The renderer's log, if any, stays beside the removed source.
		os.Remove(u.SourcePath)
		os.Remove(u.ImagePath)
		log.Warn("diagram kept as source", "renders", u.Attempts, "fixes", u.Fixes, "err", renderErr)
		return nil
	}
	u.Status = StatusSucceeded
	log.Info("diagram rendered", "image", u.ImagePath, "renders", u.Attempts, "fixes", u.Fixes)
	return nil
}

// render writes src to the unit's .mmd file and renders it. The .mmd file
// therefore always holds the source of the latest attempt.
func (p *Pipeline) render(ctx context.Context, u *Unit, src string) error {
	u.Attempts++
	if err := os.MkdirAll(filepath.Dir(u.SourcePath), 0755); err != nil {
		return fmt.Errorf("creating images dir: %w", err)
	}
	if err := os.WriteFile(u.SourcePath, []byte(src), 0644); err != nil {
		return fmt.Errorf("writing diagram source: %w", err)
	}
	return p.Renderer.Render(ctx, u.SourcePath, u.ImagePath)
}

func (p *Pipeline) reference(b Block, u Unit) string {
	target := u.ImagePath
	if p.Options.LinkBase != "" {
		if rel, err := filepath.Rel(p.Options.LinkBase, u.ImagePath); err == nil {
			target = rel
		}
	}
	alt := strings.TrimSpace(b.Title)
	if alt == "" {
		alt = "Diagram"
	}
	return fmt.Sprintf("![%s diagram %d](%s)", alt, u.Ordinal, filepath.ToSlash(target))
}

func imageStem(b Block, ordinal int) string {
	stem := fmt.Sprintf("diagram-%d-%d", b.TaskIndex+1, ordinal)
	if s := slug(b.Title); s != "" {
		stem += "-" + s
	}
	return stem
}

// fixContext is the title plus the prose right before the diagram.
func fixContext(b Block, start int) string {
	before := []rune(strings.TrimSpace(b.Text[:start]))
	if len(before) > 300 {
		before = before[len(before)-300:]
	}
	return b.Title + "\n" + string(before)
}

func slug(s string) string {
	var out strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			out.WriteRune(r)
			dash = false
		case out.Len() > 0 && !dash:
			out.WriteByte('-')
			dash = true
		}
		if out.Len() >= 40 {
			break
		}
	}
	return strings.Trim(out.String(), "-")
}
