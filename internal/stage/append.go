package stage

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileAppender appends blocks to the output artifact. It tracks the running
// line total and byte size itself and never reads the artifact back.
type FileAppender struct {
	Path  string
	lines int
	size  int64
}

// NewFileAppender starts from the totals already recorded for the artifact.
func NewFileAppender(path string, lines int, size int64) *FileAppender {
	return &FileAppender{Path: path, lines: lines, size: size}
}

// Append writes block in a single append-mode write, adding a trailing
// newline when missing, and returns the new cumulative line count.
func (a *FileAppender) Append(block string) (int, error) {
	if block == "" {
		return a.lines, nil
	}
	if block[len(block)-1] != '\n' {
		block += "\n"
	}
	if err := os.MkdirAll(filepath.Dir(a.Path), 0755); err != nil {
		return a.lines, fmt.Errorf("appending to %s: %w", a.Path, err)
	}
	f, err := os.OpenFile(a.Path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return a.lines, fmt.Errorf("appending to %s: %w", a.Path, err)
	}
	n, err := f.WriteString(block)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	a.size += int64(n)
	if err != nil {
		return a.lines, fmt.Errorf("appending to %s: %w", a.Path, err)
	}
	a.lines += CountLines(block)
	return a.lines, nil
}

func (a *FileAppender) Lines() int  { return a.lines }
func (a *FileAppender) Size() int64 { return a.size }
