package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

type TimingEntry struct {
	Task     int       `json:"task"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Duration string    `json:"duration,omitempty"`
}

type Timing struct {
	Entries []TimingEntry `json:"entries"`
}

// TimingPath returns the timing file kept beside a checkpoint.
func TimingPath(checkpointPath string) string {
	return strings.TrimSuffix(checkpointPath, ".json") + ".timing.json"
}

// LoadTiming reads timing data for a checkpoint. Missing data is empty.
func LoadTiming(checkpointPath string) (*Timing, error) {
	data, err := os.ReadFile(TimingPath(checkpointPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Timing{}, nil
		}
		return nil, err
	}
	var t Timing
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing timing: %w", err)
	}
	return &t, nil
}

// AddStart opens a timing entry for a task attempt.
func (t *Timing) AddStart(task int, title string) {
	t.Entries = append(t.Entries, TimingEntry{
		Task:  task,
		Title: title,
		Start: time.Now(),
	})
}

// AddEnd closes the most recent open entry for task.
func (t *Timing) AddEnd(task int) {
	for i := len(t.Entries) - 1; i >= 0; i-- {
		if t.Entries[i].Task == task && t.Entries[i].End.IsZero() {
			t.Entries[i].End = time.Now()
			t.Entries[i].Duration = FormatDuration(t.Entries[i].End.Sub(t.Entries[i].Start))
			break
		}
	}
}

// Last returns the most recent finished duration recorded for task.
func (t *Timing) Last(task int) string {
	if t == nil {
		return ""
	}
	for i := len(t.Entries) - 1; i >= 0; i-- {
		if t.Entries[i].Task == task && t.Entries[i].Duration != "" {
			return t.Entries[i].Duration
		}
	}
	return ""
}

// Flush writes the timing data beside the checkpoint.
func (t *Timing) Flush(checkpointPath string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(TimingPath(checkpointPath), data, 0644)
}

func FormatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
