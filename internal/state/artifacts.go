package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCheckpointPath returns the checkpoint location used when none is
// given: a hidden sibling of the output artifact.
func DefaultCheckpointPath(outputPath string) string {
	dir, base := filepath.Split(outputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "."+base+".checkpoint.json")
}

// ArtifactSize returns the size of the output artifact, 0 if it does not exist.
func ArtifactSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// Reconcile brings the artifact in line with the checkpoint before a resume.
// Blocks appended after the last persisted checkpoint belong to tasks the
// checkpoint still lists as pending, so they are cut off and regenerated.
// An artifact shorter than the checkpoint records is an error.
func Reconcile(c *Checkpoint) (trimmed int64, err error) {
	size, err := ArtifactSize(c.OutputPath)
	if err != nil {
		return 0, fmt.Errorf("inspecting artifact: %w", err)
	}
	switch {
	case size == c.ArtifactBytes:
		return 0, nil
	case size < c.ArtifactBytes:
		return 0, fmt.Errorf("%w: %s is %d bytes, checkpoint records %d", ErrArtifactMismatch, c.OutputPath, size, c.ArtifactBytes)
	}
	if err := os.Truncate(c.OutputPath, c.ArtifactBytes); err != nil {
		return 0, fmt.Errorf("trimming uncommitted tail of %s: %w", c.OutputPath, err)
	}
	return size - c.ArtifactBytes, nil
}
