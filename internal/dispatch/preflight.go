package dispatch

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Preflight checks that every named binary is available on PATH.
func Preflight(bins ...string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, bin := range bins {
		if bin == "" || seen[bin] {
			continue
		}
		seen[bin] = true
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("required binaries not found in PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
