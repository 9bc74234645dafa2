package segment

import (
	"fmt"
	"os"
	"path/filepath"
)

// Cleanup creates dataDir if needed and removes segment files left by earlier runs.
// Artifacts are kept. It returns the number of files removed
func Cleanup(dataDir string) (int, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return 0, fmt.Errorf("segment: data dir %s: %w", dataDir, err)
	}
	matches, err := filepath.Glob(filepath.Join(dataDir, "items_*_*.ndjson"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range matches {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return n, fmt.Errorf("segment: remove %s: %w", p, err)
		}
		n++
	}
	return n, nil
}
