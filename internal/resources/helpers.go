package resources

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvaldes/archtrack/internal/config"
)

// findResourceRoot walks up from the current working directory looking for
// an existing arch/config.yaml, mirroring the tool-side root detection.
func findResourceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if config.Exists(current) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}
