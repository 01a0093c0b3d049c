package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrFileNotFound = errors.New("file not found")

// FindUpward looks for a regular file named name in dir and its ancestors,
// and returns the nearest one.
func FindUpward(dir string, name string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for here := dir; ; {
		candidate := filepath.Join(here, name)
		if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
			return candidate, nil
		}
		parent := filepath.Dir(here)
		if parent == here {
			return "", fmt.Errorf("%w: %s (from %s)", ErrFileNotFound, name, dir)
		}
		here = parent
	}
}
