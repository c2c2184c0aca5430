package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// MkDir creates targetDir/parts... and any missing parents.
func MkDir(targetDir string, parts ...string) error {
	path := filepath.Join(append([]string{targetDir}, parts...)...)
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// MustNotExist fails when path already exists, so init never overwrites a workspace.
func MustNotExist(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing file or directory: %s", path)
	}
	return nil
}
