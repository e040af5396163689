package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultOutputExts are the extensions a run produces.
var DefaultOutputExts = []string{".xlsx", ".pdf"}

// CleanOutputs removes files in dir with one of exts (DefaultOutputExts when
// none are given) and returns the removed paths. A missing dir is not an
// error. Subdirectories are left alone.
func CleanOutputs(dir string, exts ...string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultOutputExts
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}

	var removed []string
	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), exts) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
