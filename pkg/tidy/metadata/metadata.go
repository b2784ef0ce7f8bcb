// Package metadata derives optional destination subpaths from file
// metadata. It implements the planner's MetadataService collaborator.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
)

// DateSubpath files selected categories into YYYY/YYYY-MM subfolders
// derived from each file's modification time.
type DateSubpath struct {
	categories map[string]bool
}

// NewDateSubpath creates a DateSubpath for the given categories.
func NewDateSubpath(categories []string) *DateSubpath {
	enabled := make(map[string]bool, len(categories))
	for _, c := range categories {
		enabled[c] = true
	}
	return &DateSubpath{categories: enabled}
}

// Subpath implements planner.MetadataService. Categories not enabled get
// no subpath.
func (d *DateSubpath) Subpath(path string, category string) (string, error) {
	if !d.categories[category] {
		return "", nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	t := info.ModTime()
	return filepath.Join(t.Format("2006"), t.Format("2006-01")), nil
}
