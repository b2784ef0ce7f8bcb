// Package category maps file names to category directories by extension.
// It implements the planner's Categorizer collaborator; the engine itself
// never decides what category a file belongs in.
package category

import (
	"path/filepath"
	"strings"
)

// Table categorizes files by extension.
type Table struct {
	rules    map[string]string
	fallback string
}

// New creates a Table from extension→category rules. Extensions are
// matched case-insensitively, without the leading dot. Files no rule
// matches land in fallback.
func New(rules map[string]string, fallback string) *Table {
	normalized := make(map[string]string, len(rules))
	for ext, cat := range rules {
		normalized[strings.ToLower(strings.TrimPrefix(ext, "."))] = cat
	}
	return &Table{rules: normalized, fallback: fallback}
}

// Category implements planner.Categorizer.
func (t *Table) Category(name string, _ string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if cat, ok := t.rules[ext]; ok && ext != "" {
		return cat, nil
	}
	return t.fallback, nil
}
