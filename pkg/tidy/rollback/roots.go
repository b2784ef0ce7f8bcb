package rollback

import (
	"path/filepath"
	"strings"
)

// AllowedRoots is the default PathValidator: a path is allowed when it
// falls under one of the configured root directories.
type AllowedRoots []string

// IsPathAllowed implements PathValidator.
func (r AllowedRoots) IsPathAllowed(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range r {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
