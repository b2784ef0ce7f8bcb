package executor

import (
	"path/filepath"
	"regexp"
)

// reservedNamePattern matches Windows reserved device names, with or
// without an extension. The guard applies on every host OS because the
// engine's output must stay readable if the tree is later mounted on a
// different filesystem.
var reservedNamePattern = regexp.MustCompile(`(?i)^(CON|PRN|AUX|NUL|COM[1-9]|LPT[1-9])(\..*)?$`)

// IsReservedName reports whether the base name of path is a Windows
// reserved device name.
func IsReservedName(path string) bool {
	return reservedNamePattern.MatchString(filepath.Base(path))
}
