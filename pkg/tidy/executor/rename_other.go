//go:build !linux

package executor

// renameNoReplace atomically renames src to dst, failing instead of
// replacing an existing dst. Hosts without renameat2 use the portable
// hard-link-then-unlink protocol.
func renameNoReplace(src, dst string) error {
	return linkRename(src, dst)
}
