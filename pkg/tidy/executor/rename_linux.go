//go:build linux

package executor

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// renameNoReplace atomically renames src to dst, failing instead of
// replacing an existing dst. On Linux this is renameat2 with
// RENAME_NOREPLACE, so occupancy is detected by the kernel rather than by
// a racy existence check.
func renameNoReplace(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, unix.EEXIST), errors.Is(err, unix.ENOTEMPTY):
		return types.NewOpError(types.KindConflict, "rename", dst, err)
	case errors.Is(err, unix.EXDEV):
		return errCrossDevice
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS):
		// Filesystem does not support RENAME_NOREPLACE; take the
		// portable link+remove path instead.
		return linkRename(src, dst)
	default:
		return err
	}
}
