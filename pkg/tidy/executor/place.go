package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"syscall"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// errCrossDevice signals that an atomic rename is impossible because src
// and dst live on different devices. Callers fall back to copy+delete.
var errCrossDevice = errors.New("cross-device rename")

// linkRename emulates a no-replace rename with hard-link-then-unlink.
// Link fails atomically with EEXIST when dst is occupied, which is the
// exclusivity primitive the engine relies on instead of existence checks.
func linkRename(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		switch {
		case os.IsExist(err):
			return types.NewOpError(types.KindConflict, "rename", dst, err)
		case errors.Is(err, syscall.EXDEV),
			errors.Is(err, syscall.EPERM),
			errors.Is(err, syscall.ENOTSUP):
			// Different device or a filesystem without hard links.
			return errCrossDevice
		default:
			return err
		}
	}
	if err := os.Remove(src); err != nil {
		// Two links to one inode is still one copy of the data, but the
		// move did not complete. Undo the link so the tree is unchanged.
		if cleanupErr := os.Remove(dst); cleanupErr != nil {
			return types.NewCriticalError(types.KindIntegrity, "rename", src,
				fmt.Errorf("source unlink failed (%v) and link cleanup failed: %w", err, cleanupErr))
		}
		return types.NewOpError(types.KindIntegrity, "rename", src, err)
	}
	return nil
}

// MoveNoReplace moves src to dst without replacing an existing dst,
// falling back to exclusive copy+delete when src and dst are on different
// devices. An occupied dst surfaces as a KindConflict error either way.
// The rollback subsystem shares this primitive so undo moves carry the
// same never-silently-overwrite guarantee as forward placements.
func MoveNoReplace(src, dst string) error {
	err := renameNoReplace(src, dst)
	if errors.Is(err, errCrossDevice) {
		return copyThenDelete(src, dst)
	}
	return err
}

// exclusiveCopy copies src to dst, failing with a KindConflict error if
// dst already exists. The create is O_EXCL so a concurrent writer claiming
// dst is detected by the kernel, never by a prior existence check. The
// source's permissions and modification time are preserved.
func exclusiveCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewOpError(types.KindIntegrity, "copy", src, err)
		}
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if os.IsExist(err) {
			return types.NewOpError(types.KindConflict, "copy", dst, err)
		}
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	// Keep the destination's mtime meaningful for overwrite-if-newer
	// comparisons against later arrivals.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	return nil
}

// copyThenDelete places src at dst via exclusive copy, then removes the
// source. A failed source delete leaves two copies on disk; the fresh copy
// is removed to restore the single-copy invariant, and failure of that
// cleanup is an unresolved CRITICAL duplicate.
func copyThenDelete(src, dst string) error {
	if err := exclusiveCopy(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		if cleanupErr := os.Remove(dst); cleanupErr != nil {
			return types.NewCriticalError(types.KindIntegrity, "move", src,
				fmt.Errorf("source delete failed (%v) and duplicate copy at %s could not be removed: %w",
					err, dst, cleanupErr))
		}
		return types.NewOpError(types.KindIntegrity, "move", src, err)
	}
	return nil
}

// maxPlacementAttempts bounds the unique-suffix search. The budget is an
// attempt count, not a wall-clock timeout.
const maxPlacementAttempts = 100

// placeFunc attempts one placement at the candidate destination. It must
// return a KindConflict error when the candidate is already taken.
type placeFunc func(dst string) error

// candidateFunc produces the destination for the given attempt number.
// Attempt 0 is the planned destination itself.
type candidateFunc func(attempt int) string

// placeWithCandidates runs the shared placement loop: verify the source is
// still present, attempt the placement, and advance to the next candidate
// on a lost race. Both the planned-rename path and the disk-discovered
// conflict path go through here so their semantics cannot diverge.
func placeWithCandidates(src string, maxAttempts int, candidate candidateFunc, place placeFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		// The source disappearing mid-operation is an integrity fault,
		// not a retryable race.
		if _, err := os.Lstat(src); err != nil {
			if os.IsNotExist(err) {
				return "", types.NewOpError(types.KindIntegrity, "place", src,
					errors.New("source disappeared mid-operation"))
			}
			return "", err
		}

		dst := candidate(attempt)
		err := place(dst)
		if err == nil {
			return dst, nil
		}
		if types.IsKind(err, types.KindConflict) {
			continue
		}
		return "", err
	}
	return "", types.NewOpError(types.KindCapacity, "place", src,
		fmt.Errorf("no free destination after %d attempts", maxAttempts))
}

// suffixPattern extracts a trailing _N numeric suffix from a file stem.
var suffixPattern = regexp.MustCompile(`^(.*)_(\d+)$`)

// suffixedCandidates returns a candidate generator for dest. Attempt 0 is
// dest unchanged; later attempts continue numbering from any suffix the
// planner already applied rather than restarting at _1.
func suffixedCandidates(dest string) candidateFunc {
	ext := filepath.Ext(dest)
	stem := dest[:len(dest)-len(ext)]

	start := 0
	if m := suffixPattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			stem = m[1]
			start = n
		}
	}

	return func(attempt int) string {
		if attempt == 0 {
			return dest
		}
		return fmt.Sprintf("%s_%d%s", stem, start+attempt, ext)
	}
}
