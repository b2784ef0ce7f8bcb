// Package scanner enumerates candidate files for the planner. It produces
// inputs only; no placement, journaling, or undo logic lives here.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// Options configures a scan.
type Options struct {
	// Recursive descends into subdirectories. Off by default: organizing
	// a directory usually means its immediate contents.
	Recursive bool

	// IncludeHidden includes dot-files. Off by default.
	IncludeHidden bool

	// Exclude lists absolute path prefixes to skip, e.g. the destination
	// root when it lives inside the scanned directory.
	Exclude []string
}

// Scan returns the candidate files under root, sorted by path for a
// deterministic plan order. Directories and symlinks are never candidates.
func Scan(ctx context.Context, root string, opts Options) ([]types.Candidate, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "scan", Path: absRoot, Err: os.ErrInvalid}
	}

	var mu sync.Mutex
	var candidates []types.Candidate

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		hidden := strings.HasPrefix(name, ".") && path != absRoot

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if !opts.Recursive || (hidden && !opts.IncludeHidden) || excluded(path, opts.Exclude) {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if hidden && !opts.IncludeHidden {
			return nil
		}
		if excluded(path, opts.Exclude) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // File may have vanished mid-walk
		}

		mu.Lock()
		candidates = append(candidates, types.Candidate{
			Path:    path,
			Name:    name,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})

	return candidates, nil
}

// excluded reports whether path falls under any excluded prefix.
func excluded(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
