// Package planner computes destinations for a batch of candidate files
// without touching the disk. Disk conflicts are deliberately left to the
// executor: checking for an existing destination here and acting on it
// later would create exactly the time-of-check-to-time-of-use race the
// engine exists to avoid. The planner only resolves collisions knowable in
// memory, i.e. two candidates in the same batch assigned the same
// destination.
package planner

import (
	"fmt"
	"path/filepath"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// MaxConsecutiveFailures is the number of back-to-back candidate failures
// after which planning aborts. It bounds pathological batches, such as an
// entire tree with unreadable metadata, without silently consuming
// unbounded time.
const MaxConsecutiveFailures = 10

// Categorizer assigns a category label to a candidate file. Implementations
// live outside the engine; the planner only consumes the label.
type Categorizer interface {
	Category(name string, path string) (string, error)
}

// MetadataService derives an optional subpath below the category directory,
// for example a date folder computed from file metadata. An empty subpath
// means the file lands directly in the category directory.
type MetadataService interface {
	Subpath(path string, category string) (string, error)
}

// Planner assigns destinations and resolves batch-internal collisions.
type Planner struct {
	categorizer Categorizer
	metadata    MetadataService
}

// New creates a Planner with the given collaborators. The metadata service
// may be nil, in which case no subpaths are assigned.
func New(categorizer Categorizer, metadata MetadataService) *Planner {
	return &Planner{categorizer: categorizer, metadata: metadata}
}

// Plan computes a destination for each candidate under destRoot. It never
// mutates the filesystem. Per-candidate lookup failures are recorded as
// skipped files; planning aborts early once MaxConsecutiveFailures
// back-to-back failures accumulate.
func (p *Planner) Plan(destRoot string, candidates []types.Candidate, strategy types.ConflictStrategy) *types.OperationPlan {
	plan := &types.OperationPlan{
		CategoryCounts: make(map[string]int),
	}

	// Destinations already assigned within this batch. A second candidate
	// landing on a taken destination is a plan-time collision.
	assigned := make(map[string]bool)

	consecutiveFailures := 0
	for i, c := range candidates {
		if consecutiveFailures >= MaxConsecutiveFailures {
			remaining := len(candidates) - i
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"planning aborted after %d consecutive errors; %d files left unprocessed",
				consecutiveFailures, remaining))
			plan.Aborted = true
			break
		}

		category, err := p.categorizer.Category(c.Name, c.Path)
		if err != nil {
			plan.Skipped = append(plan.Skipped, types.SkippedFile{
				Path:   c.Path,
				Reason: fmt.Sprintf("category lookup failed: %v", err),
			})
			consecutiveFailures++
			continue
		}

		subpath := ""
		if p.metadata != nil {
			subpath, err = p.metadata.Subpath(c.Path, category)
			if err != nil {
				plan.Skipped = append(plan.Skipped, types.SkippedFile{
					Path:   c.Path,
					Reason: fmt.Sprintf("metadata lookup failed: %v", err),
				})
				consecutiveFailures++
				continue
			}
		}
		consecutiveFailures = 0

		dest := filepath.Join(destRoot, category)
		if subpath != "" {
			dest = filepath.Join(dest, subpath)
		}
		dest = filepath.Join(dest, c.Name)

		move := types.PlannedMove{
			Source:      c.Path,
			Destination: dest,
			Category:    category,
			Resolution:  strategy,
		}

		if assigned[dest] {
			move.HasConflict = true
			if strategy == types.StrategyRename {
				move.Destination = nextFreeDestination(dest, assigned)
			}
		}

		// A skipped slot can be reused by a later candidate, so skip
		// conflicts do not reserve their destination.
		if !(move.HasConflict && strategy == types.StrategySkip) {
			assigned[move.Destination] = true
		}

		plan.Moves = append(plan.Moves, move)
		plan.CategoryCounts[category]++
	}

	return plan
}

// nextFreeDestination appends _1, _2, ... before the extension until the
// destination is unique within the batch.
func nextFreeDestination(dest string, assigned map[string]bool) string {
	ext := filepath.Ext(dest)
	stem := dest[:len(dest)-len(ext)]
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !assigned[candidate] {
			return candidate
		}
	}
}
