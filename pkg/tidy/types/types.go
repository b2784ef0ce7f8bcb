// Package types provides core data types for the tidy file organizer.
// It includes the candidate/plan/outcome structures exchanged between the
// planner and executor, the conflict-resolution strategies, and the closed
// error taxonomy the engine reports through.
package types

import (
	"fmt"
	"strings"
	"time"
)

// ConflictStrategy governs how a destination collision is resolved.
type ConflictStrategy string

// Supported conflict strategies.
const (
	// StrategyRename synthesizes a free destination by appending a
	// numeric suffix (_1, _2, ...) until placement succeeds.
	StrategyRename ConflictStrategy = "rename"

	// StrategySkip abandons a move whose destination is already taken,
	// leaving the source untouched.
	StrategySkip ConflictStrategy = "skip"

	// StrategyOverwrite replaces the existing destination, moving it
	// aside into a backup first.
	StrategyOverwrite ConflictStrategy = "overwrite"

	// StrategyOverwriteIfNewer overwrites only when the source is newer
	// than the existing destination.
	StrategyOverwriteIfNewer ConflictStrategy = "overwrite_if_newer"
)

// ParseStrategy parses a strategy name. Both "overwrite-if-newer" and
// "overwrite_if_newer" spellings are accepted for CLI convenience.
func ParseStrategy(s string) (ConflictStrategy, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "rename":
		return StrategyRename, nil
	case "skip":
		return StrategySkip, nil
	case "overwrite":
		return StrategyOverwrite, nil
	case "overwrite_if_newer":
		return StrategyOverwriteIfNewer, nil
	default:
		return "", fmt.Errorf("unknown conflict strategy %q", s)
	}
}

// Candidate is an input file to place. It is owned by the caller and
// read-only to the engine.
type Candidate struct {
	// Path is the absolute path to the source file.
	Path string `json:"path"`

	// Name is the base name of the file.
	Name string `json:"name"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the last modification time of the file.
	ModTime time.Time `json:"mod_time"`
}

// PlannedMove is one placement decision produced by the planner.
type PlannedMove struct {
	// Source is the absolute path the file currently lives at.
	Source string `json:"source"`

	// Destination is the absolute path the file should land at. It may
	// already carry a numeric suffix if a batch-internal collision was
	// resolved at plan time.
	Destination string `json:"destination"`

	// Category is the label the categorizer assigned.
	Category string `json:"category"`

	// HasConflict is true when another candidate in the same batch was
	// already assigned this destination.
	HasConflict bool `json:"has_conflict"`

	// Resolution is the strategy the executor applies to this move.
	Resolution ConflictStrategy `json:"resolution"`
}

// SkippedFile records a candidate the planner could not place.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// OperationPlan is the immutable output of the planner. The caller may
// execute it or discard it (dry run).
type OperationPlan struct {
	// Moves are the planned placements, in input order.
	Moves []PlannedMove `json:"moves"`

	// CategoryCounts aggregates how many moves landed in each category.
	CategoryCounts map[string]int `json:"category_counts"`

	// Skipped lists candidates dropped during planning, with reasons.
	Skipped []SkippedFile `json:"skipped,omitempty"`

	// Warnings carries non-fatal planning diagnostics, such as an early
	// abort after too many consecutive failures.
	Warnings []string `json:"warnings,omitempty"`

	// Aborted is true when planning stopped before consuming all input.
	Aborted bool `json:"aborted,omitempty"`
}

// PlacementOutcome is the per-move result of execution.
type PlacementOutcome struct {
	// Source is the path the file was moved from.
	Source string `json:"source"`

	// Destination is the path actually used, which may differ from the
	// planned destination if a race forced renumbering.
	Destination string `json:"destination"`

	// Category is the label carried over from the plan.
	Category string `json:"category"`

	// Skipped is true when the move was abandoned without error.
	Skipped bool `json:"skipped,omitempty"`

	// Note carries an informational diagnostic for skipped moves.
	Note string `json:"note,omitempty"`
}

// ExecutionOutcome summarizes one executed batch.
type ExecutionOutcome struct {
	// Successes lists completed and skipped placements, in order.
	Successes []PlacementOutcome `json:"successes"`

	// Errors lists per-move failures that did not stop the batch.
	Errors []string `json:"errors,omitempty"`

	// SuccessCount is the number of placements that completed.
	SuccessCount int `json:"success_count"`

	// ErrorCount is the number of placements that failed.
	ErrorCount int `json:"error_count"`

	// ManifestID identifies the undo record for this batch, empty when
	// nothing was placed.
	ManifestID string `json:"manifest_id,omitempty"`

	// Aborted reflects whether the planner stage truncated the input.
	Aborted bool `json:"aborted,omitempty"`
}
