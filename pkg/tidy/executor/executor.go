// Package executor performs the placements described by an operation plan.
// Every protocol acts under an exclusivity primitive (exclusive create or
// no-replace rename) and classifies the resulting error, instead of
// checking existence first and acting later. Races against other processes
// touching the same filesystem are therefore detected at the only moment
// that matters: the placement itself.
package executor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// Journal receives one rollback action per completed placement. The
// manifest subsystem implements it; each Record call re-persists the
// manifest so the on-disk undo log always equals the completed prefix of
// the batch.
type Journal interface {
	Record(action types.RollbackAction) error
}

// Executor applies an operation plan to the filesystem, one move at a
// time, in plan order.
type Executor struct {
	backupRoot string

	// move is the no-replace rename primitive, swappable so tests can
	// fail the overwrite retry and exercise the backup-restore path.
	move func(src, dst string) error

	log *logging.Logger
}

// New creates an Executor. backupRoot is the directory that receives
// displaced destination files during overwrite protocols; it is explicit
// configuration, never derived from the working directory.
func New(backupRoot string) *Executor {
	return &Executor{
		backupRoot: backupRoot,
		move:       MoveNoReplace,
		log:        logging.Get("executor"),
	}
}

// Execute performs each planned move and journals every completed
// placement. Per-move failures are recorded and do not stop the batch; a
// journal write failure does, because continuing would desynchronize the
// undo log from the filesystem.
func (e *Executor) Execute(plan *types.OperationPlan, journal Journal) *types.ExecutionOutcome {
	outcome := &types.ExecutionOutcome{Aborted: plan.Aborted}

	for _, move := range plan.Moves {
		// A batch-internal collision under skip strategy is dropped
		// without any filesystem access.
		if move.HasConflict && move.Resolution == types.StrategySkip {
			outcome.Successes = append(outcome.Successes, types.PlacementOutcome{
				Source:      move.Source,
				Destination: move.Destination,
				Category:    move.Category,
				Skipped:     true,
				Note:        "destination already assigned within batch",
			})
			continue
		}

		result, err := e.executeMove(move)
		if err != nil {
			e.log.Error("placement failed", "source", move.Source, "error", err)
			outcome.Errors = append(outcome.Errors, err.Error())
			outcome.ErrorCount++
			continue
		}

		outcome.Successes = append(outcome.Successes, result.PlacementOutcome)
		if result.Skipped {
			if result.Note != "" {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("skipped %s: %s", move.Source, result.Note))
			}
			continue
		}

		outcome.SuccessCount++
		e.log.Info("placed", "source", move.Source, "destination", result.Destination)

		if journal == nil {
			continue
		}
		action := types.RollbackAction{
			Type:                  types.ActionMove,
			OriginalPath:          move.Source,
			CurrentPath:           result.Destination,
			OverwrittenBackupPath: result.overwrittenBackup,
			Timestamp:             time.Now().UTC(),
		}
		if err := journal.Record(action); err != nil {
			// The move happened but its undo record did not persist.
			// Stop here so completed work and the durable journal never
			// disagree by more than this one loudly-reported entry.
			perr := types.NewCriticalError(types.KindPersistence, "journal", result.Destination, err)
			e.log.Error("journal write failed, aborting batch", "error", err)
			outcome.Errors = append(outcome.Errors, perr.Error())
			outcome.ErrorCount++
			break
		}
	}

	return outcome
}

// moveResult extends PlacementOutcome with journal-only detail.
type moveResult struct {
	types.PlacementOutcome
	overwrittenBackup string
}

// executeMove runs one placement protocol, selected by the move's conflict
// resolution.
func (e *Executor) executeMove(move types.PlannedMove) (moveResult, error) {
	for _, path := range []string{move.Source, move.Destination} {
		if IsReservedName(path) {
			return moveResult{}, types.NewOpError(types.KindSecurity, "place", path,
				errors.New("reserved device name"))
		}
	}

	if err := os.MkdirAll(filepath.Dir(move.Destination), 0o755); err != nil {
		return moveResult{}, fmt.Errorf("creating destination directory: %w", err)
	}

	switch move.Resolution {
	case types.StrategyOverwrite, types.StrategyOverwriteIfNewer:
		return e.placeOverwrite(move)
	case types.StrategySkip:
		return e.placeSkip(move)
	default:
		return e.placeRename(move)
	}
}

// placeRename places the file at the planned destination or, on a lost
// race, at the next free numbered candidate. The copy is exclusive-create
// and the source is deleted only after the copy succeeds.
func (e *Executor) placeRename(move types.PlannedMove) (moveResult, error) {
	dest, err := placeWithCandidates(move.Source, maxPlacementAttempts,
		suffixedCandidates(move.Destination),
		func(dst string) error { return copyThenDelete(move.Source, dst) })
	if err != nil {
		return moveResult{}, err
	}
	if dest != move.Destination {
		e.log.Warn("destination renumbered after lost race",
			"planned", move.Destination, "actual", dest)
	}
	return moveResult{PlacementOutcome: types.PlacementOutcome{
		Source:      move.Source,
		Destination: dest,
		Category:    move.Category,
	}}, nil
}

// placeSkip attempts the planned destination exactly once and abandons the
// move if the disk already holds it. The source is left untouched.
func (e *Executor) placeSkip(move types.PlannedMove) (moveResult, error) {
	err := copyThenDelete(move.Source, move.Destination)
	if types.IsKind(err, types.KindConflict) {
		return moveResult{PlacementOutcome: types.PlacementOutcome{
			Source:      move.Source,
			Destination: move.Destination,
			Category:    move.Category,
			Skipped:     true,
			Note:        "destination already exists on disk",
		}}, nil
	}
	if err != nil {
		return moveResult{}, err
	}
	return moveResult{PlacementOutcome: types.PlacementOutcome{
		Source:      move.Source,
		Destination: move.Destination,
		Category:    move.Category,
	}}, nil
}

// placeOverwrite renames the source onto the destination. An occupied
// destination is moved aside into a timestamped backup first; if the
// retried rename then fails, the backup is restored, and a failed restore
// is reported as CRITICAL because the original data may be unrecoverable.
func (e *Executor) placeOverwrite(move types.PlannedMove) (moveResult, error) {
	if move.Resolution == types.StrategyOverwriteIfNewer {
		skip, note, err := e.shouldSkipOlder(move)
		if err != nil {
			return moveResult{}, err
		}
		if skip {
			return moveResult{PlacementOutcome: types.PlacementOutcome{
				Source:      move.Source,
				Destination: move.Destination,
				Category:    move.Category,
				Skipped:     true,
				Note:        note,
			}}, nil
		}
	}

	err := e.move(move.Source, move.Destination)
	if err == nil {
		return moveResult{PlacementOutcome: types.PlacementOutcome{
			Source:      move.Source,
			Destination: move.Destination,
			Category:    move.Category,
		}}, nil
	}
	if !types.IsKind(err, types.KindConflict) {
		return moveResult{}, err
	}

	// Destination occupied: displace it into a backup and retry.
	if err := os.MkdirAll(e.backupRoot, 0o755); err != nil {
		return moveResult{}, fmt.Errorf("creating backup directory: %w", err)
	}
	backupPath := filepath.Join(e.backupRoot,
		fmt.Sprintf("%s.%d.bak", filepath.Base(move.Destination), time.Now().UnixNano()))
	if err := os.Rename(move.Destination, backupPath); err != nil {
		return moveResult{}, fmt.Errorf("backing up destination %s: %w", move.Destination, err)
	}

	if err := e.move(move.Source, move.Destination); err != nil {
		// Plain rename: returning the displaced original takes priority
		// over any racer that claimed the slot after the failed retry.
		if restoreErr := os.Rename(backupPath, move.Destination); restoreErr != nil {
			return moveResult{}, types.NewCriticalError(types.KindIntegrity, "overwrite", move.Destination,
				fmt.Errorf("rename failed (%v) and backup %s could not be restored: %w",
					err, backupPath, restoreErr))
		}
		return moveResult{}, fmt.Errorf("overwrite of %s failed, original restored: %w", move.Destination, err)
	}

	return moveResult{
		PlacementOutcome: types.PlacementOutcome{
			Source:      move.Source,
			Destination: move.Destination,
			Category:    move.Category,
		},
		overwrittenBackup: backupPath,
	}, nil
}

// shouldSkipOlder implements the overwrite-if-newer comparison. A missing
// destination means proceed. Comparison is strict: an equal modification
// time proceeds to overwrite.
func (e *Executor) shouldSkipOlder(move types.PlannedMove) (bool, string, error) {
	srcInfo, err := os.Stat(move.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", types.NewOpError(types.KindIntegrity, "place", move.Source,
				errors.New("source disappeared mid-operation"))
		}
		return false, "", err
	}

	dstInfo, err := os.Stat(move.Destination)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", nil
		}
		return false, "", err
	}

	if srcInfo.ModTime().Before(dstInfo.ModTime()) {
		return true, "destination is newer than source", nil
	}
	return false, "", nil
}
