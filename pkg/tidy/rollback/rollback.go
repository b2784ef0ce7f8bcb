// Package rollback replays a manifest's actions in reverse to undo a
// batch. Later effects are undone first because they may shadow or depend
// on earlier ones. When undo itself fails partway, already-completed undo
// sub-steps are re-reverted on a best-effort basis so the filesystem is
// not left in an arbitrary intermediate state.
package rollback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/tidy/pkg/tidy/executor"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/manifest"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// PathValidator is consulted before any path is mutated during undo. It
// rejects paths outside the configured roots.
type PathValidator interface {
	IsPathAllowed(path string) bool
}

// Result summarizes one rollback attempt.
type Result struct {
	// Success is the number of actions fully undone.
	Success int `json:"success"`

	// Failed is the number of actions that could not be undone.
	Failed int `json:"failed"`

	// Errors lists per-action failures, in processing order.
	Errors []string `json:"errors,omitempty"`

	// Notes carries non-fatal diagnostics, such as a copy that was
	// already gone.
	Notes []string `json:"notes,omitempty"`

	// Recovered narrates compensating recovery: which completed undo
	// sub-steps were re-reverted after a failure partway through.
	Recovered []string `json:"recovered,omitempty"`

	// ManifestDeleted is true when the rollback fully succeeded and the
	// manifest was removed. Otherwise the manifest is retained so the
	// rollback stays retryable.
	ManifestDeleted bool `json:"manifest_deleted"`
}

// step is one completed undo mutation together with its inverse.
type step struct {
	describe string
	revert   func() error
}

// Roller undoes executed batches recorded in a manifest store.
type Roller struct {
	store     *manifest.Store
	validator PathValidator
	log       *logging.Logger
}

// New creates a Roller. The validator must not be nil.
func New(store *manifest.Store, validator PathValidator) *Roller {
	return &Roller{store: store, validator: validator, log: logging.Get("rollback")}
}

// Rollback undoes the batch identified by id. The id is rejected before
// any storage access unless it is a syntactically valid UUID, and the
// manifest's hash and signature are verified before any mutation. The
// manifest file is deleted only when every action was undone.
func (r *Roller) Rollback(id string) (*Result, error) {
	m, err := r.store.Get(id)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var completed []step

	// Stack discipline: undo in reverse recording order.
	for i := len(m.Actions) - 1; i >= 0; i-- {
		action := m.Actions[i]
		steps, note, err := r.undoAction(action)
		completed = append(completed, steps...)

		if err == nil {
			result.Success++
			if note != "" {
				result.Notes = append(result.Notes, note)
			}
			continue
		}

		result.Failed++
		result.Errors = append(result.Errors, err.Error())
		r.log.Error("undo failed", "action", string(action.Type), "path", action.CurrentPath, "error", err)

		var oe *types.OpError
		if errors.As(err, &oe) {
			// A classified per-action failure; the batch continues.
			continue
		}

		// An unexpected failure: re-revert everything completed so far,
		// in reverse, best effort, then stop.
		result.Failed += i
		result.Errors = append(result.Errors,
			fmt.Sprintf("rollback aborted; %d earlier actions left un-undone", i))
		r.compensate(completed, result)
		completed = nil
		break
	}

	if result.Failed == 0 {
		if err := r.store.Delete(m.ID); err != nil {
			return nil, err
		}
		result.ManifestDeleted = true
		r.log.Info("rollback complete, manifest deleted", "id", m.ID, "actions", result.Success)
	} else {
		result.Notes = append(result.Notes,
			fmt.Sprintf("manifest %s retained on disk; the rollback can be retried", m.ID))
		r.log.Warn("rollback incomplete, manifest retained", "id", m.ID, "failed", result.Failed)
	}

	return result, nil
}

// undoAction reverses one action. It returns the mutation sub-steps that
// completed (even when the action ultimately failed), an optional
// diagnostic note, and the action's failure if any.
func (r *Roller) undoAction(action types.RollbackAction) ([]step, string, error) {
	switch action.Type {
	case types.ActionMove, types.ActionRename:
		return r.undoMove(action)
	case types.ActionCopy:
		return r.undoCopy(action)
	case types.ActionDelete:
		return r.undoDelete(action)
	default:
		return nil, "", types.NewOpError(types.KindIntegrity, "undo", action.CurrentPath,
			fmt.Errorf("unknown action type %q", action.Type))
	}
}

// undoMove renames the file back from its current location to its original
// one, then restores any destination content the move had displaced. An
// occupied original location is a hard failure, never silently
// overwritten. A missing overwrite backup is CRITICAL: the completed move
// step is re-reverted so the filesystem is not left half-undone.
func (r *Roller) undoMove(action types.RollbackAction) ([]step, string, error) {
	for _, path := range []string{action.CurrentPath, action.OriginalPath} {
		if !r.validator.IsPathAllowed(path) {
			return nil, "", types.NewOpError(types.KindSecurity, "undo", path,
				errors.New("path outside allowed roots"))
		}
	}

	if _, err := os.Lstat(action.CurrentPath); err != nil {
		if os.IsNotExist(err) {
			return nil, "", types.NewOpError(types.KindIntegrity, "undo", action.CurrentPath,
				errors.New("file missing at current location"))
		}
		return nil, "", err
	}

	if err := os.MkdirAll(filepath.Dir(action.OriginalPath), 0o755); err != nil {
		return nil, "", fmt.Errorf("creating original directory: %w", err)
	}

	if err := executor.MoveNoReplace(action.CurrentPath, action.OriginalPath); err != nil {
		if types.IsKind(err, types.KindConflict) {
			return nil, "", types.NewOpError(types.KindConflict, "undo", action.OriginalPath,
				errors.New("original location already occupied"))
		}
		return nil, "", err
	}
	moveStep := step{
		describe: fmt.Sprintf("moved %s back to %s", action.CurrentPath, action.OriginalPath),
		revert: func() error {
			return executor.MoveNoReplace(action.OriginalPath, action.CurrentPath)
		},
	}

	if action.OverwrittenBackupPath == "" {
		return []step{moveStep}, "", nil
	}

	// The move had clobbered something; put that content back into the
	// now-vacated slot.
	if !r.validator.IsPathAllowed(action.OverwrittenBackupPath) {
		return []step{moveStep}, "", types.NewOpError(types.KindSecurity, "undo",
			action.OverwrittenBackupPath, errors.New("path outside allowed roots"))
	}

	restore := func(cause error) ([]step, string, error) {
		if revertErr := moveStep.revert(); revertErr != nil {
			return []step{moveStep}, "", types.NewCriticalError(types.KindIntegrity, "undo",
				action.CurrentPath,
				fmt.Errorf("%v; re-reverting the completed move also failed: %w", cause, revertErr))
		}
		return nil, "", types.NewCriticalError(types.KindIntegrity, "undo", action.CurrentPath,
			fmt.Errorf("%w; the completed move step was re-reverted", cause))
	}

	if _, err := os.Lstat(action.OverwrittenBackupPath); err != nil {
		if os.IsNotExist(err) {
			return restore(fmt.Errorf("overwrite backup %s is missing", action.OverwrittenBackupPath))
		}
		return []step{moveStep}, "", err
	}

	if err := executor.MoveNoReplace(action.OverwrittenBackupPath, action.CurrentPath); err != nil {
		return restore(fmt.Errorf("restoring overwrite backup %s failed: %v",
			action.OverwrittenBackupPath, err))
	}
	restoreStep := step{
		describe: fmt.Sprintf("restored overwrite backup to %s", action.CurrentPath),
		revert: func() error {
			return executor.MoveNoReplace(action.CurrentPath, action.OverwrittenBackupPath)
		},
	}

	return []step{moveStep, restoreStep}, "", nil
}

// undoCopy deletes the recorded copy. A copy that is already gone is
// nothing to clean up, not a failure.
func (r *Roller) undoCopy(action types.RollbackAction) ([]step, string, error) {
	if !r.validator.IsPathAllowed(action.CurrentPath) {
		return nil, "", types.NewOpError(types.KindSecurity, "undo", action.CurrentPath,
			errors.New("path outside allowed roots"))
	}

	if err := os.Remove(action.CurrentPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Sprintf("copy %s already removed; nothing to clean up", action.CurrentPath), nil
		}
		return nil, "", err
	}

	return []step{{
		describe: fmt.Sprintf("deleted copy %s", action.CurrentPath),
		revert: func() error {
			return fmt.Errorf("deleted copy %s cannot be restored", action.CurrentPath)
		},
	}}, "", nil
}

// undoDelete renames the recorded backup back to the original path. A
// missing backup is unrecoverable and fails the action.
func (r *Roller) undoDelete(action types.RollbackAction) ([]step, string, error) {
	for _, path := range []string{action.BackupPath, action.OriginalPath} {
		if !r.validator.IsPathAllowed(path) {
			return nil, "", types.NewOpError(types.KindSecurity, "undo", path,
				errors.New("path outside allowed roots"))
		}
	}

	if _, err := os.Lstat(action.BackupPath); err != nil {
		if os.IsNotExist(err) {
			return nil, "", types.NewOpError(types.KindIntegrity, "undo", action.OriginalPath,
				fmt.Errorf("backup %s is missing; deletion cannot be undone", action.BackupPath))
		}
		return nil, "", err
	}

	if err := os.MkdirAll(filepath.Dir(action.OriginalPath), 0o755); err != nil {
		return nil, "", fmt.Errorf("creating original directory: %w", err)
	}

	if err := executor.MoveNoReplace(action.BackupPath, action.OriginalPath); err != nil {
		return nil, "", err
	}

	return []step{{
		describe: fmt.Sprintf("restored deleted file to %s", action.OriginalPath),
		revert: func() error {
			return executor.MoveNoReplace(action.OriginalPath, action.BackupPath)
		},
	}}, "", nil
}

// compensate re-reverts completed undo sub-steps in reverse, best effort,
// narrating each outcome into the result.
func (r *Roller) compensate(completed []step, result *Result) {
	for i := len(completed) - 1; i >= 0; i-- {
		s := completed[i]
		if err := s.revert(); err != nil {
			result.Recovered = append(result.Recovered,
				fmt.Sprintf("could not re-revert: %s (%v)", s.describe, err))
			continue
		}
		result.Recovered = append(result.Recovered, fmt.Sprintf("re-reverted: %s", s.describe))
	}
}
