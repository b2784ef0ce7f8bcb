package types

import "time"

// ActionType identifies how a rollback action is undone.
type ActionType string

// Rollback action types.
const (
	// ActionMove records a file moved from OriginalPath to CurrentPath.
	// Undo renames CurrentPath back to OriginalPath.
	ActionMove ActionType = "move"

	// ActionRename records an in-place rename. Undone like a move.
	ActionRename ActionType = "rename"

	// ActionCopy records a copy left at CurrentPath. Undo deletes it.
	ActionCopy ActionType = "copy"

	// ActionDelete records a deletion with the content preserved at
	// BackupPath. Undo renames the backup back to OriginalPath.
	ActionDelete ActionType = "delete"
)

// RollbackAction is one reversible record within a manifest. Exactly one
// action is appended per successfully completed placement; actions are
// immutable once written.
type RollbackAction struct {
	// Type selects the undo protocol.
	Type ActionType `json:"type"`

	// OriginalPath is where the file lived before the operation.
	OriginalPath string `json:"original_path"`

	// CurrentPath is where the file lives after the operation.
	CurrentPath string `json:"current_path"`

	// BackupPath holds preserved content for delete actions.
	BackupPath string `json:"backup_path,omitempty"`

	// OverwrittenBackupPath holds the displaced destination content when
	// the operation overwrote an existing file.
	OverwrittenBackupPath string `json:"overwritten_backup_path,omitempty"`

	// Timestamp is when the operation completed.
	Timestamp time.Time `json:"timestamp"`
}
