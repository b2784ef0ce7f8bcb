package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an engine failure into a closed set of outcomes so
// callers branch on kinds instead of inspecting error strings or errno
// values.
type ErrorKind int

// Engine error kinds.
const (
	// KindConflict marks a lost race against a concurrent writer. It is
	// recoverable by retrying with another candidate destination.
	KindConflict ErrorKind = iota

	// KindIntegrity marks a state the engine cannot repair silently: a
	// source vanished mid-move, a post-copy delete failed, or a manifest
	// failed hash or signature verification. Never retried.
	KindIntegrity

	// KindCapacity marks an exhausted retry budget. Fatal for the item.
	KindCapacity

	// KindSecurity marks a rejected path: a reserved device name or a
	// path outside the allowed roots. The item is skipped.
	KindSecurity

	// KindPersistence marks a manifest read or write failure.
	KindPersistence
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	case KindCapacity:
		return "capacity"
	case KindSecurity:
		return "security"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// OpError is a classified engine error. Critical errors describe states
// where original data may be unrecoverable; they are never dropped from
// batch results.
type OpError struct {
	// Kind is the closed classification.
	Kind ErrorKind

	// Op names the operation that failed, e.g. "place" or "rollback".
	Op string

	// Path is the file the operation was acting on.
	Path string

	// Critical is true when original data may be unrecoverable.
	Critical bool

	// Err is the underlying cause, possibly nil.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	prefix := e.Kind.String()
	if e.Critical {
		prefix = "CRITICAL " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %v", prefix, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", prefix, e.Op, e.Path)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error { return e.Err }

// NewOpError builds a classified error.
func NewOpError(kind ErrorKind, op, path string, err error) *OpError {
	return &OpError{Kind: kind, Op: op, Path: path, Err: err}
}

// NewCriticalError builds a classified error flagged as critical.
func NewCriticalError(kind ErrorKind, op, path string, err error) *OpError {
	return &OpError{Kind: kind, Op: op, Path: path, Critical: true, Err: err}
}

// IsKind reports whether err is an *OpError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.Kind == kind
}

// IsCritical reports whether err is a critical *OpError.
func IsCritical(err error) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.Critical
}
