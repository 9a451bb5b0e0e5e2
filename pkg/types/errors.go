package types

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
)

// Journal lifecycle errors.
var (
	ErrDetached        = errors.New("journal is detached")
	ErrAlreadyAttached = errors.New("journal is already attached")
	ErrTableNotFound   = errors.New("table not found")
)

// Store operation errors.
var (
	ErrNotFound   = errors.New("entity not found")
	ErrInvalidID  = errors.New("invalid entity ID")
	ErrInvalidDay = days.ErrInvalidDay
)

// Error classes. Typed errors below match these with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrWriteFailed        = errors.New("write failed")
)

// ValidationError rejects caller input before it reaches storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageUnavailableError means the store could not be opened or has gone
// away. It is fatal: no further operations should be attempted.
type StorageUnavailableError struct {
	Path string
	Err  error
}

func (e *StorageUnavailableError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage unavailable: %v", e.Err)
	}
	return fmt.Sprintf("storage unavailable at %s: %v", e.Path, e.Err)
}

// Is matches ErrStorageUnavailable.
func (e *StorageUnavailableError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// WriteFailedError reports a single failed mutation. The prior persisted
// state is unchanged and the caller may retry.
type WriteFailedError struct {
	Op  string
	Err error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Is matches ErrWriteFailed.
func (e *WriteFailedError) Is(target error) bool {
	return target == ErrWriteFailed
}

func (e *WriteFailedError) Unwrap() error { return e.Err }

// IsFatal reports whether err means the journal can no longer be used.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrDetached)
}
