package domain

import (
	"errors"
	"fmt"
)

// ErrAuthRequired is returned by every task operation attempted without an
// authenticated identity, before any storage access.
var ErrAuthRequired = errors.New("user not authenticated")

// ErrNotFound is the sentinel for update/delete targets that do not exist.
var ErrNotFound = errors.New("task not found")

// ErrInvalidInput marks create/update payloads rejected by validation.
var ErrInvalidInput = errors.New("invalid input")

// NotFoundError wraps ErrNotFound with the missing id.
func NotFoundError(id string) error {
	return fmt.Errorf("task %s: %w", id, ErrNotFound)
}

// SyncError marks failures of the auth collaborator's session operations.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string { return "sync " + e.Op + ": " + e.Err.Error() }
func (e *SyncError) Unwrap() error { return e.Err }

// ExportError marks failures during the archive export or delete step.
type ExportError struct {
	Stage string
	Err   error
}

func (e *ExportError) Error() string { return "archive " + e.Stage + ": " + e.Err.Error() }
func (e *ExportError) Unwrap() error { return e.Err }
