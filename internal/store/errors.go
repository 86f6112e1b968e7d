package store

import (
	"errors"

	"swasthiq/backend/internal/domain"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence failure")
)

// ConflictError carries the details of the blocking booking so callers can
// render "slot taken by X from A to B". errors.Is(err, ErrConflict) matches.
type ConflictError struct {
	Conflict domain.Conflict
}

func (e *ConflictError) Error() string { return e.Conflict.Message() }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
