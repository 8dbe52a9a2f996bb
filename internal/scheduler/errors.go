package scheduler

import (
	"errors"
	"fmt"

	"github.com/dhima/followup-engine/internal/storage"
)

var (
	// ErrAlreadyExecuting is returned when the same follow-up is executed concurrently.
	ErrAlreadyExecuting = errors.New("follow-up is already executing")
	// ErrInvalidInput is returned for missing ids or organization context.
	ErrInvalidInput = errors.New("invalid input")
)

// SendError wraps a send channel failure. It is recorded on the follow-up as
// a failed attempt and never retried by the engine.
type SendError struct {
	FollowUpID string
	Err        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send follow-up %s: %v", e.FollowUpID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// StoreError wraps a transient state store failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries one of the storage not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrFollowUpNotFound) ||
		errors.Is(err, storage.ErrSequenceNotFound) ||
		errors.Is(err, storage.ErrContactNotFound) ||
		errors.Is(err, storage.ErrStepNotFound)
}

// storeErr keeps not-found errors classifiable and marks everything else transient.
func storeErr(op string, err error) error {
	if IsNotFound(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &StoreError{Op: op, Err: err}
}
