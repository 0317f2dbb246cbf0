package editor

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// session's current state.
	ErrInvalidState = errors.New("operation not valid in current editor state")
	// ErrSaveInProgress is returned by Save while another save is in flight.
	// The second call is dropped, not queued.
	ErrSaveInProgress = errors.New("a save is already in progress")
)

// ValidationError reports input the session refuses: no template selected,
// a blank required field, a malformed field path.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// AuthenticationError reports a missing or rejected credential.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return "authentication: no credential available"
	}
	return "authentication: " + e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// PersistenceError wraps a failure reported by the persistence bridge. The
// configuration is left untouched so the save can be retried.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
