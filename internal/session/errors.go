package session

import (
	"errors"
	"fmt"
)

// StateError reports an operation attempted in the wrong session
// state.
type StateError struct {
	State State
	Op    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session %s: cannot %s", e.State, e.Op)
}

// IsStateError reports whether err is a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// AbortError carries the fatal cause that aborted a session.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("session aborted: %v", e.Cause)
}

func (e *AbortError) Unwrap() error { return e.Cause }

// IsAbortError reports whether err is an AbortError.
func IsAbortError(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}
