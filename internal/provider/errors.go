package provider

import (
	"errors"
	"fmt"
)

// Error reports a failure from a provider call or registration.
type Error struct {
	Provider string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// IsProviderError reports whether err is a provider Error.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// NotFoundError reports a lookup for a provider that was never
// registered. Surfacing at scheduling time means plugin negotiation
// missed a requirement.
type NotFoundError struct {
	Provider string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("provider %s: not registered", e.Provider)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
