package urn

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed URN or URN component.
type ParseError struct {
	Field   string // which component was malformed
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid urn %s: %s", e.Field, e.Message)
}

// DuplicateIdentityError reports that a URN was already reserved by a
// different logical request.
//
// An identical request (same request hash) is an idempotent retry and
// does not produce this error; the allocator treats it as a re-read of
// the existing reservation.
type DuplicateIdentityError struct {
	URN URN
}

// Error implements the error interface.
func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("duplicate identity: %s already registered by a different request", e.URN)
}

// IsDuplicateIdentity returns true if the error is a DuplicateIdentityError.
// Uses errors.As to handle wrapped errors.
func IsDuplicateIdentity(err error) bool {
	var de *DuplicateIdentityError
	return errors.As(err, &de)
}
