package scheduler

import (
	"errors"
	"fmt"

	"github.com/capstan-io/capstan/internal/provider"
	"github.com/capstan-io/capstan/internal/urn"
)

// DependencyError marks a resource failed because one of its
// dependencies failed. The provider call for URN is never issued.
type DependencyError struct {
	URN        urn.URN
	Dependency urn.URN
}

func (e *DependencyError) Error() string {
	if e.URN == "" {
		return fmt.Sprintf("dependency %s failed", e.Dependency)
	}
	return fmt.Sprintf("%s: dependency %s failed", e.URN, e.Dependency)
}

// IsDependencyError reports whether err is a DependencyError.
func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

// CancelError marks a resource or invoke failed by session
// cancellation rather than by its own provider call.
type CancelError struct {
	URN   urn.URN
	Cause error
}

func (e *CancelError) Error() string {
	if e.URN == "" {
		return fmt.Sprintf("cancelled: %v", e.Cause)
	}
	return fmt.Sprintf("%s: cancelled: %v", e.URN, e.Cause)
}

func (e *CancelError) Unwrap() error { return e.Cause }

// IsCancelError reports whether err is a CancelError.
func IsCancelError(err error) bool {
	var ce *CancelError
	return errors.As(err, &ce)
}

// InvokeError reports a failed provider function call.
type InvokeError struct {
	Token   string
	Message string
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("invoke %s: %s", e.Token, e.Message)
}

// IsInvokeError reports whether err is an InvokeError.
func IsInvokeError(err error) bool {
	var ie *InvokeError
	return errors.As(err, &ie)
}

func wrapProviderErr(pkg string, u urn.URN, err error) error {
	return &provider.Error{Provider: pkg, Message: fmt.Sprintf("%s: %v", u, err)}
}
