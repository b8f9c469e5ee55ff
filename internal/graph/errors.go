package graph

import (
	"errors"
	"fmt"

	"github.com/capstan-io/capstan/internal/urn"
)

// CyclicDependencyError reports that declaring a node would close a
// dependency cycle. The node is rejected and the graph left unchanged.
type CyclicDependencyError struct {
	URN     urn.URN // the node being declared
	Through urn.URN // the dependency whose edge would close the cycle
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s -> %s would close a cycle", e.URN, e.Through)
}

// IsCyclicDependency returns true if the error is a CyclicDependencyError.
// Uses errors.As to handle wrapped errors.
func IsCyclicDependency(err error) bool {
	var ce *CyclicDependencyError
	return errors.As(err, &ce)
}

// NodeExistsError reports a second AddNode for an already-declared URN.
// Idempotent retries are resolved by the allocator before the graph is
// touched, so reaching this error means two distinct registrations
// raced for the same identity.
type NodeExistsError struct {
	URN urn.URN
}

// Error implements the error interface.
func (e *NodeExistsError) Error() string {
	return fmt.Sprintf("node already declared: %s", e.URN)
}

// IsNodeExists returns true if the error is a NodeExistsError.
func IsNodeExists(err error) bool {
	var ne *NodeExistsError
	return errors.As(err, &ne)
}
