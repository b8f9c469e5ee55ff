// Package provider defines the provider plugin surface the scheduler
// drives and a registry that enforces per-provider concurrency limits.
package provider

import (
	"context"
	"strings"

	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

// Provider is one resource provider plugin. Implementations must be
// safe for concurrent use; the scheduler issues calls from many
// resource goroutines at once, bounded only by the registry limit.
type Provider interface {
	// Name is the provider package name, e.g. "aws".
	Name() string

	// Check validates and normalizes resource inputs before creation.
	Check(ctx context.Context, typ string, inputs value.Object) (value.Object, error)

	// Create provisions a resource and returns its concrete outputs.
	Create(ctx context.Context, u urn.URN, typ string, inputs value.Object) (value.Object, error)

	// Invoke executes a provider function identified by token.
	Invoke(ctx context.Context, token string, args value.Object) (value.Object, error)

	// Close releases the plugin. No calls may follow.
	Close() error
}

// PackageOf extracts the provider package from a resource type token.
// "aws:s3:Bucket" belongs to "aws"; a token with no colon is its own
// package.
func PackageOf(typ string) string {
	if i := strings.IndexByte(typ, ':'); i >= 0 {
		return typ[:i]
	}
	return typ
}
