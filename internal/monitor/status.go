package monitor

import (
	"context"
	"errors"

	"github.com/capstan-io/capstan/internal/graph"
	"github.com/capstan-io/capstan/internal/plugin"
	"github.com/capstan-io/capstan/internal/provider"
	"github.com/capstan-io/capstan/internal/scheduler"
	"github.com/capstan-io/capstan/internal/session"
	"github.com/capstan-io/capstan/internal/urn"
)

// Status classifies a boundary operation outcome.
type Status string

const (
	StatusOK                Status = "ok"
	StatusValidationFailure Status = "validation-failure"
	StatusDependencyFailure Status = "dependency-failure"
	StatusProviderFailure   Status = "provider-failure"
	StatusCancelled         Status = "cancelled"
	StatusInternal          Status = "internal"
)

// StatusOf maps an error to its boundary status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case scheduler.IsCancelError(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	case scheduler.IsDependencyError(err),
		graph.IsCyclicDependency(err):
		return StatusDependencyFailure
	case provider.IsProviderError(err),
		provider.IsNotFound(err),
		scheduler.IsInvokeError(err):
		return StatusProviderFailure
	case urn.IsDuplicateIdentity(err),
		isParseError(err),
		plugin.IsManifestError(err),
		plugin.IsResolutionError(err),
		session.IsStateError(err):
		return StatusValidationFailure
	default:
		return StatusInternal
	}
}

func isParseError(err error) bool {
	var pe *urn.ParseError
	return errors.As(err, &pe)
}
