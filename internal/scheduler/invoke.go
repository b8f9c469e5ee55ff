package scheduler

import (
	"context"

	"github.com/capstan-io/capstan/internal/provider"
	"github.com/capstan-io/capstan/internal/value"
)

// Invoke executes a provider function call. Invokes never join the
// dependency graph; they run Pending then terminal. When args
// reference resource outputs the call suspends until every referenced
// resource is terminal, then runs with concrete values.
func (s *Scheduler) Invoke(ctx context.Context, token string, args value.Object) (value.Object, error) {
	s.mu.Lock()
	if s.cancelled {
		cause := s.cancelErr
		s.mu.Unlock()
		return nil, &CancelError{Cause: cause}
	}
	s.mu.Unlock()

	for _, dep := range value.DependenciesOf(args) {
		depRes := s.anticipated(dep)
		select {
		case <-depRes.done:
		case <-ctx.Done():
			return nil, &CancelError{Cause: ctx.Err()}
		}
		if depRes.err != nil {
			return nil, &DependencyError{Dependency: dep}
		}
	}

	resolved, err := value.ResolveObject(args, s)
	if err != nil {
		return nil, err
	}
	if value.ContainsUnknown(resolved) {
		return nil, &InvokeError{Token: token, Message: "arguments contain unknown values"}
	}

	pkg := provider.PackageOf(token)
	p, err := s.registry.Get(pkg)
	if err != nil {
		return nil, err
	}
	release, err := s.registry.Acquire(ctx, pkg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CancelError{Cause: ctx.Err()}
		}
		return nil, err
	}
	defer release()

	out, err := p.Invoke(ctx, token, resolved)
	if err != nil {
		return nil, &InvokeError{Token: token, Message: err.Error()}
	}
	return out, nil
}
