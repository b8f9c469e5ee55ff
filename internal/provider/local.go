package provider

import (
	"context"

	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

// Local is a built-in provider used when no real plugin host is
// attached: dry runs and the CLI. Create echoes the checked inputs and
// adds a deterministic "id" output derived from the urn, so repeated
// runs produce identical property bags.
type Local struct {
	Package string
}

// NewLocal returns a local provider answering for pkg.
func NewLocal(pkg string) *Local {
	return &Local{Package: pkg}
}

func (l *Local) Name() string { return l.Package }

func (l *Local) Check(_ context.Context, _ string, inputs value.Object) (value.Object, error) {
	if inputs == nil {
		return value.Object{}, nil
	}
	return inputs, nil
}

func (l *Local) Create(_ context.Context, u urn.URN, _ string, inputs value.Object) (value.Object, error) {
	outputs := inputs.Copy()
	outputs["id"] = value.String(string(u))
	return outputs, nil
}

func (l *Local) Invoke(_ context.Context, _ string, args value.Object) (value.Object, error) {
	if args == nil {
		return value.Object{}, nil
	}
	return args, nil
}

func (l *Local) Close() error { return nil }
