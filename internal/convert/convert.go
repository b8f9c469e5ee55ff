// Package convert defines the ecosystem conversion boundary: turning
// foreign program sources and state snapshots into the coordinator's
// intermediate form. The conversion logic itself lives in external
// collaborators; this package fixes the contract they implement.
package convert

import (
	"context"
	"errors"
)

// ErrNoConverter is returned when no converter is configured for a
// conversion request.
var ErrNoConverter = errors.New("no converter configured")

// SourcePayload is a foreign artifact handed to a converter.
type SourcePayload struct {
	// Format names the source dialect, e.g. "terraform", "cloudformation".
	Format string
	// Directory is the root of the source tree, when file-based.
	Directory string
	// Data is the raw payload, when inline.
	Data []byte
}

// IntermediateRepresentation is the converter's output: a program or
// state description the coordinator can run.
type IntermediateRepresentation struct {
	// Format names the produced dialect. Identity conversion preserves
	// the input format.
	Format string
	Data   []byte
}

// Converter translates foreign programs and state snapshots.
type Converter interface {
	ConvertProgram(ctx context.Context, src SourcePayload) (IntermediateRepresentation, error)
	ConvertState(ctx context.Context, src SourcePayload) (IntermediateRepresentation, error)
}

// Identity passes payloads through unchanged. Used in tests and as the
// default when the source already is in the coordinator's form.
type Identity struct{}

func (Identity) ConvertProgram(_ context.Context, src SourcePayload) (IntermediateRepresentation, error) {
	return IntermediateRepresentation{Format: src.Format, Data: src.Data}, nil
}

func (Identity) ConvertState(_ context.Context, src SourcePayload) (IntermediateRepresentation, error) {
	return IntermediateRepresentation{Format: src.Format, Data: src.Data}, nil
}
