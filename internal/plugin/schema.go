package plugin

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// manifestSchema is the CUE schema every manifest must satisfy.
// Validation happens before struct decoding; anything the schema
// rejects never reaches the resolver.
const manifestSchema = `
#Requirement: {
	name:     string & !=""
	version?: string
}

#Manifest: {
	name:         string & !=""
	runtime:      "nodejs" | "python" | "go" | "dotnet" | "yaml"
	description?: string
	plugins?: {
		providers?: [...#Requirement]
	}
}
`

// validateSchema checks decoded manifest data against the embedded CUE
// schema. Uses the CUE SDK's Go API directly (not a CLI subprocess).
func validateSchema(raw map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(manifestSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Manifest"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}

	data := ctx.Encode(raw)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode manifest data: %w", err)
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("manifest schema: %s", formatCUEError(err))
	}
	return nil
}

// formatCUEError flattens CUE's multi-error into one readable message.
func formatCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	msg := errs[0].Error()
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
	}
	return msg
}
