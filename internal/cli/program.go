package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

// ProgramFilename is the declarative program file the yaml runtime
// executes.
const ProgramFilename = "program.yaml"

// ProgramFile is a declarative deployment program: resources in
// registration order.
type ProgramFile struct {
	Resources []ProgramResource `yaml:"resources"`
}

// ProgramResource declares one resource registration.
type ProgramResource struct {
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"`
	Inputs    map[string]any `yaml:"inputs,omitempty"`
	DependsOn []string       `yaml:"dependsOn,omitempty"`
}

// LoadProgram reads and validates program.yaml in a program directory.
// Dependencies must be declared earlier in the file than their
// dependents; the file order is the registration order.
func LoadProgram(dir string) (*ProgramFile, error) {
	path := filepath.Join(dir, ProgramFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}

	var prog ProgramFile
	if err := yaml.Unmarshal(data, &prog); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ProgramFilename, err)
	}

	seen := make(map[string]struct{}, len(prog.Resources))
	for i, res := range prog.Resources {
		if res.Name == "" || res.Type == "" {
			return nil, fmt.Errorf("%s: resource %d: name and type are required", ProgramFilename, i)
		}
		if _, ok := seen[res.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate resource name %q", ProgramFilename, res.Name)
		}
		for _, dep := range res.DependsOn {
			if _, ok := seen[dep]; !ok {
				return nil, fmt.Errorf("%s: resource %q depends on %q, which is not declared before it", ProgramFilename, res.Name, dep)
			}
		}
		seen[res.Name] = struct{}{}
	}
	return &prog, nil
}

// refPattern matches output references of the form ${resource.path}.
var refPattern = regexp.MustCompile(`^\$\{([^.}]+)\.([^}]+)\}$`)

// buildInputs converts a resource's declared inputs into a property
// bag. String values of the form "${name.path}" become pending
// references to the named resource's output, resolved through urns.
func buildInputs(raw map[string]any, urns map[string]urn.URN) (value.Object, error) {
	if raw == nil {
		return value.Object{}, nil
	}

	substituted, err := substituteRefs(raw, urns)
	if err != nil {
		return nil, err
	}

	// Route through JSON so the value codec handles nesting and the
	// tagged reference encoding uniformly.
	data, err := json.Marshal(substituted)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	v, err := value.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode inputs: %w", err)
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, fmt.Errorf("inputs must be a mapping")
	}
	return obj, nil
}

func substituteRefs(raw any, urns map[string]urn.URN) (any, error) {
	switch val := raw.(type) {
	case string:
		m := refPattern.FindStringSubmatch(val)
		if m == nil {
			return val, nil
		}
		u, ok := urns[m[1]]
		if !ok {
			return nil, fmt.Errorf("reference %q: unknown resource %q", val, m[1])
		}
		return map[string]any{
			value.TagKey: "ref",
			"urn":        string(u),
			"path":       m[2],
		}, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			sub, err := substituteRefs(v, urns)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			sub, err := substituteRefs(v, urns)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	default:
		return raw, nil
	}
}

// providerPackages returns the distinct provider packages a program's
// resource types reference.
func providerPackages(prog *ProgramFile) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, res := range prog.Resources {
		pkg := res.Type
		if i := strings.IndexByte(pkg, ':'); i >= 0 {
			pkg = pkg[:i]
		}
		if _, ok := seen[pkg]; ok {
			continue
		}
		seen[pkg] = struct{}{}
		out = append(out, pkg)
	}
	return out
}
