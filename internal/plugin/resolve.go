package plugin

import (
	"fmt"
	"regexp"
	"sort"
)

// Spec identifies one required plugin.
type Spec struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Version string `json:"version,omitempty"` // version constraint, "" = any
}

// Kind distinguishes language runtimes from resource providers.
type Kind string

const (
	KindLanguage Kind = "language"
	KindResource Kind = "resource"
)

// versionConstraintPattern accepts an exact version or a simple range
// operator prefix: "1.2.3", ">=6.0.0", "<2.0.0", "~1.4".
var versionConstraintPattern = regexp.MustCompile(`^(>=|<=|>|<|~|\^)?\d+(\.\d+){0,2}(-[0-9A-Za-z.-]+)?$`)

// RequiredPlugins computes the plugin set for a program.
//
// The set always contains the language runtime plugin plus every
// provider requirement from the manifest, deduplicated by name.
// Computed once before scheduling starts; any failure is a
// ResolutionError and aborts the session before resource work begins.
func RequiredPlugins(m *Manifest) ([]Spec, error) {
	if m == nil {
		return nil, &ResolutionError{Message: "nil manifest"}
	}

	specs := []Spec{{Name: m.Runtime, Kind: KindLanguage}}

	seen := make(map[string]string) // provider name -> constraint
	for _, req := range m.Plugins.Providers {
		if req.Name == "" {
			return nil, &ResolutionError{Message: "provider requirement with empty name"}
		}
		if req.Version != "" && !versionConstraintPattern.MatchString(req.Version) {
			return nil, &ResolutionError{
				Plugin:  req.Name,
				Message: fmt.Sprintf("invalid version constraint %q", req.Version),
			}
		}

		if prev, ok := seen[req.Name]; ok {
			if prev != req.Version {
				return nil, &ResolutionError{
					Plugin:  req.Name,
					Message: fmt.Sprintf("conflicting version constraints %q and %q", prev, req.Version),
				}
			}
			continue // identical duplicate
		}
		seen[req.Name] = req.Version
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		specs = append(specs, Spec{Name: name, Kind: KindResource, Version: seen[name]})
	}

	return specs, nil
}
