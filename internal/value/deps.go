package value

import (
	"fmt"
	"sort"

	"github.com/capstan-io/capstan/internal/urn"
)

// DependenciesOf walks a value tree and collects the URNs of every
// ResourceRef it contains. The result is deduplicated and sorted, so
// the implicit dependency set of a property bag is deterministic.
func DependenciesOf(v Value) []urn.URN {
	seen := make(map[urn.URN]struct{})
	collectRefs(v, seen)

	out := make([]urn.URN, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func collectRefs(v Value, seen map[urn.URN]struct{}) {
	switch val := v.(type) {
	case ResourceRef:
		seen[val.URN] = struct{}{}
	case Array:
		for _, elem := range val {
			collectRefs(elem, seen)
		}
	case Object:
		for _, elem := range val {
			collectRefs(elem, seen)
		}
	}
}

// ContainsUnknown reports whether the value tree contains any Unknown
// placeholder or ResourceRef. A bag for which this returns false is
// fully concrete and safe to hand to a provider.
func ContainsUnknown(v Value) bool {
	switch val := v.(type) {
	case Unknown, ResourceRef:
		return true
	case Array:
		for _, elem := range val {
			if ContainsUnknown(elem) {
				return true
			}
		}
	case Object:
		for _, elem := range val {
			if ContainsUnknown(elem) {
				return true
			}
		}
	}
	return false
}

// Resolver supplies the concrete output value for a completed
// resource's property path. Implemented by the scheduler's resource
// registry.
type Resolver interface {
	ResolveOutput(u urn.URN, path string) (Value, error)
}

// ResolveRefs returns a copy of the value tree with every ResourceRef
// replaced by the referenced resource's concrete output.
//
// All referenced resources must already be Completed; resolving a
// reference to a non-terminal resource is a programming error surfaced
// by the Resolver. Unknown placeholders are left in place - the caller
// decides whether any may remain.
func ResolveRefs(v Value, r Resolver) (Value, error) {
	return resolveValue(v, r)
}

// ResolveObject is ResolveRefs for a property bag, preserving the
// Object type.
func ResolveObject(o Object, r Resolver) (Object, error) {
	resolved, err := resolveValue(o, r)
	if err != nil {
		return nil, err
	}
	return resolved.(Object), nil
}

func resolveValue(v Value, r Resolver) (Value, error) {
	switch val := v.(type) {
	case ResourceRef:
		resolved, err := r.ResolveOutput(val.URN, val.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve ref %s: %w", val.URN, err)
		}
		return resolved, nil
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			rv, err := ResolveRefs(elem, r)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			rv, err := ResolveRefs(elem, r)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}
