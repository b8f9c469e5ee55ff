package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/capstan-io/capstan/internal/urn"
)

// TagKey is the reserved object key that marks Unknown and ResourceRef
// values in JSON. Plain objects must not use it.
const TagKey = "$capstan"

// Tag values stored under TagKey.
const (
	tagUnknown = "unknown"
	tagRef     = "ref"
)

// Value is a sealed interface over the property value variants.
// Only Null, Bool, Number, String, Array, Object, Unknown, and
// ResourceRef implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an explicit null property value.
// Using a concrete type keeps nil out of the value tree entirely.
type Null struct{}

func (Null) value() {}

// Bool represents a boolean property value.
type Bool bool

func (Bool) value() {}

// Number represents a numeric property value.
// Stored as float64 to match the structural typing of the wire payloads.
type Number float64

func (Number) value() {}

// String represents a string property value.
type String string

func (String) value() {}

// Array represents an ordered list of values.
type Array []Value

func (Array) value() {}

// Object represents a property bag: property name to value.
type Object map[string]Value

func (Object) value() {}

// Unknown is the pending placeholder for a property that has not been
// computed yet. It is distinct from Null (explicitly no value) and from
// absence (key not present).
type Unknown struct{}

func (Unknown) value() {}

// ResourceRef is a tagged pending reference to another resource's
// output property. Path selects a property within the referenced
// resource's output bag; empty Path references the whole bag.
type ResourceRef struct {
	URN  urn.URN
	Path string
}

func (ResourceRef) value() {}

// SortedKeys returns the object's keys in lexicographic byte order.
// Used for deterministic iteration everywhere except canonical
// hashing, which has its own UTF-16 ordering (see canonical.go).
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copy returns a shallow copy of the object.
// Value variants are immutable except Array/Object, which callers must
// not mutate after handing them to the scheduler.
func (o Object) Copy() Object {
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Marshal serializes a value to JSON. Unknown and ResourceRef encode
// as "$capstan"-tagged objects; everything else encodes structurally.
func Marshal(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil Value: use Null{}")
	case Null:
		return []byte("null"), nil
	case Bool:
		return json.Marshal(bool(val))
	case Number:
		return json.Marshal(float64(val))
	case String:
		return json.Marshal(string(val))
	case Array:
		return marshalArray(val)
	case Object:
		return marshalObject(val)
	case Unknown:
		return []byte(fmt.Sprintf(`{%q:%q}`, TagKey, tagUnknown)), nil
	case ResourceRef:
		return json.Marshal(map[string]string{
			TagKey: tagRef,
			"urn":  string(val.URN),
			"path": val.Path,
		})
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

func marshalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := Marshal(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for Object so property bags can
// be embedded in larger JSON documents.
func (o Object) MarshalJSON() ([]byte, error) {
	return marshalObject(o)
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected object, got %T", v)
	}
	*o = obj
	return nil
}

// Unmarshal deserializes JSON into a Value, decoding "$capstan"-tagged
// objects back into Unknown and ResourceRef.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromAny(raw)
}

func fromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of range: %s", val)
		}
		return Number(f), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		if tag, ok := val[TagKey]; ok {
			return fromTagged(tag, val)
		}
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported JSON type: %T", v)
	}
}

// fromTagged decodes an object carrying the reserved tag key.
func fromTagged(tag any, raw map[string]any) (Value, error) {
	name, ok := tag.(string)
	if !ok {
		return nil, fmt.Errorf("%s tag must be a string, got %T", TagKey, tag)
	}
	switch name {
	case tagUnknown:
		return Unknown{}, nil
	case tagRef:
		u, _ := raw["urn"].(string)
		if u == "" {
			return nil, fmt.Errorf("%s ref missing urn", TagKey)
		}
		path, _ := raw["path"].(string)
		return ResourceRef{URN: urn.URN(u), Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown %s tag %q", TagKey, name)
	}
}
