package urn

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Prefix is the scheme every URN starts with.
const Prefix = "urn:capstan:"

// Separator divides the stack, project, qualified type, and name parts.
const Separator = "::"

// TypeDelimiter joins the parent type chain inside the qualified type.
const TypeDelimiter = "$"

// URN is the stable logical identifier of a declared resource.
//
// URNs are plain strings so they can be used as map keys and serialized
// without conversion. Use New to construct one; direct casting skips
// validation and normalization.
type URN string

// New composes a URN from its parts.
//
// parent may be empty (a root resource). When present, the child's
// qualified type becomes parent's qualified type + "$" + typ, so the
// URN encodes the full parent chain. The logical name is NFC-normalized
// before composition.
func New(stack, project string, parent URN, typ, name string) (URN, error) {
	if stack == "" {
		return "", &ParseError{Field: "stack", Message: "must not be empty"}
	}
	if project == "" {
		return "", &ParseError{Field: "project", Message: "must not be empty"}
	}
	if err := validateType(typ); err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	qualified := typ
	if parent != "" {
		parsed, err := Parse(parent)
		if err != nil {
			return "", fmt.Errorf("parent urn: %w", err)
		}
		qualified = parsed.QualifiedType + TypeDelimiter + typ
	}

	normalized := norm.NFC.String(name)
	return URN(Prefix + stack + Separator + project + Separator + qualified + Separator + normalized), nil
}

// Parts holds the decomposed fields of a URN.
type Parts struct {
	Stack         string
	Project       string
	QualifiedType string // full parent type chain, "$"-joined
	Name          string
}

// Type returns the resource's own type: the last element of the
// qualified type chain.
func (p Parts) Type() string {
	if i := strings.LastIndex(p.QualifiedType, TypeDelimiter); i >= 0 {
		return p.QualifiedType[i+len(TypeDelimiter):]
	}
	return p.QualifiedType
}

// Parse decomposes a URN into its parts.
// Returns a ParseError if the string is not a well-formed URN.
func Parse(u URN) (Parts, error) {
	s := string(u)
	if !strings.HasPrefix(s, Prefix) {
		return Parts{}, &ParseError{Field: "urn", Message: fmt.Sprintf("missing %q prefix", Prefix)}
	}

	rest := s[len(Prefix):]
	fields := strings.Split(rest, Separator)
	if len(fields) != 4 {
		return Parts{}, &ParseError{
			Field:   "urn",
			Message: fmt.Sprintf("expected 4 %q-separated fields, got %d", Separator, len(fields)),
		}
	}
	for i, f := range fields {
		if f == "" {
			return Parts{}, &ParseError{
				Field:   []string{"stack", "project", "type", "name"}[i],
				Message: "must not be empty",
			}
		}
	}

	return Parts{
		Stack:         fields[0],
		Project:       fields[1],
		QualifiedType: fields[2],
		Name:          fields[3],
	}, nil
}

// Name returns the logical name component.
// Panics only on malformed URNs constructed by unchecked casts.
func (u URN) Name() string {
	p, err := Parse(u)
	if err != nil {
		return ""
	}
	return p.Name
}

// QualifiedType returns the full "$"-joined type chain.
func (u URN) QualifiedType() string {
	p, err := Parse(u)
	if err != nil {
		return ""
	}
	return p.QualifiedType
}

// Type returns the resource's own type token.
func (u URN) Type() string {
	p, err := Parse(u)
	if err != nil {
		return ""
	}
	return p.Type()
}

// IsValid reports whether the URN parses.
func (u URN) IsValid() bool {
	_, err := Parse(u)
	return err == nil
}

// validateType checks a single type token (not a qualified chain).
// Type tokens use ":" to separate package, module, and kind
// (e.g. "aws:s3:Bucket") and must not contain the URN separators.
func validateType(typ string) error {
	if typ == "" {
		return &ParseError{Field: "type", Message: "must not be empty"}
	}
	if strings.Contains(typ, Separator) || strings.Contains(typ, TypeDelimiter) {
		return &ParseError{Field: "type", Message: fmt.Sprintf("must not contain %q or %q", Separator, TypeDelimiter)}
	}
	return nil
}

// validateName checks a logical name.
func validateName(name string) error {
	if name == "" {
		return &ParseError{Field: "name", Message: "must not be empty"}
	}
	if strings.Contains(name, Separator) {
		return &ParseError{Field: "name", Message: fmt.Sprintf("must not contain %q", Separator)}
	}
	return nil
}
