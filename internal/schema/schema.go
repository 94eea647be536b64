// Package schema defines the validation schemas that widget definitions
// describe their tool arguments with.
//
// A schema is a closed tagged union: a base node (string, number,
// boolean, array, object) wrapped in zero or more modifier layers
// (optional, nullable, defaulted, coerced). The package provides three
// things: builders to construct schemas declaratively, Validate to
// check and coerce incoming arguments, and Translate to flatten a
// schema into the JSON Schema advertised over the protocol.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the base type of a schema node.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindArray
	KindObject
)

// String returns the coarse JSON Schema type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "string"
	}
}

// op discriminates the union. The set is closed: unwrapping is a
// switch over these values, never structural probing.
type op int

const (
	opBase op = iota
	opOptional
	opNullable
	opDefault
	opCoerce
)

// Node is one layer of a validation schema. Nodes are immutable;
// modifier methods return a new wrapping node.
type Node struct {
	op     op
	kind   Kind             // opBase only
	fields map[string]*Node // opBase + KindObject
	elem   *Node            // opBase + KindArray
	inner  *Node            // wrapper layers
	def    any              // opDefault
	desc   string
}

// String returns a string schema.
func String() *Node { return &Node{op: opBase, kind: KindString} }

// Number returns a number schema. Integers and floats both satisfy it.
func Number() *Node { return &Node{op: opBase, kind: KindNumber} }

// Boolean returns a boolean schema.
func Boolean() *Node { return &Node{op: opBase, kind: KindBoolean} }

// Array returns an array schema whose elements satisfy elem.
func Array(elem *Node) *Node { return &Node{op: opBase, kind: KindArray, elem: elem} }

// Object returns an object schema with the given named fields.
func Object(fields map[string]*Node) *Node {
	return &Node{op: opBase, kind: KindObject, fields: fields}
}

// Optional marks the schema as optional: the field may be absent.
func (n *Node) Optional() *Node { return &Node{op: opOptional, inner: n} }

// Nullable marks the schema as nullable: an explicit null is accepted.
func (n *Node) Nullable() *Node { return &Node{op: opNullable, inner: n} }

// Default supplies a value used when the field is absent. A defaulted
// field is not required.
func (n *Node) Default(v any) *Node { return &Node{op: opDefault, inner: n, def: v} }

// Coerce enables lenient conversion of string inputs into the base
// type during validation (e.g. "42" for a number schema).
func (n *Node) Coerce() *Node { return &Node{op: opCoerce, inner: n} }

// Describe attaches a human-readable description to this layer.
func (n *Node) Describe(desc string) *Node {
	c := *n
	c.desc = desc
	return &c
}

// resolved is the result of unwrapping a layered schema down to its
// base node.
type resolved struct {
	base     *Node
	desc     string // first non-empty description, outermost layer wins
	optional bool   // any optional/nullable/defaulted layer seen
	coerce   bool
	def      any
	hasDef   bool
}

// resolve unwraps modifier layers until the base node. ok is false if
// the chain never reaches a base node.
func resolve(n *Node) (resolved, bool) {
	var r resolved
	for n != nil {
		if r.desc == "" && n.desc != "" {
			r.desc = n.desc
		}
		switch n.op {
		case opBase:
			r.base = n
			return r, true
		case opOptional, opNullable:
			r.optional = true
			n = n.inner
		case opDefault:
			r.optional = true
			if !r.hasDef {
				r.def = n.def
				r.hasDef = true
			}
			n = n.inner
		case opCoerce:
			r.coerce = true
			n = n.inner
		}
	}
	return r, false
}

// FieldError describes a single argument that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates all offending fields of one validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid arguments: " + strings.Join(msgs, "; ")
}

// ErrInvalidArguments allows errors.Is checks against validation
// failures without inspecting the concrete type.
var ErrInvalidArguments = errors.New("invalid arguments")

// Is reports whether target is ErrInvalidArguments.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArguments
}

// Validate checks args against the schema, coercing and filling
// defaults, and returns the validated argument map. If the schema is
// not an object of named fields, args pass through unchanged (the same
// permissive degradation Translate applies).
func Validate(n *Node, args map[string]any) (map[string]any, error) {
	r, ok := resolve(n)
	if !ok || r.base.kind != KindObject {
		return args, nil
	}

	out := make(map[string]any, len(args))
	var verr ValidationError

	// Reject keys the schema does not name (additionalProperties: false).
	for k := range args {
		if _, known := r.base.fields[k]; !known {
			verr.Fields = append(verr.Fields, FieldError{Field: k, Message: "unexpected argument"})
		}
	}

	names := make([]string, 0, len(r.base.fields))
	for name := range r.base.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := r.base.fields[name]
		v, present := args[name]
		val, keep, err := validateValue(field, v, present)
		if err != nil {
			var fe FieldError
			if errors.As(err, &fe) {
				fe.Field = name + nonEmptyDot(fe.Field) + fe.Field
				verr.Fields = append(verr.Fields, fe)
			} else {
				verr.Fields = append(verr.Fields, FieldError{Field: name, Message: err.Error()})
			}
			continue
		}
		if keep {
			out[name] = val
		}
	}

	if len(verr.Fields) > 0 {
		sort.Slice(verr.Fields, func(i, j int) bool { return verr.Fields[i].Field < verr.Fields[j].Field })
		return nil, &verr
	}
	return out, nil
}

func nonEmptyDot(s string) string {
	if s == "" {
		return ""
	}
	return "."
}

// validateValue validates a single value against one schema chain.
// keep is false when the value should be omitted from the output
// (absent optional field).
func validateValue(n *Node, v any, present bool) (val any, keep bool, err error) {
	r, ok := resolve(n)
	if !ok {
		// Unresolvable chain: mirror the translator and skip.
		return nil, false, nil
	}

	if !present {
		if r.hasDef {
			// Defaults obey the base type too; a mismatched default is
			// a definition bug and must not leak into validated args.
			return checkBase(r.base, r.def, r.coerce)
		}
		if r.optional {
			return nil, false, nil
		}
		return nil, false, FieldError{Message: "required"}
	}
	if v == nil {
		if r.optional {
			return nil, true, nil
		}
		return nil, false, FieldError{Message: "must not be null"}
	}

	return checkBase(r.base, v, r.coerce)
}

func checkBase(base *Node, v any, coerce bool) (any, bool, error) {
	switch base.kind {
	case KindString:
		if s, ok := v.(string); ok {
			return s, true, nil
		}
		if coerce {
			return fmt.Sprintf("%v", v), true, nil
		}
		return nil, false, FieldError{Message: fmt.Sprintf("expected string, got %T", v)}

	case KindNumber:
		switch x := v.(type) {
		case float64:
			return x, true, nil
		case float32:
			return float64(x), true, nil
		case int:
			return float64(x), true, nil
		case int32:
			return float64(x), true, nil
		case int64:
			return float64(x), true, nil
		case string:
			if coerce {
				f, err := strconv.ParseFloat(x, 64)
				if err == nil {
					return f, true, nil
				}
			}
		}
		return nil, false, FieldError{Message: fmt.Sprintf("expected number, got %T", v)}

	case KindBoolean:
		switch x := v.(type) {
		case bool:
			return x, true, nil
		case string:
			if coerce {
				b, err := strconv.ParseBool(x)
				if err == nil {
					return b, true, nil
				}
			}
		}
		return nil, false, FieldError{Message: fmt.Sprintf("expected boolean, got %T", v)}

	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return nil, false, FieldError{Message: fmt.Sprintf("expected array, got %T", v)}
		}
		if base.elem == nil {
			return items, true, nil
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			val, keep, err := validateValue(base.elem, item, true)
			if err != nil {
				var fe FieldError
				if errors.As(err, &fe) {
					fe.Field = strconv.Itoa(i) + nonEmptyDot(fe.Field) + fe.Field
					return nil, false, fe
				}
				return nil, false, err
			}
			if keep {
				out = append(out, val)
			}
		}
		return out, true, nil

	case KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false, FieldError{Message: fmt.Sprintf("expected object, got %T", v)}
		}
		validated, err := Validate(base, m)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) && len(verr.Fields) > 0 {
				return nil, false, verr.Fields[0]
			}
			return nil, false, err
		}
		return validated, true, nil
	}

	return nil, false, FieldError{Message: "unsupported schema"}
}
