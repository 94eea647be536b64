package schema

import (
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// Translate flattens a validation schema into the JSON Schema
// advertised to clients as a tool's input schema.
//
// Only "object of named fields" schemas translate structurally. For
// each field the modifier layers are unwrapped to the base node,
// keeping the first description found and noting whether any layer
// makes the field non-required. Fields whose chain never reaches a
// base node are skipped. Any other shape degrades to a permissive
// object schema; Translate never fails.
func Translate(n *Node) *jsonschema.Schema {
	root, ok := resolve(n)
	if !ok || root.base.kind != KindObject {
		return permissiveObject()
	}

	out := &jsonschema.Schema{
		Type:                 "object",
		Properties:           make(map[string]*jsonschema.Schema, len(root.base.fields)),
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}

	for name, field := range root.base.fields {
		r, ok := resolve(field)
		if !ok {
			continue
		}
		prop := &jsonschema.Schema{Type: r.base.kind.String()}
		if r.desc != "" {
			prop.Description = r.desc
		}
		out.Properties[name] = prop
		if !r.optional {
			out.Required = append(out.Required, name)
		}
	}

	sort.Strings(out.Required)
	return out
}

// permissiveObject is the fallback for unsupported schema shapes:
// any object validates.
func permissiveObject() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           map[string]*jsonschema.Schema{},
		AdditionalProperties: &jsonschema.Schema{},
	}
}
