// Package schema describes the shape of the persisted settings document.
//
// A Schema is a small JSON Schema subset: primitive types, defaults, enums,
// numeric ranges, string formats and nested object properties. Schemas are
// static metadata; nothing in this package mutates a schema after it is
// built.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Schema is one node of a settings schema.
type Schema struct {
	// Title is a descriptive title.
	Title string `json:"title,omitempty"`

	// Description provides documentation.
	Description string `json:"description,omitempty"`

	// Type is the JSON type (string, number, integer, boolean, object).
	Type SchemaType `json:"type,omitempty"`

	// Properties defines object properties (for type: object).
	Properties map[string]*Schema `json:"properties,omitempty"`

	// Enum lists allowed values.
	Enum []any `json:"enum,omitempty"`

	// Default is the value used when the document has none or an invalid one.
	Default any `json:"default,omitempty"`

	// Minimum for numeric types.
	Minimum *float64 `json:"minimum,omitempty"`

	// Maximum for numeric types.
	Maximum *float64 `json:"maximum,omitempty"`

	// Pattern is a regex pattern for strings.
	Pattern string `json:"pattern,omitempty"`

	// Format is a semantic format hint ("uri", "shortcut").
	Format string `json:"format,omitempty"`

	// Order for display ordering.
	Order int `json:"x-order,omitempty"`
}

// SchemaType represents JSON Schema type(s).
// Can be a single type or an array of types.
type SchemaType struct {
	Types []string
}

// MarshalJSON outputs single type as string, multiple as array.
func (t SchemaType) MarshalJSON() ([]byte, error) {
	if len(t.Types) == 1 {
		return json.Marshal(t.Types[0])
	}
	return json.Marshal(t.Types)
}

// Is checks if the schema type includes the given type.
func (t SchemaType) Is(typ string) bool {
	for _, st := range t.Types {
		if st == typ {
			return true
		}
	}
	return false
}

// IsEmpty returns true if no types are defined.
func (t SchemaType) IsEmpty() bool {
	return len(t.Types) == 0
}

// String returns the type as a string.
func (t SchemaType) String() string {
	if len(t.Types) == 1 {
		return t.Types[0]
	}
	return fmt.Sprintf("%v", t.Types)
}

// GetProperty returns the schema for a nested property path.
// Path is dot-separated (e.g., "localLobbySettings.maxDistance").
func (s *Schema) GetProperty(path string) *Schema {
	if s == nil || path == "" {
		return s
	}

	current := s
	for _, part := range splitPath(path) {
		if current.Properties == nil {
			return nil
		}
		prop, ok := current.Properties[part]
		if !ok {
			return nil
		}
		current = prop
	}
	return current
}

// HasProperty checks if a property exists at the given path.
func (s *Schema) HasProperty(path string) bool {
	return s.GetProperty(path) != nil
}

// IsObject reports whether the node declares nested properties.
func (s *Schema) IsObject() bool {
	return s != nil && s.Type.Is(TypeNameObject) && len(s.Properties) > 0
}

// Keys returns the property names in display order, ties broken by name.
func (s *Schema) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		keys = append(keys, name)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, oj := s.Properties[keys[i]].Order, s.Properties[keys[j]].Order
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// DefaultValue returns a fresh copy of the node's default. Object nodes
// without an explicit default are assembled from their properties.
func (s *Schema) DefaultValue() any {
	if s == nil {
		return nil
	}
	if s.Default == nil && s.IsObject() {
		return s.Defaults()
	}
	return CloneValue(s.Default)
}

// Defaults builds a document holding the default of every property.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Properties))
	for name, prop := range s.Properties {
		out[name] = prop.DefaultValue()
	}
	return out
}

// CloneValue deep-copies maps and slices so defaults are never shared
// between documents.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}

// splitPath splits a dot-separated path into parts.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
