// schema.go — Declarative input schemas for capability tools.
// One validation abstraction replaces per-tool parse/validate pairs: a
// schema validates and transforms untrusted JSON into typed values or fails
// with a ValidationError, never a panic. Unknown fields produce warnings
// rather than failures so a misspelled optional parameter is surfaced to the
// caller instead of silently ignored.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Type enumerates the JSON value kinds a field may declare.
type Type string

const (
	String Type = "string"
	Int    Type = "integer"
	Number Type = "number"
	Bool   Type = "boolean"
	Object Type = "object"
	Array  Type = "array"
	Any    Type = "any"
)

// Field describes one named property of an object schema.
type Field struct {
	Type        Type
	Description string
	Enum        []string // for String fields: allowed values, empty = unrestricted
}

// ObjectSchema validates a flat JSON object against declared fields.
type ObjectSchema struct {
	Fields   map[string]Field
	Required []string
}

// ValidationError reports malformed input. It is recovered locally by the
// handler wrapper and surfaced in the result envelope.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Message)
	}
	return e.Message
}

// ValidateAndTransform parses raw JSON against the schema. On success it
// returns the typed value map plus warnings for unknown fields; on failure
// it returns a ValidationError and the handler body must not run.
func (s *ObjectSchema) ValidateAndTransform(raw json.RawMessage) (map[string]any, []string, *ValidationError) {
	values := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, nil, &ValidationError{Message: "arguments must be a JSON object: " + err.Error()}
		}
	}
	return s.ValidateMap(values)
}

// ValidateMap validates an already-decoded argument map. The map is
// modified in place (unknown fields dropped, integers narrowed).
func (s *ObjectSchema) ValidateMap(values map[string]any) (map[string]any, []string, *ValidationError) {
	for _, name := range s.Required {
		if _, ok := values[name]; !ok {
			return nil, nil, &ValidationError{Param: name, Message: "required parameter is missing"}
		}
	}

	var warnings []string
	for name, value := range values {
		field, known := s.Fields[name]
		if !known {
			warnings = append(warnings, fmt.Sprintf("unknown parameter %q (ignored)", name))
			delete(values, name)
			continue
		}
		typed, err := coerce(name, field, value)
		if err != nil {
			return nil, nil, err
		}
		values[name] = typed
	}
	sort.Strings(warnings)

	return values, warnings, nil
}

// coerce checks a single value against its declared field type. Integers
// arrive from encoding/json as float64 and are narrowed when integral.
func coerce(name string, field Field, value any) (any, *ValidationError) {
	switch field.Type {
	case Any:
		return value, nil
	case String:
		str, ok := value.(string)
		if !ok {
			return nil, typeError(name, "string", value)
		}
		if len(field.Enum) > 0 && !contains(field.Enum, str) {
			return nil, &ValidationError{Param: name, Message: fmt.Sprintf("must be one of %v", field.Enum)}
		}
		return str, nil
	case Int:
		num, ok := value.(float64)
		if !ok || num != math.Trunc(num) {
			return nil, typeError(name, "integer", value)
		}
		return int(num), nil
	case Number:
		num, ok := value.(float64)
		if !ok {
			return nil, typeError(name, "number", value)
		}
		return num, nil
	case Bool:
		b, ok := value.(bool)
		if !ok {
			return nil, typeError(name, "boolean", value)
		}
		return b, nil
	case Object:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, typeError(name, "object", value)
		}
		return obj, nil
	case Array:
		arr, ok := value.([]any)
		if !ok {
			return nil, typeError(name, "array", value)
		}
		return arr, nil
	default:
		return nil, &ValidationError{Param: name, Message: fmt.Sprintf("schema declares unsupported type %q", field.Type)}
	}
}

func typeError(name, want string, got any) *ValidationError {
	return &ValidationError{Param: name, Message: fmt.Sprintf("expected %s, got %T", want, got)}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// JSONSchema renders the schema as the inputSchema map advertised in tool
// listings.
func (s *ObjectSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for name, field := range s.Fields {
		prop := map[string]any{"description": field.Description}
		if field.Type != Any {
			prop["type"] = string(field.Type)
		}
		if len(field.Enum) > 0 {
			prop["enum"] = field.Enum
		}
		props[name] = prop
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}
