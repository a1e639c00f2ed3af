package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError represents argument validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

var reflector = &invopop.Reflector{
	Anonymous:                 true,
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: true,
}

// SchemaFor derives the JSON schema object of an argument struct. Field
// names follow json tags and fields without omitempty are required.
// Descriptions and enums come from jsonschema tags, e.g.
// `jsonschema:"description=Company number,enum=officers,enum=charges"`.
func SchemaFor(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	b, err := json.Marshal(reflector.ReflectFromType(t))
	if err != nil {
		panic(fmt.Sprintf("util: reflect schema of %s: %v", t, err))
	}
	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		panic(fmt.Sprintf("util: decode schema of %s: %v", t, err))
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema
}

// RequiredFields returns the "required" list of a schema. Both []string (Go
// literals) and []any (decoded JSON) forms are accepted.
func RequiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ArgSchema is a compiled argument schema. It is safe for concurrent use.
type ArgSchema struct {
	required []string
	schema   *jsonschema.Schema
}

// CompileArgSchema compiles a JSON schema object.
func CompileArgSchema(schema map[string]any) (*ArgSchema, error) {
	if len(schema) == 0 {
		schema = map[string]any{"type": "object"}
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("util: encode schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("args.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("util: load schema: %w", err)
	}
	compiled, err := c.Compile("args.json")
	if err != nil {
		return nil, fmt.Errorf("util: compile schema: %w", err)
	}
	return &ArgSchema{required: RequiredFields(schema), schema: compiled}, nil
}

// MustCompileArgSchema is like CompileArgSchema but panics on an invalid schema.
func MustCompileArgSchema(schema map[string]any) *ArgSchema {
	s, err := CompileArgSchema(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks args against the schema. Required string fields must not
// be blank. Failures are reported as *ValidationError.
func (s *ArgSchema) Validate(args map[string]any) error {
	for _, name := range s.required {
		v, ok := args[name]
		if !ok || v == nil {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
		if str, isString := v.(string); isString && strings.TrimSpace(str) == "" {
			return &ValidationError{Field: name, Value: v, Message: "required field is empty"}
		}
	}

	doc, err := normalize(args)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	err = s.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	return &ValidationError{Field: field, Value: args[field], Message: ve.Message}
}

// normalize round-trips args through JSON so Go values match the decoded
// form the validator expects.
func normalize(args map[string]any) (any, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// StringArg returns a trimmed string argument or "".
func StringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

// IntArg returns an integer argument, accepting JSON float64 encoding, or def.
func IntArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// BoolArg returns a boolean argument or def.
func BoolArg(args map[string]any, name string, def bool) bool {
	if b, ok := args[name].(bool); ok {
		return b
	}
	return def
}
