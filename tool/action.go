package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/util"
)

// Func is the implementation behind an Action. It receives already validated
// arguments.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Action exposes a plain Go function as a typed capability invocation.
//
// Responsibilities:
//   - Holds a compiled JSON-Schema parameter specification
//   - Validates reasoner supplied arguments against that schema before execution
//   - Invokes the wrapped function
//
// An Action has no mutable state after construction and is safe for concurrent use.
type Action struct {
	name        string
	description string
	parameters  map[string]any
	schema      *util.ArgSchema
	fn          Func
}

// NewAction constructs an Action from an explicit schema and function. It
// panics if parameters is not a valid JSON schema.
//
// Example:
//
//	search := tool.NewAction(
//	  "web_search",
//	  "Search the web",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{"query": map[string]any{"type": "string"}},
//	    "required": []string{"query"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) { ... },
//	)
func NewAction(name, description string, parameters map[string]any, fn Func) *Action {
	return &Action{
		name:        name,
		description: description,
		parameters:  parameters,
		schema:      util.MustCompileArgSchema(parameters),
		fn:          fn,
	}
}

// NewActionFromStruct derives the parameter schema from an argument struct
// (see util.SchemaFor).
//
// Example:
//
//	type OfficersArgs struct {
//	  CompanyNumber string `json:"company_number" jsonschema_description:"Registry company number"`
//	}
//
//	officers := tool.NewActionFromStruct("get_company_officers", "List officers", OfficersArgs{}, fn)
func NewActionFromStruct(name, description string, structType any, fn Func) *Action {
	return NewAction(name, description, util.SchemaFor(structType), fn)
}

// Name returns the unique action name used in reasoner action calls.
func (a *Action) Name() string { return a.name }

// Description returns the short natural language description exposed to reasoners.
func (a *Action) Description() string { return a.description }

// Parameters returns the JSON schema describing expected arguments.
func (a *Action) Parameters() map[string]any { return a.parameters }

// Spec returns the declarative form handed to reasoners.
func (a *Action) Spec() core.ActionSpec {
	return core.ActionSpec{Name: a.name, Description: a.description, Parameters: a.parameters}
}

// Call validates args against the declared schema then invokes the function.
//
// Error Semantics:
//
//	validation failure      -> *Error{Code: VALIDATION_ERROR}
//	errors from the function are returned unchanged
func (a *Action) Call(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := a.schema.Validate(args); err != nil {
		return nil, &Error{
			Action:  a.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}
	return a.fn(ctx, args)
}
