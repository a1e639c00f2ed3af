// Package tool implements the closed action schema a reasoner selects from.
// Each Action is a typed, schema-validated capability invocation; a Set groups
// the actions of one capability into a core.Port with consistent failure
// classification.
package tool

import (
	"fmt"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/util"
)

// ValidationError represents argument validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by *Error.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeUnknownAction  = "UNKNOWN_ACTION"
	CodeExecution      = "EXECUTION_ERROR"
	CodePanic          = "PANIC"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "UNAVAILABLE"
	CodeMalformedInput = "MALFORMED_INPUT"
)

// Error represents a failure that occurred while executing an action.
type Error struct {
	Action  string `json:"action"`            // Name of the action that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("action error [%s] in %s: %s", e.Code, e.Action, e.Message)
	}
	return fmt.Sprintf("action error in %s: %s", e.Action, e.Message)
}

// NewError creates a new Error with the specified details.
func NewError(action, message, code string) *Error {
	return &Error{Action: action, Message: message, Code: code}
}

// KindForCode maps an error code onto the shared failure classes.
func KindForCode(code string) core.ErrorKind {
	switch code {
	case CodeValidation, CodeUnknownAction, CodeMalformedInput:
		return core.ErrorKindInvalidInput
	case CodeNotFound:
		return core.ErrorKindNotFound
	case CodeRateLimited, CodeUnavailable:
		return core.ErrorKindTransient
	default:
		return core.ErrorKindFatal
	}
}
