package errors

import (
	"fmt"
)

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures suite configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionError represents an engine-side failure while running a test case
// against one implementation. Implementation misbehavior is never an
// ExecutionError; it is reported through the taxonomy types instead.
type ExecutionError struct {
	Case           string
	Implementation string
	Err            error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(caseID, implementation string, err error) error {
	return &ExecutionError{Case: caseID, Implementation: implementation, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Case != "" && e.Implementation != "":
		return fmt.Sprintf("execution error on case %s [%s]: %v", e.Case, e.Implementation, e.Err)
	case e.Case != "":
		return fmt.Sprintf("execution error on case %s: %v", e.Case, e.Err)
	default:
		return fmt.Sprintf("execution error: %v", e.Err)
	}
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RegistryError indicates issues within implementation registration.
type RegistryError struct {
	Implementation string
	Message        string
	Err            error
}

// NewRegistryError constructs a RegistryError for the given implementation id.
func NewRegistryError(implementation string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &RegistryError{Implementation: implementation, Message: message, Err: err}
}

func (e *RegistryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Implementation != "" {
		return fmt.Sprintf("registry error [%s]: %s", e.Implementation, e.Message)
	}
	return fmt.Sprintf("registry error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *RegistryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
