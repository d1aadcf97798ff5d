package errors

import (
	"fmt"
	"time"
)

// SyntaxError reports identifier text that does not match the grammar.
type SyntaxError struct {
	Input   string
	Pos     int
	Message string
}

// NewSyntaxError constructs a SyntaxError at the given byte offset.
func NewSyntaxError(input string, pos int, message string) error {
	return &SyntaxError{Input: input, Pos: pos, Message: message}
}

func (e *SyntaxError) Error() string {
	if e == nil {
		return ""
	}
	if e.Pos > 0 {
		return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}

// NormalizeError reports identifier text that matches the grammar but breaks a
// canonical-form rule, such as a hash of the wrong length for its version.
type NormalizeError struct {
	Field   string
	Message string
	Err     error
}

// NewNormalizeError constructs a NormalizeError for the given field.
func NewNormalizeError(field, message string, err error) error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &NormalizeError{Field: field, Message: message, Err: err}
}

func (e *NormalizeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("normalize error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("normalize error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *NormalizeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SemanticError reports a well-formed identifier that is semantically invalid,
// such as duplicate qualifier keys.
type SemanticError struct {
	Field   string
	Message string
}

// NewSemanticError constructs a SemanticError for the given field.
func NewSemanticError(field, message string) error {
	return &SemanticError{Field: field, Message: message}
}

func (e *SemanticError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("semantic error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("semantic error: %s", e.Message)
}

// ComputeError reports that an implementation failed internally while
// computing an identifier and said so through its own error channel.
type ComputeError struct {
	Implementation string
	Message        string
	Err            error
}

// NewComputeError constructs a ComputeError.
func NewComputeError(implementation, message string, err error) error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &ComputeError{Implementation: implementation, Message: message, Err: err}
}

func (e *ComputeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Implementation != "" {
		return fmt.Sprintf("compute error [%s]: %s", e.Implementation, e.Message)
	}
	return fmt.Sprintf("compute error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ComputeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TimeoutError reports that an invocation exceeded its wall-clock budget.
type TimeoutError struct {
	Limit time.Duration
}

// NewTimeoutError constructs a TimeoutError.
func NewTimeoutError(limit time.Duration) error {
	return &TimeoutError{Limit: limit}
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("timed out after %s", e.Limit)
}

// ResourceError reports that an invocation tripped an OS-enforced ceiling.
type ResourceError struct {
	Resource string
	Message  string
}

// NewResourceError constructs a ResourceError for the named resource.
func NewResourceError(resource, message string) error {
	return &ResourceError{Resource: resource, Message: message}
}

func (e *ResourceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("%s limit exceeded: %s", e.Resource, e.Message)
	}
	return fmt.Sprintf("%s limit exceeded", e.Resource)
}

// ProtocolError reports a crashed process, an unexplained non-zero exit, or
// malformed transport framing between the engine and an implementation.
type ProtocolError struct {
	Implementation string
	Subtype        string
	Message        string
	Err            error
}

// NewProtocolError constructs a ProtocolError with a machine-readable subtype.
func NewProtocolError(implementation, subtype, message string, err error) error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &ProtocolError{Implementation: implementation, Subtype: subtype, Message: message, Err: err}
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Implementation != "" {
		return fmt.Sprintf("protocol error [%s]: %s", e.Implementation, e.Message)
	}
	return fmt.Sprintf("protocol error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnavailableError reports that an implementation could not be launched at
// all. It is kept distinct from runtime failures so "unavailable" and "wrong"
// never blur together in aggregate statistics.
type UnavailableError struct {
	Implementation string
	Reason         string
	Err            error
}

// NewUnavailableError constructs an UnavailableError.
func NewUnavailableError(implementation, reason string, err error) error {
	if reason == "" && err != nil {
		reason = err.Error()
	}
	return &UnavailableError{Implementation: implementation, Reason: reason, Err: err}
}

func (e *UnavailableError) Error() string {
	if e == nil {
		return ""
	}
	if e.Implementation != "" {
		return fmt.Sprintf("implementation %s unavailable: %s", e.Implementation, e.Reason)
	}
	return fmt.Sprintf("implementation unavailable: %s", e.Reason)
}

// Unwrap exposes the underlying error.
func (e *UnavailableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
