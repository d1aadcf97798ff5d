// Package model holds the result vocabulary shared by the engine, the
// consensus layer, and the report writers.
package model

import (
	"github.com/swhidcheck/swhidcheck/pkg/diff"
)

// Status is the outcome of one implementation's attempt at one case.
type Status string

const (
	// StatusPass marks an identifier matching the expected value.
	StatusPass Status = "pass"
	// StatusFail marks a successful computation with the wrong answer.
	StatusFail Status = "fail"
	// StatusSkipped marks a case outside the implementation's capabilities.
	StatusSkipped Status = "skipped"
	// StatusError marks a computation that produced no usable identifier.
	StatusError Status = "error"
)

// ErrorKind is the closed classification every reported failure falls into.
// The distinction the whole engine leans on: an implementation that is
// unavailable or out of budget is never recorded as giving a wrong answer.
type ErrorKind string

const (
	KindParseError      ErrorKind = "PARSE_ERROR"
	KindNormalizeError  ErrorKind = "NORMALIZE_ERROR"
	KindValidationError ErrorKind = "VALIDATION_ERROR"
	KindComputeError    ErrorKind = "COMPUTE_ERROR"
	KindTimeout         ErrorKind = "TIMEOUT"
	KindResourceLimit   ErrorKind = "RESOURCE_LIMIT"
	KindIOError         ErrorKind = "IO_ERROR"
	KindMismatchError   ErrorKind = "MISMATCH_ERROR"
)

// ErrorKinds lists every kind in taxonomy order.
func ErrorKinds() []ErrorKind {
	return []ErrorKind{
		KindParseError,
		KindNormalizeError,
		KindValidationError,
		KindComputeError,
		KindTimeout,
		KindResourceLimit,
		KindIOError,
		KindMismatchError,
	}
}

// ParseKind resolves a kind string, reporting whether it names a known kind.
func ParseKind(s string) (ErrorKind, bool) {
	for _, k := range ErrorKinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

func (k ErrorKind) Valid() bool {
	_, ok := ParseKind(string(k))
	return ok
}

// ErrorInfo describes one classified failure.
type ErrorInfo struct {
	Kind    ErrorKind      `json:"kind"`
	Subtype string         `json:"subtype,omitempty"`
	Message string         `json:"message,omitempty"`
	Context map[string]any `json:"context,omitempty"`
	Diff    []diff.Entry   `json:"diff,omitempty"`
}

// Result is one implementation's answer for one (case, variant) unit.
// Identifier carries the canonical form; Raw keeps the implementation's
// verbatim output when the two differ.
type Result struct {
	Implementation string     `json:"implementation"`
	Variant        string     `json:"variant"`
	Status         Status     `json:"status"`
	Identifier     string     `json:"identifier,omitempty"`
	Raw            string     `json:"raw,omitempty"`
	SkipReason     string     `json:"skip_reason,omitempty"`
	Error          *ErrorInfo `json:"error,omitempty"`
	Metrics        *Metrics   `json:"metrics,omitempty"`
}

// Errored reports whether the result carries a classified error.
func (r Result) Errored() bool {
	return r.Error != nil
}
