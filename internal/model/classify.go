package model

import (
	stderrors "errors"
	"io/fs"

	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

// Classify maps a typed error onto its taxonomy kind and subtype. Checks run
// in taxonomy order so a wrapped chain resolves to the most specific earlier
// kind. Anything unrecognized counts as the implementation's own fault.
func Classify(err error) (ErrorKind, string) {
	if err == nil {
		return "", ""
	}

	var syntaxErr *errors.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return KindParseError, "syntax"
	}

	var normErr *errors.NormalizeError
	if stderrors.As(err, &normErr) {
		if stderrors.Is(err, swhid.ErrUnknownVariant) {
			return KindNormalizeError, "unknown_variant"
		}
		return KindNormalizeError, normErr.Field
	}

	var semErr *errors.SemanticError
	if stderrors.As(err, &semErr) {
		return KindValidationError, semErr.Field
	}
	var valErr *errors.ValidationError
	if stderrors.As(err, &valErr) {
		return KindValidationError, valErr.Field
	}

	var compErr *errors.ComputeError
	if stderrors.As(err, &compErr) {
		return KindComputeError, ""
	}

	var timeoutErr *errors.TimeoutError
	if stderrors.As(err, &timeoutErr) {
		return KindTimeout, "wall_clock"
	}

	var resErr *errors.ResourceError
	if stderrors.As(err, &resErr) {
		return KindResourceLimit, resErr.Resource
	}

	var protoErr *errors.ProtocolError
	if stderrors.As(err, &protoErr) {
		return KindIOError, protoErr.Subtype
	}
	var unavailErr *errors.UnavailableError
	if stderrors.As(err, &unavailErr) {
		return KindIOError, "unavailable"
	}

	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return KindIOError, "file_not_found"
	case stderrors.Is(err, fs.ErrPermission):
		return KindIOError, "permission_denied"
	}

	return KindComputeError, "exception"
}

// Describe packages a classified error for a result record.
func Describe(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	kind, subtype := Classify(err)
	return &ErrorInfo{Kind: kind, Subtype: subtype, Message: err.Error()}
}
