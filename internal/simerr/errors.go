// Package simerr defines the error kinds shared by the gel simulation packages.
//
// Every precondition violation in the engine surfaces as an *Error carrying one
// of the codes below. Errors are detected synchronously and never retried; a
// caller that receives one can rely on no output state having been committed.
package simerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes simulation errors.
type Code string

const (
	// DimensionMismatch indicates incompatible physical units were combined.
	DimensionMismatch Code = "DIMENSION_MISMATCH"

	// ShapeMismatch indicates two sequences that must pair up differ in length.
	ShapeMismatch Code = "SHAPE_MISMATCH"

	// NotFound indicates an unknown weight-standard name.
	NotFound Code = "NOT_FOUND"

	// InvalidParameter indicates a value outside its valid range.
	InvalidParameter Code = "INVALID_PARAMETER"

	// EmptyGel indicates there are no lanes or fragments to simulate.
	EmptyGel Code = "EMPTY_GEL"

	// InvalidState indicates a controller operation was called out of order.
	InvalidState Code = "INVALID_STATE"
)

// Error is a simulation error with a code and structured details.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details contains additional context (parameter names, offending values).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + e.Details[k]
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With returns a copy of e with an extra detail attached.
func (e *Error) With(key, value string) *Error {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Code: e.Code, Message: e.Message, Details: details}
}

// Invalid creates an InvalidParameter error naming the offending parameter.
func Invalid(param string, value any, reason string) *Error {
	return &Error{
		Code:    InvalidParameter,
		Message: fmt.Sprintf("%s %s", param, reason),
		Details: map[string]string{
			"param": param,
			"value": fmt.Sprint(value),
		},
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsDimensionMismatch returns true if err is a DimensionMismatch error.
func IsDimensionMismatch(err error) bool { return Is(err, DimensionMismatch) }

// IsShapeMismatch returns true if err is a ShapeMismatch error.
func IsShapeMismatch(err error) bool { return Is(err, ShapeMismatch) }

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool { return Is(err, NotFound) }

// IsInvalidParameter returns true if err is an InvalidParameter error.
func IsInvalidParameter(err error) bool { return Is(err, InvalidParameter) }

// IsEmptyGel returns true if err is an EmptyGel error.
func IsEmptyGel(err error) bool { return Is(err, EmptyGel) }

// IsInvalidState returns true if err is an InvalidState error.
func IsInvalidState(err error) bool { return Is(err, InvalidState) }
