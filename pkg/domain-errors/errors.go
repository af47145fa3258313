// Package domainerrors provides coded domain errors shared by all modules.
//
// Services return these so transport layers can map a stable machine-readable
// code to an HTTP status without string matching. Infrastructure layers should
// return pkg/platform/sentinel errors instead and let services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error. Values are wire-stable: they
// appear verbatim in the `error` field of JSON error responses.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeDuplicate          Code = "duplicate"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeForbidden          Code = "forbidden"
	CodeUnauthorized       Code = "unauthorized"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a domain error with a stable code, a human-readable message, and
// optional structured details (field errors, duplicate metadata).
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping it unwrappable.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// WithDetail attaches a structured detail entry. Returns the receiver so
// details can be chained at construction.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Detail returns a structured detail value, or "" if absent.
func (e *Error) Detail(key string) string {
	return e.Details[key]
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for plain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DetailOf extracts a structured detail from err if it is a domain error.
func DetailOf(err error, key string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Detail(key)
	}
	return ""
}
