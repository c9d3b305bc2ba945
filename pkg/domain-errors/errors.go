// Package dErrors defines coded domain errors shared across modules.
//
// Services return these so transport can translate them into consistent HTTP
// responses without inspecting error strings. For infrastructure facts
// (not found in store, conflict on insert) see pkg/platform/sentinel; stores
// return sentinels and services wrap them into domain errors.
package dErrors

import (
	"errors"
	"fmt"
)

// Code is the closed set of domain error categories.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodePreconditionFailed Code = "precondition_failed"
	CodeUnavailable        Code = "upstream_unavailable"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// DomainError carries a category code plus a caller-facing description.
type DomainError struct {
	Code        Code
	Description string
	cause       error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *DomainError) Unwrap() error { return e.cause }

// New creates a domain error with no underlying cause.
func New(code Code, description string) error {
	return &DomainError{Code: code, Description: description}
}

// Newf creates a domain error with a formatted description.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Description: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and description to an underlying error.
func Wrap(err error, code Code, description string) error {
	return &DomainError{Code: code, Description: description, cause: err}
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DescriptionOf extracts the caller-facing description, empty when the error
// is not a domain error (internal details must not leak to clients).
func DescriptionOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Description
	}
	return ""
}

// Is reports whether the error chain contains a domain error with the code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
