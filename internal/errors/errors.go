// Package errors provides standardized domain errors with codes for the Inkcast API.
//
// Usage:
//
//	// In services - return typed errors
//	if span == nil {
//	    return errors.CoverageGapf("segment %d not covered by any span", idx)
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrNotFound) {
//	    response.NotFound(w, err.Error(), logger)
//	    return
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeValidation    Code = "VALIDATION"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL"

	// Build pipeline failures.
	CodeNormalization Code = "NORMALIZATION_CONTRACT"
	CodeSynthesis     Code = "SYNTHESIS_FAILED"
	CodeEncoding      Code = "ENCODING_FAILED"
	CodeBuildFailed   Code = "BUILD_FAILED"

	// Span integrity violations.
	CodeCoverageGap Code = "COVERAGE_GAP"
	CodeSpanOverlap Code = "SPAN_OVERLAP"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNormalization, CodeCoverageGap, CodeSpanOverlap:
		return http.StatusUnprocessableEntity
	case CodeSynthesis, CodeEncoding, CodeBuildFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict      = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal      = &Error{Code: CodeInternal, Message: "internal error"}
	ErrNormalization = &Error{Code: CodeNormalization, Message: "normalization contract violation"}
	ErrSynthesis     = &Error{Code: CodeSynthesis, Message: "synthesis failed"}
	ErrEncoding      = &Error{Code: CodeEncoding, Message: "encoding failed"}
	ErrBuildFailed   = &Error{Code: CodeBuildFailed, Message: "build failed"}
	ErrCoverageGap   = &Error{Code: CodeCoverageGap, Message: "uncovered segment"}
	ErrSpanOverlap   = &Error{Code: CodeSpanOverlap, Message: "overlapping spans"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Normalizationf creates a normalization contract violation error.
// Always fatal to the affected build, never silently repaired.
func Normalizationf(format string, args ...any) *Error {
	return &Error{Code: CodeNormalization, Message: fmt.Sprintf(format, args...)}
}

// Synthesisf creates a synthesis failure error.
func Synthesisf(format string, args ...any) *Error {
	return &Error{Code: CodeSynthesis, Message: fmt.Sprintf(format, args...)}
}

// Encodingf creates an encoding failure error.
func Encodingf(format string, args ...any) *Error {
	return &Error{Code: CodeEncoding, Message: fmt.Sprintf(format, args...)}
}

// BuildFailedf creates a build failure error.
func BuildFailedf(format string, args ...any) *Error {
	return &Error{Code: CodeBuildFailed, Message: fmt.Sprintf(format, args...)}
}

// CoverageGapf creates an uncovered-segment error.
func CoverageGapf(format string, args ...any) *Error {
	return &Error{Code: CodeCoverageGap, Message: fmt.Sprintf(format, args...)}
}

// SpanOverlapf creates an overlapping-span error.
func SpanOverlapf(format string, args ...any) *Error {
	return &Error{Code: CodeSpanOverlap, Message: fmt.Sprintf(format, args...)}
}
