// Package service implements the application's business logic on top of
// the store interfaces: account lifecycle, catalog management, order
// processing and the list/search normalization shared between them.
package service

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes surfaced to API clients.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeBusinessRule = "BUSINESS_RULE_VIOLATION"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeExternal     = "EXTERNAL_SERVICE_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// Error is the service-layer error type. It carries a stable code for
// clients, a human-readable message, optional per-field details for
// validation failures, and the underlying cause for logs.
type Error struct {
	Code    string
	Message string
	Fields  map[string]string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error with per-field messages.
// All offending fields are reported together so clients can render every
// problem in one round trip.
func NewValidationError(fields map[string]string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

// NewFieldError creates a validation error for a single field.
func NewFieldError(field, message string) *Error {
	return NewValidationError(map[string]string{field: message})
}

// NewNotFoundError creates a not-found error for the named entity.
func NewNotFoundError(entity string, cause error) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Cause:   cause,
	}
}

// NewConflictError creates a uniqueness-conflict error.
func NewConflictError(message string, cause error) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: message,
		Cause:   cause,
	}
}

// NewBusinessRuleError creates an error for a well-formed request that a
// domain rule rejects, such as cancelling a shipped order.
func NewBusinessRuleError(message string, cause error) *Error {
	return &Error{
		Code:    CodeBusinessRule,
		Message: message,
		Cause:   cause,
	}
}

// NewUnauthorizedError creates an authentication failure error.
func NewUnauthorizedError(message string) *Error {
	return &Error{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewForbiddenError creates an authorization failure error.
func NewForbiddenError(message string) *Error {
	return &Error{
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewExternalError creates an error for a dependency failure (database,
// cache, downstream service).
func NewExternalError(message string, cause error) *Error {
	return &Error{
		Code:    CodeExternal,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(cause error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: "internal error",
		Cause:   cause,
	}
}

// AsServiceError extracts a *Error from an error chain.
func AsServiceError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// IsCode reports whether err is a service error with the given code.
func IsCode(err error, code string) bool {
	svcErr, ok := AsServiceError(err)
	return ok && svcErr.Code == code
}
