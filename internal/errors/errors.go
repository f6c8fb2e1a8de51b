// Package errors defines the structured error type shared by the store,
// auth, workers client and HTTP layer. Every error carries a category that
// maps to an HTTP status, so handlers never hand-pick status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeForbidden  ErrorType = "forbidden"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeUpstream   ErrorType = "upstream"
	ErrorTypeInternal   ErrorType = "internal"
)

// APIError is a structured error type with context.
type APIError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by type and code.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// HTTPStatus maps the error category to an HTTP status code.
func (e *APIError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewAuthError creates an authentication error.
func NewAuthError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeAuth, Code: code, Message: message}
}

// NewForbiddenError creates an authorization error.
func NewForbiddenError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeForbidden, Code: code, Message: message}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Code: code, Message: message}
}

// NewConflictError creates a conflict error.
func NewConflictError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeConflict, Code: code, Message: message}
}

// NewStorageError creates a storage error.
func NewStorageError(code, message string, cause error) *APIError {
	return &APIError{Type: ErrorTypeStorage, Code: code, Message: message, Cause: cause}
}

// NewUpstreamError creates an error for a failed upstream service call.
func NewUpstreamError(code, message string, cause error) *APIError {
	return &APIError{Type: ErrorTypeUpstream, Code: code, Message: message, Cause: cause}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *APIError {
	return &APIError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// StatusFor returns the HTTP status for any error. Plain errors map to 500.
func StatusFor(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// DetailFor returns the client-facing detail string for an error. Internal
// and storage errors are masked so causes never leak to clients.
func DetailFor(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		switch ae.Type {
		case ErrorTypeInternal, ErrorTypeStorage:
			return "internal server error"
		default:
			return ae.Message
		}
	}
	return "internal server error"
}

// IsType checks whether err is an APIError of the given category.
func IsType(err error, t ErrorType) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Type == t
	}
	return false
}
