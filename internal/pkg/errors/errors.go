package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents an application error with additional context
type AppError struct {
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Internal error       `json:"-"`
	Details  interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Common error codes
const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeNotConfigured      = "NOT_CONFIGURED"
	ErrCodeAlreadyResolved    = "ALREADY_RESOLVED"
	ErrCodeAlreadyAnalyzed    = "ALREADY_ANALYZED"
	ErrCodeAlreadyImplemented = "ALREADY_IMPLEMENTED"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeMalformedState     = "MALFORMED_STATE"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDatabase           = "DATABASE_ERROR"
	ErrCodeProviderAuth       = "PROVIDER_AUTH_ERROR"
	ErrCodeProviderAPI        = "PROVIDER_API_ERROR"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// IsCode reports whether err (or any error it wraps) is an AppError with the given code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Common error constructors

// Internal creates an internal error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

// NotFound creates a not found error
func NotFound(entity string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", entity))
}

// NotConfigured indicates an environment missing cloud credentials or scan settings
func NotConfigured(message string) *AppError {
	return New(ErrCodeNotConfigured, message)
}

// AlreadyResolved indicates a resolve action on a drift event that already has a resolution
func AlreadyResolved(message string) *AppError {
	return New(ErrCodeAlreadyResolved, message)
}

// AlreadyAnalyzed indicates a cause analysis already exists for a drift event
func AlreadyAnalyzed(message string) *AppError {
	return New(ErrCodeAlreadyAnalyzed, message)
}

// AlreadyImplemented indicates an implement action on a recommendation already implemented
func AlreadyImplemented(message string) *AppError {
	return New(ErrCodeAlreadyImplemented, message)
}

// InvalidState indicates an operation invoked in a state that does not permit it
func InvalidState(message string) *AppError {
	return New(ErrCodeInvalidState, message)
}

// MalformedState indicates a state document that could not be parsed as a key/value tree
func MalformedState(message string, err error) *AppError {
	return Wrap(err, ErrCodeMalformedState, message)
}

// ValidationError creates a validation error
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message).WithDetails(details)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, message)
}

// ProviderAuthError creates a provider authentication error
func ProviderAuthError(provider string, err error) *AppError {
	return Wrap(err, ErrCodeProviderAuth, fmt.Sprintf("Failed to authenticate with %s", provider))
}

// ProviderAPIError creates a provider API error
func ProviderAPIError(provider string, err error) *AppError {
	return Wrap(err, ErrCodeProviderAPI, fmt.Sprintf("Failed to communicate with %s API", provider))
}
