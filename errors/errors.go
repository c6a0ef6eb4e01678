package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a node store failure
type ErrorType string

const (
	ErrTypeNotFound          ErrorType = "not_found"
	ErrTypeParentNotFound    ErrorType = "parent_not_found"
	ErrTypeSelfParent        ErrorType = "self_parent"
	ErrTypeCircularReference ErrorType = "circular_reference"
	ErrTypeValidation        ErrorType = "validation"
	ErrTypeStorage           ErrorType = "storage"
	ErrTypeInternal          ErrorType = "internal"
)

// AppError represents a typed application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Cause      error     `json:"-"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error should be retried
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// GetHTTPStatusCode returns the appropriate HTTP status code
func (e *AppError) GetHTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrTypeNotFound, ErrTypeParentNotFound:
		return http.StatusNotFound
	case ErrTypeSelfParent, ErrTypeCircularReference, ErrTypeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error codes
const (
	ErrCodeNodeNotFound       = "NODE_NOT_FOUND"
	ErrCodeParentNotFound     = "PARENT_NOT_FOUND"
	ErrCodeSelfParent         = "SELF_PARENT"
	ErrCodeCircularReference  = "CIRCULAR_REFERENCE"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeMissingField       = "MISSING_FIELD"
	ErrCodeInvalidFormat      = "INVALID_FORMAT"
	ErrCodeDatabaseConnection = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQuery      = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseConstraint = "DATABASE_CONSTRAINT_VIOLATION"
	ErrCodeTransactionFailed  = "TRANSACTION_FAILED"
	ErrCodeSerializationError = "SERIALIZATION_ERROR"
	ErrCodeConfigurationError = "CONFIGURATION_ERROR"
	ErrCodeProcessingError    = "PROCESSING_ERROR"
)

// NewNotFoundError creates an error for a missing primary subject node
func NewNotFoundError(code, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeNotFound,
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusNotFound,
	}
}

// NewParentNotFoundError creates an error for a missing parent or clone target
func NewParentNotFoundError(code, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeParentNotFound,
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusNotFound,
	}
}

// NewSelfParentError creates an error for a node named as its own parent
func NewSelfParentError(code, message string) *AppError {
	return &AppError{
		Type:       ErrTypeSelfParent,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewCircularReferenceError creates an error for a reparent that would form a cycle
func NewCircularReferenceError(code, message string) *AppError {
	return &AppError{
		Type:       ErrTypeCircularReference,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeValidation,
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusBadRequest,
	}
}

// NewStorageError creates a backing-store failure. Storage errors are marked
// retryable so callers holding a Retryer may choose to retry them.
func NewStorageError(code, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeStorage,
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
		Retryable:  true,
	}
}

// NewInternalError creates an internal error
func NewInternalError(code, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeInternal,
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// IsAppError checks if an error is an AppError anywhere in its chain
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError extracts the first AppError from the error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == errType
}

// TypeOf returns the AppError type of err, or ErrTypeInternal for foreign errors
func TypeOf(err error) ErrorType {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Type
	}
	return ErrTypeInternal
}

// WrapError wraps an existing error as an AppError. Errors that already carry
// an AppError are returned unchanged so their type survives layering.
func WrapError(err error, errType ErrorType, code, message string) error {
	if err == nil {
		return nil
	}
	if IsAppError(err) {
		return err
	}

	return &AppError{
		Type:      errType,
		Code:      code,
		Message:   message,
		Cause:     err,
		Retryable: isRetryableByDefault(errType),
	}
}

func isRetryableByDefault(errType ErrorType) bool {
	return errType == ErrTypeStorage
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.IsRetryable()
	}
	return false
}
