package errors

import (
	"fmt"
)

// Error codes
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL_ERROR"
)

// AppError is the error type returned at the billing engine boundary
type AppError struct {
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error returns a string representation of the error
func (e AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any AppError with the same code
func (e AppError) Is(target error) bool {
	if target, ok := target.(AppError); ok {
		return target.Code == e.Code
	}
	return false
}

// Unwrap returns the underlying error
func (e AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a single detail to the error
func (e AppError) WithDetail(key string, value interface{}) AppError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// Sentinels for errors.Is comparisons
var (
	ErrValidation = AppError{Code: CodeValidation}
	ErrNotFound   = AppError{Code: CodeNotFound}
	ErrConflict   = AppError{Code: CodeConflict}
	ErrInternal   = AppError{Code: CodeInternal}
)

// NewValidationError creates a new validation error
func NewValidationError(message string) AppError {
	return AppError{Code: CodeValidation, Message: message}
}

// NewValidationErrorf creates a validation error with a formatted message
func NewValidationErrorf(format string, args ...interface{}) AppError {
	return NewValidationError(fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a linked id that could not be resolved
func NewNotFoundError(collection, id string) AppError {
	return AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %q not found", collection, id),
		Details: map[string]interface{}{"collection": collection, "id": id},
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, err error) AppError {
	return AppError{Code: CodeConflict, Message: message, Err: err}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) AppError {
	return AppError{Code: CodeInternal, Message: message, Err: err}
}
