package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSourceUnavailable  ErrorType = "SOURCE_UNAVAILABLE"
	ErrTypeSchema             ErrorType = "SCHEMA"
	ErrTypeSchemaIncomplete   ErrorType = "SCHEMA_INCOMPLETE"
	ErrTypeCellCoercion       ErrorType = "CELL_COERCION"
	ErrTypeAggregationSkipped ErrorType = "AGGREGATION_SKIPPED"
	ErrTypeWriteFailure       ErrorType = "WRITE_FAILURE"
	ErrTypeConfig             ErrorType = "CONFIG"
	ErrTypeValidation         ErrorType = "VALIDATION"
	ErrTypeNotFound           ErrorType = "NOT_FOUND"
	ErrTypeConflict           ErrorType = "CONFLICT"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err, or any error it wraps, is an AppError of type t
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Type == t {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// TypeOf returns the type of the outermost AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Helper functions for common error types

// NewSourceUnavailableError reports a raw source that cannot be read
func NewSourceUnavailableError(source string, cause error) *AppError {
	return NewAppError(ErrTypeSourceUnavailable, fmt.Sprintf("source %s unavailable", source), cause).
		WithContext("source", source)
}

// NewSchemaError reports two raw headers normalizing to the same name
func NewSchemaError(name, first, second string) *AppError {
	return NewAppError(ErrTypeSchema,
		fmt.Sprintf("headers %q and %q both normalize to %q", first, second, name), nil).
		WithContext("column", name).
		WithContext("headers", []string{first, second})
}

// NewAggregationSkippedError reports a view that could not be computed
func NewAggregationSkippedError(view string, missing []string) *AppError {
	return NewAppError(ErrTypeAggregationSkipped, fmt.Sprintf("view %s skipped", view), nil).
		WithContext("view", view).
		WithContext("missing", missing)
}

// NewWriteFailureError reports a failed artifact write
func NewWriteFailureError(artifact string, cause error) *AppError {
	return NewAppError(ErrTypeWriteFailure, fmt.Sprintf("write %s failed", artifact), cause).
		WithContext("artifact", artifact)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrTypeConflict, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
