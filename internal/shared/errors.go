package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrLockHeld indicates another worker owns the scope lock.
	ErrLockHeld = errors.New("scope lock held")
)

// Category classifies an error for boundary mapping.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryPeriodPolicy   Category = "period_policy"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryInfrastructure Category = "infrastructure"
)

// CodedError carries a category and a machine-readable reason code across
// service boundaries so the HTTP layer can map it without string matching.
type CodedError struct {
	Category Category
	Code     string
	Message  string
	Details  map[string]any
	cause    error
}

// NewCodedError builds a CodedError.
func NewCodedError(category Category, code, message string) *CodedError {
	return &CodedError{Category: category, Code: code, Message: message}
}

// Error implements error.
func (e *CodedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *CodedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap attaches a cause and returns the error for chaining.
func (e *CodedError) Wrap(err error) *CodedError {
	e.cause = err
	return e
}

// WithDetail attaches a structured detail and returns the error for chaining.
func (e *CodedError) WithDetail(key string, value any) *CodedError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// AsCoded unwraps err into a CodedError when possible.
func AsCoded(err error) (*CodedError, bool) {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}
