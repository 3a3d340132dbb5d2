package errors

import (
	"errors"
	"fmt"
)

// SearchError is the structured error type for the search engine.
// It provides context for error handling, logging, and degradation decisions.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_201_INDEX_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Index, Sync, Cache, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SearchError.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SearchError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SearchError from an existing error.
// The error's message becomes the SearchError message.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// IndexUnavailable creates an error for a type index that cannot be queried.
// The orchestrator treats these as degradable: the type contributes zero
// candidates and the query continues.
func IndexUnavailable(message string, cause error) *SearchError {
	return New(ErrCodeIndexUnavailable, message, cause)
}

// SyncFailure creates an error for a failed index replacement or delete.
// These propagate to the notify_change caller so the primary mutation
// rolls back.
func SyncFailure(message string, cause error) *SearchError {
	return New(ErrCodeSyncFailure, message, cause)
}

// CacheUnavailable creates an error for a shared cache tier failure.
func CacheUnavailable(message string, cause error) *SearchError {
	return New(ErrCodeCacheUnavailable, message, cause)
}

// MalformedQuery creates an error for a query that cannot be tokenized.
func MalformedQuery(message string, cause error) *SearchError {
	return New(ErrCodeMalformedQuery, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SearchError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a SearchError with the Retryable flag set.
func IsRetryable(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CategoryOf returns the category of an error, or CategoryInternal for
// plain errors.
func CategoryOf(err error) Category {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Category
	}
	return CategoryInternal
}

// CodeOf returns the error code, or ErrCodeInternal for plain errors.
func CodeOf(err error) string {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}
