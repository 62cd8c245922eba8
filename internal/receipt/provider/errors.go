package provider

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes upstream failure modes.
type ErrorCategory string

const (
	// ErrorTimeout indicates the aggregator took longer than the hard ceiling.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the aggregator returned a payload we cannot parse.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorUpstream indicates a non-2xx response or a rejected consultation.
	ErrorUpstream ErrorCategory = "upstream"

	// ErrorUnavailable indicates a transport-level failure reaching the aggregator.
	ErrorUnavailable ErrorCategory = "unavailable"
)

// Error wraps aggregator failures with a normalized category and the upstream
// message, so callers can report the stage that failed without parsing text.
type Error struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider [%s]: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds a categorized provider error. Timeouts and transport
// failures are marked retryable; a fresh pipeline run may succeed.
func NewError(category ErrorCategory, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorUnavailable,
	}
}

// CategoryOf extracts the category from err, defaulting to ErrorUnavailable.
func CategoryOf(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorUnavailable
}

// IsRetryable reports whether a fresh run is worth attempting.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
