// Package errors provides categorized errors for the crawl and fuzz pipeline.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Validation represents bad caller input (seed URL, limits, method, parameter list).
	Validation
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents timeout errors.
	Timeout
	// Status represents a response whose status code the caller rejects.
	Status
	// Parse represents parsing errors (URL, HTML).
	Parse
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Validation:
		return "validation"
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Status:
		return "status"
	case Parse:
		return "parse"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTransport reports whether errors of this type come from talking to the target.
// Transport errors are recovered locally: the branch or probe is skipped.
func (t ErrorType) IsTransport() bool {
	switch t {
	case Network, Timeout, Status:
		return true
	default:
		return false
	}
}

// Error represents a categorized error.
type Error struct {
	Type       ErrorType
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	target := ""
	if e.URL != "" {
		target = " on " + e.URL
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s%s: %s (caused by: %v)",
			e.Type.String(), e.Operation, target, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s%s: %s",
		e.Type.String(), e.Operation, target, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a new Error.
func New(errType ErrorType, url, operation, message string, cause error) *Error {
	return &Error{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewValidationError creates an input validation error for the named field.
func NewValidationError(field, message string) *Error {
	return New(Validation, "", "validate "+field, message, nil)
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *Error {
	return New(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *Error {
	return New(Timeout, url, operation, "request timed out", cause)
}

// NewStatusError creates an error for an unexpected HTTP status.
func NewStatusError(url string, statusCode int) *Error {
	err := New(Status, url, "fetch", fmt.Sprintf("unexpected status %d", statusCode), nil)
	err.StatusCode = statusCode
	return err
}

// NewParseError creates a parse error.
func NewParseError(url, operation string, cause error) *Error {
	return New(Parse, url, operation, "parsing failed", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *Error {
	return New(Cancelled, url, operation, "operation cancelled", context.Canceled)
}

// Categorize determines the error type from a generic error.
func Categorize(err error, url string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, "request")
	}

	if isTimeout(err) {
		return NewTimeoutError(url, "request", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(url, "request", err)
	}

	return New(Unknown, url, "request", err.Error(), err)
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp")
}

// IsValidation checks if an error is an input validation error.
func IsValidation(err error) bool {
	return GetErrorType(err) == Validation
}

// IsTransport checks if an error came from a fetch that can be skipped.
func IsTransport(err error) bool {
	return GetErrorType(err).IsTransport()
}

// GetStatusCode extracts the status code from an error.
func GetStatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return Unknown
}
