package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType int

const (
	// ErrorTypeAuthentication indicates a failed handshake; terminal for
	// the connection attempt.
	ErrorTypeAuthentication ErrorType = iota
	// ErrorTypeAuthorization indicates a denied room join; the connection
	// itself is unaffected.
	ErrorTypeAuthorization
	// ErrorTypeRateLimit indicates an event dropped by admission control.
	ErrorTypeRateLimit
	// ErrorTypeValidation indicates a malformed or unknown event.
	ErrorTypeValidation
	// ErrorTypeTransport indicates a transport layer error; triggers
	// disconnect and cleanup.
	ErrorTypeTransport
	// ErrorTypeBus indicates the cluster bus is unavailable.
	ErrorTypeBus
	// ErrorTypePersistence indicates a durable-write failure; logged only.
	ErrorTypePersistence
	// ErrorTypeTimeout indicates a timeout error.
	ErrorTypeTimeout
	// ErrorTypeInternal indicates an internal error.
	ErrorTypeInternal
)

// Error represents a structured error with metadata
type Error struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Message, e.Details, e.Cause)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// New creates a new error
func New(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to an error
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal when err is
// not a structured *Error.
func TypeOf(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return ErrorTypeInternal
}

// CodeOf returns the reason code of err, or "INTERNAL" when err is not a
// structured *Error. The code is what the originating connection sees.
func CodeOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return "INTERNAL"
}

// String returns the wire name of an error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeAuthorization:
		return "authorization"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeBus:
		return "cluster_bus"
	case ErrorTypePersistence:
		return "persistence"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}
