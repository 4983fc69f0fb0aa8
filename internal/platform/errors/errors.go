package errors

import (
	stderrors "errors"
	"time"
)

// MetadataRemaining is the metadata key carrying a remaining wait duration
// for cooldown and lockout rejections, formatted with time.Duration.String.
const MetadataRemaining = "remaining"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context for presentation layers
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Remaining returns the remaining wait duration attached to a cooldown or
// lockout rejection, or zero when none is present.
func (e *Error) Remaining() time.Duration {
	if e == nil || e.Metadata == nil {
		return 0
	}
	d, err := time.ParseDuration(e.Metadata[MetadataRemaining])
	if err != nil {
		return 0
	}
	return d
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata for presentation layers.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// WithRemaining creates a denied-precondition error carrying the remaining
// wait duration in metadata.
func WithRemaining(code Code, message string, remaining time.Duration) *Error {
	return WithMetadata(code, message, map[string]string{
		MetadataRemaining: remaining.String(),
	})
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return stderrors.Is(err, &Error{Code: code})
}

// CodeOf extracts the code from an error, or CodeUnknown when the error is
// not a domain error.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeUnknown
}
