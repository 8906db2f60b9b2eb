package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Client-facing message
	Metadata map[string]string // Additional context for logs
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

// StatusCode returns the HTTP status for the error code.
func (e *Error) StatusCode() int {
	return e.Code.HTTPStatus()
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata for structured logging.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// BadRequest returns a CodeBadRequest error.
func BadRequest(message string) *Error {
	return New(CodeBadRequest, message)
}

// BadRequestf returns a CodeBadRequest error with a formatted message.
func BadRequestf(format string, args ...any) *Error {
	return New(CodeBadRequest, fmt.Sprintf(format, args...))
}

// Unauthorized returns a CodeUnauthorized error.
func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

// NotFound returns a CodeNotFound error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf returns a CodeNotFound error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// Internal returns a CodeInternal error that keeps cause for logging.
func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code for err. Unclassified errors are CodeInternal.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus returns the HTTP status for err. Unclassified errors map to 500.
func HTTPStatus(err error) int {
	return CodeOf(err).HTTPStatus()
}
