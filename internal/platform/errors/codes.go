// Package errors provides the classified error taxonomy shared by the
// session core and its adapters.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeBadRequest marks malformed or invalid input detected before any I/O.
	CodeBadRequest Code = "BAD_REQUEST"
	// CodeUnauthorized marks a failed authentication check.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeNotFound marks a referenced record that does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInternal marks an unexpected failure.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps a code to the HTTP status surfaced to clients.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
