// Package domain holds the session lifecycle rules: input validation and the
// create, get, update-status and list operations.
//
// The operations are pure. Reads and writes happen in functions supplied by
// the caller, each invoked at most once per call, so the package has no
// dependency on any store or transport.
package domain
