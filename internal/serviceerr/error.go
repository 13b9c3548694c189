// Package serviceerr carries operation-scoped error codes across service boundaries.
package serviceerr

import (
	"errors"
	"fmt"
)

// Error pairs a stable "<operation>.<reason>" code with its cause.
type Error struct {
	code string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the operation-scoped error code.
func (e *Error) Code() string {
	return e.code
}

// New builds an Error with code "<operation>.<reason>".
func New(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &Error{code: code, err: cause}
}

// CodeOf extracts the code from err, or returns "" when err carries none.
func CodeOf(err error) string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}
