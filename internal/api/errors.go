package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingToken indicates a success-shaped callback response that did
	// not carry an access token.
	ErrMissingToken = errors.New("callback response missing access token")
)

// Error is a non-2xx response from the backend. Message carries the
// backend's optional {message} field when present.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// ErrorMessage extracts a user-displayable message from an operation error.
func ErrorMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
