package cosmos

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/cosmongo/internal/docstore"
)

// StatusError reports an operation that failed with a Cosmos-style HTTP
// status code.
type StatusError struct {
	// Code is the HTTP status code (404 for a missing item).
	Code int

	// Message is a human-readable description.
	Message string

	// Container and ID identify the item, when known.
	Container string
	ID        string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%d %s: %s (container=%s, id=%s)", e.Code, http.StatusText(e.Code), e.Message, e.Container, e.ID)
	}
	return fmt.Sprintf("%d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
}

func notFound(container, id string) *StatusError {
	return &StatusError{
		Code:      http.StatusNotFound,
		Message:   "item not found",
		Container: container,
		ID:        id,
	}
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// IsConflict reports whether err is a 409 StatusError or wraps
// docstore.ErrConflict.
func IsConflict(err error) bool {
	if errors.Is(err, docstore.ErrConflict) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

// StatusCode returns the status carried by err: the StatusError code,
// 409 for conflicts and 500 for anything else. A nil error is 200.
func StatusCode(err error) int {
	var se *StatusError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, docstore.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
