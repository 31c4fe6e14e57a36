package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredentials is returned when the backend has no API credential configured.
var ErrMissingCredentials = errors.New("provider credentials not configured")

// maxErrorBody bounds how much of an upstream error body is kept for logging.
const maxErrorBody = 4096

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

// NewStatusError builds a StatusError, truncating oversized bodies.
func NewStatusError(code int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{StatusCode: code, Body: string(body)}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// AsStatusError unwraps err into a *StatusError if it carries one.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
