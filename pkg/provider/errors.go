package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrModelNotServed is returned by Load when the backend serves a different model.
var ErrModelNotServed = errors.New("model not served by backend")

// APIError is a non-2xx answer from a model backend.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient reports whether the backend may succeed on a later attempt
// (still loading, overloaded or rate limited).
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsTransient reports whether err carries a transient APIError.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return false
}
