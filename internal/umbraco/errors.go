package umbraco

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/movekind/gateway/internal/models"
)

// ErrNotConfigured is returned when no backend base URL is set.
var ErrNotConfigured = errors.New("umbraco base URL is not configured")

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Body)
}

// TransportError is a failure to reach the backend at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

const maxMessageLen = 200

// Message turns any error from this package (or a validation error from a
// caller) into the single user-facing message string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		he *HTTPError
		te *TransportError
		de *models.DecodeError
	)
	switch {
	case errors.As(err, &he):
		body := strings.TrimSpace(he.Body)
		if body == "" {
			return fmt.Sprintf("HTTP %d", he.Status)
		}
		if len(body) > maxMessageLen {
			body = body[:maxMessageLen] + "…"
		}
		return body
	case errors.As(err, &te):
		return "Could not reach the server. Please try again."
	case errors.As(err, &de):
		return "Unexpected response from server."
	case errors.Is(err, ErrNotConfigured):
		return "Service is not configured."
	}
	return err.Error()
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

// IsUnauthorized reports a 401/403 from the backend.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}
