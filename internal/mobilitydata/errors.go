package mobilitydata

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingAPIKey is returned by NewClientFromEnv when no credential is
// configured. The key is required; there is no anonymous access.
var ErrMissingAPIKey = errors.New("mobilitydata: " + EnvAPIKey + " environment variable is required")

// ErrNotFound matches RequestErrors for records that do not exist.
var ErrNotFound = errors.New("not found")

// RequestError reports a non-success HTTP response from the registry.
type RequestError struct {
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("mobilitydata: request to %s failed: %s", e.Endpoint, e.Status)
}

// Unwrap lets callers use errors.Is(err, ErrNotFound) for missing records.
func (e *RequestError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// AuthError reports a failed access-token exchange. Without a token no other
// call can proceed, so callers should treat this as fatal for the run.
type AuthError struct {
	Status string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mobilitydata: token exchange failed: %s", e.Status)
}
