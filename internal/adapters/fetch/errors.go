package fetch

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the client.
var (
	ErrUpstream         = errors.New("upstream request failed")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

const errInvalidJSONSuffix = "response is not valid JSON"

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUpstream, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// Retryable reports whether the status is worth retrying (429 or 5xx).
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
