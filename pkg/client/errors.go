package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrContextCancelled is returned when the context is cancelled during a retry wait.
var ErrContextCancelled = errors.New("context cancelled")

// Failure describes a failed request attempt: either no response was received
// (transport-level error, StatusCode == 0) or the API answered with an error
// status. It is the value the retry predicate inspects.
type Failure struct {
	// StatusCode is the HTTP status of the response, or 0 when no response
	// was received at all.
	StatusCode int

	// Body is the raw response body, if a response was received.
	Body []byte

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.StatusCode == 0 {
		return fmt.Sprintf("renewal API request failed: %v", f.Err)
	}
	return fmt.Sprintf("renewal API error (status %d): %s", f.StatusCode, f.Message())
}

// Unwrap implements error unwrapping for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Message returns the human-readable reason for the failure: the "error"
// field of the response body when present, otherwise the underlying error's
// message, otherwise "Unknown error".
func (f *Failure) Message() string {
	if len(f.Body) > 0 {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(f.Body, &payload); err == nil && payload.Error != "" {
			return payload.Error
		}
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return "Unknown error"
}

// DefaultRetryable reports whether a failure warrants a retry: no response at
// all, 429 Too Many Requests, or any 5xx server error. Other 4xx client
// errors are never retried.
func DefaultRetryable(f *Failure) bool {
	if f.StatusCode == 0 {
		return true
	}
	if f.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return f.StatusCode >= 500 && f.StatusCode <= 599
}

// asFailure normalizes an error from a request attempt into a *Failure.
func asFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Err: err}
}
