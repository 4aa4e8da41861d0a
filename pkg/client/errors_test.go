package client

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestFailure_Message(t *testing.T) {
	tests := []struct {
		name    string
		failure *Failure
		want    string
	}{
		{
			name:    "error field from response body",
			failure: &Failure{StatusCode: 409, Body: []byte(`{"error": "Protocol is paused"}`)},
			want:    "Protocol is paused",
		},
		{
			name:    "body without error field falls back to underlying error",
			failure: &Failure{StatusCode: 500, Body: []byte(`{"detail": "oops"}`), Err: errors.New("server exploded")},
			want:    "server exploded",
		},
		{
			name:    "malformed body falls back to underlying error",
			failure: &Failure{StatusCode: 500, Body: []byte(`not json`), Err: errors.New("bad gateway")},
			want:    "bad gateway",
		},
		{
			name:    "transport error without response",
			failure: &Failure{Err: errors.New("connection refused")},
			want:    "connection refused",
		},
		{
			name:    "nothing known",
			failure: &Failure{StatusCode: 500},
			want:    "Unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.failure.Message(); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{StatusCode: 404, Body: []byte(`{"error": "Subscription not found"}`)}
	msg := f.Error()

	if !strings.Contains(msg, "404") {
		t.Errorf("Error() = %q, expected status code", msg)
	}
	if !strings.Contains(msg, "Subscription not found") {
		t.Errorf("Error() = %q, expected message", msg)
	}

	transport := &Failure{Err: errors.New("dial tcp: timeout")}
	if !strings.Contains(transport.Error(), "dial tcp: timeout") {
		t.Errorf("Error() = %q, expected transport error", transport.Error())
	}
}

func TestFailure_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	f := &Failure{Err: inner}

	if !errors.Is(f, inner) {
		t.Error("Expected errors.Is to find the wrapped error")
	}
}

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		name    string
		failure *Failure
		want    bool
	}{
		{"no response", &Failure{Err: errors.New("timeout")}, true},
		{"429 rate limited", &Failure{StatusCode: http.StatusTooManyRequests}, true},
		{"500 server error", &Failure{StatusCode: 500}, true},
		{"503 unavailable", &Failure{StatusCode: 503}, true},
		{"599 upper bound", &Failure{StatusCode: 599}, true},
		{"400 bad request", &Failure{StatusCode: 400}, false},
		{"404 not found", &Failure{StatusCode: 404}, false},
		{"409 conflict", &Failure{StatusCode: 409}, false},
		{"304 not modified", &Failure{StatusCode: 304}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryable(tt.failure); got != tt.want {
				t.Errorf("DefaultRetryable(%d) = %v, want %v", tt.failure.StatusCode, got, tt.want)
			}
		})
	}
}

func TestAsFailure(t *testing.T) {
	f := &Failure{StatusCode: 500}
	if asFailure(f) != f {
		t.Error("Expected the same *Failure back")
	}

	plain := errors.New("plain")
	wrapped := asFailure(plain)
	if wrapped.StatusCode != 0 || wrapped.Err != plain {
		t.Errorf("Expected plain error wrapped as transport failure, got %+v", wrapped)
	}
}
