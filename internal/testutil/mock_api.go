// Package testutil provides testing utilities for the renewal client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock renewal API endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRenewalAPI is a configurable mock renewal API server for testing.
type MockRenewalAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockRenewalAPI creates a new mock renewal API server.
func NewMockRenewalAPI() *MockRenewalAPI {
	mock := &MockRenewalAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockRenewalAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRenewalAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockRenewalAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockRenewalAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockRenewalAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// FailThenSucceed configures a path to answer with failure until n requests
// have been served, then with success. Useful for retry tests.
func (m *MockRenewalAPI) FailThenSucceed(path string, n int, failure, success MockResponse) {
	var mu sync.Mutex
	served := 0

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		served++
		resp := success
		if served <= n {
			resp = failure
		}
		mu.Unlock()

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockRenewalAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler provides a default healthy response with budget headers.
func (m *MockRenewalAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Error-Limit-Remain", "100")
	w.Header().Set("X-Error-Limit-Reset", "60")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

// NewSubscriptionResponse creates a 200 OK response with a subscription body.
func NewSubscriptionResponse(id uint64, state string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"id": %d, "owner": "GOWNER", "merchant": "GMERCHANT", "amount": 100, "frequency": 86400, "spending_cap": 1000, "state": %q, "failure_count": 0, "last_attempt_ledger": 0}`,
			id, state),
		Headers: healthyHeaders(),
	}
}

// NewRenewOutcomeResponse creates a 200 OK renewal outcome response.
func NewRenewOutcomeResponse(renewed bool, state string, failureCount int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"renewed": %t, "state": %q, "failure_count": %d}`,
			renewed, state, failureCount),
		Headers: healthyHeaders(),
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"X-Error-Limit-Remain": "5",
			"X-Error-Limit-Reset":  "30",
			"Content-Type":         "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"X-Error-Limit-Remain": "95",
			"X-Error-Limit-Reset":  "60",
			"Content-Type":         "application/json; charset=utf-8",
		},
	}
}

// NewPausedResponse creates a 409 response for a paused protocol.
func NewPausedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusConflict,
		Body:       `{"error": "Protocol is paused"}`,
		Headers:    healthyHeaders(),
	}
}

func healthyHeaders() map[string]string {
	return map[string]string{
		"X-Error-Limit-Remain": "100",
		"X-Error-Limit-Reset":  "60",
		"Content-Type":         "application/json; charset=utf-8",
	}
}
