// Package client provides the core subscription renewal API HTTP client with
// bounded retry, error-budget gating, and error handling.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stellarpay/subrenew-client/pkg/ratelimit"
)

// Prometheus metrics for renewal API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subrenew_requests_total",
		Help: "Total renewal API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subrenew_request_duration_seconds",
		Help:    "Renewal API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subrenew_retries_total",
		Help: "Total number of retry attempts by status",
	}, []string{"status"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subrenew_retry_backoff_seconds",
		Help:    "Backoff duration for retries by status",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"status"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subrenew_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by status",
	}, []string{"status"})
)

// Client issues requests against the subscription renewal API.
type Client struct {
	httpClient *http.Client
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the root of the renewal API, e.g. "https://api.stellarpay.io".
	BaseURL string

	// UserAgent identifies the integration.
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Redis client for shared error-budget state. Optional; without it the
	// client does not gate requests on the error budget.
	Redis *redis.Client

	// Retry policy applied to every request issued through the client.
	Retry RetryPolicy

	// Timeout for a single request attempt.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Retry:     DefaultRetryPolicy(),
		Timeout:   30 * time.Second,
	}
}

// New creates a new renewal API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be non-negative (got %d)", cfg.Retry.MaxRetries)
	}

	if cfg.Retry.Delay == nil {
		cfg.Retry.Delay = ExponentialDelay
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = DefaultRetryable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "subrenew-client").Logger()

	var tracker *ratelimit.Tracker
	if cfg.Redis != nil {
		tracker = ratelimit.NewTracker(cfg.Redis, ratelimit.DefaultThresholds(), logger)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tracker: tracker,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Do performs an HTTP request with error-budget gating and bounded retry.
// A response with status >= 400 is surfaced as a *Failure, never as a
// response; the status and body of the last attempt are preserved on it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if c.tracker != nil {
		allowed, err := c.tracker.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Error budget check failed")
			return nil, fmt.Errorf("error budget check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Msg("Request blocked by error budget tracker")
			requestsTotal.WithLabelValues(endpoint, "budget_blocked").Inc()
			return nil, fmt.Errorf("request blocked: error budget critical")
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	// Buffer the body once so every reissue carries identical bytes.
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing renewal API request")

	issue := func() (*http.Response, error) {
		attemptReq := req.Clone(ctx)
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
			attemptReq.ContentLength = int64(len(body))
		}

		resp, err := c.httpClient.Do(attemptReq)
		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return nil, &Failure{Err: err}
		}

		if c.tracker != nil {
			if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update error budget from headers")
			}
		}

		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Msg("Renewal API request error")

			return nil, &Failure{StatusCode: resp.StatusCode, Body: respBody}
		}

		return resp, nil
	}

	policy := c.config.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, f *Failure) {
		status := failureStatus(f)
		retriesTotal.WithLabelValues(status).Inc()
		retryBackoffSeconds.WithLabelValues(status).Observe(delay.Seconds())

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("status", status).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")
	}

	resp, err := performWithRetry(ctx, policy, issue)
	if err != nil {
		if errors.Is(err, ErrContextCancelled) {
			return nil, err
		}
		if f := asFailure(err); policy.MaxRetries > 0 && policy.Retryable(f) {
			retryExhaustedTotal.WithLabelValues(failureStatus(f)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("max_retries", policy.MaxRetries).
				Msg("Retry attempts exhausted")
		}
		return nil, err
	}

	return resp, nil
}

// failureStatus renders a failure's status for metric labels.
func failureStatus(f *Failure) string {
	if f.StatusCode == 0 {
		return "network_error"
	}
	return fmt.Sprintf("%d", f.StatusCode)
}

// Get performs a GET request against an API endpoint path.
func (c *Client) Get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Post performs a POST request with a JSON body against an API endpoint path.
func (c *Client) Post(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.Do(req)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
