package client

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// RetryPolicy controls how failed requests are reissued. A policy is supplied
// once at client construction and shared read-only across all requests; it
// holds no mutable state.
type RetryPolicy struct {
	// MaxRetries is the maximum number of reissued attempts, not counting
	// the original one. Zero disables retrying entirely.
	MaxRetries int

	// Delay maps the 1-based retry attempt number to a wait duration.
	// Non-positive durations collapse to an immediate retry.
	Delay func(attempt int) time.Duration

	// Retryable decides whether a failure warrants another attempt.
	Retryable func(f *Failure) bool

	// OnRetry, when set, is invoked just before each backoff wait. It is the
	// only observation hook the retry loop has; the loop itself does not log
	// or count anything.
	OnRetry func(attempt int, delay time.Duration, f *Failure)
}

// DefaultRetryPolicy returns the policy used when the config leaves it unset:
// 3 retries, exponential backoff, retry on 429/5xx/no-response.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Delay:      ExponentialDelay,
		Retryable:  DefaultRetryable,
	}
}

// ExponentialDelay doubles the wait on every attempt: 2s, 4s, 8s, ...
func ExponentialDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// attempt tracks the retry count for one logical request. It is threaded
// through the retry loop by value so concurrent requests can never observe
// each other's counters.
type attempt struct {
	count int
}

// performWithRetry calls issue and, while the policy allows, reissues it
// after a backoff wait. The first successful response is returned as-is.
// When the attempt budget is exhausted, or the failure is not retryable, the
// error from the most recent attempt is propagated unchanged.
func performWithRetry(ctx context.Context, policy RetryPolicy, issue func() (*http.Response, error)) (*http.Response, error) {
	at := attempt{}
	for {
		resp, err := issue()
		if err == nil {
			return resp, nil
		}

		f := asFailure(err)

		// The cap is checked before incrementing, so exactly MaxRetries
		// reissues happen for a persistently retryable failure.
		if at.count >= policy.MaxRetries || !policy.Retryable(f) {
			return nil, err
		}
		at = attempt{count: at.count + 1}

		delay := policy.Delay(at.count)
		if delay < 0 {
			delay = 0
		}

		if policy.OnRetry != nil {
			policy.OnRetry(at.count, delay, f)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}
}
