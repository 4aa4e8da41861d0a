package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// fastPolicy returns a policy with near-zero delays for tests.
func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		Delay:      func(int) time.Duration { return time.Millisecond },
		Retryable:  DefaultRetryable,
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", policy.MaxRetries)
	}
	if policy.Delay == nil {
		t.Error("Delay is nil")
	}
	if policy.Retryable == nil {
		t.Error("Retryable is nil")
	}
}

func TestExponentialDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
	}

	for _, tt := range tests {
		if got := ExponentialDelay(tt.attempt); got != tt.want {
			t.Errorf("ExponentialDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPerformWithRetry_SuccessFirstAttempt(t *testing.T) {
	ctx := context.Background()

	callCount := 0
	want := &http.Response{StatusCode: http.StatusOK}
	issue := func() (*http.Response, error) {
		callCount++
		return want, nil
	}

	resp, err := performWithRetry(ctx, fastPolicy(3), issue)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if resp != want {
		t.Error("Expected the response from the first attempt")
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestPerformWithRetry_SuccessAfterRetry(t *testing.T) {
	ctx := context.Background()

	callCount := 0
	want := &http.Response{StatusCode: http.StatusOK}
	issue := func() (*http.Response, error) {
		callCount++
		if callCount < 2 {
			return nil, &Failure{StatusCode: http.StatusInternalServerError}
		}
		return want, nil
	}

	resp, err := performWithRetry(ctx, fastPolicy(3), issue)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if resp != want {
		t.Error("Expected the response from the second attempt")
	}
	if callCount != 2 {
		t.Errorf("Expected 2 calls, got %d", callCount)
	}
}

func TestPerformWithRetry_ExactAttemptBudget(t *testing.T) {
	// A persistently retryable failure must use exactly maxRetries + 1
	// attempts for every budget, including zero.
	for _, maxRetries := range []int{0, 1, 2, 3, 5} {
		callCount := 0
		issue := func() (*http.Response, error) {
			callCount++
			return nil, &Failure{StatusCode: http.StatusServiceUnavailable}
		}

		_, err := performWithRetry(context.Background(), fastPolicy(maxRetries), issue)

		if err == nil {
			t.Errorf("maxRetries=%d: expected error, got nil", maxRetries)
		}
		if callCount != maxRetries+1 {
			t.Errorf("maxRetries=%d: expected %d calls, got %d", maxRetries, maxRetries+1, callCount)
		}
	}
}

func TestPerformWithRetry_LastFailureSurfaced(t *testing.T) {
	ctx := context.Background()

	// Each attempt fails with a distinct body; the caller must see the last one.
	callCount := 0
	bodies := []string{`{"error": "first"}`, `{"error": "second"}`, `{"error": "third"}`}
	issue := func() (*http.Response, error) {
		f := &Failure{StatusCode: http.StatusBadGateway, Body: []byte(bodies[callCount])}
		callCount++
		return nil, f
	}

	_, err := performWithRetry(ctx, fastPolicy(2), issue)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Expected *Failure, got %T", err)
	}
	if f.Message() != "third" {
		t.Errorf("Expected message from last attempt, got %q", f.Message())
	}
}

func TestPerformWithRetry_NonRetryableSingleAttempt(t *testing.T) {
	ctx := context.Background()

	callCount := 0
	want := &Failure{StatusCode: http.StatusNotFound, Body: []byte(`{"error": "Subscription not found"}`)}
	issue := func() (*http.Response, error) {
		callCount++
		return nil, want
	}

	_, err := performWithRetry(ctx, fastPolicy(5), issue)

	if callCount != 1 {
		t.Errorf("Expected 1 call for non-retryable failure, got %d", callCount)
	}

	// The failure must propagate unchanged, not wrapped.
	var f *Failure
	if !errors.As(err, &f) || f != want {
		t.Errorf("Expected the original failure value, got %v", err)
	}
}

func TestPerformWithRetry_ZeroMaxRetries(t *testing.T) {
	ctx := context.Background()

	callCount := 0
	issue := func() (*http.Response, error) {
		callCount++
		return nil, &Failure{StatusCode: http.StatusInternalServerError}
	}

	_, err := performWithRetry(ctx, fastPolicy(0), issue)

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if callCount != 1 {
		t.Errorf("Expected single attempt with MaxRetries=0, got %d", callCount)
	}
}

func TestPerformWithRetry_NegativeDelayImmediate(t *testing.T) {
	ctx := context.Background()

	policy := RetryPolicy{
		MaxRetries: 2,
		Delay:      func(int) time.Duration { return -time.Second },
		Retryable:  DefaultRetryable,
	}

	callCount := 0
	issue := func() (*http.Response, error) {
		callCount++
		return nil, &Failure{StatusCode: http.StatusInternalServerError}
	}

	start := time.Now()
	_, _ = performWithRetry(ctx, policy, issue)

	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Negative delay should retry immediately, took %v", elapsed)
	}
}

func TestPerformWithRetry_AttemptNumbersPassedToDelay(t *testing.T) {
	ctx := context.Background()

	var attempts []int
	policy := RetryPolicy{
		MaxRetries: 3,
		Delay: func(attempt int) time.Duration {
			attempts = append(attempts, attempt)
			return 0
		},
		Retryable: DefaultRetryable,
	}

	issue := func() (*http.Response, error) {
		return nil, &Failure{StatusCode: http.StatusInternalServerError}
	}

	_, _ = performWithRetry(ctx, policy, issue)

	want := []int{1, 2, 3}
	if len(attempts) != len(want) {
		t.Fatalf("Expected %d delay calls, got %d", len(want), len(attempts))
	}
	for i, a := range attempts {
		if a != want[i] {
			t.Errorf("Delay call %d: attempt = %d, want %d", i, a, want[i])
		}
	}
}

func TestPerformWithRetry_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	policy := RetryPolicy{
		MaxRetries: 3,
		Delay:      func(int) time.Duration { return time.Minute },
		Retryable:  DefaultRetryable,
	}

	issue := func() (*http.Response, error) {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return nil, &Failure{StatusCode: http.StatusInternalServerError}
	}

	_, err := performWithRetry(ctx, policy, issue)

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation aborted the wait, got %d", callCount)
	}
}

func TestPerformWithRetry_OnRetryObserver(t *testing.T) {
	ctx := context.Background()

	type retryEvent struct {
		attempt int
		status  int
	}
	var events []retryEvent

	policy := RetryPolicy{
		MaxRetries: 2,
		Delay:      func(int) time.Duration { return 0 },
		Retryable:  DefaultRetryable,
		OnRetry: func(attempt int, delay time.Duration, f *Failure) {
			events = append(events, retryEvent{attempt: attempt, status: f.StatusCode})
		},
	}

	issue := func() (*http.Response, error) {
		return nil, &Failure{StatusCode: http.StatusTooManyRequests}
	}

	_, _ = performWithRetry(ctx, policy, issue)

	if len(events) != 2 {
		t.Fatalf("Expected 2 retry events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.attempt != i+1 {
			t.Errorf("Event %d: attempt = %d, want %d", i, ev.attempt, i+1)
		}
		if ev.status != http.StatusTooManyRequests {
			t.Errorf("Event %d: status = %d, want 429", i, ev.status)
		}
	}
}
