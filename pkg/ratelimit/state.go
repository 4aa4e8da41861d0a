// Package ratelimit implements error-budget tracking and request gating for
// the subscription renewal API. It monitors the X-Error-Limit-Remain and
// X-Error-Limit-Reset headers so that all SDK instances sharing a Redis
// backend stop issuing requests before the API blocks them.
package ratelimit

import (
	"time"
)

// Redis keys for shared error-budget state.
const (
	RedisKeyErrorsRemaining = "subrenew:error_budget:errors_remaining"
	RedisKeyResetTimestamp  = "subrenew:error_budget:reset_timestamp"
	RedisKeyLastUpdate      = "subrenew:error_budget:last_update"
)

// Thresholds configure when the tracker throttles or blocks requests.
type Thresholds struct {
	// Critical blocks all requests when the remaining budget falls below it.
	Critical int

	// Warning throttles requests when the remaining budget falls below it.
	Warning int
}

// DefaultThresholds returns the thresholds used when none are supplied.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: 5,
		Warning:  20,
	}
}

// BudgetState is the current error-budget state of the renewal API, shared
// across all client instances via Redis.
type BudgetState struct {
	// ErrorsRemaining is the number of errors allowed before the API starts
	// rejecting requests. Extracted from the X-Error-Limit-Remain header.
	ErrorsRemaining int `json:"errors_remaining"`

	// ResetAt is when the error budget window resets, calculated from the
	// X-Error-Limit-Reset header (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state is older than maxAge.
func (s *BudgetState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// TimeUntilReset returns the duration until the budget window resets, or 0
// if the reset time has already passed.
func (s *BudgetState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
