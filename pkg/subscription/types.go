// Package subscription provides typed access to the subscription renewal API:
// subscription lifecycle, renewal approvals, pause state, and spending caps.
package subscription

// State is the lifecycle state of a subscription.
type State string

const (
	// StateActive means renewals are running normally.
	StateActive State = "active"

	// StateRetrying means the last renewal failed and the service will
	// retry within its failure budget.
	StateRetrying State = "retrying"

	// StateFailed means the renewal failure budget is exhausted; the
	// subscription requires manual intervention.
	StateFailed State = "failed"

	// StateCancelled means the owner cancelled the subscription.
	StateCancelled State = "cancelled"
)

// Subscription is the renewal API's subscription resource.
type Subscription struct {
	ID                uint64 `json:"id"`
	Owner             string `json:"owner"`
	Merchant          string `json:"merchant"`
	Amount            int64  `json:"amount"`
	Frequency         uint64 `json:"frequency"`
	SpendingCap       int64  `json:"spending_cap"`
	State             State  `json:"state"`
	FailureCount      uint32 `json:"failure_count"`
	LastAttemptLedger uint32 `json:"last_attempt_ledger"`
}

// Approval is a renewal approval: a bounded, expiring, single-use permission
// to charge a subscription.
type Approval struct {
	SubID      uint64 `json:"sub_id"`
	ApprovalID uint64 `json:"approval_id"`
	MaxSpend   int64  `json:"max_spend"`
	ExpiresAt  uint32 `json:"expires_at"`
	Used       bool   `json:"used"`
}

// RenewRequest asks the service to execute one renewal cycle for a
// subscription, consuming the named approval.
type RenewRequest struct {
	SubID           uint64 `json:"sub_id"`
	ApprovalID      uint64 `json:"approval_id"`
	Amount          int64  `json:"amount"`
	MaxRetries      uint32 `json:"max_retries"`
	CooldownLedgers uint32 `json:"cooldown_ledgers"`
	CycleID         uint64 `json:"cycle_id"`
}

// RenewOutcome is the service's report for a single renewal attempt.
type RenewOutcome struct {
	Renewed      bool   `json:"renewed"`
	State        State  `json:"state"`
	FailureCount uint32 `json:"failure_count"`
}
