package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for error-budget tracking.
var (
	errorsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "subrenew_errors_remaining",
		Help: "Number of errors remaining in the current renewal API budget window",
	})

	budgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subrenew_budget_blocks_total",
		Help: "Total number of requests blocked due to critical error budget",
	})

	budgetThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subrenew_budget_throttles_total",
		Help: "Total number of requests throttled due to low error budget",
	})
)

// Tracker monitors the renewal API error budget and gates requests.
type Tracker struct {
	redis      *redis.Client
	thresholds Thresholds
	logger     zerolog.Logger
}

// NewTracker creates a new error-budget tracker.
func NewTracker(redisClient *redis.Client, thresholds Thresholds, logger zerolog.Logger) *Tracker {
	if thresholds.Critical <= 0 {
		thresholds = DefaultThresholds()
	}
	return &Tracker{
		redis:      redisClient,
		thresholds: thresholds,
		logger:     logger,
	}
}

// GetState retrieves the current error-budget state from Redis. When no state
// has been recorded yet, a healthy default is returned.
func (t *Tracker) GetState(ctx context.Context) (*BudgetState, error) {
	vals, err := t.redis.MGet(ctx, RedisKeyErrorsRemaining, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get error budget state: %w", err)
	}

	if vals[0] == nil {
		t.logger.Debug().Msg("No error budget state in Redis, assuming healthy")
		return &BudgetState{
			ErrorsRemaining: 100,
			ResetAt:         time.Now().Add(60 * time.Second),
			LastUpdate:      time.Now(),
		}, nil
	}

	remaining, err := parseIntValue(vals[0])
	if err != nil {
		return nil, fmt.Errorf("parse errors remaining: %w", err)
	}

	state := &BudgetState{ErrorsRemaining: int(remaining)}

	if vals[1] != nil {
		resetUnix, err := parseIntValue(vals[1])
		if err != nil {
			return nil, fmt.Errorf("parse reset timestamp: %w", err)
		}
		state.ResetAt = time.Unix(resetUnix, 0)
	}

	if vals[2] != nil {
		lastUpdateUnix, err := parseIntValue(vals[2])
		if err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
		state.LastUpdate = time.Unix(lastUpdateUnix, 0)
	}

	return state, nil
}

// parseIntValue converts a Redis MGET value to an int64.
func parseIntValue(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}

// UpdateFromHeaders parses the renewal API budget headers and updates the
// shared Redis state. Responses without budget headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get("X-Error-Limit-Remain")
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse X-Error-Limit-Remain header: %w", err)
	}

	resetStr := headers.Get("X-Error-Limit-Reset")
	if resetStr == "" {
		return fmt.Errorf("X-Error-Limit-Reset header missing")
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse X-Error-Limit-Reset header: %w", err)
	}

	now := time.Now()
	state := &BudgetState{
		ErrorsRemaining: remain,
		ResetAt:         now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate:      now,
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyErrorsRemaining, remain, 0)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.Unix(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store error budget state in redis: %w", err)
	}

	errorsRemaining.Set(float64(remain))

	switch {
	case remain < t.thresholds.Critical:
		t.logger.Error().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Error budget CRITICAL - requests will be blocked")
	case remain < t.thresholds.Warning:
		t.logger.Warn().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Error budget low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("errors_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Error budget state updated")
	}

	return nil
}

// ShouldAllowRequest checks whether a request may proceed given the current
// error-budget state. Requests below the critical threshold are blocked;
// requests below the warning threshold are delayed by one second.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get error budget state: %w", err)
	}

	if state.ErrorsRemaining < t.thresholds.Critical {
		t.logger.Error().
			Int("errors_remaining", state.ErrorsRemaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Error budget critical - blocking request")

		budgetBlocksTotal.Inc()
		return false, nil
	}

	if state.ErrorsRemaining < t.thresholds.Warning {
		t.logger.Warn().
			Int("errors_remaining", state.ErrorsRemaining).
			Msg("Error budget low - throttling request")

		budgetThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return true, nil
}
