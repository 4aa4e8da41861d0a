//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_DefaultStateWhenEmpty(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, DefaultThresholds(), zerolog.Nop())

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}

	if state.ErrorsRemaining != 100 {
		t.Errorf("ErrorsRemaining = %d, want healthy default 100", state.ErrorsRemaining)
	}
}

func TestTracker_Integration_UpdateFromHeaders(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, DefaultThresholds(), zerolog.Nop())
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("X-Error-Limit-Remain", "42")
	headers.Set("X-Error-Limit-Reset", "30")

	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders: %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}

	if state.ErrorsRemaining != 42 {
		t.Errorf("ErrorsRemaining = %d, want 42", state.ErrorsRemaining)
	}
	if until := state.TimeUntilReset(); until <= 0 || until > 31*time.Second {
		t.Errorf("TimeUntilReset = %v, want (0, 31s]", until)
	}
}

func TestTracker_Integration_SharedAcrossTrackers(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()

	writer := NewTracker(redisClient, DefaultThresholds(), zerolog.Nop())
	reader := NewTracker(redisClient, DefaultThresholds(), zerolog.Nop())

	headers := http.Header{}
	headers.Set("X-Error-Limit-Remain", "3")
	headers.Set("X-Error-Limit-Reset", "60")

	if err := writer.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders: %v", err)
	}

	// A second tracker on the same Redis must observe the critical budget
	// and block.
	allowed, err := reader.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest: %v", err)
	}
	if allowed {
		t.Error("Expected request to be blocked below the critical threshold")
	}
}

func TestTracker_Integration_MissingHeadersIgnored(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, DefaultThresholds(), zerolog.Nop())

	if err := tracker.UpdateFromHeaders(context.Background(), http.Header{}); err != nil {
		t.Errorf("Expected missing headers to be ignored, got %v", err)
	}
}
