// Command renewal-proxy exposes the subscription renewal client as a small
// HTTP proxy with Prometheus metrics. Requests under /api/ are forwarded to
// the renewal API through the client, picking up retry and error-budget
// gating on the way.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/stellarpay/subrenew-client/pkg/client"
	"github.com/stellarpay/subrenew-client/pkg/logging"
)

func main() {
	baseURL := getEnv("RENEWAL_API_URL", "https://api.stellarpay.io")
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "renewal-proxy/0.1.0")
	redisURL := getEnv("REDIS_URL", "")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
		Output: os.Stderr,
	})

	cfg := client.DefaultConfig(baseURL, userAgent)

	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: redisURL,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		cfg.Redis = redisClient
		logger.Info().Str("redis_url", redisURL).Msg("Error budget tracking enabled")
	}

	apiClient, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create renewal client")
	}

	http.HandleFunc("/health", healthHandler)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/api/", proxyHandler(apiClient))

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("base_url", baseURL).
		Str("user_agent", userAgent).
		Msg("Starting renewal proxy")

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// proxyHandler forwards GET requests under /api/ to the renewal API.
// Example: /api/v1/subscriptions/42 -> GET {base}/v1/subscriptions/42
func proxyHandler(apiClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "only GET is proxied", http.StatusMethodNotAllowed)
			return
		}

		endpoint := r.URL.Path[len("/api"):]

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		resp, err := apiClient.Get(ctx, endpoint)
		if err != nil {
			http.Error(w, fmt.Sprintf("renewal API request failed: %v", err), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
