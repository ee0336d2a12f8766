package ratelimit

import (
	"os"
	"strconv"
	"time"
)

// EndpointConfig describes the bucket for one API endpoint. Path matching is
// exact first, then longest prefix; see MatchEndpoint.
type EndpointConfig struct {
	Path       string
	Method     string // empty matches any method
	Capacity   float64
	RefillRate float64 // tokens per second
	Unlimited  bool
}

// Config holds the limiter's endpoint table and maintenance settings.
type Config struct {
	Enabled         bool
	Endpoints       []EndpointConfig
	CleanupInterval time.Duration
}

// DefaultEndpoints returns the standard limits for the job API. Submission
// and cancellation mutate browser sessions and get tight buckets; status
// polling is cheap and generous; health checks are never limited.
func DefaultEndpoints() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/health", Unlimited: true},
		{Path: "/jobs", Method: "POST", Capacity: 5, RefillRate: 5.0 / 60},
		{Path: "/jobs/", Method: "POST", Capacity: 10, RefillRate: 10.0 / 60}, // cancel
		{Path: "/jobs", Method: "GET", Capacity: 60, RefillRate: 1},
		{Path: "/jobs/", Method: "GET", Capacity: 120, RefillRate: 2},
	}
}

// LoadConfig reads limiter settings from the environment, falling back to
// defaults. RATE_LIMIT_ENABLED=false disables limiting entirely.
func LoadConfig() Config {
	return Config{
		Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
		Endpoints:       endpointsFromEnv(),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 10*time.Minute),
	}
}

// endpointsFromEnv allows the submit bucket, the most operationally
// sensitive one, to be tuned without a rebuild.
func endpointsFromEnv() []EndpointConfig {
	endpoints := DefaultEndpoints()
	for i := range endpoints {
		if endpoints[i].Path == "/jobs" && endpoints[i].Method == "POST" {
			endpoints[i].Capacity = getEnvFloat("RATE_LIMIT_SUBMIT_CAPACITY", endpoints[i].Capacity)
			endpoints[i].RefillRate = getEnvFloat("RATE_LIMIT_SUBMIT_REFILL", endpoints[i].RefillRate)
		}
	}
	return endpoints
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
