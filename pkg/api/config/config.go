// Package config loads API service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting for the API service.
type Config struct {
	ListenAddr  string
	CORSOrigins []string

	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Hard per-query limits, enforced warehouse-side.
	MaxBytesRead int64
	QueryTimeout time.Duration

	InnerAttempts   int
	OuterAttempts   int
	AcceptThreshold float64

	SchemaCacheTTL time.Duration

	AnthropicModel string
	MaxTokens      int64

	// DatabaseURL enables the Postgres session store; empty falls back to
	// the in-memory store.
	DatabaseURL string

	Verbose bool
}

// Load reads configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		CORSOrigins: []string{getenv("CORS_ORIGIN", "http://localhost:5173")},

		ClickHouseAddr:     getenv("CLICKHOUSE_ADDR_HTTP", "localhost:8123"),
		ClickHouseDatabase: getenv("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUsername: os.Getenv("CLICKHOUSE_USERNAME"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),

		MaxBytesRead: getenvInt64("MAX_BYTES_READ", 500_000_000),
		QueryTimeout: getenvDuration("QUERY_TIMEOUT", 30*time.Second),

		InnerAttempts:   getenvInt("INNER_ATTEMPTS", 3),
		OuterAttempts:   getenvInt("OUTER_ATTEMPTS", 3),
		AcceptThreshold: getenvFloat("ACCEPT_THRESHOLD", 7.0),

		SchemaCacheTTL: getenvDuration("SCHEMA_CACHE_TTL", 5*time.Minute),

		AnthropicModel: getenv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		MaxTokens:      getenvInt64("ANTHROPIC_MAX_TOKENS", 4096),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		Verbose: getenvBool("VERBOSE", false),
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if cfg.MaxBytesRead <= 0 {
		return nil, fmt.Errorf("MAX_BYTES_READ must be positive")
	}
	if cfg.QueryTimeout <= 0 {
		return nil, fmt.Errorf("QUERY_TIMEOUT must be positive")
	}
	if cfg.InnerAttempts < 1 || cfg.OuterAttempts < 1 {
		return nil, fmt.Errorf("attempt ceilings must be at least 1")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
