// Package config provides configuration management for the embermine client.
// It handles loading configuration from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// Config holds the global configuration for the embermine client
type Config struct {
	// Service identification
	ServiceName string
	Version     string

	// Solana RPC connection
	RPCEndpoint string
	RPCTimeout  time.Duration

	// Wallet
	KeypairPath string

	// Hash search tuning
	WorkerCount         int
	SearchDeadline      time.Duration
	MaxSearchIterations uint64
	RatePeriod          time.Duration

	// Submission pipeline
	MaxPriorityFee       uint64 // micro-lamports per compute unit
	SubmitRetryCap       int
	SubmitRetryBaseDelay time.Duration
	ConfirmPollInterval  time.Duration
	ConfirmTimeout       time.Duration

	// State synchronization
	MaxStateStaleness time.Duration

	// Metrics (optional, disabled when InfluxURL is empty)
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		// Service defaults
		ServiceName: getEnv("SERVICE_NAME", "embermine"),
		Version:     getEnv("VERSION", "dev"),

		// RPC defaults
		RPCEndpoint: getEnv("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		RPCTimeout:  getEnvDuration("RPC_TIMEOUT", 30*time.Second),

		// Wallet defaults
		KeypairPath: getEnv("KEYPAIR_PATH", defaultKeypairPath()),

		// Search defaults
		WorkerCount:         getEnvInt("WORKER_COUNT", runtime.NumCPU()),
		SearchDeadline:      getEnvDuration("SEARCH_DEADLINE", 55*time.Second),
		MaxSearchIterations: getEnvUint64("MAX_SEARCH_ITERATIONS", 0),
		RatePeriod:          getEnvDuration("RATE_PERIOD", 10*time.Second),

		// Submission defaults
		MaxPriorityFee:       getEnvUint64("MAX_PRIORITY_FEE", 100_000),
		SubmitRetryCap:       getEnvInt("SUBMIT_RETRY_CAP", 4),
		SubmitRetryBaseDelay: getEnvDuration("SUBMIT_RETRY_BASE_DELAY", 800*time.Millisecond),
		ConfirmPollInterval:  getEnvDuration("CONFIRM_POLL_INTERVAL", 2*time.Second),
		ConfirmTimeout:       getEnvDuration("CONFIRM_TIMEOUT", 30*time.Second),

		// State defaults
		MaxStateStaleness: getEnvDuration("MAX_STATE_STALENESS", 90*time.Second),

		// Metrics defaults
		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", "embermine"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "mining"),

		// Logging defaults
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs basic validation of configuration values. Callers that
// mutate a loaded Config, such as flag overrides, should validate again.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("SERVICE_NAME cannot be empty")
	}

	if c.RPCEndpoint == "" {
		return fmt.Errorf("RPC_ENDPOINT cannot be empty")
	}

	if c.RPCTimeout <= 0 {
		return fmt.Errorf("RPC_TIMEOUT must be positive")
	}

	if c.KeypairPath == "" {
		return fmt.Errorf("KEYPAIR_PATH cannot be empty")
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if c.SearchDeadline <= 0 {
		return fmt.Errorf("SEARCH_DEADLINE must be positive")
	}

	if c.RatePeriod <= 0 {
		return fmt.Errorf("RATE_PERIOD must be positive")
	}

	if c.SubmitRetryCap < 1 {
		return fmt.Errorf("SUBMIT_RETRY_CAP must be at least 1")
	}

	if c.SubmitRetryBaseDelay <= 0 {
		return fmt.Errorf("SUBMIT_RETRY_BASE_DELAY must be positive")
	}

	if c.ConfirmPollInterval <= 0 {
		return fmt.Errorf("CONFIRM_POLL_INTERVAL must be positive")
	}

	if c.ConfirmTimeout < c.ConfirmPollInterval {
		return fmt.Errorf("CONFIRM_TIMEOUT must be at least CONFIRM_POLL_INTERVAL")
	}

	if c.MaxStateStaleness <= 0 {
		return fmt.Errorf("MAX_STATE_STALENESS must be positive")
	}

	return nil
}

// defaultKeypairPath returns the standard solana CLI keypair location
func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "id.json"
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
