// Copyright 2025 UniRep Synchronizer
//
// Package config loads Synchronizer configuration from environment
// variables. Grounded on the teacher's pkg/config/config.go getEnv*
// helper convention; required variables have no defaults so a
// misconfigured deployment fails fast at Validate() rather than
// silently running against the wrong chain.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Synchronizer service.
type Config struct {
	// Chain Configuration
	EthereumURL     string
	EthChainID      int64
	ContractAddress string

	// Tree depths (protocol parameters, spec.md §3-4)
	GSTTreeDepth               uint
	EpochTreeDepth             uint
	USTTreeDepth               uint
	NumEpochKeyNoncePerEpoch   int

	// Groth16 verifying keys, one <circuit>.vk file per circuit
	// (pkg/gnarkverifier.New's layout).
	VerifyingKeysDir string

	// Database Configuration
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Ingestor Configuration
	PollInterval     time.Duration
	BlockLookback    uint64
	StoreRetryLimit  int
	VerifyTimeout    time.Duration
	ChainCallTimeout time.Duration

	// Service Configuration
	LogLevel    string
	MetricsAddr string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		EthereumURL:     getEnv("ETHEREUM_URL", ""),
		EthChainID:      getEnvInt64("ETH_CHAIN_ID", 11155111),
		ContractAddress: getEnv("UNIREP_CONTRACT_ADDRESS", ""),

		GSTTreeDepth:             uint(getEnvInt("GST_TREE_DEPTH", 17)),
		EpochTreeDepth:           uint(getEnvInt("EPOCH_TREE_DEPTH", 64)),
		USTTreeDepth:             uint(getEnvInt("UST_TREE_DEPTH", 10)),
		NumEpochKeyNoncePerEpoch: getEnvInt("NUM_EPOCH_KEY_NONCE_PER_EPOCH", 3),

		VerifyingKeysDir: getEnv("VERIFYING_KEYS_DIR", "./verifying_keys"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		PollInterval:     getEnvDuration("POLL_INTERVAL", time.Second),
		BlockLookback:    uint64(getEnvInt("BLOCK_LOOKBACK", 1000)),
		StoreRetryLimit:  getEnvInt("STORE_RETRY_LIMIT", 5),
		VerifyTimeout:    getEnvDuration("VERIFY_TIMEOUT", 10*time.Second),
		ChainCallTimeout: getEnvDuration("CHAIN_CALL_TIMEOUT", 15*time.Second),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.EthereumURL == "" {
		errs = append(errs, "ETHEREUM_URL is required but not set")
	}
	if c.ContractAddress == "" {
		errs = append(errs, "UNIREP_CONTRACT_ADDRESS is required but not set")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}
	if c.GSTTreeDepth == 0 {
		errs = append(errs, "GST_TREE_DEPTH must be positive")
	}
	if c.EpochTreeDepth == 0 {
		errs = append(errs, "EPOCH_TREE_DEPTH must be positive")
	}
	if c.USTTreeDepth == 0 {
		errs = append(errs, "UST_TREE_DEPTH must be positive")
	}
	if c.NumEpochKeyNoncePerEpoch <= 0 {
		errs = append(errs, "NUM_EPOCH_KEY_NONCE_PER_EPOCH must be positive")
	}
	if c.VerifyingKeysDir == "" {
		errs = append(errs, "VERIFYING_KEYS_DIR is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
