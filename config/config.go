package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"portscan/scanner"
)

// Config holds the settings of the scan service.
type Config struct {
	// HTTP
	ListenAddr string
	APIKey     string

	// Storage. An empty RedisAddr selects the in-memory task store.
	RedisAddr string

	// Rate limiting (Redis only)
	RateLimit  int64
	RateWindow time.Duration

	// Scanning
	ScanWorkers     int
	ScanConcurrency int
	ScanTimeout     time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		RateLimit:       60,
		RateWindow:      time.Minute,
		ScanWorkers:     5,
		ScanConcurrency: scanner.DefaultConcurrency,
		ScanTimeout:     scanner.DefaultTimeout,
	}
}

// Load reads env files and then the process environment on top of the
// defaults. Variables already set in the environment win over the files.
// With no envFiles, ./.env is loaded if present; named files must exist.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	var err error
	if cfg.RateLimit, err = getenvInt64("RATE_LIMIT", cfg.RateLimit); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = getenvDuration("RATE_WINDOW", cfg.RateWindow); err != nil {
		return nil, err
	}
	if cfg.ScanTimeout, err = getenvDuration("SCAN_TIMEOUT", cfg.ScanTimeout); err != nil {
		return nil, err
	}

	workers, err := getenvInt64("SCAN_WORKERS", int64(cfg.ScanWorkers))
	if err != nil {
		return nil, err
	}
	cfg.ScanWorkers = int(workers)

	concurrency, err := getenvInt64("SCAN_CONCURRENCY", int64(cfg.ScanConcurrency))
	if err != nil {
		return nil, err
	}
	cfg.ScanConcurrency = int(concurrency)

	return cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY must be set")
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("rate limit must be at least 1")
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive")
	}
	if c.ScanWorkers < 1 {
		return fmt.Errorf("scan workers must be at least 1")
	}
	if c.ScanConcurrency < 1 {
		return fmt.Errorf("scan concurrency must be at least 1")
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan timeout must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s is not an integer: %q", key, raw)
	}
	return v, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a duration: %q", key, raw)
	}
	return v, nil
}
