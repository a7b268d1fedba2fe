// Package config loads client configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all client configuration
type Config struct {
	API     APIConfig
	Session SessionConfig
	Logger  LoggerConfig
}

// APIConfig holds settings for the banking admin API endpoint
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig holds settings for persisted session state
type SessionConfig struct {
	// File is the path of the key-value file holding the token and the
	// authenticated user between invocations.
	File string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("BANCLI_API_URL", "http://localhost:8080/api"),
			Timeout: getEnvAsDuration("BANCLI_HTTP_TIMEOUT", "15s"),
		},
		Session: SessionConfig{
			File: getEnv("BANCLI_SESSION_FILE", defaultSessionFile()),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL cannot be empty")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("API base URL must start with http:// or https://, got %q", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive, got %s", c.API.Timeout)
	}

	if c.Session.File == "" {
		return fmt.Errorf("session file path cannot be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "text" && c.Logger.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logger.Format)
	}

	return nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "session.json"
	}
	return filepath.Join(home, ".bancli", "session.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to parsing the default if provided value is invalid
		duration, err = time.ParseDuration(defaultValue)
		if err != nil {
			return 0
		}
	}
	return duration
}
