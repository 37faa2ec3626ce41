// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the sync engine needs at startup.
type Config struct {
	// ServerURL is the base URL of the sync server.
	ServerURL string
	// AuthToken is the bearer token presented on every request.
	AuthToken string
	// DBPath is the path of the local SQLite file holding pending writes
	// and the reference cache.
	DBPath string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// User stamps the updated-by audit field on outgoing mutations.
	User string
	// Year is the calendar year the store prepares on startup.
	Year int
}

// Load reads the configuration from the environment. A .env file in the
// working directory is merged in first when present; missing files are fine.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerURL: os.Getenv("MONEYCAL_SERVER_URL"),
		AuthToken: os.Getenv("MONEYCAL_AUTH_TOKEN"),
		DBPath:    envOr("MONEYCAL_DB_PATH", "moneycal.db"),
		LogLevel:  envOr("MONEYCAL_LOG_LEVEL", "info"),
		User:      envOr("MONEYCAL_USER", os.Getenv("USER")),
	}

	year, err := envIntOr("MONEYCAL_YEAR", 0)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	cfg.Year = year

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("Load: MONEYCAL_SERVER_URL is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
