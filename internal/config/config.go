// Package config loads configuration from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all vault configuration.
type Config struct {
	// Database
	DatabasePath string

	// Logging
	LogLevel  string
	LogFormat string

	// Sharing
	ShareBaseURL     string
	ArtifactMaxBytes int64

	// Ingestion
	ThumbnailMaxPx int

	// Metrics (served by the sweep daemon; empty disables the listener)
	MetricsAddr string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:     envOr("VAULT_DB_PATH", defaultDBPath()),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "console"),
		ShareBaseURL:     envOr("SHARE_BASE_URL", "vault://share"),
		ArtifactMaxBytes: envInt64("ARTIFACT_MAX_BYTES", 100*1024),
		ThumbnailMaxPx:   envInt("THUMBNAIL_MAX_PX", 200),
		MetricsAddr:      envOr("METRICS_ADDR", ""),
	}
	return cfg, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cloudvault.db"
	}
	return filepath.Join(home, ".cloudvault", "cloudvault.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
