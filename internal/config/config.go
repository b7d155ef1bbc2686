// Package config resolves client configuration from flags and environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the settings shared by the session and realtime layers.
type Config struct {
	BaseURL        string
	DBPath         string
	LogLevel       string
	Timeout        time.Duration
	ReconnectDelay time.Duration
}

const defaultBaseURL = "http://localhost:8001"
const defaultTimeout = 30 * time.Second
const defaultReconnectDelay = 3 * time.Second

// FromEnv returns a Config seeded from DOCAGENT_API_URL, DOCAGENT_DB_PATH,
// and DOCAGENT_LOG_LEVEL, falling back to the local-development defaults.
func FromEnv() Config {
	return Config{
		BaseURL:        envOrDefault("DOCAGENT_API_URL", defaultBaseURL),
		DBPath:         envOrDefault("DOCAGENT_DB_PATH", DefaultDBPath()),
		LogLevel:       envOrDefault("DOCAGENT_LOG_LEVEL", "info"),
		Timeout:        defaultTimeout,
		ReconnectDelay: defaultReconnectDelay,
	}
}

// RegisterFlags binds the shared settings to a command's flag set.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.BaseURL, "server", c.BaseURL, "API base URL (e.g. https://docagent.example.com)")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "Local credential database path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug|info|warn|error")
}

// Finalize validates and normalizes the configuration after flag parsing.
func (c *Config) Finalize() error {
	normalized, err := normalizeBaseURL(c.BaseURL)
	if err != nil {
		return err
	}
	c.BaseURL = normalized
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = DefaultDBPath()
	}
	return nil
}

// DefaultDBPath returns the per-user location of the credential database.
func DefaultDBPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "docagent", "docagent.db")
	}
	return filepath.Join(os.TempDir(), ".docagent", "docagent.db")
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("missing API base URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("API base URL must use http or https")
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("API base URL must include host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
