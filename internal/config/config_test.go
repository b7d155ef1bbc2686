package config

import (
	"flag"
	"io"
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DOCAGENT_API_URL", "")
	t.Setenv("DOCAGENT_DB_PATH", "")
	t.Setenv("DOCAGENT_LOG_LEVEL", "")

	cfg := FromEnv()
	if cfg.BaseURL != "http://localhost:8001" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.ReconnectDelay != 3*time.Second {
		t.Errorf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
	if cfg.DBPath == "" {
		t.Error("DBPath is empty")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DOCAGENT_API_URL", "https://api.example.com")
	t.Setenv("DOCAGENT_DB_PATH", "/tmp/creds.db")
	t.Setenv("DOCAGENT_LOG_LEVEL", "debug")

	cfg := FromEnv()
	if cfg.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.DBPath != "/tmp/creds.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("DOCAGENT_API_URL", "https://env.example.com")

	cfg := FromEnv()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlags(fs)
	if err := fs.Parse([]string{"--server", "https://flag.example.com", "--log-level", "warn"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.BaseURL != "https://flag.example.com" {
		t.Errorf("BaseURL = %q, want flag value", cfg.BaseURL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "http://localhost:8001", want: "http://localhost:8001"},
		{in: "https://api.example.com/", want: "https://api.example.com"},
		{in: "api.example.com", want: "https://api.example.com"},
		{in: "https://api.example.com/v1/", want: "https://api.example.com/v1"},
		{in: "  https://api.example.com  ", want: "https://api.example.com"},
		{in: "", err: true},
		{in: "ftp://api.example.com", err: true},
		{in: "https://", err: true},
	}
	for _, tc := range cases {
		got, err := normalizeBaseURL(tc.in)
		if tc.err {
			if err == nil {
				t.Errorf("normalizeBaseURL(%q): want error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeBaseURL(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFinalizeFillsDBPath(t *testing.T) {
	t.Parallel()

	cfg := Config{BaseURL: "http://localhost:8001", DBPath: "   "}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		t.Error("DBPath still empty after Finalize")
	}
}
