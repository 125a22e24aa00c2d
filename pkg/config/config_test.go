package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.RateLimit.MaxRequests != 280 {
		t.Errorf("Expected default max requests to be 280, got %d", config.RateLimit.MaxRequests)
	}
	if config.RateLimit.Window != 900*time.Second {
		t.Errorf("Expected default window to be 900s, got %v", config.RateLimit.Window)
	}
	if config.API.Timeout != 30*time.Second {
		t.Errorf("Expected default API timeout to be 30s, got %v", config.API.Timeout)
	}
	if config.Fetch.PageFloor != 200 {
		t.Errorf("Expected default page floor to be 200, got %d", config.Fetch.PageFloor)
	}
	if config.Cache.TTL != 8*time.Hour {
		t.Errorf("Expected default cache TTL to be 8h, got %v", config.Cache.TTL)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XRECAP_API_KEY", "test-key")
	t.Setenv("XRECAP_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("XRECAP_MAX_REQUESTS", "100")
	t.Setenv("XRECAP_CACHE_ENABLED", "false")
	t.Setenv("XRECAP_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.API.Key != "test-key" {
		t.Errorf("Expected API key to be test-key, got %s", config.API.Key)
	}
	if config.Cache.RedisAddr != "redis.internal:6379" {
		t.Errorf("Expected redis addr to be redis.internal:6379, got %s", config.Cache.RedisAddr)
	}
	if config.RateLimit.MaxRequests != 100 {
		t.Errorf("Expected max requests to be 100, got %d", config.RateLimit.MaxRequests)
	}
	if config.Cache.Enabled {
		t.Error("Expected cache to be disabled")
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
api:
  key: file-key
rate_limit:
  max_requests: 140
fetch:
  max_pages_cap: 500
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.API.Key != "file-key" {
		t.Errorf("Expected API key to be file-key, got %s", config.API.Key)
	}
	if config.RateLimit.MaxRequests != 140 {
		t.Errorf("Expected max requests to be 140, got %d", config.RateLimit.MaxRequests)
	}
	if config.Fetch.MaxPagesCap != 500 {
		t.Errorf("Expected max pages cap to be 500, got %d", config.Fetch.MaxPagesCap)
	}
	// Untouched values keep their defaults
	if config.Fetch.PageFloor != 200 {
		t.Errorf("Expected page floor to stay 200, got %d", config.Fetch.PageFloor)
	}
}

func TestLoadFromFileMissingIsNotAnError(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(""); err != nil {
		t.Errorf("Expected missing config file to be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base URL", func(c *Config) { c.API.BaseURL = "" }},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero max requests", func(c *Config) { c.RateLimit.MaxRequests = 0 }},
		{"threshold above one", func(c *Config) { c.RateLimit.SmoothingThreshold = 1.5 }},
		{"cap below floor", func(c *Config) { c.Fetch.MaxPagesCap = 10 }},
		{"zero probe interval", func(c *Config) { c.Fetch.CursorProbeInterval = 0 }},
		{"enabled cache without addr", func(c *Config) { c.Cache.RedisAddr = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}
