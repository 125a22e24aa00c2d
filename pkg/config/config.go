package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for xrecap.
type Config struct {
	// Upstream API settings
	API APIConfig `yaml:"api" json:"api"`

	// Rate limiting and retry configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Pagination engine settings
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Cache settings
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// HTTP server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds upstream API configuration.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Key     string        `yaml:"key" json:"key"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds the sliding-window throttle and retry configuration.
type RateLimitConfig struct {
	Window             time.Duration `yaml:"window" json:"window"`
	MaxRequests        int           `yaml:"max_requests" json:"max_requests"`
	SmoothingThreshold float64       `yaml:"smoothing_threshold" json:"smoothing_threshold"`
	MaxRetries         int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	RetryMaxDelay      time.Duration `yaml:"retry_max_delay" json:"retry_max_delay"`
	RetryJitterMax     time.Duration `yaml:"retry_jitter_max" json:"retry_jitter_max"`
	RateLimitCooldown  time.Duration `yaml:"rate_limit_cooldown" json:"rate_limit_cooldown"`
}

// FetchConfig holds pagination engine configuration.
type FetchConfig struct {
	PageFloor           int           `yaml:"page_floor" json:"page_floor"`
	PageDivisor         int           `yaml:"page_divisor" json:"page_divisor"`
	PageSlack           int           `yaml:"page_slack" json:"page_slack"`
	MaxPagesCap         int           `yaml:"max_pages_cap" json:"max_pages_cap"`
	PageDelay           time.Duration `yaml:"page_delay" json:"page_delay"`
	EmptyBatchLimit     int           `yaml:"empty_batch_limit" json:"empty_batch_limit"`
	CheckpointInterval  int           `yaml:"checkpoint_interval" json:"checkpoint_interval"`
	CheckpointBurst     int           `yaml:"checkpoint_burst" json:"checkpoint_burst"`
	CursorProbeInterval int           `yaml:"cursor_probe_interval" json:"cursor_probe_interval"`
	RateLimitPause      time.Duration `yaml:"rate_limit_pause" json:"rate_limit_pause"`
}

// CacheConfig holds cache store configuration.
type CacheConfig struct {
	Enabled                  bool          `yaml:"enabled" json:"enabled"`
	RedisAddr                string        `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword            string        `yaml:"redis_password" json:"redis_password"`
	RedisDB                  int           `yaml:"redis_db" json:"redis_db"`
	TTL                      time.Duration `yaml:"ttl" json:"ttl"`
	LargeCollectionThreshold int           `yaml:"large_collection_threshold" json:"large_collection_threshold"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://api.socialdata.tools",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window:             900 * time.Second,
			MaxRequests:        280,
			SmoothingThreshold: 0.8,
			MaxRetries:         3,
			RetryBaseDelay:     time.Second,
			RetryMaxDelay:      15 * time.Second,
			RetryJitterMax:     time.Second,
			RateLimitCooldown:  5 * time.Second,
		},
		Fetch: FetchConfig{
			PageFloor:           200,
			PageDivisor:         15,
			PageSlack:           50,
			MaxPagesCap:         1000,
			PageDelay:           300 * time.Millisecond,
			EmptyBatchLimit:     3,
			CheckpointInterval:  5,
			CheckpointBurst:     50,
			CursorProbeInterval: 3,
			RateLimitPause:      15 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:                  true,
			RedisAddr:                "localhost:6379",
			TTL:                      8 * time.Hour,
			LargeCollectionThreshold: 1000,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if key := os.Getenv("XRECAP_API_KEY"); key != "" {
		c.API.Key = key
	}
	if baseURL := os.Getenv("XRECAP_API_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if addr := os.Getenv("XRECAP_REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if pass := os.Getenv("XRECAP_REDIS_PASSWORD"); pass != "" {
		c.Cache.RedisPassword = pass
	}
	if enabled := os.Getenv("XRECAP_CACHE_ENABLED"); enabled != "" {
		c.Cache.Enabled = strings.ToLower(enabled) == "true"
	}
	if addr := os.Getenv("XRECAP_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if maxReq := os.Getenv("XRECAP_MAX_REQUESTS"); maxReq != "" {
		if val, err := strconv.Atoi(maxReq); err == nil && val > 0 {
			c.RateLimit.MaxRequests = val
		}
	}
	if pagesCap := os.Getenv("XRECAP_MAX_PAGES_CAP"); pagesCap != "" {
		if val, err := strconv.Atoi(pagesCap); err == nil && val > 0 {
			c.Fetch.MaxPagesCap = val
		}
	}
	if logLevel := os.Getenv("XRECAP_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path means
// "search the default locations"; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".xrecap.yaml",
		".xrecap.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "xrecap", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "xrecap", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".xrecap.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("max requests must be positive"))
	}
	if c.RateLimit.SmoothingThreshold < 0 || c.RateLimit.SmoothingThreshold > 1 {
		errs = append(errs, errors.New("smoothing threshold must be between 0 and 1"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Fetch.PageFloor <= 0 {
		errs = append(errs, errors.New("page floor must be positive"))
	}
	if c.Fetch.PageDivisor <= 0 {
		errs = append(errs, errors.New("page divisor must be positive"))
	}
	if c.Fetch.MaxPagesCap < c.Fetch.PageFloor {
		errs = append(errs, errors.New("max pages cap must be at least the page floor"))
	}
	if c.Fetch.EmptyBatchLimit <= 0 {
		errs = append(errs, errors.New("empty batch limit must be positive"))
	}
	if c.Fetch.CursorProbeInterval <= 0 {
		errs = append(errs, errors.New("cursor probe interval must be positive"))
	}

	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		errs = append(errs, errors.New("redis address is required when cache is enabled"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache TTL must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Environment variables > .env file > Config file > Defaults.
func Load(configPath string) (*Config, error) {
	// Best effort; the .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xrecap.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
