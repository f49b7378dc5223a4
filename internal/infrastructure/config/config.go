package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Selectors SelectorConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8000"`
	Host        string   `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// SelectorConfig holds configuration engine settings.
type SelectorConfig struct {
	Roots           []string      `envconfig:"SELECTOR_ROOTS" default:"./selectors"`
	Strict          bool          `envconfig:"SELECTOR_STRICT" default:"false"`
	HotReload       bool          `envconfig:"SELECTOR_HOT_RELOAD" default:"true"`
	ForcePolling    bool          `envconfig:"SELECTOR_FORCE_POLLING" default:"false"`
	PollInterval    time.Duration `envconfig:"SELECTOR_POLL_INTERVAL" default:"2s"`
	Debounce        time.Duration `envconfig:"SELECTOR_DEBOUNCE" default:"0s"`
	CacheTTL        time.Duration `envconfig:"SELECTOR_CACHE_TTL" default:"0s"`
	MaxFileSize     int64         `envconfig:"SELECTOR_MAX_FILE_SIZE" default:"1048576"`
	Extensions      []string      `envconfig:"SELECTOR_EXTENSIONS" default:".yaml,.yml"`
	LoadConcurrency int           `envconfig:"SELECTOR_LOAD_CONCURRENCY" default:"8"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Selectors: SelectorConfig{
			Roots:           []string{"./selectors"},
			Strict:          false,
			HotReload:       true,
			ForcePolling:    false,
			PollInterval:    2 * time.Second,
			MaxFileSize:     1 << 20,
			Extensions:      []string{".yaml", ".yml"},
			LoadConcurrency: 8,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate checks values envconfig cannot constrain.
func (c *Config) Validate() error {
	s := c.Selectors
	switch {
	case len(s.Roots) == 0:
		return fmt.Errorf("invalid config: at least one selector root is required")
	case s.PollInterval <= 0:
		return fmt.Errorf("invalid config: poll interval must be positive, got %s", s.PollInterval)
	case s.Debounce < 0:
		return fmt.Errorf("invalid config: debounce must not be negative, got %s", s.Debounce)
	case s.CacheTTL < 0:
		return fmt.Errorf("invalid config: cache ttl must not be negative, got %s", s.CacheTTL)
	case s.MaxFileSize <= 0:
		return fmt.Errorf("invalid config: max file size must be positive, got %d", s.MaxFileSize)
	case s.LoadConcurrency <= 0:
		return fmt.Errorf("invalid config: load concurrency must be positive, got %d", s.LoadConcurrency)
	case c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0:
		return fmt.Errorf("invalid config: rate limit must be positive, got %d", c.RateLimit.RequestsPerSecond)
	}
	for _, ext := range s.Extensions {
		if len(ext) < 2 || ext[0] != '.' {
			return fmt.Errorf("invalid config: extension %q must start with a dot", ext)
		}
	}
	return nil
}
