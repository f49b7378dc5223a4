package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config for TOML files. Absent keys stay nil and leave
// the environment value in place.
type fileConfig struct {
	Server *struct {
		Port        *string  `toml:"port"`
		Host        *string  `toml:"host"`
		CORSOrigins []string `toml:"cors_origins"`
	} `toml:"server"`

	Selectors *struct {
		Roots           []string `toml:"roots"`
		Strict          *bool    `toml:"strict"`
		HotReload       *bool    `toml:"hot_reload"`
		ForcePolling    *bool    `toml:"force_polling"`
		PollInterval    *string  `toml:"poll_interval"`
		Debounce        *string  `toml:"debounce"`
		CacheTTL        *string  `toml:"cache_ttl"`
		MaxFileSize     *int64   `toml:"max_file_size"`
		Extensions      []string `toml:"extensions"`
		LoadConcurrency *int     `toml:"load_concurrency"`
	} `toml:"selectors"`

	Logging *struct {
		Level       *string `toml:"level"`
		Development *bool   `toml:"development"`
	} `toml:"logging"`

	RateLimit *struct {
		RequestsPerSecond *int  `toml:"requests_per_second"`
		Burst             *int  `toml:"burst"`
		Enabled           *bool `toml:"enabled"`
	} `toml:"rate_limit"`
}

// LoadFile loads configuration from the environment, then applies the TOML
// file at path on top. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.ApplyTOML(data); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyTOML overlays the keys present in data.
func (c *Config) ApplyTOML(data []byte) error {
	var fc fileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return err
	}

	if s := fc.Server; s != nil {
		set(&c.Server.Port, s.Port)
		set(&c.Server.Host, s.Host)
		if s.CORSOrigins != nil {
			c.Server.CORSOrigins = s.CORSOrigins
		}
	}
	if s := fc.Selectors; s != nil {
		if s.Roots != nil {
			c.Selectors.Roots = s.Roots
		}
		if s.Extensions != nil {
			c.Selectors.Extensions = s.Extensions
		}
		set(&c.Selectors.Strict, s.Strict)
		set(&c.Selectors.HotReload, s.HotReload)
		set(&c.Selectors.ForcePolling, s.ForcePolling)
		set(&c.Selectors.MaxFileSize, s.MaxFileSize)
		set(&c.Selectors.LoadConcurrency, s.LoadConcurrency)
		for _, d := range []struct {
			dst *time.Duration
			src *string
			key string
		}{
			{&c.Selectors.PollInterval, s.PollInterval, "poll_interval"},
			{&c.Selectors.Debounce, s.Debounce, "debounce"},
			{&c.Selectors.CacheTTL, s.CacheTTL, "cache_ttl"},
		} {
			if d.src == nil {
				continue
			}
			v, err := time.ParseDuration(*d.src)
			if err != nil {
				return fmt.Errorf("selectors.%s: %w", d.key, err)
			}
			*d.dst = v
		}
	}
	if s := fc.Logging; s != nil {
		set(&c.Logging.Level, s.Level)
		set(&c.Logging.Development, s.Development)
	}
	if s := fc.RateLimit; s != nil {
		set(&c.RateLimit.RequestsPerSecond, s.RequestsPerSecond)
		set(&c.RateLimit.Burst, s.Burst)
		set(&c.RateLimit.Enabled, s.Enabled)
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
