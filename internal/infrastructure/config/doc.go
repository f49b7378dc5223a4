// Package config provides 12-factor configuration management for the
// selector engine.
//
// Configuration is loaded from environment variables with sensible defaults.
// A TOML file may be layered on top, and CLI flags override both.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Selectors: roots, strict mode, hot reload and watcher tuning, limits
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.LoadFile("selectorkit.toml")
//	cfg := config.LoadOrDefault()
//
// Environment Variables:
//   - PORT, HOST
//   - SELECTOR_ROOTS, SELECTOR_STRICT, SELECTOR_HOT_RELOAD, SELECTOR_FORCE_POLLING
//   - SELECTOR_POLL_INTERVAL, SELECTOR_DEBOUNCE, SELECTOR_CACHE_TTL
//   - SELECTOR_MAX_FILE_SIZE, SELECTOR_EXTENSIONS, SELECTOR_LOAD_CONCURRENCY
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
