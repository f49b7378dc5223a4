// Package main is the entry point for the selector configuration server.
//
// The server loads every selector configuration under the configured
// roots, keeps them current with hot reloading, and answers lookups and
// resolutions over HTTP for the health-check subsystem.
//
// Configuration precedence, lowest first:
//   - Built-in defaults
//   - Environment variables (12-factor)
//   - TOML file given with --config
//   - CLI flags
//
// Usage:
//
//	# Production mode
//	./server --roots ./selectors/shop,./selectors/news --port 8000
//
//	# Development mode (colored logs, debug level)
//	./server --dev --log-level debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
