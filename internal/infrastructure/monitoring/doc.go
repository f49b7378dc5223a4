/*
Package monitoring provides metrics collection for the selector engine.

# Overview

Metrics are Prometheus collectors registered into a registry owned by each
Metrics instance. A JSON-friendly snapshot of the headline counters is kept
alongside for the stats endpoint.

# Features

- HTTP request metrics (latency, throughput)
- Load, validation error, reload and rollback counters
- Resolution outcomes and confidence distribution
- Watcher event counters
- WebSocket connection metrics
- Go runtime and process collectors, uptime

# Usage

	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time operations
	timer := monitoring.NewTimer(metrics, "reload")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
