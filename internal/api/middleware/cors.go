package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns CORS configuration for the read-mostly API.
// Only resolution takes a request body.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Accept",
			"Origin",
			"Cache-Control",
			"X-Requested-With",
		},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
}

// CORSFor returns the default configuration restricted to origins.
func CORSFor(origins []string) CORSConfig {
	cfg := DefaultCORSConfig()
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		AllowWebSockets:  true,
		MaxAge:           cfg.MaxAge,
	}
	if slices.Contains(cfg.AllowOrigins, "*") {
		c.AllowOrigins = nil
		c.AllowAllOrigins = true
	}
	return cors.New(c)
}
