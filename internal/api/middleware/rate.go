package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// IdleTimeout evicts per-client limiters not seen for this long.
	// Zero keeps them forever.
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig returns production-ready rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		IdleTimeout:       10 * time.Minute,
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter hands out one limiter per client key.
type clientLimiter struct {
	cfg       RateLimitConfig
	now       func() time.Time
	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	return &clientLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.IdleTimeout > 0 && now.Sub(l.lastSweep) >= l.cfg.IdleTimeout {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) >= l.cfg.IdleTimeout {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (l *clientLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RateLimit creates a per-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiters := newClientLimiter(cfg)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			reject(c, cfg)
			return
		}
		c.Next()
	}
}

// GlobalRateLimit creates a global rate limiting middleware.
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			reject(c, cfg)
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, cfg RateLimitConfig) {
	if cfg.RequestsPerSecond > 0 {
		retry := math.Ceil(1 / float64(cfg.RequestsPerSecond))
		c.Header("Retry-After", strconv.Itoa(int(retry)))
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": "rate limit exceeded",
	})
}
