package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig()))
	router.GET("/selectors", okHandler)

	tests := []struct {
		name           string
		method         string
		origin         string
		wantStatus     int
		wantCORSHeader bool
	}{
		{
			name:           "simple GET request with origin",
			method:         "GET",
			origin:         "http://localhost:3000",
			wantStatus:     http.StatusOK,
			wantCORSHeader: true,
		},
		{
			name:           "preflight OPTIONS request",
			method:         "OPTIONS",
			origin:         "http://localhost:3000",
			wantStatus:     http.StatusNoContent,
			wantCORSHeader: true,
		},
		{
			name:           "no origin header",
			method:         "GET",
			wantStatus:     http.StatusOK,
			wantCORSHeader: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/selectors", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == "OPTIONS" {
				req.Header.Set("Access-Control-Request-Method", "GET")
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORSHeader {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(CORSFor([]string{"https://qa.example.com"})))
	router.GET("/selectors", okHandler)

	req := httptest.NewRequest("GET", "/selectors", nil)
	req.Header.Set("Origin", "https://qa.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://qa.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/selectors", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSFor(t *testing.T) {
	assert.Equal(t, DefaultCORSConfig(), CORSFor(nil))
	assert.Equal(t, []string{"https://a"}, CORSFor([]string{"https://a"}).AllowOrigins)
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.GET("/test", okHandler)

	// First 2 requests should succeed (burst capacity)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimitDifferentClients(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))
	router.GET("/test", okHandler)

	send := func(addr string) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("192.168.1.1:1234"))
	assert.Equal(t, http.StatusOK, send("192.168.1.2:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1:1234"))
}

func TestClientLimiterEvictsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newClientLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTimeout: time.Minute})
	l.now = func() time.Time { return now }

	l.get("a")
	l.get("b")
	assert.Equal(t, 2, l.len())

	now = now.Add(30 * time.Second)
	l.get("b")
	assert.Equal(t, 2, l.len())

	now = now.Add(45 * time.Second)
	l.get("c")
	// a idle for 75s, b for 45s
	assert.Equal(t, 2, l.len())

	first := l.get("c")
	assert.Same(t, first, l.get("c"))
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.GET("/test", okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1" + string(rune('0'+i)) + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.3:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Contains(t, cfg.AllowOrigins, "*")
	assert.Contains(t, cfg.AllowMethods, "GET")
	assert.Contains(t, cfg.AllowMethods, "POST")
	assert.NotContains(t, cfg.AllowMethods, "DELETE")
	assert.False(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()

	assert.Equal(t, 100, cfg.RequestsPerSecond)
	assert.Equal(t, 200, cfg.Burst)
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout)
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter()
	router.Use(RateLimit(DefaultRateLimitConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
