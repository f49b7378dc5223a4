package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/config"
)

const loginFile = `
metadata:
  version: "1.0.0"
  description: login selectors
selectors:
  submit:
    description: submit button
    context: auth.login
    strategies:
      - type: role_based
        parameters:
          role: button
        priority: 1
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "main", "login.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(loginFile), 0o644))

	cfg := config.Default()
	cfg.Selectors.Roots = []string{root}
	cfg.Selectors.HotReload = false
	cfg.RateLimit.Enabled = false
	cfg.Logging.Level = "error"
	cfg.Logging.Development = true
	return cfg
}

func get(t *testing.T, h http.Handler, target string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
	return w.Code, w.Body.String()
}

func TestRegistryOptions(t *testing.T) {
	cfg := config.Default().Selectors
	cfg.Extensions = []string{".yml"}
	opts := RegistryOptions(cfg, nil, nil)

	assert.Equal(t, cfg.Roots, opts.Roots)
	assert.Equal(t, []string{"*.yml"}, opts.Layout.Patterns)
	assert.Equal(t, cfg.PollInterval, opts.PollInterval)
	assert.Equal(t, cfg.LoadConcurrency, opts.Concurrency)
	assert.True(t, opts.HotReload)
}

func TestServerRoutes(t *testing.T) {
	srv, err := NewServer(testConfig(t))
	require.NoError(t, err)
	defer srv.Close()

	code, _ := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code, "nothing loaded yet")

	require.NoError(t, srv.Prepare(context.Background()))

	code, body := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"healthy"`)

	code, body = get(t, srv.Handler(), "/selectors/submit?context=auth.login")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"auth.login"`)

	code, body = get(t, srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "selectorkit_configurations_loaded 1")
	assert.Contains(t, body, `selectorkit_http_requests_total`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv, err := NewServer(testConfig(t))
	require.NoError(t, err)
	defer srv.Close()
	require.NoError(t, srv.Prepare(context.Background()))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	client := &http.Client{Timeout: 5 * time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + lis.Addr().String() + "/")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
