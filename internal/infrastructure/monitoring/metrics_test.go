package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancesDoNotCollide(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordLoad(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ValidationErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ValidationErrors))
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordLoad(true)
	m.RecordLoad(false)
	m.RecordReload(ReloadAccepted)
	m.RecordReload(ReloadRejected)
	m.IncRollbacks()
	m.RecordResolution(ResolveExact, 0.9, time.Millisecond)
	m.RecordResolution(ResolveNotFound, 0, time.Millisecond)
	m.RecordWatchEvent("WRITE")
	m.IncWSConnections()
	m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	m.RecordHTTPRequest("GET", "/selectors/:name", "404", time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, int64(1), s.FilesLoaded)
	assert.Equal(t, int64(1), s.LoadFailures)
	assert.Equal(t, int64(1), s.ValidationErrors)
	assert.Equal(t, int64(1), s.ReloadsAccepted)
	assert.Equal(t, int64(1), s.ReloadsRejected)
	assert.Equal(t, int64(1), s.Rollbacks)
	assert.Equal(t, int64(2), s.Resolutions)
	assert.Equal(t, int64(1), s.ResolveMisses)
	assert.Equal(t, int64(1), s.WatchEvents)
	assert.Equal(t, int64(1), s.ActiveConnections)
	assert.Equal(t, int64(2), s.TotalRequests)
	assert.Equal(t, int64(1), s.TotalErrors)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues(ResolveNotFound)))
}

func TestHandlerExposesInstanceMetrics(t *testing.T) {
	m := NewMetrics()
	m.SetIndexState(3, 10, 1, 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "selectorkit_configurations_loaded 3"), body)
	assert.Contains(t, body, "selectorkit_uptime_seconds")
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/selectors/:name", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, name := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/selectors/"+name, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/selectors/:name", "200")))
}

func TestTimer(t *testing.T) {
	m := NewMetrics()
	d := NewTimer(m, "reload").Stop("success")
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))

	assert.NotPanics(t, func() { NewTimer(nil, "x").Stop("success") })
}
