package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "selectorkit"

// Metrics holds all Prometheus metrics. Each instance registers into its
// own registry, so several engines can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Operation metrics
	OperationDuration *prometheus.HistogramVec

	// Configuration metrics
	Configurations   prometheus.Gauge
	Selectors        prometheus.Gauge
	Conflicts        prometheus.Gauge
	Duplicates       prometheus.Gauge
	LoadsTotal       *prometheus.CounterVec
	ValidationErrors prometheus.Counter
	ReloadsTotal     *prometheus.CounterVec
	Rollbacks        prometheus.Counter

	// Resolution metrics
	Resolutions          *prometheus.CounterVec
	ResolutionConfidence prometheus.Histogram

	// Watcher metrics
	WatchEvents *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	TotalDuration     float64 `json:"total_duration"` // sum of all request durations
	RequestCount      int64   `json:"request_count"`  // count for averaging
	ActiveConnections int64   `json:"active_connections"`

	FilesLoaded      int64 `json:"files_loaded"`
	LoadFailures     int64 `json:"load_failures"`
	ValidationErrors int64 `json:"validation_errors"`
	ReloadsAccepted  int64 `json:"reloads_accepted"`
	ReloadsRejected  int64 `json:"reloads_rejected"`
	Rollbacks        int64 `json:"rollbacks"`
	Removals         int64 `json:"removals"`
	Resolutions      int64 `json:"resolutions"`
	ResolveMisses    int64 `json:"resolve_misses"`
	WatchEvents      int64 `json:"watch_events"`

	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Reload results.
const (
	ReloadAccepted  = "accepted"
	ReloadRejected  = "rejected"
	ReloadUnchanged = "unchanged"
	ReloadRemoved   = "removed"
)

// Resolution results.
const (
	ResolveExact      = "exact"
	ResolveFallback   = "fallback"
	ResolveNotFound   = "not_found"
	ResolveDependency = "dependency_error"
)

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"operation", "status"},
		),

		// Configuration metrics
		Configurations: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "configurations_loaded",
				Help:      "Number of accepted configuration files",
			},
		),
		Selectors: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_entries",
				Help:      "Number of (context, name) entries in the semantic index",
			},
		),
		Conflicts: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_conflicts",
				Help:      "Number of selector names defined in more than one context",
			},
		),
		Duplicates: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_duplicates",
				Help:      "Number of (context, name) pairs defined by more than one file",
			},
		),
		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loads_total",
				Help:      "Total number of configuration file loads",
			},
			[]string{"result"},
		),
		ValidationErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_errors_total",
				Help:      "Total number of rejected configuration loads",
			},
		),
		ReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of hot reloads by result",
			},
			[]string{"result"},
		),
		Rollbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Total number of reloads that kept the last known-good version",
			},
		),

		// Resolution metrics
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Total number of selector resolutions by result",
			},
			[]string{"result"},
		),
		ResolutionConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_confidence",
				Help:      "Overall confidence of successful resolutions",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),

		// Watcher metrics
		WatchEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_events_total",
				Help:      "Total number of file change events handled",
			},
			[]string{"op"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Engine uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordOperation records the duration of an engine operation
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	m.OperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordLoad records one file load attempt
func (m *Metrics) RecordLoad(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok {
		m.LoadsTotal.WithLabelValues("success").Inc()
		m.snapshot.FilesLoaded++
		return
	}
	m.LoadsTotal.WithLabelValues("failure").Inc()
	m.ValidationErrors.Inc()
	m.snapshot.LoadFailures++
	m.snapshot.ValidationErrors++
}

// RecordReload records a hot reload outcome
func (m *Metrics) RecordReload(result string) {
	m.ReloadsTotal.WithLabelValues(result).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	switch result {
	case ReloadAccepted:
		m.snapshot.ReloadsAccepted++
	case ReloadRejected:
		m.snapshot.ReloadsRejected++
	case ReloadRemoved:
		m.snapshot.Removals++
	}
}

// IncRollbacks counts a reload that fell back to the last known-good version
func (m *Metrics) IncRollbacks() {
	m.Rollbacks.Inc()
	m.mu.Lock()
	m.snapshot.Rollbacks++
	m.mu.Unlock()
}

// RecordResolution records a resolution outcome
func (m *Metrics) RecordResolution(result string, confidence float64, duration time.Duration) {
	m.Resolutions.WithLabelValues(result).Inc()
	status := "success"
	if result == ResolveNotFound || result == ResolveDependency {
		status = "error"
	} else {
		m.ResolutionConfidence.Observe(confidence)
	}
	m.RecordOperation("resolve", status, duration)

	m.mu.Lock()
	m.snapshot.Resolutions++
	if status == "error" {
		m.snapshot.ResolveMisses++
	}
	m.mu.Unlock()
}

// RecordWatchEvent records a handled file change event
func (m *Metrics) RecordWatchEvent(op string) {
	m.WatchEvents.WithLabelValues(op).Inc()
	m.mu.Lock()
	m.snapshot.WatchEvents++
	m.mu.Unlock()
}

// SetIndexState publishes the current configuration and index sizes
func (m *Metrics) SetIndexState(configs, entries, conflicts, duplicates int) {
	m.Configurations.Set(float64(configs))
	m.Selectors.Set(float64(entries))
	m.Conflicts.Set(float64(conflicts))
	m.Duplicates.Set(float64(duplicates))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns a copy of the current values
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
