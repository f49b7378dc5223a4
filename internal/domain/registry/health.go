package registry

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/selectorkit/internal/domain/index"
	"github.com/GriffinCanCode/selectorkit/internal/domain/inheritance"
	"github.com/GriffinCanCode/selectorkit/internal/domain/watcher"
)

// HealthStatus summarizes registry health.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Health is the registry health report.
type Health struct {
	Status         HealthStatus `json:"status"`
	Reasons        []string     `json:"reasons,omitempty"`
	Configurations int          `json:"configurations"`
	LoadErrors     int          `json:"load_errors"`
	Watching       bool         `json:"watching"`
	CheckedAt      time.Time    `json:"checked_at"`
}

// Stats reports registry state.
type Stats struct {
	Roots          []string          `json:"roots"`
	Configurations int               `json:"configurations"`
	Markers        int               `json:"markers"`
	Warnings       int               `json:"warnings"`
	LoadErrors     int               `json:"load_errors"`
	KnownGood      int               `json:"known_good"`
	Subscribers    int               `json:"subscribers"`
	Index          index.Stats       `json:"index"`
	Chains         inheritance.Stats `json:"chains"`
	Watcher        *watcher.Stats    `json:"watcher,omitempty"`
	LastLoad       time.Time         `json:"last_load"`
	LoadDuration   time.Duration     `json:"load_duration"`
}

// Stats returns a snapshot of registry state.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	st := Stats{
		Roots:          r.Roots(),
		Configurations: len(r.configs),
		LoadErrors:     len(r.loadErrors),
		Index:          r.index.Stats(),
		Chains:         r.chains.Stats(),
		LastLoad:       r.lastLoad,
		LoadDuration:   r.loadTime,
	}
	for _, cfg := range r.configs {
		if cfg.IsMarker {
			st.Markers++
		}
		st.Warnings += len(cfg.Warnings)
	}
	r.mu.RUnlock()

	st.KnownGood = r.rollback.Len()
	st.Subscribers = r.notifier.Len()

	r.lifeMu.Lock()
	if r.watcher != nil {
		ws := r.watcher.Stats()
		st.Watcher = &ws
	}
	r.lifeMu.Unlock()
	return st
}

// Health reports whether the registry can serve resolutions.
//
// Unhealthy: nothing loaded, or loaded without a single accepted file.
// Degraded: some files fail to load, template references are broken,
// duplicate definitions shadow each other, or hot reload is configured but
// the watcher is not running.
func (r *Registry) Health() Health {
	r.mu.RLock()
	h := Health{
		Configurations: len(r.configs),
		LoadErrors:     len(r.loadErrors),
		CheckedAt:      time.Now(),
	}
	loaded := r.loaded
	duplicates := len(r.index.DuplicateWarnings())
	r.mu.RUnlock()

	r.lifeMu.Lock()
	h.Watching = r.watcher != nil && r.watcher.State() == watcher.StateWatching
	r.lifeMu.Unlock()

	switch {
	case !loaded:
		h.Reasons = append(h.Reasons, "configurations not loaded")
	case h.Configurations == 0:
		h.Reasons = append(h.Reasons, "no configuration accepted")
	}
	if len(h.Reasons) > 0 {
		h.Status = HealthUnhealthy
		return h
	}

	if h.LoadErrors > 0 {
		h.Reasons = append(h.Reasons, fmt.Sprintf("%d file(s) failed to load", h.LoadErrors))
	}
	if deps := r.CheckDependencies(); len(deps) > 0 {
		h.Reasons = append(h.Reasons, fmt.Sprintf("%d unresolved template reference(s)", len(deps)))
	}
	if duplicates > 0 {
		h.Reasons = append(h.Reasons, fmt.Sprintf("%d duplicate selector definition(s)", duplicates))
	}
	if r.opts.HotReload && !h.Watching {
		h.Reasons = append(h.Reasons, "hot reload configured but watcher not running")
	}

	h.Status = HealthHealthy
	if len(h.Reasons) > 0 {
		h.Status = HealthDegraded
	}
	return h
}
