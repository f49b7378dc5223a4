package http

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/domain/registry"
	"github.com/GriffinCanCode/selectorkit/internal/domain/resolver"
	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

// Version is reported by the root endpoint.
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *registry.Registry
	resolver *resolver.Resolver
	metrics  *HandlerMetrics
	logger   *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(reg *registry.Registry, res *resolver.Resolver, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry: reg,
		resolver: res,
		metrics:  NewHandlerMetrics(reg.Metrics()),
		logger:   logger,
	}
}

// Register mounts every endpoint on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/configurations", h.ListConfigurations)
	r.GET("/selectors", h.ListSelectors)
	r.GET("/selectors/:name", h.GetSelector)
	r.POST("/resolve", h.Resolve)
	r.GET("/conflicts", h.Conflicts)
	r.GET("/dependencies", h.Dependencies)
}

// Root identifies the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "selectorkit",
		"version": Version,
	})
}

// Health reports registry health. Unhealthy answers 503 so load balancers
// and probes can act on the status code alone.
func (h *Handlers) Health(c *gin.Context) {
	health := h.registry.Health()
	code := http.StatusOK
	if health.Status == registry.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

type configurationView struct {
	Path      string   `json:"path"`
	VersionID string   `json:"version_id"`
	Hash      string   `json:"hash"`
	Marker    bool     `json:"marker"`
	Parent    string   `json:"inherits,omitempty"`
	Selectors []string `json:"selectors"`
	Templates []string `json:"templates"`
	Warnings  int      `json:"warnings"`
}

// ListConfigurations lists accepted files and files that failed to load.
func (h *Handlers) ListConfigurations(c *gin.Context) {
	configs := h.registry.Configurations()
	out := make([]configurationView, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, configurationView{
			Path:      cfg.Path,
			VersionID: cfg.VersionID,
			Hash:      cfg.Hash,
			Marker:    cfg.IsMarker,
			Parent:    cfg.Parent,
			Selectors: cfg.SelectorNames(),
			Templates: cfg.TemplateNames(),
			Warnings:  len(cfg.Warnings),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	failed := make(map[string]string)
	for path, err := range h.registry.LoadErrors() {
		failed[path] = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"configurations": out,
		"load_errors":    failed,
	})
}

// ListSelectors lists index entries, optionally filtered by ?context=.
func (h *Handlers) ListSelectors(c *gin.Context) {
	entries := h.registry.Entries()
	if ctx, ok := c.GetQuery("context"); ok {
		filtered := make([]*selector.IndexEntry, 0, len(entries))
		for _, e := range entries {
			if e.Context == ctx {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	c.JSON(http.StatusOK, gin.H{
		"selectors": entries,
		"count":     len(entries),
	})
}

// GetSelector looks a selector up by name. With ?context= it returns the
// entry the index serves for that context, fallback included; without it,
// every entry carrying the name.
func (h *Handlers) GetSelector(c *gin.Context) {
	name := c.Param("name")
	done := h.metrics.Track("lookup")

	if ctx, ok := c.GetQuery("context"); ok {
		entry, err := h.registry.Lookup(name, ctx)
		done(err)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
		return
	}

	entries := h.registry.EntriesFor(name)
	if len(entries) == 0 {
		err := &selector.NotFoundError{Name: name}
		done(err)
		h.fail(c, err)
		return
	}
	done(nil)
	c.JSON(http.StatusOK, gin.H{
		"name":    name,
		"entries": entries,
	})
}

// ResolveRequest is the body of POST /resolve.
type ResolveRequest struct {
	Name string `json:"name" binding:"required"`
	selector.ResolutionContext
}

// Resolve builds a resolution plan.
func (h *Handlers) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.resolver.Resolve(req.Name, req.ResolutionContext)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type conflictView struct {
	Name     string   `json:"name"`
	Contexts []string `json:"contexts"`
	Files    []string `json:"files"`
}

// Conflicts reports names defined in more than one context, and
// duplicate definitions of one name in one context.
func (h *Handlers) Conflicts(c *gin.Context) {
	done := h.metrics.Track("conflicts")
	conflicts := h.registry.Conflicts()
	out := make([]conflictView, 0, len(conflicts))
	for _, cf := range conflicts {
		v := conflictView{Name: cf.Name, Contexts: cf.Contexts()}
		for _, e := range cf.Entries {
			v.Files = append(v.Files, e.SourceFile)
		}
		out = append(out, v)
	}
	duplicates := h.registry.DuplicateWarnings()
	done(nil)

	c.JSON(http.StatusOK, gin.H{
		"conflicts":  out,
		"duplicates": duplicates,
	})
}

type dependencyView struct {
	Selector   string `json:"selector"`
	Template   string `json:"template"`
	SourceFile string `json:"source_file"`
	Reason     string `json:"reason"`
}

// Dependencies reports template references that do not resolve.
func (h *Handlers) Dependencies(c *gin.Context) {
	done := h.metrics.Track("dependencies")
	problems := h.registry.CheckDependencies()
	done(nil)

	out := make([]dependencyView, 0, len(problems))
	for _, p := range problems {
		out = append(out, dependencyView{
			Selector:   p.Selector,
			Template:   p.Template,
			SourceFile: p.SourceFile,
			Reason:     p.Reason,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"problems": out,
		"count":    len(out),
	})
}

// fail maps domain errors onto status codes.
func (h *Handlers) fail(c *gin.Context, err error) {
	var (
		nf  *selector.NotFoundError
		dep *selector.DependencyError
	)
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &nf):
		code = http.StatusNotFound
	case errors.As(err, &dep):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, registry.ErrNotLoaded):
		code = http.StatusNotFound
	case errors.Is(err, selector.ErrConfiguration):
		code = http.StatusUnprocessableEntity
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
