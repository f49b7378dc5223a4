package inheritance

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
	"github.com/GriffinCanCode/selectorkit/internal/shared/paths"
	"github.com/GriffinCanCode/selectorkit/internal/shared/utils"
)

// Source supplies configurations and parent references. The loader
// implements it; the registry wraps it to prefer accepted versions.
type Source interface {
	Load(path string) (*selector.SelectorConfiguration, error)
	ParentRef(path string) (string, error)
}

// Resolver resolves and caches inheritance chains.
type Resolver interface {
	ResolveChain(path string) (*selector.InheritanceChain, error)
	Invalidate(path string) []string
	InvalidateTree(dir string) []string
}

// Options configures a ChainResolver.
type Options struct {
	Roots  []string
	Layout paths.Layout

	// TTL bounds how long a cached chain is served. Zero disables expiry.
	TTL    time.Duration
	Logger *zap.Logger
}

// Stats reports cache activity.
type Stats struct {
	Entries       int    `json:"entries"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
}

type cacheEntry struct {
	chain   *selector.InheritanceChain
	expires time.Time
}

// ChainResolver is the default Resolver.
type ChainResolver struct {
	source Source
	roots  []string
	layout paths.Layout
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
}

// NewChainResolver creates a resolver reading through source.
func NewChainResolver(source Source, opts Options) *ChainResolver {
	if len(opts.Layout.MarkerNames) == 0 {
		opts.Layout = paths.DefaultLayout()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		if clean, err := paths.Normalize(root); err == nil {
			roots = append(roots, clean)
		}
	}

	return &ChainResolver{
		source: source,
		roots:  roots,
		layout: opts.Layout,
		ttl:    opts.TTL,
		logger: opts.Logger,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// ResolveChain returns the merged chain for path, from cache when fresh.
func (r *ChainResolver) ResolveChain(path string) (*selector.InheritanceChain, error) {
	clean, err := paths.Normalize(path)
	if err != nil {
		return nil, &selector.LoadingError{Path: path, Reason: "invalid path", Err: err}
	}

	if chain, ok := r.cached(clean); ok {
		r.hits.Add(1)
		return chain, nil
	}
	r.misses.Add(1)

	ancestors, err := r.Ancestors(clean)
	if err != nil {
		return nil, err
	}

	self, err := r.source.Load(clean)
	if err != nil {
		return nil, err
	}
	levels := make([]*selector.SelectorConfiguration, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		cfg, err := r.source.Load(ancestors[i])
		if err != nil {
			return nil, fmt.Errorf("ancestor of %s: %w", clean, err)
		}
		levels = append(levels, cfg)
	}
	levels = append(levels, self)

	chain := Merge(clean, ancestors, levels)
	for _, w := range chain.Warnings {
		r.logger.Debug("Inheritance warning", zap.String("path", clean), zap.String("warning", w))
	}

	r.mu.Lock()
	r.cache[clean] = cacheEntry{chain: chain, expires: r.expiry()}
	r.mu.Unlock()

	return chain, nil
}

func (r *ChainResolver) expiry() time.Time {
	if r.ttl <= 0 {
		return time.Time{}
	}
	return r.now().Add(r.ttl)
}

func (r *ChainResolver) cached(path string) (*selector.InheritanceChain, bool) {
	r.mu.RLock()
	entry, ok := r.cache[path]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expires.IsZero() && r.now().After(entry.expires) {
		r.mu.Lock()
		if cur, still := r.cache[path]; still && cur.expires.Equal(entry.expires) {
			delete(r.cache, path)
		}
		r.mu.Unlock()
		return nil, false
	}
	return entry.chain, true
}

// Ancestors returns the ancestor paths of path, nearest first, without
// loading any of them. A cycle yields an *selector.InheritanceError whose
// Cycle starts and ends with the recurring path.
func (r *ChainResolver) Ancestors(path string) ([]string, error) {
	visited := map[string]int{path: 0}
	order := []string{path}

	for cur := path; ; {
		parent, err := r.parentOf(cur)
		if err != nil {
			return nil, err
		}
		if parent == "" {
			break
		}
		if idx, seen := visited[parent]; seen {
			cycle := append(slices.Clone(order[idx:]), parent)
			return nil, &selector.InheritanceError{Path: path, Cycle: cycle}
		}
		visited[parent] = len(order)
		order = append(order, parent)
		cur = parent
	}

	return order[1:], nil
}

// parentOf returns the explicit parent of path, or the nearest marker.
func (r *ChainResolver) parentOf(path string) (string, error) {
	ref, err := r.source.ParentRef(path)
	if err != nil {
		return "", err
	}
	if ref != "" {
		return ref, nil
	}
	return r.markerParent(path), nil
}

// markerParent finds the nearest marker above path, bounded by the root
// containing path. Outside every root only the file's own directory is
// searched.
func (r *ChainResolver) markerParent(path string) string {
	dir := filepath.Dir(path)
	root, ok := paths.RootOf(r.roots, path)
	if !ok {
		root = dir
	}

	if r.layout.IsMarker(path) {
		if dir == root {
			return ""
		}
		dir = filepath.Dir(dir)
	}

	for paths.Within(root, dir) {
		for _, name := range r.layout.MarkerNames {
			candidate := filepath.Join(dir, name)
			if candidate == path {
				continue
			}
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate
			}
		}
		if dir == root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Merge folds levels (farthest ancestor first, the file itself last) into
// one chain.
func Merge(path string, ancestors []string, levels []*selector.SelectorConfiguration) *selector.InheritanceChain {
	chain := &selector.InheritanceChain{
		ChildPath:       path,
		Ancestors:       slices.Clone(ancestors),
		Templates:       make(map[string]*selector.StrategyTemplate),
		TemplateSources: make(map[string]string),
	}
	if chain.Ancestors == nil {
		chain.Ancestors = []string{}
	}

	for _, cfg := range levels {
		if cfg == nil {
			continue
		}
		chain.ContextDefaults = chain.ContextDefaults.Overlay(cfg.ContextDefaults)
		chain.ValidationDefaults = chain.ValidationDefaults.Overlay(cfg.ValidationDefaults)

		for _, name := range cfg.TemplateNames() {
			tmpl := cfg.Templates[name]
			if tmpl == nil {
				continue
			}
			if prev, shadowed := chain.TemplateSources[name]; shadowed {
				chain.Warnings = append(chain.Warnings,
					fmt.Sprintf("template %q in %s shadows definition in %s", name, cfg.Path, prev))
			}
			chain.Templates[name] = tmpl
			chain.TemplateSources[name] = cfg.Path
		}
	}

	return chain
}

// Invalidate drops the cached chain of path and of every file that lists
// path as an ancestor. It returns the dropped paths.
func (r *ChainResolver) Invalidate(path string) []string {
	clean, err := paths.Normalize(path)
	if err != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []string
	for key, entry := range r.cache {
		if key == clean || slices.Contains(entry.chain.Ancestors, clean) {
			delete(r.cache, key)
			dropped = append(dropped, key)
		}
	}
	r.invalidations.Add(uint64(len(dropped)))
	slices.Sort(dropped)
	return dropped
}

// InvalidateTree drops every cached chain for a file below dir, and every
// chain with an ancestor below dir.
func (r *ChainResolver) InvalidateTree(dir string) []string {
	clean, err := paths.Normalize(dir)
	if err != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []string
	for key, entry := range r.cache {
		hit := paths.Within(clean, key)
		for _, a := range entry.chain.Ancestors {
			if hit {
				break
			}
			hit = paths.Within(clean, a)
		}
		if hit {
			delete(r.cache, key)
			dropped = append(dropped, key)
		}
	}
	r.invalidations.Add(uint64(len(dropped)))
	slices.Sort(dropped)
	return dropped
}

// Clear empties the cache.
func (r *ChainResolver) Clear() {
	r.mu.Lock()
	r.cache = make(map[string]cacheEntry)
	r.mu.Unlock()
}

// Stats returns cache statistics.
func (r *ChainResolver) Stats() Stats {
	r.mu.RLock()
	entries := len(r.cache)
	r.mu.RUnlock()

	return Stats{
		Entries:       entries,
		Hits:          r.hits.Load(),
		Misses:        r.misses.Load(),
		Invalidations: r.invalidations.Load(),
	}
}

// Fingerprint returns a content hash of chain. Equal chains hash equal.
func Fingerprint(chain *selector.InheritanceChain) (string, error) {
	return utils.DefaultHasher().HashJSON(chain)
}
