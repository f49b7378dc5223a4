package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/domain/index"
	"github.com/GriffinCanCode/selectorkit/internal/domain/inheritance"
	"github.com/GriffinCanCode/selectorkit/internal/domain/loader"
	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
	"github.com/GriffinCanCode/selectorkit/internal/domain/watcher"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/selectorkit/internal/shared/id"
	"github.com/GriffinCanCode/selectorkit/internal/shared/paths"
)

// ErrNotLoaded is returned for a path the registry holds no version of.
var ErrNotLoaded = errors.New("configuration not loaded")

// Options configures a Registry.
type Options struct {
	Roots  []string
	Layout paths.Layout
	Strict bool

	// HotReload enables the watcher on Start.
	HotReload    bool
	ForcePolling bool
	PollInterval time.Duration
	Debounce     time.Duration

	// CacheTTL bounds how long an inheritance chain is cached. Zero keeps
	// chains until invalidated.
	CacheTTL    time.Duration
	MaxFileSize int64
	Concurrency int

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Registry is the façade over every configuration component.
type Registry struct {
	opts     Options
	roots    []string
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	ids      *id.Generator
	loader   *loader.FileLoader
	chains   *inheritance.ChainResolver
	index    *index.SemanticIndex
	rollback *RollbackStore
	notifier *Notifier
	locks    *pathLocks

	// mu guards configs and loadErrors, and is held across every index
	// mutation and chain resolution.
	mu         sync.RWMutex
	configs    map[string]*selector.SelectorConfiguration
	loadErrors map[string]error
	lastLoad   time.Time
	loadTime   time.Duration
	loaded     bool

	lifeMu  sync.Mutex
	watcher watcher.Watcher
}

// New creates a registry. Nothing is read from disk until Load.
func New(opts Options) (*Registry, error) {
	if len(opts.Roots) == 0 {
		return nil, fmt.Errorf("at least one configuration root is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}

	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		clean, err := paths.Normalize(root)
		if err != nil {
			return nil, fmt.Errorf("invalid root: %w", err)
		}
		roots = append(roots, clean)
	}

	ids := id.NewGenerator()
	r := &Registry{
		opts:       opts,
		roots:      roots,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		ids:        ids,
		index:      index.New(opts.Logger.Named("index")),
		rollback:   NewRollbackStore(),
		notifier:   NewNotifier(ids),
		locks:      newPathLocks(),
		configs:    make(map[string]*selector.SelectorConfiguration),
		loadErrors: make(map[string]error),
	}

	r.loader = loader.New(loader.Options{
		MaxFileSize: opts.MaxFileSize,
		Layout:      opts.Layout,
		Strict:      opts.Strict,
		Concurrency: opts.Concurrency,
		Logger:      opts.Logger.Named("loader"),
	})
	r.chains = inheritance.NewChainResolver(
		acceptedSource{configs: func() map[string]*selector.SelectorConfiguration { return r.configs }, loader: r.loader},
		inheritance.Options{
			Roots:  roots,
			Layout: r.loader.Layout(),
			TTL:    opts.CacheTTL,
			Logger: opts.Logger.Named("inheritance"),
		},
	)

	return r, nil
}

// Roots returns the normalized configuration roots.
func (r *Registry) Roots() []string {
	return append([]string(nil), r.roots...)
}

// Load performs the initial load of every root, replacing any prior state.
// Failing files are recorded and reported by LoadErrors; only discovery
// failures and cancellation are returned.
func (r *Registry) Load(ctx context.Context) error {
	timer := monitoring.NewTimer(r.metrics, "load")

	batch, err := r.loader.LoadTree(ctx, r.roots)
	if err != nil {
		timer.Stop("error")
		return fmt.Errorf("failed to load configuration tree: %w", err)
	}

	for _, cfg := range batch.Configs {
		cfg.VersionID = r.ids.NewVersionID().String()
		r.metrics.RecordLoad(true)
	}
	for range batch.Failures {
		r.metrics.RecordLoad(false)
	}

	r.mu.Lock()
	r.configs = batch.Configs
	r.loadErrors = make(map[string]error, len(batch.Failures))
	for _, f := range batch.Failures {
		r.loadErrors[f.Path] = f.Err
	}
	r.index.Build(r.configs)
	r.rollback.Reset(r.configs)
	r.chains.Clear()
	r.lastLoad = time.Now()
	r.loadTime = batch.Duration
	r.loaded = true
	events := make([]ChangeEvent, 0, len(batch.Configs))
	for _, path := range batch.Paths() {
		events = append(events, ChangeEvent{Path: path, Kind: ChangeLoaded, VersionID: r.configs[path].VersionID})
	}
	r.publishState()
	r.mu.Unlock()

	for _, dup := range r.index.DuplicateWarnings() {
		r.logger.Warn("Duplicate selector definition",
			zap.String("name", dup.Name),
			zap.String("context", dup.Context),
			zap.String("winner", dup.Winner),
			zap.Strings("shadowed", dup.Shadowed))
	}

	timer.Stop("success")
	for _, ev := range events {
		r.notifier.Notify(ev)
	}
	return nil
}

// Start begins hot reloading. It is a no-op when hot reload is disabled.
func (r *Registry) Start(ctx context.Context) error {
	if !r.opts.HotReload {
		r.logger.Info("Hot reload disabled")
		return nil
	}

	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	if r.watcher != nil {
		return watcher.ErrAlreadyRunning
	}

	w, err := watcher.New(watcher.Config{
		Roots:        r.roots,
		Layout:       r.loader.Layout(),
		PollInterval: r.opts.PollInterval,
		Debounce:     r.opts.Debounce,
		ForcePolling: r.opts.ForcePolling,
		Scanner:      r.loader,
		Logger:       r.logger.Named("watcher"),
	}, r.handleEvent)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	r.watcher = w
	return nil
}

// Stop ends hot reloading and waits for in-flight reloads.
func (r *Registry) Stop() error {
	r.lifeMu.Lock()
	w := r.watcher
	r.watcher = nil
	r.lifeMu.Unlock()

	if w == nil {
		return nil
	}
	return w.Stop()
}

func (r *Registry) handleEvent(_ context.Context, ev watcher.Event) {
	r.metrics.RecordWatchEvent(ev.Op.String())

	switch {
	case ev.Dir:
		r.RemoveTree(ev.Path)
	case ev.Op.Gone():
		r.Remove(ev.Path)
	default:
		// Rejections are logged and counted inside Reload.
		_ = r.Reload(ev.Path)
	}
}

// Reload loads path again and swaps it in when it validates. When it does
// not, the last known-good version stays in effect and the load error is
// returned. Reloading unchanged content is a no-op.
func (r *Registry) Reload(path string) error {
	clean, err := paths.Normalize(path)
	if err != nil {
		return err
	}

	release := r.locks.Lock(clean)
	defer release()

	timer := monitoring.NewTimer(r.metrics, "reload")

	cfg, err := r.loader.Load(clean)
	if err != nil {
		r.reject(clean, err)
		timer.Stop("rejected")
		return err
	}
	r.metrics.RecordLoad(true)

	r.mu.Lock()
	prev, existed := r.configs[clean]
	if existed && prev.Hash == cfg.Hash {
		delete(r.loadErrors, clean)
		r.mu.Unlock()
		r.metrics.RecordReload(monitoring.ReloadUnchanged)
		timer.Stop("unchanged")
		r.logger.Debug("Configuration unchanged", zap.String("path", clean))
		return nil
	}

	cfg.VersionID = r.ids.NewVersionID().String()
	r.configs[clean] = cfg
	delete(r.loadErrors, clean)
	r.rollback.Remember(clean, cfg)
	r.index.Update(clean, cfg)
	r.invalidate(clean, cfg.IsMarker)
	r.publishState()
	r.mu.Unlock()

	kind := ChangeLoaded
	if existed {
		kind = ChangeReloaded
	}
	r.metrics.RecordReload(monitoring.ReloadAccepted)
	timer.Stop("success")
	r.logger.Info("Configuration reloaded",
		zap.String("path", clean),
		zap.String("version", cfg.VersionID),
		zap.Int("selectors", len(cfg.Selectors)),
		zap.Int("warnings", len(cfg.Warnings)))

	r.notifier.Notify(ChangeEvent{Path: clean, Kind: kind, VersionID: cfg.VersionID})
	return nil
}

func (r *Registry) reject(path string, err error) {
	r.metrics.RecordLoad(false)
	r.metrics.RecordReload(monitoring.ReloadRejected)

	r.mu.Lock()
	r.loadErrors[path] = err
	r.mu.Unlock()

	ev := ChangeEvent{Path: path, Kind: ChangeRejected, Err: err}
	if good, ok := r.rollback.LastGood(path); ok {
		r.metrics.IncRollbacks()
		ev.VersionID = good.VersionID
		r.logger.Warn("Reload rejected, keeping last known-good version",
			zap.String("path", path),
			zap.String("version", good.VersionID),
			zap.Error(err))
	} else {
		r.logger.Warn("Reload rejected, file stays unloaded",
			zap.String("path", path),
			zap.Error(err))
	}
	r.notifier.Notify(ev)
}

// Remove purges path from configurations, index, chain cache and
// rollback store.
func (r *Registry) Remove(path string) {
	clean, err := paths.Normalize(path)
	if err != nil {
		return
	}

	release := r.locks.Lock(clean)
	defer release()

	r.mu.Lock()
	_, existed := r.configs[clean]
	_, failed := r.loadErrors[clean]
	delete(r.configs, clean)
	delete(r.loadErrors, clean)
	r.rollback.Forget(clean)
	r.index.Remove(clean)
	r.invalidate(clean, r.loader.Layout().IsMarker(clean))
	r.publishState()
	r.mu.Unlock()

	if !existed && !failed {
		return
	}
	r.metrics.RecordReload(monitoring.ReloadRemoved)
	r.logger.Info("Configuration removed", zap.String("path", clean))
	r.notifier.Notify(ChangeEvent{Path: clean, Kind: ChangeRemoved})
}

// RemoveTree purges every path below dir. It is used when a watched
// directory disappears.
func (r *Registry) RemoveTree(dir string) {
	clean, err := paths.Normalize(dir)
	if err != nil {
		return
	}

	r.mu.Lock()
	var removed []string
	for path := range r.configs {
		if paths.Within(clean, path) {
			removed = append(removed, path)
		}
	}
	for path := range r.loadErrors {
		if paths.Within(clean, path) {
			if _, ok := r.configs[path]; !ok {
				removed = append(removed, path)
			}
		}
	}
	for _, path := range removed {
		delete(r.configs, path)
		delete(r.loadErrors, path)
		r.index.Remove(path)
	}
	r.rollback.ForgetTree(clean)
	r.chains.InvalidateTree(clean)
	r.publishState()
	r.mu.Unlock()

	sort.Strings(removed)
	if len(removed) > 0 {
		r.logger.Info("Configuration directory removed",
			zap.String("dir", clean),
			zap.Int("files", len(removed)))
	}
	for _, path := range removed {
		r.metrics.RecordReload(monitoring.ReloadRemoved)
		r.notifier.Notify(ChangeEvent{Path: path, Kind: ChangeRemoved})
	}
}

// invalidate drops cached chains affected by a change to path. A marker
// change can re-parent every file below its directory. Callers hold mu.
func (r *Registry) invalidate(path string, marker bool) {
	r.chains.Invalidate(path)
	if marker {
		r.chains.InvalidateTree(filepath.Dir(path))
	}
}

// publishState pushes sizes to the metrics. Callers hold mu.
func (r *Registry) publishState() {
	st := r.index.Stats()
	r.metrics.SetIndexState(len(r.configs), st.Entries, st.Conflicts, st.Duplicates)
}

// Lookup returns the winning index entry for name in context, falling back
// through the context ancestry and finally to the global scope.
func (r *Registry) Lookup(name, context string) (*selector.IndexEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry := r.index.Lookup(name, context); entry != nil {
		return entry, nil
	}
	return nil, &selector.NotFoundError{Name: name, Context: context}
}

// Entries returns every index entry.
func (r *Registry) Entries() []*selector.IndexEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Entries()
}

// EntriesFor returns every entry named name across contexts.
func (r *Registry) EntriesFor(name string) []*selector.IndexEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.EntriesFor(name)
}

// Chain returns the resolved inheritance chain of an accepted path.
func (r *Registry) Chain(path string) (*selector.InheritanceChain, error) {
	clean, err := paths.Normalize(path)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chainLocked(clean)
}

func (r *Registry) chainLocked(path string) (*selector.InheritanceChain, error) {
	if _, ok := r.configs[path]; !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotLoaded)
	}
	return r.chains.ResolveChain(path)
}

// Configuration returns the accepted version of path.
func (r *Registry) Configuration(path string) (*selector.SelectorConfiguration, error) {
	clean, err := paths.Normalize(path)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[clean]
	if !ok {
		return nil, fmt.Errorf("%s: %w", clean, ErrNotLoaded)
	}
	return cfg, nil
}

// Configurations returns a copy of the accepted configuration map.
func (r *Registry) Configurations() map[string]*selector.SelectorConfiguration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.configs)
}

// Conflicts returns names defined in more than one context.
func (r *Registry) Conflicts() []index.Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.FindConflicts()
}

// DuplicateWarnings returns (context, name) pairs defined by several files.
func (r *Registry) DuplicateWarnings() []index.DuplicateWarning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.DuplicateWarnings()
}

// LoadErrors returns the current load error per failing path.
func (r *Registry) LoadErrors() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.loadErrors)
}

// CheckDependencies reports every template reference that does not resolve
// through its file's inheritance chain, or whose declared type disagrees
// with the template.
func (r *Registry) CheckDependencies() []*selector.DependencyError {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pathsSorted := make([]string, 0, len(r.configs))
	for path := range r.configs {
		pathsSorted = append(pathsSorted, path)
	}
	sort.Strings(pathsSorted)

	var problems []*selector.DependencyError
	for _, path := range pathsSorted {
		cfg := r.configs[path]
		chain, chainErr := r.chains.ResolveChain(path)
		for _, name := range cfg.SelectorNames() {
			for _, s := range cfg.Selectors[name].Strategies {
				if !s.IsTemplateRef() {
					continue
				}
				problem := &selector.DependencyError{Selector: name, Template: s.Template, SourceFile: path}
				switch tmpl, ok := chain.Template(s.Template); {
				case chainErr != nil:
					problem.Reason = "inheritance chain unavailable: " + chainErr.Error()
				case !ok:
					problem.Reason = "template not found in inheritance chain"
				case s.Type != "" && s.Type != tmpl.Type:
					problem.Reason = fmt.Sprintf("declared type %s does not match template type %s", s.Type, tmpl.Type)
				default:
					continue
				}
				problems = append(problems, problem)
			}
		}
	}
	return problems
}

// Subscribe registers fn for change events.
func (r *Registry) Subscribe(fn Observer) *Subscription {
	return r.notifier.Subscribe(fn)
}

// Metrics returns the metrics the registry records into.
func (r *Registry) Metrics() *monitoring.Metrics {
	return r.metrics
}

// Logger returns the registry logger.
func (r *Registry) Logger() *zap.Logger {
	return r.logger
}
