// Package index maintains the name and context keyed lookup structure over
// every loaded selector.
//
// Each selector is indexed twice: globally by name, and per context by
// (context, name). The same name in distinct contexts is a conflict and
// both entries are kept. The same name in the same context from two files
// is a duplicate: the last loaded definition wins and the earlier one stays
// shadowed underneath, so removing the winner restores it.
package index

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
	"github.com/GriffinCanCode/selectorkit/internal/shared/utils"
)

// Index is the semantic lookup capability.
type Index interface {
	Build(configs map[string]*selector.SelectorConfiguration)
	Lookup(name, context string) *selector.IndexEntry
	Update(path string, cfg *selector.SelectorConfiguration)
	Remove(path string)
	FindConflicts() []Conflict
}

// Conflict is one name defined in more than one context.
type Conflict struct {
	Name    string                 `json:"name"`
	Entries []*selector.IndexEntry `json:"entries"`
}

// Contexts returns the conflicting contexts.
func (c Conflict) Contexts() []string {
	out := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = e.Context
	}
	return out
}

// DuplicateWarning records a (context, name) defined by more than one file.
type DuplicateWarning struct {
	Name     string   `json:"name"`
	Context  string   `json:"context"`
	Winner   string   `json:"winner"`
	Shadowed []string `json:"shadowed"`
}

// Stats summarizes the index.
type Stats struct {
	Names      int `json:"names"`
	Entries    int `json:"entries"`
	Contexts   int `json:"contexts"`
	Files      int `json:"files"`
	Conflicts  int `json:"conflicts"`
	Duplicates int `json:"duplicates"`
}

type key struct {
	context string
	name    string
}

// SemanticIndex is the default Index. All methods are safe for concurrent
// use; each mutation is atomic with respect to readers.
type SemanticIndex struct {
	mu     sync.RWMutex
	global map[string][]*selector.IndexEntry
	scoped map[string]map[string][]*selector.IndexEntry
	files  map[string][]key
	logger *zap.Logger
}

// New creates an empty index.
func New(logger *zap.Logger) *SemanticIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticIndex{
		global: make(map[string][]*selector.IndexEntry),
		scoped: make(map[string]map[string][]*selector.IndexEntry),
		files:  make(map[string][]key),
		logger: logger,
	}
}

// Build replaces the index contents. Files are indexed in sorted path
// order, which makes "last loaded" deterministic.
func (x *SemanticIndex) Build(configs map[string]*selector.SelectorConfiguration) {
	paths := make([]string, 0, len(configs))
	for p := range configs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	x.mu.Lock()
	defer x.mu.Unlock()

	x.global = make(map[string][]*selector.IndexEntry)
	x.scoped = make(map[string]map[string][]*selector.IndexEntry)
	x.files = make(map[string][]key)
	for _, p := range paths {
		x.insert(p, configs[p])
	}
}

// Update replaces every entry owned by path with the selectors of cfg.
func (x *SemanticIndex) Update(path string, cfg *selector.SelectorConfiguration) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.remove(path)
	x.insert(path, cfg)
}

// Remove drops every entry owned by path.
func (x *SemanticIndex) Remove(path string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.remove(path)
}

func (x *SemanticIndex) insert(path string, cfg *selector.SelectorConfiguration) {
	if cfg == nil {
		return
	}
	keys := make([]key, 0, len(cfg.Selectors))
	for _, name := range cfg.SelectorNames() {
		sel := cfg.Selectors[name]
		if sel == nil {
			continue
		}
		entry := &selector.IndexEntry{
			Name:         name,
			Context:      sel.Context,
			SourceFile:   path,
			Selector:     sel,
			LastModified: cfg.ModTime,
		}

		byName, ok := x.scoped[sel.Context]
		if !ok {
			byName = make(map[string][]*selector.IndexEntry)
			x.scoped[sel.Context] = byName
		}
		stack := append(byName[name], entry)
		byName[name] = stack
		x.global[name] = append(x.global[name], entry)
		keys = append(keys, key{context: sel.Context, name: name})

		if len(stack) > 1 {
			x.logger.Warn("Duplicate selector definition, last loaded wins",
				zap.String("name", name),
				zap.String("context", sel.Context),
				zap.String("winner", path),
				zap.String("shadowed", stack[len(stack)-2].SourceFile))
		}
	}
	if len(keys) > 0 {
		x.files[path] = keys
	}
}

func (x *SemanticIndex) remove(path string) {
	keys, ok := x.files[path]
	if !ok {
		return
	}
	for _, k := range keys {
		if byName, ok := x.scoped[k.context]; ok {
			if stack := without(byName[k.name], path); len(stack) > 0 {
				byName[k.name] = stack
			} else {
				delete(byName, k.name)
			}
			if len(byName) == 0 {
				delete(x.scoped, k.context)
			}
		}
		if entries := without(x.global[k.name], path); len(entries) > 0 {
			x.global[k.name] = entries
		} else {
			delete(x.global, k.name)
		}
	}
	delete(x.files, path)
}

// without returns entries minus those sourced from path, in a new slice.
func without(entries []*selector.IndexEntry, path string) []*selector.IndexEntry {
	out := make([]*selector.IndexEntry, 0, len(entries))
	for _, e := range entries {
		if e.SourceFile != path {
			out = append(out, e)
		}
	}
	return out
}

// Lookup finds name for context: exact match first, then each ancestor of
// context ("a.b.c" -> "a.b" -> "a"), then the last loaded global entry.
// It returns nil when name is unknown.
func (x *SemanticIndex) Lookup(name, context string) *selector.IndexEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for _, ctx := range utils.ContextAncestry(context) {
		if stack := x.scoped[ctx][name]; len(stack) > 0 {
			return stack[len(stack)-1]
		}
	}
	if entries := x.global[name]; len(entries) > 0 {
		return entries[len(entries)-1]
	}
	return nil
}

// LookupScoped finds name for context and its ancestors only, without the
// global fallback.
func (x *SemanticIndex) LookupScoped(name, context string) *selector.IndexEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for _, ctx := range utils.ContextAncestry(context) {
		if stack := x.scoped[ctx][name]; len(stack) > 0 {
			return stack[len(stack)-1]
		}
	}
	return nil
}

// FindConflicts returns every name defined in more than one context, sorted
// by name, with one winning entry per context sorted by context.
func (x *SemanticIndex) FindConflicts() []Conflict {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return x.conflicts()
}

func (x *SemanticIndex) conflicts() []Conflict {
	var out []Conflict
	for _, name := range sortedNames(x.global) {
		contexts := make(map[string]bool)
		for _, e := range x.global[name] {
			contexts[e.Context] = true
		}
		if len(contexts) < 2 {
			continue
		}
		c := Conflict{Name: name}
		for _, ctx := range sortedNames(contexts) {
			stack := x.scoped[ctx][name]
			c.Entries = append(c.Entries, stack[len(stack)-1])
		}
		out = append(out, c)
	}
	return out
}

// DuplicateWarnings returns every (context, name) with a shadowed definition.
func (x *SemanticIndex) DuplicateWarnings() []DuplicateWarning {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return x.duplicates()
}

func (x *SemanticIndex) duplicates() []DuplicateWarning {
	var out []DuplicateWarning
	for _, ctx := range sortedNames(x.scoped) {
		byName := x.scoped[ctx]
		for _, name := range sortedNames(byName) {
			stack := byName[name]
			if len(stack) < 2 {
				continue
			}
			w := DuplicateWarning{Name: name, Context: ctx, Winner: stack[len(stack)-1].SourceFile}
			for _, e := range stack[:len(stack)-1] {
				w.Shadowed = append(w.Shadowed, e.SourceFile)
			}
			out = append(out, w)
		}
	}
	return out
}

// Entries returns the winning entry of every (context, name), sorted.
func (x *SemanticIndex) Entries() []*selector.IndexEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []*selector.IndexEntry
	for _, ctx := range sortedNames(x.scoped) {
		byName := x.scoped[ctx]
		for _, name := range sortedNames(byName) {
			stack := byName[name]
			out = append(out, stack[len(stack)-1])
		}
	}
	return out
}

// EntriesFor returns the winning entries for name across contexts.
func (x *SemanticIndex) EntriesFor(name string) []*selector.IndexEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []*selector.IndexEntry
	for _, ctx := range sortedNames(x.scoped) {
		if stack := x.scoped[ctx][name]; len(stack) > 0 {
			out = append(out, stack[len(stack)-1])
		}
	}
	return out
}

// Contexts returns every context with at least one entry.
func (x *SemanticIndex) Contexts() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return sortedNames(x.scoped)
}

// Files returns the paths that own entries.
func (x *SemanticIndex) Files() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return sortedNames(x.files)
}

// Stats returns index statistics.
func (x *SemanticIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entries := 0
	for _, byName := range x.scoped {
		entries += len(byName)
	}
	return Stats{
		Names:      len(x.global),
		Entries:    entries,
		Contexts:   len(x.scoped),
		Files:      len(x.files),
		Conflicts:  len(x.conflicts()),
		Duplicates: len(x.duplicates()),
	}
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
