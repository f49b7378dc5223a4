package registry

import (
	"sync"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
	"github.com/GriffinCanCode/selectorkit/internal/shared/paths"
)

// RollbackStore keeps exactly one accepted version per path: the last one
// that passed validation. A successful reload replaces it.
type RollbackStore struct {
	mu       sync.RWMutex
	versions map[string]*selector.SelectorConfiguration
}

// NewRollbackStore creates an empty store.
func NewRollbackStore() *RollbackStore {
	return &RollbackStore{versions: make(map[string]*selector.SelectorConfiguration)}
}

// Remember records cfg as the known-good version of path.
func (s *RollbackStore) Remember(path string, cfg *selector.SelectorConfiguration) {
	s.mu.Lock()
	s.versions[path] = cfg
	s.mu.Unlock()
}

// LastGood returns the known-good version of path.
func (s *RollbackStore) LastGood(path string) (*selector.SelectorConfiguration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.versions[path]
	return cfg, ok
}

// Forget discards the version kept for path.
func (s *RollbackStore) Forget(path string) {
	s.mu.Lock()
	delete(s.versions, path)
	s.mu.Unlock()
}

// ForgetTree discards every version kept for a path below dir.
func (s *RollbackStore) ForgetTree(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.versions {
		if paths.Within(dir, path) {
			delete(s.versions, path)
		}
	}
}

// Reset replaces the store contents.
func (s *RollbackStore) Reset(configs map[string]*selector.SelectorConfiguration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = make(map[string]*selector.SelectorConfiguration, len(configs))
	for path, cfg := range configs {
		s.versions[path] = cfg
	}
}

// Len returns the number of kept versions.
func (s *RollbackStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}
