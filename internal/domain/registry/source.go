package registry

import (
	"sync"

	"github.com/GriffinCanCode/selectorkit/internal/domain/loader"
	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

// acceptedSource feeds the inheritance resolver. Accepted versions win over
// the file on disk, so a rejected edit to a parent never leaks into a
// child's chain.
//
// Every call happens while the registry lock is held (read or write), so
// the configs map is read without further locking.
type acceptedSource struct {
	configs func() map[string]*selector.SelectorConfiguration
	loader  loader.Loader
}

func (s acceptedSource) Load(path string) (*selector.SelectorConfiguration, error) {
	if cfg, ok := s.configs()[path]; ok {
		return cfg, nil
	}
	return s.loader.Load(path)
}

func (s acceptedSource) ParentRef(path string) (string, error) {
	if cfg, ok := s.configs()[path]; ok {
		return cfg.Parent, nil
	}
	return s.loader.ParentRef(path)
}

// pathLocks serializes work per path. Entries are dropped once unused.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// Lock acquires the lock for path and returns its release func.
func (p *pathLocks) Lock(path string) func() {
	p.mu.Lock()
	l, ok := p.locks[path]
	if !ok {
		l = &pathLock{}
		p.locks[path] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, path)
		}
		p.mu.Unlock()
	}
}

func (p *pathLocks) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
