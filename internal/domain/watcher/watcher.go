// Package watcher detects changes to selector configuration files and hands
// them to a callback.
//
// Two implementations sit behind one interface: FSNotifyWatcher uses native
// file notifications, PollingWatcher diffs modification times on a fixed
// interval. New prefers the native watcher and falls back to polling when
// it is unavailable. Both deliver events through a Dispatcher, which never
// blocks the notification source, serializes callbacks for the same path
// and runs different paths concurrently.
package watcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/domain/loader"
	"github.com/GriffinCanCode/selectorkit/internal/shared/paths"
)

var (
	ErrWatcherClosed  = errors.New("watcher is closed")
	ErrAlreadyRunning = errors.New("watcher is already running")
	ErrNoRoots        = errors.New("no roots to watch")
)

// Op is the kind of change observed.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Gone reports whether the path no longer exists at its old name.
func (op Op) Gone() bool {
	return op.Has(OpRemove) || op.Has(OpRename)
}

// Event is one matched change.
type Event struct {
	Path string
	Root string
	Op   Op
	// Dir is set when a watched directory was removed or moved away; every
	// configuration below Path is gone.
	Dir       bool
	Timestamp time.Time
}

// Handler receives events. Calls for the same path never overlap.
type Handler func(ctx context.Context, ev Event)

// State is the lifecycle state of a watcher.
type State int32

const (
	StateStopped State = iota
	StateWatching
)

func (s State) String() string {
	if s == StateWatching {
		return "watching"
	}
	return "stopped"
}

// Stats provides watcher status information.
type Stats struct {
	Backend       string    `json:"backend"`
	State         string    `json:"state"`
	WatchedPaths  int       `json:"watched_paths"`
	TotalEvents   int64     `json:"total_events"`
	MatchedEvents int64     `json:"matched_events"`
	Polls         int64     `json:"polls,omitempty"`
	Errors        int64     `json:"errors"`
	LastError     string    `json:"last_error,omitempty"`
	Dispatched    int64     `json:"dispatched"`
	Coalesced     int64     `json:"coalesced"`
	InFlight      int       `json:"in_flight"`
	StartTime     time.Time `json:"start_time"`
}

// Watcher monitors configuration roots.
type Watcher interface {
	// Start begins delivering events. It returns immediately.
	Start(ctx context.Context) error
	// Stop terminates the loop, waits for in-flight callbacks and releases
	// OS handles. Safe to call more than once.
	Stop() error
	State() State
	Stats() Stats
}

// Scanner lists configuration files; the loader implements it.
type Scanner interface {
	Discover(ctx context.Context, roots []string) ([]loader.FileInfo, error)
}

// Config holds watcher configuration options.
type Config struct {
	Roots  []string
	Layout paths.Layout

	// PollInterval is the polling frequency. Default: 2s.
	PollInterval time.Duration

	// Debounce coalesces bursts of events for one path. 0 delivers every
	// event.
	Debounce time.Duration

	// ForcePolling skips native notification.
	ForcePolling bool

	// Scanner is used by the polling watcher. Default: a loader with Layout.
	Scanner Scanner

	Logger *zap.Logger
}

// DefaultPollInterval is used when Config.PollInterval is unset.
const DefaultPollInterval = 2 * time.Second

func (c *Config) defaults() error {
	if len(c.Roots) == 0 {
		return ErrNoRoots
	}
	roots := make([]string, 0, len(c.Roots))
	for _, root := range c.Roots {
		clean, err := paths.Normalize(root)
		if err != nil {
			return err
		}
		roots = append(roots, clean)
	}
	c.Roots = roots
	if len(c.Layout.Patterns) == 0 {
		c.Layout = paths.DefaultLayout()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Scanner == nil {
		c.Scanner = loader.New(loader.Options{Layout: c.Layout, Logger: c.Logger})
	}
	return nil
}

// match returns the root of path when path is a configuration file.
func (c *Config) match(path string) (string, bool) {
	root, ok := paths.RootOf(c.Roots, path)
	if !ok || !c.Layout.Match(root, path) {
		return "", false
	}
	return root, true
}

// New returns a native watcher, or a polling watcher when native
// notification is unavailable or cfg.ForcePolling is set.
func New(cfg Config, handler Handler) (Watcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	if !cfg.ForcePolling {
		w, err := NewFSNotifyWatcher(cfg, handler)
		if err == nil {
			return w, nil
		}
		cfg.Logger.Warn("Native file notification unavailable, falling back to polling",
			zap.Error(err),
			zap.Duration("interval", cfg.PollInterval))
	}
	return NewPollingWatcher(cfg, handler)
}
