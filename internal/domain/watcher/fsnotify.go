package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/shared/paths"
)

// FSNotifyWatcher implements Watcher using fsnotify. Every directory below
// each root is watched; directories created later are added as they appear.
type FSNotifyWatcher struct {
	mu sync.RWMutex

	watcher    *fsnotify.Watcher
	cfg        Config
	dispatcher *Dispatcher
	logger     *zap.Logger

	// Watched directories
	dirs map[string]bool

	// Stats
	startTime     time.Time
	totalEvents   atomic.Int64
	matchedEvents atomic.Int64
	totalErrors   atomic.Int64
	lastError     error

	// Lifecycle
	state    atomic.Int32
	started  bool
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSNotifyWatcher creates a native watcher and registers watches for
// every directory under the configured roots. Events are delivered once
// Start is called.
func NewFSNotifyWatcher(cfg Config, handler Handler) (*FSNotifyWatcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher:    fsw,
		cfg:        cfg,
		dispatcher: NewDispatcher(handler, cfg.Debounce, cfg.Logger),
		logger:     cfg.Logger,
		dirs:       make(map[string]bool),
		closeCh:    make(chan struct{}),
	}

	for _, root := range cfg.Roots {
		if err := w.watchTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Start begins processing events.
func (w *FSNotifyWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.started {
		return ErrAlreadyRunning
	}
	w.started = true
	w.startTime = time.Now()
	w.state.Store(int32(StateWatching))

	w.closedWg.Add(1)
	go w.processLoop(ctx)

	w.logger.Info("Watching configuration roots",
		zap.String("backend", "fsnotify"),
		zap.Strings("roots", w.cfg.Roots),
		zap.Int("directories", len(w.dirs)))
	return nil
}

// Stop stops the watcher and releases the OS handles.
func (w *FSNotifyWatcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	// Wait for processLoop to finish
	w.closedWg.Wait()
	w.dispatcher.Close()
	w.state.Store(int32(StateStopped))

	return w.watcher.Close()
}

// State returns the lifecycle state.
func (w *FSNotifyWatcher) State() State {
	return State(w.state.Load())
}

// Stats returns watcher statistics.
func (w *FSNotifyWatcher) Stats() Stats {
	w.mu.RLock()
	s := Stats{
		Backend:       "fsnotify",
		State:         w.State().String(),
		WatchedPaths:  len(w.dirs),
		TotalEvents:   w.totalEvents.Load(),
		MatchedEvents: w.matchedEvents.Load(),
		Errors:        w.totalErrors.Load(),
		StartTime:     w.startTime,
	}
	if w.lastError != nil {
		s.LastError = w.lastError.Error()
	}
	w.mu.RUnlock()

	w.dispatcher.fill(&s)
	return s
}

// watchTree adds a watch for dir and every directory below it, skipping
// hidden directories.
func (w *FSNotifyWatcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watchDir(p)
	})
}

func (w *FSNotifyWatcher) watchDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// processLoop handles incoming fsnotify events.
func (w *FSNotifyWatcher) processLoop(ctx context.Context) {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case <-ctx.Done():
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.recordError(err)
		}
	}
}

// handleFSEvent converts and dispatches an fsnotify event.
func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}
	w.totalEvents.Add(1)
	path := filepath.Clean(fsEvent.Name)

	if op.Gone() && w.forgetDir(path) {
		root, _ := paths.RootOf(w.cfg.Roots, path)
		w.matchedEvents.Add(1)
		w.dispatcher.Dispatch(Event{Path: path, Root: root, Op: op, Dir: true, Timestamp: time.Now()})
		return
	}

	if op.Has(OpCreate) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.adoptDir(path)
			return
		}
	}

	root, ok := w.cfg.match(path)
	if !ok {
		return
	}
	w.matchedEvents.Add(1)
	w.dispatcher.Dispatch(Event{Path: path, Root: root, Op: op, Timestamp: time.Now()})
}

// adoptDir watches a new directory and reports files that appeared in it
// before the watch was registered.
func (w *FSNotifyWatcher) adoptDir(dir string) {
	if strings.HasPrefix(filepath.Base(dir), ".") {
		return
	}
	if err := w.watchTree(dir); err != nil {
		w.recordError(err)
		return
	}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if root, ok := w.cfg.match(p); ok {
			w.matchedEvents.Add(1)
			w.dispatcher.Dispatch(Event{Path: p, Root: root, Op: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

// forgetDir drops dir and its subdirectories from the watched set and
// reports whether dir was being watched.
func (w *FSNotifyWatcher) forgetDir(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		return false
	}
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			// fsnotify drops watches of removed directories itself.
			_ = w.watcher.Remove(d)
			delete(w.dirs, d)
		}
	}
	return true
}

// convertOp converts fsnotify.Op to watcher.Op. Chmod alone is ignored.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

// recordError records an error in stats.
func (w *FSNotifyWatcher) recordError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.logger.Warn("File event queue overflowed, changes may be missed")
	} else {
		w.logger.Warn("File watcher error", zap.Error(err))
	}
	w.totalErrors.Add(1)
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}

// Ensure FSNotifyWatcher implements Watcher.
var _ Watcher = (*FSNotifyWatcher)(nil)
