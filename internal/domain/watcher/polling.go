package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/domain/loader"
)

type fileState struct {
	root    string
	modTime time.Time
	size    int64
}

// PollingWatcher implements Watcher by scanning the roots on a fixed
// interval and diffing modification times and sizes.
type PollingWatcher struct {
	mu sync.RWMutex

	cfg        Config
	dispatcher *Dispatcher
	logger     *zap.Logger

	snapshot map[string]fileState

	startTime   time.Time
	polls       atomic.Int64
	totalEvents atomic.Int64
	totalErrors atomic.Int64
	lastError   error

	state    atomic.Int32
	started  bool
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewPollingWatcher creates a polling watcher.
func NewPollingWatcher(cfg Config, handler Handler) (*PollingWatcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	return &PollingWatcher{
		cfg:        cfg,
		dispatcher: NewDispatcher(handler, cfg.Debounce, cfg.Logger),
		logger:     cfg.Logger,
		snapshot:   make(map[string]fileState),
		closeCh:    make(chan struct{}),
	}, nil
}

// Start takes the baseline snapshot and begins polling.
func (w *PollingWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.started {
		return ErrAlreadyRunning
	}

	files, err := w.cfg.Scanner.Discover(ctx, w.cfg.Roots)
	if err != nil {
		return err
	}
	w.snapshot = toSnapshot(files)
	w.started = true
	w.startTime = time.Now()
	w.state.Store(int32(StateWatching))

	w.closedWg.Add(1)
	go w.pollLoop(ctx)

	w.logger.Info("Watching configuration roots",
		zap.String("backend", "polling"),
		zap.Strings("roots", w.cfg.Roots),
		zap.Duration("interval", w.cfg.PollInterval),
		zap.Int("files", len(w.snapshot)))
	return nil
}

func toSnapshot(files []loader.FileInfo) map[string]fileState {
	snap := make(map[string]fileState, len(files))
	for _, f := range files {
		snap[f.Path] = fileState{root: f.Root, modTime: f.ModTime, size: f.Size}
	}
	return snap
}

func (w *PollingWatcher) pollLoop(ctx context.Context) {
	defer w.closedWg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.closeCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll performs one scan and dispatches an event per difference. A failed
// scan keeps the previous snapshot.
func (w *PollingWatcher) Poll(ctx context.Context) {
	w.polls.Add(1)

	files, err := w.cfg.Scanner.Discover(ctx, w.cfg.Roots)
	if err != nil {
		w.totalErrors.Add(1)
		w.mu.Lock()
		w.lastError = err
		w.mu.Unlock()
		w.logger.Warn("Configuration scan failed", zap.Error(err))
		return
	}
	next := toSnapshot(files)
	now := time.Now()

	w.mu.Lock()
	prev := w.snapshot
	w.snapshot = next
	w.mu.Unlock()

	var events []Event
	for path, cur := range next {
		old, existed := prev[path]
		switch {
		case !existed:
			events = append(events, Event{Path: path, Root: cur.root, Op: OpCreate, Timestamp: now})
		case !old.modTime.Equal(cur.modTime) || old.size != cur.size:
			events = append(events, Event{Path: path, Root: cur.root, Op: OpWrite, Timestamp: now})
		}
	}
	for path, old := range prev {
		if _, still := next[path]; !still {
			events = append(events, Event{Path: path, Root: old.root, Op: OpRemove, Timestamp: now})
		}
	}

	for _, ev := range events {
		w.totalEvents.Add(1)
		w.dispatcher.Dispatch(ev)
	}
}

// Stop stops polling and waits for in-flight callbacks.
func (w *PollingWatcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()
	w.dispatcher.Close()
	w.state.Store(int32(StateStopped))
	return nil
}

// State returns the lifecycle state.
func (w *PollingWatcher) State() State {
	return State(w.state.Load())
}

// Stats returns watcher statistics.
func (w *PollingWatcher) Stats() Stats {
	w.mu.RLock()
	s := Stats{
		Backend:       "polling",
		State:         w.State().String(),
		WatchedPaths:  len(w.snapshot),
		TotalEvents:   w.totalEvents.Load(),
		MatchedEvents: w.totalEvents.Load(),
		Polls:         w.polls.Load(),
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

var _ Watcher = (*PollingWatcher)(nil)
