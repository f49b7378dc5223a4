package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Dispatcher delivers events to a handler without blocking the caller.
// Events for one path are handled in order, one at a time; different paths
// are handled concurrently. With a debounce delay, a burst of events for
// one path collapses into its last event.
type Dispatcher struct {
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	queues  map[string]*pathQueue
	timers  map[string]*time.Timer
	pending map[string]Event
	closed  bool
	wg      sync.WaitGroup

	dispatched atomic.Int64
	coalesced  atomic.Int64
}

type pathQueue struct {
	events []Event
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(handler Handler, debounce time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler:  handler,
		debounce: debounce,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		queues:   make(map[string]*pathQueue),
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]Event),
	}
}

// Dispatch schedules ev. It never blocks on the handler.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.debounce <= 0 {
		d.enqueue(ev)
		return
	}

	if t, ok := d.timers[ev.Path]; ok {
		t.Stop()
		d.coalesced.Add(1)
	}
	d.pending[ev.Path] = ev
	path := ev.Path
	var t *time.Timer
	t = time.AfterFunc(d.debounce, func() { d.fire(path, t) })
	d.timers[path] = t
}

// fire delivers the pending event of path unless t was superseded.
func (d *Dispatcher) fire(path string, t *time.Timer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.timers[path] != t {
		return
	}
	ev, ok := d.pending[path]
	if !ok {
		return
	}
	delete(d.pending, path)
	delete(d.timers, path)
	d.enqueue(ev)
}

// enqueue must be called with d.mu held.
func (d *Dispatcher) enqueue(ev Event) {
	if q, running := d.queues[ev.Path]; running {
		q.events = append(q.events, ev)
		return
	}
	q := &pathQueue{events: []Event{ev}}
	d.queues[ev.Path] = q
	d.wg.Add(1)
	go d.drain(ev.Path, q)
}

func (d *Dispatcher) drain(path string, q *pathQueue) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		if len(q.events) == 0 {
			delete(d.queues, path)
			d.mu.Unlock()
			return
		}
		ev := q.events[0]
		q.events = q.events[1:]
		d.mu.Unlock()

		d.invoke(ev)
	}
}

func (d *Dispatcher) invoke(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Change handler panicked",
				zap.String("path", ev.Path),
				zap.Stringer("op", ev.Op),
				zap.Any("panic", r))
		}
	}()
	d.dispatched.Add(1)
	d.handler(d.ctx, ev)
}

// InFlight returns the number of paths with queued or running callbacks.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Close drops pending debounced events and waits for running callbacks.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
	d.pending = make(map[string]Event)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}

func (d *Dispatcher) fill(s *Stats) {
	s.Dispatched = d.dispatched.Load()
	s.Coalesced = d.coalesced.Load()
	s.InFlight = d.InFlight()
}
