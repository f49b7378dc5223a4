package registry

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/selectorkit/internal/shared/id"
)

// ChangeKind describes what happened to a configuration path.
type ChangeKind int

const (
	// ChangeLoaded indicates a path was accepted for the first time.
	ChangeLoaded ChangeKind = iota

	// ChangeReloaded indicates a new version replaced an accepted one.
	ChangeReloaded

	// ChangeRejected indicates a reload failed; the previous version, if
	// any, stays in effect.
	ChangeRejected

	// ChangeRemoved indicates a path was purged.
	ChangeRemoved
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeLoaded:
		return "loaded"
	case ChangeReloaded:
		return "reloaded"
	case ChangeRejected:
		return "rejected"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ChangeEvent is delivered to subscribers after the registry state changed.
type ChangeEvent struct {
	ID   id.EventID
	Path string
	Kind ChangeKind

	// VersionID is the version in effect after the change. Empty when the
	// path is not loaded.
	VersionID string

	// Err is the load error of a rejected reload.
	Err  error
	Time time.Time
}

// EventRecord is the wire form of a ChangeEvent.
type EventRecord struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Kind      string    `json:"kind"`
	VersionID string    `json:"version_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Record converts e for JSON output.
func (e ChangeEvent) Record() EventRecord {
	rec := EventRecord{
		ID:        e.ID.String(),
		Path:      e.Path,
		Kind:      e.Kind.String(),
		VersionID: e.VersionID,
		Time:      e.Time,
	}
	if e.Err != nil {
		rec.Error = e.Err.Error()
	}
	return rec
}

// Observer receives change events. It runs on the reloading goroutine and
// must not block.
type Observer func(ChangeEvent)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier fans change events out to observers.
type Notifier struct {
	mu        sync.RWMutex
	observers map[uint64]Observer
	nextID    uint64
	ids       *id.Generator
}

// NewNotifier creates a notifier.
func NewNotifier(ids *id.Generator) *Notifier {
	if ids == nil {
		ids = id.NewGenerator()
	}
	return &Notifier{
		observers: make(map[uint64]Observer),
		ids:       ids,
	}
}

// Subscribe registers an observer for every change.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	n.observers[n.nextID] = observer
	return &Subscription{id: n.nextID, notifier: n}
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	delete(n.observers, id)
	n.mu.Unlock()
}

// Notify stamps ev and delivers it to every observer.
func (n *Notifier) Notify(ev ChangeEvent) {
	ev.ID = n.ids.NewEventID()
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	n.mu.RLock()
	observers := make([]Observer, 0, len(n.observers))
	for _, o := range n.observers {
		observers = append(observers, o)
	}
	n.mu.RUnlock()

	for _, o := range observers {
		o(ev)
	}
}

// Len returns the number of subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}
