package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// collector gathers handled events.
type collector chan Event

func (c collector) handle(ctx context.Context, ev Event) { c <- ev }

// await returns the first event for path matching op within timeout.
func (c collector) await(t *testing.T, path string, op Op) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c:
			if ev.Path == path && ev.Op.Has(op) {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event for %s", op, path)
			return Event{}
		}
	}
}

func TestOpHelpers(t *testing.T) {
	op := OpCreate | OpWrite
	assert.True(t, op.Has(OpCreate))
	assert.False(t, op.Has(OpRemove))
	assert.False(t, op.Gone())
	assert.True(t, OpRename.Gone())
	assert.Equal(t, "REMOVE", OpRemove.String())
	assert.Equal(t, "watching", StateWatching.String())
}

func TestNewRequiresRoots(t *testing.T) {
	_, err := New(Config{}, func(context.Context, Event) {})
	assert.ErrorIs(t, err, ErrNoRoots)
}

func TestNewForcePolling(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(Config{Roots: []string{t.TempDir()}, ForcePolling: true}, func(context.Context, Event) {})
	require.NoError(t, err)
	_, ok := w.(*PollingWatcher)
	assert.True(t, ok)
	require.NoError(t, w.Stop())
}

func TestPollingWatcherDetectsChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	existing := filepath.Join(root, "main", "a.yaml")
	writeFile(t, existing, "selectors: {}\n")

	events := make(collector, 16)
	w, err := NewPollingWatcher(Config{
		Roots:        []string{root},
		PollInterval: time.Hour,
		Logger:       zaptest.NewLogger(t),
	}, events.handle)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, StateWatching, w.State())
	assert.ErrorIs(t, w.Start(context.Background()), ErrAlreadyRunning)

	created := filepath.Join(root, "fixture", "b.yaml")
	writeFile(t, created, "selectors: {}\n")
	writeFile(t, filepath.Join(root, "fixture", "notes.txt"), "ignored")
	w.Poll(context.Background())
	ev := events.await(t, created, OpCreate)
	assert.Equal(t, root, ev.Root)

	writeFile(t, existing, "selectors: {}\n# edited, longer content\n")
	w.Poll(context.Background())
	events.await(t, existing, OpWrite)

	require.NoError(t, os.Remove(created))
	w.Poll(context.Background())
	events.await(t, created, OpRemove)

	// nothing changed: no events
	w.Poll(context.Background())

	require.NoError(t, w.Stop())
	assert.Equal(t, StateStopped, w.State())
	assert.Empty(t, events)

	stats := w.Stats()
	assert.Equal(t, "polling", stats.Backend)
	assert.Equal(t, int64(4), stats.Polls)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.ErrorIs(t, w.Start(context.Background()), ErrWatcherClosed)
}

func TestFSNotifyWatcherDeliversMatchedEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "main"), 0o755))

	events := make(collector, 64)
	w, err := NewFSNotifyWatcher(Config{Roots: []string{root}, Logger: zaptest.NewLogger(t)}, events.handle)
	if err != nil {
		t.Skipf("native notification unavailable: %v", err)
	}
	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(root, "main", "a.yaml")
	writeFile(t, path, "selectors: {}\n")
	events.await(t, path, OpCreate)

	// new directories are adopted, including files created before the watch
	nested := filepath.Join(root, "main", "deep", "b.yml")
	writeFile(t, nested, "selectors: {}\n")
	events.await(t, nested, OpCreate)

	writeFile(t, filepath.Join(root, "main", "ignored.txt"), "x")

	require.NoError(t, os.Remove(path))
	events.await(t, path, OpRemove)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "main", "deep")))
	deadline := time.After(5 * time.Second)
	for found := false; !found; {
		select {
		case ev := <-events:
			assert.NotEqual(t, filepath.Join(root, "main", "ignored.txt"), ev.Path)
			found = ev.Dir && ev.Path == filepath.Join(root, "main", "deep") ||
				ev.Path == nested && ev.Op.Gone()
		case <-deadline:
			t.Fatal("directory removal not reported")
		}
	}

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Equal(t, StateStopped, w.State())
	stats := w.Stats()
	assert.Equal(t, "fsnotify", stats.Backend)
	assert.Positive(t, stats.MatchedEvents)
}

func TestFSNotifyWatcherStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewFSNotifyWatcher(Config{Roots: []string{t.TempDir()}}, func(context.Context, Event) {})
	if err != nil {
		t.Skipf("native notification unavailable: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	require.NoError(t, w.Stop())
}
