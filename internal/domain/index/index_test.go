package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

func config(path string, defs ...[2]string) *selector.SelectorConfiguration {
	cfg := &selector.SelectorConfiguration{Path: path, Selectors: map[string]*selector.SemanticSelector{}}
	for _, d := range defs {
		cfg.Selectors[d[0]] = &selector.SemanticSelector{
			Name:        d[0],
			Context:     d[1],
			Description: d[0] + " in " + d[1],
			Strategies: []selector.StrategyDefinition{
				selector.NewInline(selector.CSSSelector, map[string]any{"selector": "#" + d[0]}, 1),
			},
		}
	}
	return cfg
}

func sel(name, context string) [2]string { return [2]string{name, context} }

func TestLookupFallback(t *testing.T) {
	x := New(zaptest.NewLogger(t))
	x.Build(map[string]*selector.SelectorConfiguration{
		"/s/a.yaml": config("/s/a.yaml", sel("next_page", "search"), sel("results", "search.results")),
	})

	e := x.Lookup("results", "search.results")
	require.NotNil(t, e)
	assert.Equal(t, "search.results", e.Context)

	// page.section absent, page present
	e = x.Lookup("next_page", "search.results")
	require.NotNil(t, e)
	assert.Equal(t, "search", e.Context)

	// deeper ancestry
	e = x.Lookup("next_page", "search.results.grid")
	require.NotNil(t, e)
	assert.Equal(t, "search", e.Context)

	// global fallback for an unrelated context
	e = x.Lookup("results", "checkout")
	require.NotNil(t, e)
	assert.Equal(t, "search.results", e.Context)
	assert.Nil(t, x.LookupScoped("results", "checkout"))

	assert.Nil(t, x.Lookup("missing", "search.results"))
}

func TestConflictDetection(t *testing.T) {
	x := New(zaptest.NewLogger(t))
	x.Build(map[string]*selector.SelectorConfiguration{
		"/s/a.yaml": config("/s/a.yaml", sel("x", "a")),
		"/s/b.yaml": config("/s/b.yaml", sel("x", "b"), sel("y", "b")),
	})

	conflicts := x.FindConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "x", conflicts[0].Name)
	assert.Equal(t, []string{"a", "b"}, conflicts[0].Contexts())

	assert.Equal(t, "a", x.Lookup("x", "a").Context)
	assert.Equal(t, "b", x.Lookup("x", "b").Context)
	assert.Empty(t, x.DuplicateWarnings())
}

func TestDuplicateInSameContextLastWins(t *testing.T) {
	x := New(zaptest.NewLogger(t))
	x.Build(map[string]*selector.SelectorConfiguration{
		"/s/b.yaml": config("/s/b.yaml", sel("title", "content.page")),
		"/s/a.yaml": config("/s/a.yaml", sel("title", "content.page")),
	})

	var matching []*selector.IndexEntry
	for _, e := range x.Entries() {
		if e.Context == "content.page" && e.Name == "title" {
			matching = append(matching, e)
		}
	}
	require.Len(t, matching, 1)
	assert.Equal(t, "/s/b.yaml", matching[0].SourceFile)
	assert.Equal(t, "/s/b.yaml", x.Lookup("title", "content.page").SourceFile)

	warnings := x.DuplicateWarnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, DuplicateWarning{
		Name:     "title",
		Context:  "content.page",
		Winner:   "/s/b.yaml",
		Shadowed: []string{"/s/a.yaml"},
	}, warnings[0])
	assert.Empty(t, x.FindConflicts())

	// removing the winner restores the shadowed definition
	x.Remove("/s/b.yaml")
	assert.Equal(t, "/s/a.yaml", x.Lookup("title", "content.page").SourceFile)
	assert.Empty(t, x.DuplicateWarnings())
}

func TestIncrementalUpdateTouchesOnlyOwner(t *testing.T) {
	x := New(zaptest.NewLogger(t))
	x.Build(map[string]*selector.SelectorConfiguration{
		"/s/a.yaml": config("/s/a.yaml", sel("one", "p"), sel("two", "p")),
		"/s/b.yaml": config("/s/b.yaml", sel("three", "q")),
	})
	before := x.Lookup("three", "q")

	x.Update("/s/a.yaml", config("/s/a.yaml", sel("one", "p.s")))

	assert.Nil(t, x.Lookup("two", "p"))
	assert.Equal(t, "p.s", x.Lookup("one", "p.s").Context)
	assert.Nil(t, x.LookupScoped("one", "p"))
	assert.Same(t, before, x.Lookup("three", "q"))

	x.Remove("/s/a.yaml")
	assert.Nil(t, x.Lookup("one", "p.s"))
	assert.Equal(t, []string{"/s/b.yaml"}, x.Files())
	assert.Equal(t, []string{"q"}, x.Contexts())

	x.Remove("/s/never-loaded.yaml")
	assert.Equal(t, 1, x.Stats().Entries)
}

func TestStats(t *testing.T) {
	x := New(nil)
	x.Build(map[string]*selector.SelectorConfiguration{
		"/s/a.yaml": config("/s/a.yaml", sel("x", "a"), sel("t", "c")),
		"/s/b.yaml": config("/s/b.yaml", sel("x", "b"), sel("t", "c")),
	})

	assert.Equal(t, Stats{
		Names:      2,
		Entries:    3,
		Contexts:   3,
		Files:      2,
		Conflicts:  1,
		Duplicates: 1,
	}, x.Stats())
	assert.Len(t, x.EntriesFor("x"), 2)
}

func TestConcurrentReadersNeverSeeHalfUpdate(t *testing.T) {
	x := New(nil)
	x.Build(map[string]*selector.SelectorConfiguration{
		"/s/a.yaml": config("/s/a.yaml", sel("first", "p"), sel("second", "p")),
	})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			ctx := fmt.Sprintf("p%d", i%2)
			x.Update("/s/a.yaml", config("/s/a.yaml", sel("first", ctx), sel("second", ctx)))
		}
	}()

	for i := 0; i < 2000; i++ {
		x.mu.RLock()
		a := x.global["first"]
		b := x.global["second"]
		x.mu.RUnlock()
		if len(a) != 1 || len(b) != 1 || a[0].Context != b[0].Context {
			select {
			case errs <- fmt.Errorf("inconsistent view: %v %v", a, b):
			default:
			}
		}
	}
	close(stop)
	wg.Wait()

	select {
	case err := <-errs:
		t.Fatal(err)
	default:
	}
}
