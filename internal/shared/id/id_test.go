package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Len(t, id1.String(), 26)
}

func TestVersionIDPrefix(t *testing.T) {
	gen := NewGenerator()

	v := gen.NewVersionID()
	require.True(t, strings.HasPrefix(v.String(), VersionPrefix+"_"), v)

	e := gen.NewEventID()
	require.True(t, strings.HasPrefix(e.String(), EventPrefix+"_"), e)
}

func TestVersionIDsSortInGenerationOrder(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen.NewVersionID().String()
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, ids, sorted)
}

func TestTimestamp(t *testing.T) {
	gen := NewGenerator()
	before := time.Now().Add(-time.Second)

	ts, err := Timestamp(gen.NewVersionID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("ver_not-a-ulid")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := gen.NewVersionID().String()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
}
