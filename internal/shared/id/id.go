// Package id provides ULID generation for configuration versions and events.
//
// ULIDs are lexicographically sortable, so version IDs of successive
// accepted reloads of the same file sort in acceptance order.
//
//   - Prefixed types: ver_* for accepted configuration versions, evt_* for
//     registry change events, trc_* and spn_* for request tracing
//   - Thread-safe: the entropy source is guarded by a mutex
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// VersionID identifies one accepted version of a configuration file.
type VersionID string

// EventID identifies one registry change event.
type EventID string

const (
	VersionPrefix = "ver"
	EventPrefix   = "evt"
	TracePrefix   = "trc"
	SpanPrefix    = "spn"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

// NewGenerator creates a ULID generator backed by crypto/rand with
// monotonic entropy within the same millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewVersionID generates a configuration version ID.
func (g *Generator) NewVersionID() VersionID {
	return VersionID(g.GenerateWithPrefix(VersionPrefix))
}

// NewEventID generates a change event ID.
func (g *Generator) NewEventID() EventID {
	return EventID(g.GenerateWithPrefix(EventPrefix))
}

func (id VersionID) String() string { return string(id) }
func (id EventID) String() string   { return string(id) }

// Timestamp extracts the generation time from a plain or prefixed ID.
func Timestamp(id string) (time.Time, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}
