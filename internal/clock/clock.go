// Package clock provides the monotonic millisecond clock and
// lexicographically-sortable id generation shared across the core.
package clock

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Clock abstracts wall-clock access so components under test can inject a
// fixed or stepped time source instead of reading the real system clock.
type Clock interface {
	NowMillis() int64
}

// System is the production Clock, backed by time.Now.
type System struct{}

// NowMillis returns the current time as Unix milliseconds.
func (System) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// IDGenerator produces lexicographically-sortable, time-ordered ids.
type IDGenerator struct {
	clock Clock
	mu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDGenerator builds an IDGenerator backed by the given Clock. A nil
// clock defaults to System{}.
func NewIDGenerator(c Clock) *IDGenerator {
	if c == nil {
		c = System{}
	}
	return &IDGenerator{
		clock:   c,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// New returns a new time-ordered id string for the generator's current
// clock reading. Safe for concurrent use.
func (g *IDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := uint64(g.clock.NowMillis())
	id := ulid.MustNew(ms, g.entropy)
	return id.String()
}
