// Package idgen owns the naming state described in spec §5: a
// monotone counter for freshly allocated translation-variable names
// (never decremented; each Engine creates its own, so names are
// unique within one run), and a uuid minter for opaque handles (solver groups,
// encoder layers) that are compared and logged but never need to be
// dense or ordered.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Counter is a strictly-monotone, concurrency-safe name generator.
// Two concurrent Engines sharing a Counter interleave generated names
// but never collide; two Engines with independent Counters may reuse
// the same names, which is fine since names only need to be unique
// within a single verification run's registry.
type Counter struct {
	next atomic.Uint64
}

// NewCounter returns a Counter starting at 0.
func NewCounter() *Counter { return &Counter{} }

// Fresh returns a new name of the form "<prefix>$<n>", prefix chosen
// by the caller to keep names readable in dumps (e.g. "tv", "auxF").
func (c *Counter) Fresh(prefix string) string {
	n := c.next.Add(1) - 1
	return fmt.Sprintf("%s$%d", prefix, n)
}

// Handle is an opaque identifier for a solver group or encoder layer.
// It is compared and logged, never ordered or hashed into a dense
// index, so a uuid is a better fit than extending Counter to double as
// a second, semantically unrelated id space.
type Handle struct {
	id uuid.UUID
}

// NewHandle mints a fresh opaque handle.
func NewHandle() Handle { return Handle{id: uuid.New()} }

func (h Handle) String() string { return h.id.String() }

// Zero reports whether h is the unset handle.
func (h Handle) Zero() bool { return h.id == uuid.Nil }
