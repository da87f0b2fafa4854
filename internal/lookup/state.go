package lookup

import (
	"fmt"
	"sync/atomic"

	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
	"github.com/swatzat-oss/cs2-dumper/internal/resolver"
)

// State is the lifecycle position of one cached interface.
//
//	Unresolved -> Resolved   first successful lookup
//	Resolved   -> Stale      owning module reloaded
//	Stale      -> Resolved   next lookup re-resolves
type State uint8

const (
	Unresolved State = iota
	Resolved
	Stale
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "Unresolved"
	case Resolved:
		return "Resolved"
	case Stale:
		return "Stale"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

type slotKey struct {
	module string
	iface  string
}

// entry is an immutable slot value. A Stale entry carries the generation the
// module moved to, so resolutions computed against an older image cannot be
// published over it.
type entry struct {
	state      State
	generation uint64
	table      *offsets.Table
	res        resolver.Resolution
	// warn is the SuspectStale error accepted alongside res.
	warn error
}

type slot struct {
	cur atomic.Pointer[entry]
}

// publish installs e unless the slot already holds a newer generation.
func (s *slot) publish(e *entry) bool {
	for {
		old := s.cur.Load()
		if old != nil && old.generation > e.generation {
			return false
		}
		if s.cur.CompareAndSwap(old, e) {
			return true
		}
	}
}

// invalidate marks the slot Stale at generation. Reports whether a Resolved
// entry was invalidated.
func (s *slot) invalidate(generation uint64) bool {
	for {
		old := s.cur.Load()
		if old == nil || old.generation >= generation {
			return false
		}
		stale := &entry{state: Stale, generation: generation, table: old.table}
		if s.cur.CompareAndSwap(old, stale) {
			return old.state == Resolved
		}
	}
}
