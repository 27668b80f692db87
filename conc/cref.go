package conc

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// CRef is the authoritative state of one shared mutable cell (§3 CRef
// internal state): its current value and a monotonic tick bumped on
// every authoritative mutation. It keeps no per-thread view; a thread's
// own not-yet-committed writes are forwarded to it by the WriteBuffer.
type CRef struct {
	ID    ids.CRefID
	Value act.Value
	Tick  uint64
}

func newCRef(id ids.CRefID, initial act.Value) *CRef {
	return &CRef{ID: id, Value: initial}
}

// write stores v as the new authoritative value and bumps the tick. It
// is used both by SequentialConsistency's immediate write and by a
// WriteBuffer commit settling a delayed store.
func (c *CRef) write(v act.Value) {
	c.Value = v
	c.Tick++
}

// ticket snapshots this cell's current tick and value for a later
// CasCRef (§3: "a Ticket is (thread, tick, snapshot-value)").
func (c *CRef) ticket(thread ids.ThreadID) act.Ticket {
	return act.Ticket{Thread: thread, Tick: c.Tick, Value: c.Value}
}

// cas applies a compare-and-swap: it succeeds iff t's tick still
// matches the cell's current tick (invariant I4), and bumps the tick on
// success so a stale ticket can never succeed twice.
func (c *CRef) cas(t act.Ticket, newValue act.Value) (bool, act.Ticket) {
	if t.Tick != c.Tick {
		return false, c.ticket(t.Thread)
	}
	c.write(newValue)
	return true, c.ticket(t.Thread)
}

func (c *CRef) clone() *CRef {
	return &CRef{ID: c.ID, Value: c.Value, Tick: c.Tick}
}
