// Package dpor implements the DPOR explorer (components G–J): the
// exploration tree, dependency and bound functions, backtracking
// insertion, and the driver loop that repeatedly drives conc.RunConcurrency
// to bounded exhaustion.
package dpor

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// DepState tracks the pieces of derived state the dependency function
// needs but that a single ThreadAction doesn't carry on its own (§4.5):
// which CRefs have had a write that no CommitCRef step has settled yet
// (so two writes/reads to the same cell are dependent even without an
// explicit commit yet; the mark is set by every WriteCRef, under any
// memory model, and is cleared only by a CommitCRef of that cell, not
// by a barrier flush, so the set can hold cells with nothing left in
// the buffer), and each thread's last-known masking state (so a
// ThrowTo's dependency on its target can be judged without re-deriving
// interruptibility from the whole thread table).
type DepState struct {
	PendingWriteCRefs map[ids.CRefID]bool
	Masking           map[ids.ThreadID]act.MaskingState
	Blocked           map[ids.ThreadID]bool
}

func newDepState() DepState {
	return DepState{
		PendingWriteCRefs: make(map[ids.CRefID]bool),
		Masking:           make(map[ids.ThreadID]act.MaskingState),
		Blocked:           make(map[ids.ThreadID]bool),
	}
}

func (d DepState) clone() DepState {
	c := newDepState()
	for k, v := range d.PendingWriteCRefs {
		c.PendingWriteCRefs[k] = v
	}
	for k, v := range d.Masking {
		c.Masking[k] = v
	}
	for k, v := range d.Blocked {
		c.Blocked[k] = v
	}
	return c
}

// advance folds one executed ThreadAction into the state, returning the
// updated value (DepState is small enough to treat as a value type
// threaded through the scheduler one step at a time).
func (d DepState) advance(ta act.ThreadAction) DepState {
	next := d.clone()
	switch ta.Kind {
	case act.TAWriteCRef:
		next.PendingWriteCRefs[ta.CRef] = true
	case act.TACommitCRef:
		delete(next.PendingWriteCRefs, ta.CRef)
	case act.TAMasking, act.TAResetMask:
		next.Masking[ta.Actor] = ta.MaskState
	}
	switch ta.Kind {
	case act.TABlockedPutMVar, act.TABlockedTakeMVar, act.TABlockedReadMVar, act.TABlockedSTM, act.TABlockedThrowTo:
		next.Blocked[ta.Actor] = true
	default:
		delete(next.Blocked, ta.Actor)
	}
	return next
}

// depStateFromTrace replays a trace from scratch, used when the
// explorer needs DepState at an arbitrary prefix length (backtracking
// insertion walks the whole trace once per step anyway).
func depStateFromTrace(trace []act.TraceStep) DepState {
	d := newDepState()
	for _, step := range trace {
		d = d.advance(step.Action)
	}
	return d
}
