package conc

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// STMOutcomeKind tags the three ways an Atomically block can finish
// (§4.1 STM: "the STM sub-interpreter... returns one of Success,
// Retry, Exception").
type STMOutcomeKind int

const (
	STMSuccess STMOutcomeKind = iota
	STMRetryOutcome
	STMException
)

// STMOutcome is what runSTM returns to the single-step executor. On
// Success, Writes/NewTVars are the effects to commit; on
// STMRetryOutcome, WatchSet is what the calling thread blocks on; on
// STMException, Err is the raised value (propagated via the normal
// Throw machinery).
type STMOutcome struct {
	Kind     STMOutcomeKind
	Value    act.Value
	ReadSet  []ids.TVarID
	WriteSet []ids.TVarID
	Writes   map[ids.TVarID]act.Value
	NewTVars map[ids.TVarID]act.Value
	WatchSet []ids.TVarID
	Err      act.Value
}

// stmState is the scratchpad one runSTM call evaluates against: reads
// and writes are buffered here and only materialized into the
// Context's TVar table by the caller on STMSuccess, so a retried or
// aborted transaction leaves no trace (§9: "Atomic, retry/abort-capable
// transactions").
type stmState struct {
	ctx      *Context
	thread   ids.ThreadID
	reads    map[ids.TVarID]struct{}
	writes   map[ids.TVarID]act.Value
	newTVars map[ids.TVarID]act.Value
}

func newSTMState(ctx *Context, thread ids.ThreadID) *stmState {
	return &stmState{
		ctx:      ctx,
		thread:   thread,
		reads:    make(map[ids.TVarID]struct{}),
		writes:   make(map[ids.TVarID]act.Value),
		newTVars: make(map[ids.TVarID]act.Value),
	}
}

func (s *stmState) readSetSlice() []ids.TVarID {
	out := make([]ids.TVarID, 0, len(s.reads))
	for id := range s.reads {
		out = append(out, id)
	}
	return out
}

func (s *stmState) writeSetSlice() []ids.TVarID {
	out := make([]ids.TVarID, 0, len(s.writes))
	for id := range s.writes {
		out = append(out, id)
	}
	return out
}

func (s *stmState) lookup(id ids.TVarID) (act.Value, bool) {
	if v, ok := s.writes[id]; ok {
		return v, true
	}
	if v, ok := s.newTVars[id]; ok {
		return v, true
	}
	if tv, ok := s.ctx.TVars[id]; ok {
		return tv.Value, true
	}
	return nil, false
}

func (s *stmState) snapshot() (map[ids.TVarID]struct{}, map[ids.TVarID]act.Value, map[ids.TVarID]act.Value) {
	reads := make(map[ids.TVarID]struct{}, len(s.reads))
	for k, v := range s.reads {
		reads[k] = v
	}
	writes := make(map[ids.TVarID]act.Value, len(s.writes))
	for k, v := range s.writes {
		writes[k] = v
	}
	newTVars := make(map[ids.TVarID]act.Value, len(s.newTVars))
	for k, v := range s.newTVars {
		newTVars[k] = v
	}
	return reads, writes, newTVars
}

func mergeTVarSets(a map[ids.TVarID]struct{}, b []ids.TVarID) []ids.TVarID {
	out := make([]ids.TVarID, 0, len(a)+len(b))
	for id := range a {
		out = append(out, id)
	}
	seen := make(map[ids.TVarID]struct{}, len(a))
	for _, id := range out {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
			seen[id] = struct{}{}
		}
	}
	return out
}

// eval interprets one STMAction tail-recursively to a terminal outcome.
// There is no scheduler involvement inside a transaction: §4.1 states a
// completed transaction is one scheduling step regardless of internal
// work, so this runs to completion synchronously.
func (s *stmState) eval(a act.STMAction) STMOutcome {
	switch n := a.(type) {
	case *act.STMNewTVar:
		id := s.ctx.IDs.NextTVar("")
		s.newTVars[id] = n.Initial
		return s.eval(n.K(id))

	case *act.STMReadTVar:
		v, ok := s.lookup(n.TVar)
		if !ok {
			return STMOutcome{Kind: STMException, Err: act.StrValue("unknown TVar")}
		}
		s.reads[n.TVar] = struct{}{}
		return s.eval(n.K(v))

	case *act.STMWriteTVar:
		s.writes[n.TVar] = n.Value
		return s.eval(n.K())

	case *act.STMRetry:
		return STMOutcome{Kind: STMRetryOutcome, WatchSet: s.readSetSlice()}

	case *act.STMOrElse:
		savedReads, savedWrites, savedNew := s.snapshot()
		first := s.eval(n.First)
		if first.Kind != STMRetryOutcome {
			return first
		}
		firstReads := s.reads
		s.reads = savedReads
		s.writes = savedWrites
		s.newTVars = savedNew
		second := s.eval(n.Second)
		if second.Kind == STMRetryOutcome {
			return STMOutcome{Kind: STMRetryOutcome, WatchSet: mergeTVarSets(firstReads, second.WatchSet)}
		}
		return second

	case *act.STMThrow:
		return STMOutcome{Kind: STMException, Err: n.Err}

	case *act.STMReturn:
		return STMOutcome{
			Kind:     STMSuccess,
			Value:    n.Value,
			ReadSet:  s.readSetSlice(),
			WriteSet: s.writeSetSlice(),
			Writes:   s.writes,
			NewTVars: s.newTVars,
		}

	default:
		return STMOutcome{Kind: STMException, Err: act.StrValue("unknown STMAction")}
	}
}

// runSTM evaluates tx against ctx's current TVar table for thread,
// without mutating ctx: the caller applies Writes/NewTVars itself only
// on STMSuccess.
func runSTM(ctx *Context, thread ids.ThreadID, tx act.STMAction) STMOutcome {
	return newSTMState(ctx, thread).eval(tx)
}
