package conc

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// StepError is an engine invariant violation (§7 tier 3): it should
// never occur under a conforming scheduler and aborts the current
// execution with InternalError.
type StepError struct{ Msg string }

func (e *StepError) Error() string { return e.Msg }

func internalErr(msg string) error { return &StepError{Msg: msg} }

// valueError adapts a thrown act.Value to the Go error type expected by
// an exception handler's signature (func(error) Action).
type valueError struct{ v act.Value }

func (e valueError) Error() string { return e.v.String() }

func unblock(ctx *Context, tid ids.ThreadID) {
	if t, ok := ctx.Threads[tid]; ok {
		t.Status = Running
		t.Block = nil
	}
}

func writeBarrier(ctx *Context, thread ids.ThreadID) {
	if ctx.Memory == SequentialConsistency {
		return
	}
	for _, pw := range ctx.WriteBuf.FlushThread(thread) {
		if c, ok := ctx.CRefs[pw.CRef]; ok {
			c.write(pw.Value)
		}
	}
}

// identityUmask is the umask a freshly forked thread receives before any
// Masking region is active (§4.1 Fork: "continuation = body(umask⊥)").
func identityUmask(a act.Action) act.Action { return a }

// doThrow searches target's handler stack top-down (§9 Exception-handler
// stacks). If none remains and target is the initial thread, the whole
// execution fails with UncaughtException; otherwise only target dies.
func doThrow(ctx *Context, target ids.ThreadID, errVal act.Value) {
	t, ok := ctx.Threads[target]
	if !ok {
		return
	}
	if h, ok := t.popHandler(); ok {
		t.Continuation = h(valueError{errVal})
		t.Status = Running
		t.Block = nil
		return
	}
	delete(ctx.Threads, target)
	if target == ids.InitialThread {
		ctx.Failed = true
		ctx.FailureKind = FailureUncaughtException
	}
}

func tvarSetUnion(a, b []ids.TVarID) []ids.TVarID {
	seen := make(map[ids.TVarID]struct{}, len(a)+len(b))
	out := make([]ids.TVarID, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Step is the single-step executor (component E, §4.1): it reduces
// chosen's current Continuation by exactly one primitive and reports the
// observed ThreadAction. The caller guarantees chosen is runnable.
func Step(ctx *Context, chosen ids.ThreadID) (ta act.ThreadAction, err error) {
	t, ok := ctx.Threads[chosen]
	if !ok || t.Status == Blocked {
		return act.ThreadAction{}, internalErr("Step: chosen thread is not runnable")
	}
	defer func() {
		if err == nil {
			ta.Actor = chosen
		}
	}()

	switch n := t.Continuation.(type) {

	case *act.Fork:
		newtid := ctx.IDs.NextThread(n.Name)
		ctx.Threads[newtid] = newThread(newtid, n.Name, n.Body(identityUmask), t.Masking)
		t.Continuation = n.K(newtid)
		return act.ThreadAction{Kind: act.TAFork, Forked: newtid}, nil

	case *act.MyTid:
		t.Continuation = n.K(chosen)
		return act.ThreadAction{Kind: act.TAMyTid}, nil

	case *act.Yield:
		t.Continuation = n.K(act.NoneValue{})
		return act.ThreadAction{Kind: act.TAYield}, nil

	case *act.Return:
		if chosen == ids.InitialThread {
			ctx.FinalValue = n.Value
			ctx.HasFinalValue = true
		}
		delete(ctx.Threads, chosen)
		return act.ThreadAction{Kind: act.TAReturn}, nil

	case *act.Stop:
		if chosen == ids.InitialThread {
			ctx.FinalValue = act.NoneValue{}
			ctx.HasFinalValue = true
		}
		delete(ctx.Threads, chosen)
		return act.ThreadAction{Kind: act.TAStop}, nil

	case *act.LiftExternal:
		v, err := n.Effect()
		if err != nil {
			doThrow(ctx, chosen, act.ExceptionValue{Err: err})
			return act.ThreadAction{Kind: act.TALiftExternal}, nil
		}
		t.Continuation = n.K(v)
		return act.ThreadAction{Kind: act.TALiftExternal}, nil

	case *act.GetCaps:
		t.Continuation = n.K(ctx.Caps.N)
		return act.ThreadAction{Kind: act.TAGetCaps}, nil

	case *act.SetCaps:
		ctx.Caps.N = n.N
		t.Continuation = n.K(act.NoneValue{})
		return act.ThreadAction{Kind: act.TASetCaps}, nil

	case *act.Message:
		t.Continuation = n.K(act.NoneValue{})
		return act.ThreadAction{Kind: act.TAMessage}, nil

	// --- MVar ---

	case *act.NewMVar:
		id := ctx.IDs.NextMVar("")
		ctx.MVars[id] = newMVar(id, n.Initial)
		t.touch('m', uint64(id))
		t.Continuation = n.K(id)
		return act.ThreadAction{Kind: act.TANewMVar, MVar: id}, nil

	case *act.PutMVar:
		writeBarrier(ctx, chosen)
		m := ctx.MVars[n.MVar]
		t.touch('m', uint64(n.MVar))
		if !m.Full {
			woken := m.put(n.Value)
			for _, w := range woken {
				unblock(ctx, w)
			}
			t.Continuation = n.K(act.NoneValue{})
			return act.ThreadAction{Kind: act.TAPutMVar, MVar: n.MVar, Woken: woken}, nil
		}
		t.Status = Blocked
		t.Block = &act.BlockReason{Kind: act.OnMVarFull, MVar: n.MVar}
		m.blockPutter(chosen)
		return act.ThreadAction{Kind: act.TABlockedPutMVar, MVar: n.MVar}, nil

	case *act.TryPutMVar:
		writeBarrier(ctx, chosen)
		m := ctx.MVars[n.MVar]
		t.touch('m', uint64(n.MVar))
		if !m.Full {
			woken := m.put(n.Value)
			for _, w := range woken {
				unblock(ctx, w)
			}
			t.Continuation = n.K(true)
			return act.ThreadAction{Kind: act.TATryPutMVar, MVar: n.MVar, Success: true, Woken: woken}, nil
		}
		t.Continuation = n.K(false)
		return act.ThreadAction{Kind: act.TATryPutMVar, MVar: n.MVar, Success: false}, nil

	case *act.ReadMVar:
		writeBarrier(ctx, chosen)
		m := ctx.MVars[n.MVar]
		t.touch('m', uint64(n.MVar))
		if m.Full {
			t.Continuation = n.K(m.read())
			return act.ThreadAction{Kind: act.TAReadMVar, MVar: n.MVar}, nil
		}
		t.Status = Blocked
		t.Block = &act.BlockReason{Kind: act.OnMVarEmpty, MVar: n.MVar}
		m.blockWaiter(chosen)
		return act.ThreadAction{Kind: act.TABlockedReadMVar, MVar: n.MVar}, nil

	case *act.TryReadMVar:
		m := ctx.MVars[n.MVar]
		t.touch('m', uint64(n.MVar))
		if m.Full {
			t.Continuation = n.K(m.read(), true)
			return act.ThreadAction{Kind: act.TATryReadMVar, MVar: n.MVar, Success: true}, nil
		}
		t.Continuation = n.K(act.NoneValue{}, false)
		return act.ThreadAction{Kind: act.TATryReadMVar, MVar: n.MVar, Success: false}, nil

	case *act.TakeMVar:
		writeBarrier(ctx, chosen)
		m := ctx.MVars[n.MVar]
		t.touch('m', uint64(n.MVar))
		if m.Full {
			v, woken := m.take()
			for _, w := range woken {
				unblock(ctx, w)
			}
			t.Continuation = n.K(v)
			return act.ThreadAction{Kind: act.TATakeMVar, MVar: n.MVar, Woken: woken}, nil
		}
		t.Status = Blocked
		t.Block = &act.BlockReason{Kind: act.OnMVarEmpty, MVar: n.MVar}
		m.blockWaiter(chosen)
		return act.ThreadAction{Kind: act.TABlockedTakeMVar, MVar: n.MVar}, nil

	case *act.TryTakeMVar:
		writeBarrier(ctx, chosen)
		m := ctx.MVars[n.MVar]
		t.touch('m', uint64(n.MVar))
		if m.Full {
			v, woken := m.take()
			for _, w := range woken {
				unblock(ctx, w)
			}
			t.Continuation = n.K(v, true)
			return act.ThreadAction{Kind: act.TATryTakeMVar, MVar: n.MVar, Success: true, Woken: woken}, nil
		}
		t.Continuation = n.K(act.NoneValue{}, false)
		return act.ThreadAction{Kind: act.TATryTakeMVar, MVar: n.MVar, Success: false}, nil

	// --- CRef ---

	case *act.NewCRef:
		id := ctx.IDs.NextCRef("")
		ctx.CRefs[id] = newCRef(id, n.Initial)
		t.touch('c', uint64(id))
		t.Continuation = n.K(id)
		return act.ThreadAction{Kind: act.TANewCRef, CRef: id}, nil

	case *act.ReadCRef:
		t.touch('c', uint64(n.CRef))
		var v act.Value
		if ctx.Memory != SequentialConsistency {
			if bv, ok := ctx.WriteBuf.ThreadLocalRead(chosen, n.CRef); ok {
				v = bv
			}
		}
		if v == nil {
			v = ctx.CRefs[n.CRef].Value
		}
		t.Continuation = n.K(v)
		return act.ThreadAction{Kind: act.TAReadCRef, CRef: n.CRef}, nil

	case *act.ReadCRefCas:
		// Snapshots the authoritative cell directly, bypassing this
		// thread's own write buffer: a ticket must reflect the tick the
		// eventual CasCRef will validate against, which only ever
		// advances on authoritative commits (§3 CRef internal state).
		t.touch('c', uint64(n.CRef))
		c := ctx.CRefs[n.CRef]
		t.Continuation = n.K(c.Value, c.ticket(chosen))
		return act.ThreadAction{Kind: act.TAReadCRefCas, CRef: n.CRef}, nil

	case *act.ModCRef:
		writeBarrier(ctx, chosen)
		t.touch('c', uint64(n.CRef))
		c := ctx.CRefs[n.CRef]
		newVal, resVal := n.Fn(c.Value)
		c.write(newVal)
		t.Continuation = n.K(resVal)
		return act.ThreadAction{Kind: act.TAModCRef, CRef: n.CRef}, nil

	case *act.ModCRefCas:
		writeBarrier(ctx, chosen)
		t.touch('c', uint64(n.CRef))
		c := ctx.CRefs[n.CRef]
		newVal, resVal := n.Fn(c.Value)
		c.write(newVal)
		t.Continuation = n.K(resVal)
		return act.ThreadAction{Kind: act.TAModCRefCas, CRef: n.CRef}, nil

	case *act.WriteCRef:
		t.touch('c', uint64(n.CRef))
		if ctx.Memory == SequentialConsistency {
			ctx.CRefs[n.CRef].write(n.Value)
		} else {
			ctx.WriteBuf.Enqueue(chosen, n.CRef, n.Value)
		}
		t.Continuation = n.K(act.NoneValue{})
		return act.ThreadAction{Kind: act.TAWriteCRef, CRef: n.CRef}, nil

	case *act.CasCRef:
		writeBarrier(ctx, chosen)
		t.touch('c', uint64(n.CRef))
		c := ctx.CRefs[n.CRef]
		ok, newTicket := c.cas(n.Ticket, n.NewValue)
		t.Continuation = n.K(ok, newTicket)
		return act.ThreadAction{Kind: act.TACasCRef, CRef: n.CRef, Success: ok}, nil

	case *act.CommitCRef:
		return act.ThreadAction{}, internalErr("CommitCRef is applied directly by the run-loop, not dispatched on a thread continuation")

	// --- STM ---

	case *act.Atomically:
		writeBarrier(ctx, chosen)
		outcome := runSTM(ctx, chosen, n.Tx)
		switch outcome.Kind {
		case STMSuccess:
			for id, v := range outcome.NewTVars {
				ctx.TVars[id] = newTVar(id, v)
			}
			for id, v := range outcome.Writes {
				if tv, ok := ctx.TVars[id]; ok {
					tv.Value = v
				} else {
					ctx.TVars[id] = newTVar(id, v)
				}
			}
			for _, id := range tvarSetUnion(outcome.ReadSet, outcome.WriteSet) {
				t.touch('t', uint64(id))
			}
			woken := wakeTVarWaiters(ctx, outcome.WriteSet)
			t.Continuation = n.K(outcome.Value)
			return act.ThreadAction{
				Kind:    act.TASTM,
				Woken:   woken,
				TVarSet: tvarSetUnion(outcome.ReadSet, outcome.WriteSet),
				Writes:  outcome.WriteSet,
			}, nil

		case STMRetryOutcome:
			t.Status = Blocked
			t.Block = &act.BlockReason{Kind: act.OnTVar, TVars: outcome.WatchSet}
			return act.ThreadAction{Kind: act.TABlockedSTM, TVarSet: outcome.WatchSet}, nil

		default: // STMException
			doThrow(ctx, chosen, outcome.Err)
			return act.ThreadAction{Kind: act.TAThrow}, nil
		}

	// --- Exceptions / masking ---

	case *act.Throw:
		doThrow(ctx, chosen, n.Err)
		return act.ThreadAction{Kind: act.TAThrow}, nil

	case *act.ThrowTo:
		writeBarrier(ctx, chosen)
		target, exists := ctx.Threads[n.Target]
		if exists && target.interruptible() {
			doThrow(ctx, n.Target, n.Err)
			t.Continuation = n.K(act.NoneValue{})
			return act.ThreadAction{Kind: act.TAThrowTo, Target: n.Target}, nil
		}
		if !exists {
			// Target already gone: nothing to interrupt, succeeds as a no-op.
			t.Continuation = n.K(act.NoneValue{})
			return act.ThreadAction{Kind: act.TAThrowTo, Target: n.Target}, nil
		}
		t.Status = Blocked
		t.Block = &act.BlockReason{Kind: act.OnMask, Mask: n.Target}
		return act.ThreadAction{Kind: act.TABlockedThrowTo, Target: n.Target}, nil

	case *act.Catching:
		t.pushHandler(n.Handler)
		t.Continuation = n.Body
		return act.ThreadAction{Kind: act.TACatching}, nil

	case *act.PopCatching:
		t.popHandler()
		t.Continuation = n.K(act.NoneValue{})
		return act.ThreadAction{Kind: act.TAPopCatching}, nil

	case *act.Masking:
		saved := t.Masking
		t.Masking = n.NewState
		umask := func(inner act.Action) act.Action {
			return &act.ResetMask{IsSet: true, State: saved, Inner: inner}
		}
		t.Continuation = n.Body(umask)
		return act.ThreadAction{Kind: act.TAMasking, MaskState: n.NewState}, nil

	case *act.ResetMask:
		if n.Inner != nil {
			outer := t.Masking
			t.Masking = n.State
			t.Continuation = n.Inner
			ta, err := Step(ctx, chosen)
			if err != nil {
				return ta, err
			}
			if th, ok := ctx.Threads[chosen]; ok {
				th.Masking = outer
			}
			return ta, nil
		}
		t.Masking = n.State
		t.Continuation = n.K(act.NoneValue{})
		return act.ThreadAction{Kind: act.TAResetMask, MaskState: n.State}, nil

	// --- Nested exploration ---

	case *act.Subconcurrency:
		if len(ctx.Threads) != 1 {
			ctx.Failed = true
			ctx.FailureKind = FailureIllegalSubconcurrency
			return act.ThreadAction{}, internalErr("Subconcurrency requires exactly one live thread")
		}
		nested := NewContext(n.Inner, ctx.Memory, ctx.Caps.N)
		nested.IDs = ctx.IDs
		nested.Caps = ctx.Caps
		result, subTrace := RunConcurrency(nested, ctx.Scheduler)
		var sub act.SubResult
		if result.Failure != FailureNone {
			sub = act.SubResult{Err: result.asError()}
		} else {
			sub = act.SubResult{Value: result.Value}
		}
		subTrace = append(subTrace, act.TraceStep{Action: act.ThreadAction{Kind: act.TAStopSubconcurrency}})
		t.Continuation = n.K(sub)
		return act.ThreadAction{Kind: act.TASubconcurrency, SubTrace: subTrace}, nil

	case *act.StopSubconcurrency:
		return act.ThreadAction{}, internalErr("StopSubconcurrency is synthesized by the run-loop, not a user action")

	default:
		return act.ThreadAction{}, internalErr("Step: unrecognised Action variant")
	}
}

// wakeTVarWaiters wakes every thread blocked OnTVar whose watch-set
// intersects writeSet (§4.1 STM: "wake any thread blocked OnTVar(s)
// with s ∩ write-set ≠ ∅").
func wakeTVarWaiters(ctx *Context, writeSet []ids.TVarID) []ids.ThreadID {
	if len(writeSet) == 0 {
		return nil
	}
	dirty := make(map[ids.TVarID]struct{}, len(writeSet))
	for _, id := range writeSet {
		dirty[id] = struct{}{}
	}
	var woken []ids.ThreadID
	for id, t := range ctx.Threads {
		if t.Status != Blocked || t.Block == nil || t.Block.Kind != act.OnTVar {
			continue
		}
		for _, w := range t.Block.TVars {
			if _, ok := dirty[w]; ok {
				t.Status = Running
				t.Block = nil
				woken = append(woken, id)
				break
			}
		}
	}
	return woken
}
