package conc

import (
	"errors"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// FailureKind enumerates the terminal Either<Failure, value> tags (§6).
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureDeadlock
	FailureSTMDeadlock
	FailureUncaughtException
	FailureAbort
	FailureIllegalSubconcurrency
	FailureInternalError
	FailureInvariantFailure
)

func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "None"
	case FailureDeadlock:
		return "Deadlock"
	case FailureSTMDeadlock:
		return "STMDeadlock"
	case FailureUncaughtException:
		return "UncaughtException"
	case FailureAbort:
		return "Abort"
	case FailureIllegalSubconcurrency:
		return "IllegalSubconcurrency"
	case FailureInternalError:
		return "InternalError"
	case FailureInvariantFailure:
		return "InvariantFailure"
	default:
		return "FailureKind(?)"
	}
}

// Result is runConcurrency's terminal outcome: either a successful
// Value or one of the named Failure tags, optionally wrapping the Go
// error that produced an InternalError.
type Result struct {
	Value   act.Value
	Failure FailureKind
	Err     error
}

func (r Result) asError() error {
	if r.Failure == FailureNone {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return errors.New(r.Failure.String())
}

// commitFlag tags a synthetic commit-thread identity so it never
// collides with a real ThreadID allocated from an ids.Source (§4.2:
// "ephemeral commit threads"). It is never stored in ctx.Threads —
// computed fresh each run-loop iteration and consumed immediately, so
// there is no table entry to strip afterwards (step 8 of §4.2 is
// satisfied by construction rather than by explicit removal).
const commitFlag ids.ThreadID = 1 << 63

func commitThreadID(owner ids.ThreadID, cref ids.CRefID, hasCRef bool) ids.ThreadID {
	if hasCRef {
		return commitFlag | (owner << 32) | (ids.ThreadID(cref) + 1)
	}
	return commitFlag | (owner << 32)
}

func isCommitThreadID(id ids.ThreadID) bool { return id&commitFlag != 0 }

// lookahead predicts thread's next ThreadAction one step ahead without
// executing it (§3: "Lookahead is its one-step-ahead sibling").
func lookahead(t *Thread) act.Lookahead {
	switch n := t.Continuation.(type) {
	case *act.Fork:
		return act.Lookahead{Kind: act.LAFork}
	case *act.MyTid:
		return act.Lookahead{Kind: act.LAMyTid}
	case *act.Yield:
		return act.Lookahead{Kind: act.LAYield}
	case *act.Return:
		return act.Lookahead{Kind: act.LAReturn}
	case *act.Stop:
		return act.Lookahead{Kind: act.LAStop}
	case *act.LiftExternal:
		return act.Lookahead{Kind: act.LALiftExternal}
	case *act.GetCaps:
		return act.Lookahead{Kind: act.LAGetCaps}
	case *act.SetCaps:
		return act.Lookahead{Kind: act.LASetCaps}
	case *act.Message:
		return act.Lookahead{Kind: act.LAMessage}
	case *act.NewMVar:
		return act.Lookahead{Kind: act.LANewMVar}
	case *act.PutMVar:
		return act.Lookahead{Kind: act.LAPutMVar, MVar: n.MVar}
	case *act.TryPutMVar:
		return act.Lookahead{Kind: act.LAPutMVar, MVar: n.MVar}
	case *act.ReadMVar:
		return act.Lookahead{Kind: act.LAReadMVar, MVar: n.MVar}
	case *act.TryReadMVar:
		return act.Lookahead{Kind: act.LAReadMVar, MVar: n.MVar}
	case *act.TakeMVar:
		return act.Lookahead{Kind: act.LATakeMVar, MVar: n.MVar}
	case *act.TryTakeMVar:
		return act.Lookahead{Kind: act.LATakeMVar, MVar: n.MVar}
	case *act.NewCRef:
		return act.Lookahead{Kind: act.LANewCRef}
	case *act.ReadCRef:
		return act.Lookahead{Kind: act.LAReadCRef, CRef: n.CRef}
	case *act.ReadCRefCas:
		return act.Lookahead{Kind: act.LAReadCRef, CRef: n.CRef}
	case *act.ModCRef:
		return act.Lookahead{Kind: act.LAModCRef, CRef: n.CRef}
	case *act.ModCRefCas:
		return act.Lookahead{Kind: act.LAModCRef, CRef: n.CRef}
	case *act.WriteCRef:
		return act.Lookahead{Kind: act.LAWriteCRef, CRef: n.CRef}
	case *act.CasCRef:
		return act.Lookahead{Kind: act.LACasCRef, CRef: n.CRef}
	case *act.Atomically:
		return act.Lookahead{Kind: act.LAAtomically}
	case *act.Throw:
		return act.Lookahead{Kind: act.LAThrow}
	case *act.ThrowTo:
		return act.Lookahead{Kind: act.LAThrowTo, Target: n.Target}
	case *act.Catching:
		return act.Lookahead{Kind: act.LACatching}
	case *act.Masking:
		return act.Lookahead{Kind: act.LAMasking}
	case *act.Subconcurrency:
		return act.Lookahead{Kind: act.LASubconcurrency}
	default:
		return act.Lookahead{Kind: act.LAUnknown}
	}
}

// computeDecision labels how actor relates to the previously executed
// actor (§4.2 step 5): Continue if unchanged, SwitchTo if the prior
// actor is still in this iteration's real-thread runnable set, Start
// otherwise (including the very first step, which has no prior).
func computeDecision(priorActor *ids.ThreadID, runnableReal []ids.ThreadID, actor ids.ThreadID) act.Decision {
	if priorActor == nil {
		return act.Decision{Kind: act.Start, Thread: actor}
	}
	if *priorActor == actor {
		return act.Decision{Kind: act.Continue}
	}
	for _, id := range runnableReal {
		if id == *priorActor {
			return act.Decision{Kind: act.SwitchTo, Thread: actor}
		}
	}
	return act.Decision{Kind: act.Start, Thread: actor}
}

// RunConcurrency is the run-loop (component F, §4.2): it drives ctx to
// completion against sched, one step at a time, returning the terminal
// Result and the full execution trace.
func RunConcurrency(ctx *Context, sched Scheduler) (Result, []act.TraceStep) {
	ctx.Scheduler = sched
	var trace []act.TraceStep
	var priorActor *ids.ThreadID

	for {
		if ctx.Failed {
			return Result{Failure: ctx.FailureKind}, trace
		}
		if _, ok := ctx.Threads[ids.InitialThread]; !ok {
			return Result{Value: ctx.FinalValue, Failure: FailureNone}, trace
		}

		runnableReal := ctx.runnableThreads()
		pendingKeys := ctx.WriteBuf.AllPendingKeys()

		if len(runnableReal) == 0 && len(pendingKeys) == 0 {
			it := ctx.Threads[ids.InitialThread]
			if it.Status == Blocked && it.Block != nil && it.Block.Kind == act.OnTVar {
				return Result{Failure: FailureSTMDeadlock}, trace
			}
			return Result{Failure: FailureDeadlock}, trace
		}

		type commitEntry struct {
			id    ids.ThreadID
			owner ids.ThreadID
			key   bufKey
		}
		commits := make([]commitEntry, 0, len(pendingKeys))
		for _, key := range pendingKeys {
			commits = append(commits, commitEntry{
				id:    commitThreadID(key.thread, key.cref, key.hasCRef),
				owner: key.thread,
				key:   key,
			})
		}

		runnableList := make([]ids.ThreadID, 0, len(runnableReal)+len(commits))
		runnableList = append(runnableList, runnableReal...)
		for _, c := range commits {
			runnableList = append(runnableList, c.id)
		}
		sortThreadIDs(runnableList)

		lookaheads := make([]act.ThreadLookahead, 0, len(runnableList))
		for _, id := range runnableList {
			if isCommitThreadID(id) {
				lookaheads = append(lookaheads, act.ThreadLookahead{Thread: id, Lookahead: act.Lookahead{Kind: act.LACommitCRef}})
				continue
			}
			lookaheads = append(lookaheads, act.ThreadLookahead{Thread: id, Lookahead: lookahead(ctx.Threads[id])})
		}

		var prior *act.TraceStep
		if len(trace) > 0 {
			prior = &trace[len(trace)-1]
		}
		chosenPtr, err := sched.Schedule(trace, prior, lookaheads)
		if err != nil {
			return Result{Failure: FailureInternalError, Err: err}, trace
		}
		if chosenPtr == nil {
			return Result{Failure: FailureAbort}, trace
		}
		chosen := *chosenPtr

		found := false
		for _, id := range runnableList {
			if id == chosen {
				found = true
				break
			}
		}
		if !found {
			return Result{Failure: FailureInternalError, Err: internalErr("scheduler chose a non-runnable thread")}, trace
		}

		var ta act.ThreadAction
		var actor ids.ThreadID
		if isCommitThreadID(chosen) {
			var ce commitEntry
			for _, c := range commits {
				if c.id == chosen {
					ce = c
					break
				}
			}
			actor = ce.owner
			cref, value, ok := ctx.WriteBuf.CommitHead(ce.key)
			if ok {
				if c, exists := ctx.CRefs[cref]; exists {
					c.write(value)
				}
			}
			ta = act.ThreadAction{Kind: act.TACommitCRef, Actor: actor, CRef: cref}
		} else {
			actor = chosen
			var stepErr error
			ta, stepErr = Step(ctx, chosen)
			if stepErr != nil {
				return Result{Failure: FailureInternalError, Err: stepErr}, trace
			}
			if ctx.Failed {
				return Result{Failure: ctx.FailureKind}, trace
			}
		}

		decision := computeDecision(priorActor, runnableReal, actor)
		step := act.TraceStep{Decision: decision, RunnableWithLookahead: lookaheads, Action: ta, Chosen: chosen}
		trace = append(trace, step)
		priorActor = &actor

		if !isCommitThreadID(chosen) {
			if th, ok := ctx.Threads[chosen]; ok && th.interruptible() {
				ctx.wakeMaskWaiters(chosen)
			}
		}
	}
}
