package dpor

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// probe is the uniform shape the dependence rule (§4.5) is judged
// against, built either from an executed ThreadAction or from a
// Lookahead (dependencyL): both reduce to "what resource did this touch
// and how". Fields irrelevant to a given Tag are left zero.
type probe struct {
	tag resourceTag

	mvar    ids.MVarID
	isTry   bool
	tryFail bool // for MVar tries: whether this probe's try is known to fail

	cref    ids.CRefID
	isWrite bool // CRef write, ModCRef(Cas), CasCRef, or Commit

	tvars   []ids.TVarID
	writes  []ids.TVarID // subset of tvars actually written

	throwTarget ids.ThreadID

	affects ids.ThreadID // Fork/Stop: the thread created or killed
}

type resourceTag int

const (
	tagNone resourceTag = iota
	tagMVar
	tagCRef
	tagTVar
	tagThrowTo
	tagLifecycle
)

func probeFromAction(ta act.ThreadAction) probe {
	switch ta.Kind {
	case act.TAPutMVar, act.TAReadMVar, act.TATakeMVar,
		act.TABlockedPutMVar, act.TABlockedReadMVar, act.TABlockedTakeMVar:
		return probe{tag: tagMVar, mvar: ta.MVar}
	case act.TATryPutMVar, act.TATryReadMVar, act.TATryTakeMVar:
		return probe{tag: tagMVar, mvar: ta.MVar, isTry: true, tryFail: !ta.Success}
	case act.TAWriteCRef, act.TAModCRef, act.TAModCRefCas, act.TACasCRef, act.TACommitCRef:
		return probe{tag: tagCRef, cref: ta.CRef, isWrite: true}
	case act.TAReadCRef, act.TAReadCRefCas:
		return probe{tag: tagCRef, cref: ta.CRef, isWrite: false}
	case act.TASTM, act.TABlockedSTM:
		return probe{tag: tagTVar, tvars: ta.TVarSet, writes: ta.Writes}
	case act.TAThrowTo, act.TABlockedThrowTo:
		return probe{tag: tagThrowTo, throwTarget: ta.Target}
	case act.TAFork:
		return probe{tag: tagLifecycle, affects: ta.Forked}
	case act.TAStop:
		return probe{tag: tagLifecycle, affects: ta.Actor}
	default:
		return probe{tag: tagNone}
	}
}

// probeFromLookahead approximates probeFromAction without having
// executed the candidate: try-success and CAS-success are unknown, so
// it conservatively assumes the try will NOT fail (i.e. treats it as
// dependent) and a CRef op it can't classify exactly as write/read from
// Lookahead alone is treated as a write.
func probeFromLookahead(tid ids.ThreadID, l act.Lookahead) probe {
	switch l.Kind {
	case act.LAPutMVar, act.LAReadMVar, act.LATakeMVar:
		return probe{tag: tagMVar, mvar: l.MVar}
	case act.LAWriteCRef, act.LAModCRef, act.LACasCRef, act.LACommitCRef:
		return probe{tag: tagCRef, cref: l.CRef, isWrite: true}
	case act.LAReadCRef:
		return probe{tag: tagCRef, cref: l.CRef, isWrite: false}
	case act.LAAtomically:
		return probe{tag: tagTVar} // unknown read/write-set: overlap test below treats it as universally dependent with other TVar ops
	case act.LAThrowTo:
		return probe{tag: tagThrowTo, throwTarget: l.Target}
	case act.LAFork:
		return probe{tag: tagLifecycle}
	case act.LAStop:
		return probe{tag: tagLifecycle, affects: tid}
	default:
		return probe{tag: tagNone}
	}
}

func tvarSetsOverlap(a, b []ids.TVarID) bool {
	if a == nil || b == nil {
		// an unresolved Atomically lookahead carries no set at all;
		// treat conservatively as overlapping so it is never wrongly
		// pruned as independent.
		return true
	}
	seen := make(map[ids.TVarID]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if seen[v] {
			return true
		}
	}
	return false
}

// dependent implements the dependence rule of §4.5 for two distinct
// threads' probes. dep supplies the cross-cutting state (pending
// buffered writes, masking) the rule needs beyond what's in the probes
// themselves.
func dependent(dep DepState, t1 ids.ThreadID, p1 probe, t2 ids.ThreadID, p2 probe) bool {
	if t1 == t2 {
		return false
	}
	switch {
	case p1.tag == tagMVar && p2.tag == tagMVar:
		if p1.mvar != p2.mvar {
			return false
		}
		if p1.isTry && p2.isTry && p1.tryFail && p2.tryFail {
			return false
		}
		return true

	case p1.tag == tagCRef && p2.tag == tagCRef:
		if p1.cref != p2.cref {
			return false
		}
		if p1.isWrite || p2.isWrite {
			return true
		}
		return dep.PendingWriteCRefs[p1.cref]

	case p1.tag == tagTVar && p2.tag == tagTVar:
		if !tvarSetsOverlap(p1.tvars, p2.tvars) {
			return false
		}
		if p1.tvars == nil || p2.tvars == nil {
			return true // conservative: unknown sets, can't rule out a write-overlap
		}
		return len(p1.writes) > 0 || len(p2.writes) > 0

	case p1.tag == tagThrowTo && p2.tag != tagNone:
		return p1.throwTarget == t2 && interruptibleFromState(dep, t2)
	case p2.tag == tagThrowTo && p1.tag != tagNone:
		return p2.throwTarget == t1 && interruptibleFromState(dep, t1)

	case p1.tag == tagLifecycle:
		return p1.affects == t2 || p1.affects == t1
	case p2.tag == tagLifecycle:
		return p2.affects == t1 || p2.affects == t2

	default:
		return false
	}
}

// interruptibleFromState mirrors conc.Thread.interruptible() using only
// what DepState can see from the trace: unmasked, or masked-
// interruptible while blocked (every BlockReason this engine produces
// is itself an interruptible primitive, per conc/thread.go).
func interruptibleFromState(dep DepState, t ids.ThreadID) bool {
	state := dep.Masking[t] // zero value is act.Unmasked
	if state == act.Unmasked {
		return true
	}
	return state == act.MaskedInterruptible && dep.Blocked[t]
}

// dependentL is the lookahead variant: t1's already-executed action
// against t2's not-yet-executed candidate.
func dependentL(dep DepState, t1 ids.ThreadID, a1 act.ThreadAction, t2 ids.ThreadID, l2 act.Lookahead) bool {
	return dependent(dep, t1, probeFromAction(a1), t2, probeFromLookahead(t2, l2))
}
