package act

import "github.com/concheck/sct/ids"

// ThreadActionKind tags the variants of ThreadAction, the observed
// counterpart the single-step executor emits after reducing one Action.
type ThreadActionKind int

const (
	TAFork ThreadActionKind = iota
	TAMyTid
	TAYield
	TAReturn
	TAStop
	TALiftExternal
	TAGetCaps
	TASetCaps
	TAMessage

	TANewMVar
	TAPutMVar
	TABlockedPutMVar
	TATryPutMVar
	TAReadMVar
	TABlockedReadMVar
	TATryReadMVar
	TATakeMVar
	TABlockedTakeMVar
	TATryTakeMVar

	TANewCRef
	TAReadCRef
	TAReadCRefCas
	TAModCRef
	TAModCRefCas
	TAWriteCRef
	TACasCRef
	TACommitCRef

	TASTM
	TABlockedSTM

	TAThrow
	TAThrowTo
	TABlockedThrowTo
	TACatching
	TAPopCatching
	TAMasking
	TAResetMask

	TASubconcurrency
	TAStopSubconcurrency
)

func (k ThreadActionKind) String() string {
	names := [...]string{
		"Fork", "MyTid", "Yield", "Return", "Stop", "LiftExternal", "GetCaps", "SetCaps", "Message",
		"NewMVar", "PutMVar", "BlockedPutMVar", "TryPutMVar", "ReadMVar", "BlockedReadMVar", "TryReadMVar",
		"TakeMVar", "BlockedTakeMVar", "TryTakeMVar",
		"NewCRef", "ReadCRef", "ReadCRefCas", "ModCRef", "ModCRefCas", "WriteCRef", "CasCRef", "CommitCRef",
		"STM", "BlockedSTM",
		"Throw", "ThrowTo", "BlockedThrowTo", "Catching", "PopCatching", "Masking", "ResetMask",
		"Subconcurrency", "StopSubconcurrency",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "ThreadAction(?)"
	}
	return names[k]
}

// ThreadAction is the observable record of one executed step: what
// primitive ran, which ids it touched, who it woke, and whether a
// try/CAS succeeded.
type ThreadAction struct {
	Kind ThreadActionKind

	// Actor is the thread that performed this action (or, for a
	// CommitCRef, the thread whose buffer the commit drained), needed
	// by the dependency function to compare two (thread, action) pairs.
	Actor ids.ThreadID

	MVar   ids.MVarID
	CRef   ids.CRefID
	Forked ids.ThreadID
	Target ids.ThreadID

	Woken   []ids.ThreadID
	TVarSet []ids.TVarID // read-set ∪ write-set touched by an STM step
	Writes  []ids.TVarID // write-set only, used by dependency checks

	Success bool // try*/CAS outcome

	// MaskState is the masking state installed (TAMasking) or restored
	// (TAResetMask); the DPOR dependency function tracks it per-thread
	// from the trace alone, since it has no access to the live thread
	// table.
	MaskState MaskingState

	SubTrace []TraceStep // Subconcurrency's nested trace
}

// TraceStep is one entry of an execution trace: how the chosen thread
// related to the previous one, the runnable set with lookahead at the
// moment of choice, and what actually ran.
type TraceStep struct {
	Decision              Decision
	RunnableWithLookahead []ThreadLookahead
	Action                ThreadAction

	// Chosen is the literal id the scheduler returned for this step: a
	// real ThreadID for an ordinary action, or the synthetic commit id
	// (matching the one listed in RunnableWithLookahead) for a
	// CommitCRef. It is the stable key the DPOR tree and dependency
	// bookkeeping branch on — ThreadAction.Actor alone can't distinguish
	// a thread's own turn from it settling a buffered write.
	Chosen ids.ThreadID
}

// ThreadLookahead pairs a runnable thread with its one-step-ahead
// prediction.
type ThreadLookahead struct {
	Thread     ids.ThreadID
	Lookahead  Lookahead
}

// DecisionKind tags Decision's variants.
type DecisionKind int

const (
	Continue DecisionKind = iota
	SwitchTo
	Start
)

// Decision records how a chosen thread related to the previously
// chosen one: Continue (same thread), SwitchTo (previous thread was
// still runnable), or Start (previous thread was not runnable, so this
// is effectively a fresh choice).
type Decision struct {
	Kind   DecisionKind
	Thread ids.ThreadID // meaningful for SwitchTo/Start
}

func (d Decision) String() string {
	switch d.Kind {
	case Continue:
		return "Continue"
	case SwitchTo:
		return "SwitchTo(" + d.Thread.String() + ")"
	case Start:
		return "Start(" + d.Thread.String() + ")"
	default:
		return "Decision(?)"
	}
}

// LookaheadKind tags Lookahead's variants, deliberately coarser than
// ThreadActionKind: it approximates the next action a thread would take
// without executing it, so fields that depend on execution (success,
// woken sets) are absent.
type LookaheadKind int

const (
	LAFork LookaheadKind = iota
	LAMyTid
	LAYield
	LAReturn
	LAStop
	LALiftExternal
	LAGetCaps
	LASetCaps
	LAMessage
	LANewMVar
	LAPutMVar
	LAReadMVar
	LATakeMVar
	LANewCRef
	LAReadCRef
	LAModCRef
	LAWriteCRef
	LACasCRef
	LACommitCRef
	LAAtomically
	LAThrow
	LAThrowTo
	LACatching
	LAMasking
	LASubconcurrency
	LAUnknown
)

func (k LookaheadKind) String() string {
	names := [...]string{
		"Fork", "MyTid", "Yield", "Return", "Stop", "LiftExternal", "GetCaps", "SetCaps", "Message",
		"NewMVar", "PutMVar", "ReadMVar", "TakeMVar", "NewCRef", "ReadCRef", "ModCRef", "WriteCRef",
		"CasCRef", "CommitCRef", "Atomically", "Throw", "ThrowTo", "Catching", "Masking", "Subconcurrency",
		"Unknown",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "Lookahead(?)"
	}
	return names[k]
}

// Lookahead is the coarse, one-step-ahead prediction of a thread's next
// ThreadAction, used by the scheduler and by dependencyL to approximate
// dependence without executing the candidate.
type Lookahead struct {
	Kind   LookaheadKind
	MVar   ids.MVarID
	CRef   ids.CRefID
	Target ids.ThreadID
}

// BlockReasonKind tags BlockReason's variants.
type BlockReasonKind int

const (
	OnMVarFull BlockReasonKind = iota
	OnMVarEmpty
	OnTVar
	OnMask
)

// BlockReason is why a thread is currently blocked and thus ineligible
// for selection (invariant I1/a).
type BlockReason struct {
	Kind BlockReasonKind
	MVar ids.MVarID         // OnMVarFull / OnMVarEmpty
	TVars []ids.TVarID      // OnTVar: watch-set
	Mask ids.ThreadID       // OnMask: the thread being waited on to become interruptible
}

func (b BlockReason) String() string {
	switch b.Kind {
	case OnMVarFull:
		return "OnMVarFull(" + b.MVar.String() + ")"
	case OnMVarEmpty:
		return "OnMVarEmpty(" + b.MVar.String() + ")"
	case OnTVar:
		return "OnTVar(...)"
	case OnMask:
		return "OnMask(" + b.Mask.String() + ")"
	default:
		return "BlockReason(?)"
	}
}

// IsRelease reports whether this action kind is a "release" operation
// for the fair bound's backtracking classification: yield, any
// put/take/read of an MVar, STM, or throw-to.
func (k ThreadActionKind) IsRelease() bool {
	switch k {
	case TAYield, TAPutMVar, TABlockedPutMVar, TATryPutMVar,
		TATakeMVar, TABlockedTakeMVar, TATryTakeMVar,
		TAReadMVar, TABlockedReadMVar, TATryReadMVar,
		TASTM, TABlockedSTM, TAThrowTo, TABlockedThrowTo:
		return true
	default:
		return false
	}
}

// IsRelease mirrors ThreadActionKind.IsRelease for the coarser
// Lookahead, used when classifying a not-yet-executed candidate.
func (k LookaheadKind) IsRelease() bool {
	switch k {
	case LAYield, LAPutMVar, LATakeMVar, LAReadMVar, LAAtomically, LAThrowTo:
		return true
	default:
		return false
	}
}

// IsSynchronising reports whether this action kind imposes a write
// barrier (§4.3): any MVar op, STM, ModCRef/ModCRefCas, CasCRef, or
// ThrowTo.
func (k ThreadActionKind) IsSynchronising() bool {
	switch k {
	case TAPutMVar, TABlockedPutMVar, TATryPutMVar,
		TAReadMVar, TABlockedReadMVar, TATryReadMVar,
		TATakeMVar, TABlockedTakeMVar, TATryTakeMVar,
		TASTM, TABlockedSTM, TAModCRef, TAModCRefCas, TACasCRef,
		TAThrowTo, TABlockedThrowTo:
		return true
	default:
		return false
	}
}

// IsInterruptiblePrimitive reports whether blocking on this action kind
// counts as "interruptible" while MaskedInterruptible (§4.1): MVar ops,
// STM, ThrowTo.
func (k ThreadActionKind) IsInterruptiblePrimitive() bool {
	switch k {
	case TABlockedPutMVar, TABlockedReadMVar, TABlockedTakeMVar, TABlockedSTM, TABlockedThrowTo:
		return true
	default:
		return false
	}
}
