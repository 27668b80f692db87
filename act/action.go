package act

import "github.com/concheck/sct/ids"

// Action is a tagged variant of every primitive the interpreter can
// execute. Each concrete type carries its own arguments and a
// continuation from the primitive's result to the next Action. The
// engine never introspects user closures; it only forces continuations
// with the input values the single-step executor computes.
type Action interface {
	actionTag()
}

// MaskingState controls whether an asynchronous ThrowTo can interrupt a
// thread.
type MaskingState int

const (
	Unmasked MaskingState = iota
	MaskedInterruptible
	MaskedUninterruptible
)

func (m MaskingState) String() string {
	switch m {
	case Unmasked:
		return "Unmasked"
	case MaskedInterruptible:
		return "MaskedInterruptible"
	case MaskedUninterruptible:
		return "MaskedUninterruptible"
	default:
		return "MaskingState(?)"
	}
}

// Umask is the helper a Masking body receives: it wraps exactly one
// inner Action so that single action runs with the masking state in
// effect before the enclosing Masking call, then restores the
// enclosing state once that action completes. This is a deliberate
// simplification of the source's arbitrary-subcomputation umask (see
// DESIGN.md): at the single-step executor's granularity, one wrapped
// primitive is enough to express the real patterns (cleanup takes,
// rethrows) this primitive exists for.
type Umask func(Action) Action

// --- Scheduling ---

// Fork creates a new thread running body, inheriting the parent's
// masking state. The continuation resumes the parent with the new
// thread's id.
type Fork struct {
	Name string
	Body func(Umask) Action
	K    func(ids.ThreadID) Action
}

func (*Fork) actionTag() {}

// MyTid returns the calling thread's own id.
type MyTid struct {
	K func(ids.ThreadID) Action
}

func (*MyTid) actionTag() {}

// Yield voluntarily relinquishes the current thread without blocking.
type Yield struct {
	K func(Value) Action
}

func (*Yield) actionTag() {}

// Return ends the computation with value Value; if this is the last
// frame on the initial thread, the whole execution succeeds with it.
type Return struct {
	Value Value
}

func (*Return) actionTag() {}

// Stop ends the calling thread normally (not the whole computation,
// unless the caller is the initial thread).
type Stop struct{}

func (*Stop) actionTag() {}

// LiftExternal runs an opaque, deterministically replayable host effect
// inline and resumes with its result.
type LiftExternal struct {
	Effect func() (Value, error)
	K      func(Value) Action
}

func (*LiftExternal) actionTag() {}

// GetCaps returns the current simulated capability count.
type GetCaps struct {
	K func(int) Action
}

func (*GetCaps) actionTag() {}

// SetCaps sets the simulated capability count.
type SetCaps struct {
	N int
	K func(Value) Action
}

func (*SetCaps) actionTag() {}

// Message records an arbitrary diagnostic payload in the trace without
// otherwise affecting scheduling.
type Message struct {
	Payload Value
	K       func(Value) Action
}

func (*Message) actionTag() {}

// --- Rendezvous cells (MVar) ---

// NewMVar allocates a new, empty MVar (or full, if Initial is non-nil).
type NewMVar struct {
	Initial Value
	K       func(ids.MVarID) Action
}

func (*NewMVar) actionTag() {}

// PutMVar fills an empty MVar with Value, blocking if it is already full.
type PutMVar struct {
	MVar  ids.MVarID
	Value Value
	K     func(Value) Action
}

func (*PutMVar) actionTag() {}

// TryPutMVar attempts PutMVar without blocking, resuming with whether it
// succeeded.
type TryPutMVar struct {
	MVar  ids.MVarID
	Value Value
	K     func(bool) Action
}

func (*TryPutMVar) actionTag() {}

// ReadMVar observes a full MVar's value without draining it, blocking if
// empty.
type ReadMVar struct {
	MVar ids.MVarID
	K    func(Value) Action
}

func (*ReadMVar) actionTag() {}

// TryReadMVar attempts ReadMVar without blocking.
type TryReadMVar struct {
	MVar ids.MVarID
	K    func(Value, bool) Action
}

func (*TryReadMVar) actionTag() {}

// TakeMVar drains a full MVar's value, blocking if empty.
type TakeMVar struct {
	MVar ids.MVarID
	K    func(Value) Action
}

func (*TakeMVar) actionTag() {}

// TryTakeMVar attempts TakeMVar without blocking.
type TryTakeMVar struct {
	MVar ids.MVarID
	K    func(Value, bool) Action
}

func (*TryTakeMVar) actionTag() {}

// --- Shared cells (CRef) ---

// NewCRef allocates a new CRef holding Initial.
type NewCRef struct {
	Initial Value
	K       func(ids.CRefID) Action
}

func (*NewCRef) actionTag() {}

// ReadCRef returns the calling thread's observable value for CRef,
// honoring thread-local store forwarding under TSO/PSO.
type ReadCRef struct {
	CRef ids.CRefID
	K    func(Value) Action
}

func (*ReadCRef) actionTag() {}

// ReadCRefCas reads a CRef and additionally returns a Ticket usable with
// CasCRef.
type ReadCRefCas struct {
	CRef ids.CRefID
	K    func(Value, Ticket) Action
}

func (*ReadCRefCas) actionTag() {}

// ModCRef atomically applies Fn to the authoritative value, storing
// Fn's first result and resuming with its second (imposes a write
// barrier).
type ModCRef struct {
	CRef ids.CRefID
	Fn   func(Value) (Value, Value)
	K    func(Value) Action
}

func (*ModCRef) actionTag() {}

// ModCRefCas has the same observable contract as ModCRef; the
// interpreter executes it exactly like ModCRef, as one atomic step.
type ModCRefCas struct {
	CRef ids.CRefID
	Fn   func(Value) (Value, Value)
	K    func(Value) Action
}

func (*ModCRefCas) actionTag() {}

// WriteCRef stores Value into CRef, subject to the memory model's
// buffering.
type WriteCRef struct {
	CRef  ids.CRefID
	Value Value
	K     func(Value) Action
}

func (*WriteCRef) actionTag() {}

// CasCRef attempts a compare-and-swap using a Ticket obtained from
// ReadCRefCas; succeeds iff the ticket's tick still matches.
type CasCRef struct {
	CRef     ids.CRefID
	Ticket   Ticket
	NewValue Value
	K        func(bool, Ticket) Action
}

func (*CasCRef) actionTag() {}

// CommitCRef is the synthetic scheduling step representing the delayed
// settling of one buffered write; the scheduler may choose it exactly
// like a regular thread action.
type CommitCRef struct {
	CRef ids.CRefID
}

func (*CommitCRef) actionTag() {}

// Ticket is a snapshot of a CRef's tick and value at the moment of a
// ReadCRefCas, used to validate a subsequent CasCRef.
type Ticket struct {
	Thread ids.ThreadID
	Tick   uint64
	Value  Value
}

// --- STM ---

// Atomically runs tx as one atomic transaction and resumes with its
// result. A completed transaction is one scheduling step regardless of
// internal STM work.
type Atomically struct {
	Tx STMAction
	K  func(Value) Action
}

func (*Atomically) actionTag() {}

// --- Exceptions / masking ---

// Throw raises an exception on the calling thread.
type Throw struct {
	Err Value
}

func (*Throw) actionTag() {}

// ThrowTo asynchronously raises an exception on another thread; it is a
// synchronising action that blocks until the target is interruptible.
type ThrowTo struct {
	Target ids.ThreadID
	Err    Value
	K      func(Value) Action
}

func (*ThrowTo) actionTag() {}

// Catching pushes Handler onto the calling thread's handler stack for
// the duration of Body. Body's own continuation chain is responsible
// for ending in a PopCatching once the protected region completes
// normally — the interpreter does not inject one implicitly, matching
// how the (out-of-scope) builder layer is expected to wire it.
type Catching struct {
	Handler func(error) Action
	Body    Action
}

func (*Catching) actionTag() {}

// PopCatching pops the innermost handler pushed by Catching.
type PopCatching struct {
	K func(Value) Action
}

func (*PopCatching) actionTag() {}

// Masking installs NewState for the duration of Body, which receives an
// Umask helper to temporarily restore the saved state around one inner
// action. As with Catching, Body's continuation chain must end in an
// explicit ResetMask to restore the saved state; the interpreter does
// not splice one in automatically.
type Masking struct {
	NewState MaskingState
	Body     func(Umask) Action
}

func (*Masking) actionTag() {}

// ResetMask restores State. When Inner is non-nil it is the
// Umask-constructed "restore, run one action, restore back" primitive;
// when Inner is nil it is the explicit reset that a Masking Body's
// continuation chain ends with to restore the saved state.
type ResetMask struct {
	IsSet      bool
	IsExplicit bool
	State      MaskingState
	Inner      Action
	K          func(Value) Action
}

func (*ResetMask) actionTag() {}

// --- Nested exploration ---

// Subconcurrency runs Inner as a full nested runConcurrency using the
// caller's current scheduler state, memory model, id source and
// capabilities, rejected unless exactly one thread currently exists.
type Subconcurrency struct {
	Inner Action
	K     func(SubResult) Action
}

func (*Subconcurrency) actionTag() {}

// SubResult is what a completed Subconcurrency resumes the caller with:
// either the inner failure or its final value.
type SubResult struct {
	Err   error
	Value Value
}

// StopSubconcurrency marks the return point of a nested exploration in
// the trace.
type StopSubconcurrency struct{}

func (*StopSubconcurrency) actionTag() {}
