package conc

import (
	"github.com/google/uuid"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// Scheduler is the external scheduler interface consumed by the
// run-loop (§6). It is asked, at every step boundary, which runnable
// thread to advance.
type Scheduler interface {
	// Schedule is given the trace so far, the previously executed step
	// (nil if this is the first step), and the non-empty runnable set
	// with one-step lookahead; any scheduler state lives in the
	// implementation itself. It returns the next thread to run (nil
	// means abort), or an error, which the run-loop reports as an
	// internal error.
	Schedule(prefix []act.TraceStep, prior *act.TraceStep, runnable []act.ThreadLookahead) (*ids.ThreadID, error)
}

// Caps is the simulated capability count a program can read/set via
// GetCaps/SetCaps; it has no effect on scheduling, it exists purely as
// observable program state.
type Caps struct {
	N int
}

// Context is everything one runConcurrency invocation owns: the thread
// table, every simulated cell kind, the write buffer, the id source and
// the capability count (§4.2 Run-Loop: "a context {schedState, idSource,
// threads, writeBuf, caps}" — schedState lives inside the Scheduler
// implementation itself, not here).
type Context struct {
	// RunID tags this invocation for log correlation across the
	// explorer's many RunConcurrency calls; it has no effect on
	// scheduling or results.
	RunID   string
	IDs     *ids.Source
	Memory  MemoryModel
	Threads map[ids.ThreadID]*Thread
	MVars   map[ids.MVarID]*MVar
	CRefs   map[ids.CRefID]*CRef
	TVars   map[ids.TVarID]*TVar
	WriteBuf *WriteBuffer
	Caps    *Caps

	// Scheduler is the active scheduler for this invocation, kept on
	// the context so a Subconcurrency step can recurse into a nested
	// runConcurrency reusing it (§4.1: "using the current scheduler
	// state").
	Scheduler Scheduler

	// Terminal outcome bookkeeping, set by Step/doThrow and consumed by
	// RunConcurrency's classification (§4.2).
	FinalValue    act.Value
	HasFinalValue bool
	Failed        bool
	FailureKind   FailureKind
}

// NewContext builds a fresh context with a single initial thread
// running program, the caller-selected memory model, and capability
// count initCaps.
func NewContext(program act.Action, model MemoryModel, initCaps int) *Context {
	source := ids.NewSource()
	ctx := &Context{
		RunID:    uuid.NewString(),
		IDs:      source,
		Memory:   model,
		Threads:  make(map[ids.ThreadID]*Thread),
		MVars:    make(map[ids.MVarID]*MVar),
		CRefs:    make(map[ids.CRefID]*CRef),
		TVars:    make(map[ids.TVarID]*TVar),
		WriteBuf: newWriteBuffer(model),
		Caps:     &Caps{N: initCaps},
	}
	ctx.Threads[ids.InitialThread] = newThread(ids.InitialThread, "main", program, act.Unmasked)
	return ctx
}

// runnableThreads reports the ids of every thread currently eligible for
// selection (invariant I1/a: never blocked), sorted for determinism
// (§4.2 step 3).
func (ctx *Context) runnableThreads() []ids.ThreadID {
	var out []ids.ThreadID
	for id, t := range ctx.Threads {
		if t.Status != Blocked {
			out = append(out, id)
		}
	}
	sortThreadIDs(out)
	return out
}

func sortThreadIDs(ids_ []ids.ThreadID) {
	for i := 1; i < len(ids_); i++ {
		for j := i; j > 0 && ids_[j-1] > ids_[j]; j-- {
			ids_[j-1], ids_[j] = ids_[j], ids_[j-1]
		}
	}
}

// wakeMaskWaiters makes runnable any thread blocked OnMask(woken) now
// that woken has become interruptible (§4.2 step 7, §9 Open Questions:
// shares Thread.interruptible with ThrowTo's own check).
func (ctx *Context) wakeMaskWaiters(woken ids.ThreadID) []ids.ThreadID {
	var out []ids.ThreadID
	for id, t := range ctx.Threads {
		if t.Status == Blocked && t.Block != nil && t.Block.Kind == act.OnMask && t.Block.Mask == woken {
			t.Status = Running
			t.Block = nil
			out = append(out, id)
		}
	}
	return out
}
