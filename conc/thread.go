package conc

import "github.com/concheck/sct/act"
import "github.com/concheck/sct/ids"

// Status is a thread's coarse observable state machine position (§4.1):
// any action moves it to Running, a blocking variant moves it to
// Blocked, and Stop or an uncaught throw moves it to Dead (at which
// point the thread record is removed from the table).
type Status int

const (
	Running Status = iota
	Blocked
	Dead
)

// Thread is the per-thread record: its suspended continuation, why it
// is blocked (if at all), its masking state, its exception handler
// stack, and the set of MVar/CRef ids it has touched (used by the fair
// bound's release classification in the explorer).
type Thread struct {
	ID           ids.ThreadID
	Name         string
	Continuation act.Action
	Status       Status
	Block        *act.BlockReason
	Masking      act.MaskingState
	Handlers     []func(error) act.Action

	Known map[uint64]struct{}
}

func newThread(id ids.ThreadID, name string, body act.Action, masking act.MaskingState) *Thread {
	return &Thread{
		ID:           id,
		Name:         name,
		Continuation: body,
		Status:       Running,
		Masking:      masking,
		Known:        make(map[uint64]struct{}),
	}
}

func (t *Thread) touch(kind byte, raw uint64) {
	t.Known[uint64(kind)<<56|raw] = struct{}{}
}

// pushHandler installs a new innermost exception handler.
func (t *Thread) pushHandler(h func(error) act.Action) {
	t.Handlers = append(t.Handlers, h)
}

// popHandler removes the innermost handler, if any.
func (t *Thread) popHandler() (func(error) act.Action, bool) {
	if len(t.Handlers) == 0 {
		return nil, false
	}
	h := t.Handlers[len(t.Handlers)-1]
	t.Handlers = t.Handlers[:len(t.Handlers)-1]
	return h, true
}

// interruptible is the single predicate shared by the run-loop's
// OnMask wakeup check and ThrowTo's delivery check (§9 Open Questions:
// the two must not drift). A thread is interruptible when unmasked, or
// masked-interruptible while blocked — every BlockReason this engine
// produces (OnMVarFull/Empty, OnTVar, OnMask) is itself one of the
// "interruptible primitives" the spec names, so blocked-while-masked-
// interruptible is sufficient without inspecting which primitive.
func (t *Thread) interruptible() bool {
	if t.Masking == act.Unmasked {
		return true
	}
	if t.Masking == act.MaskedInterruptible && t.Status == Blocked {
		return true
	}
	return false
}
