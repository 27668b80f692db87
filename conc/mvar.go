package conc

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// MVar is a synchronous rendezvous cell: empty or holding exactly one
// value, with wait-sets of threads blocked wanting to fill it
// (waitingFull, i.e. blocked putters) or drain/observe it (waitingEmpty,
// i.e. blocked takers and readers).
type MVar struct {
	ID           ids.MVarID
	Value        act.Value
	Full         bool
	WaitingFull  []ids.ThreadID
	WaitingEmpty []ids.ThreadID
}

func newMVar(id ids.MVarID, initial act.Value) *MVar {
	m := &MVar{ID: id}
	if initial != nil {
		m.Value = initial
		m.Full = true
	}
	return m
}

// put fills an empty MVar, returning the threads to wake from
// waitingEmpty (§4.1 PutMVar). Callers must check Full first.
func (m *MVar) put(v act.Value) []ids.ThreadID {
	m.Value = v
	m.Full = true
	woken := m.WaitingEmpty
	m.WaitingEmpty = nil
	return woken
}

// take drains a full MVar, returning its value and the threads to wake
// from waitingFull.
func (m *MVar) take() (act.Value, []ids.ThreadID) {
	v := m.Value
	m.Value = nil
	m.Full = false
	woken := m.WaitingFull
	m.WaitingFull = nil
	return v, woken
}

// read observes a full MVar non-destructively; nothing is woken since
// the cell's fullness does not change.
func (m *MVar) read() act.Value {
	return m.Value
}

func (m *MVar) blockPutter(t ids.ThreadID) {
	m.WaitingFull = append(m.WaitingFull, t)
}

func (m *MVar) blockWaiter(t ids.ThreadID) {
	m.WaitingEmpty = append(m.WaitingEmpty, t)
}

func (m *MVar) clone() *MVar {
	out := &MVar{
		ID:    m.ID,
		Value: m.Value,
		Full:  m.Full,
	}
	out.WaitingFull = append(out.WaitingFull, m.WaitingFull...)
	out.WaitingEmpty = append(out.WaitingEmpty, m.WaitingEmpty...)
	return out
}
