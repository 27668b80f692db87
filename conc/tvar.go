package conc

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// TVar is a transactional cell, readable and writable only from inside
// an STM transaction (Atomically). Who is retrying on which cells is
// tracked on the blocked Thread's BlockReason.TVars rather than here, so
// waking is a scan over threads (symmetric with OnMask wakeup) rather
// than bookkeeping kept in two places.
type TVar struct {
	ID    ids.TVarID
	Value act.Value
}

func newTVar(id ids.TVarID, initial act.Value) *TVar {
	return &TVar{ID: id, Value: initial}
}

func (v *TVar) clone() *TVar {
	return &TVar{ID: v.ID, Value: v.Value}
}
