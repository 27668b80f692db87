package conc

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// MemoryModel selects how CRef writes are buffered before they become
// visible to other threads (§3 WriteBuffer, §4.1 CRef operations).
type MemoryModel int

const (
	SequentialConsistency MemoryModel = iota
	TotalStoreOrder
	PartialStoreOrder
)

func (m MemoryModel) String() string {
	switch m {
	case SequentialConsistency:
		return "SequentialConsistency"
	case TotalStoreOrder:
		return "TotalStoreOrder"
	case PartialStoreOrder:
		return "PartialStoreOrder"
	default:
		return "MemoryModel(?)"
	}
}

// bufKey is the write buffer's queue key: (thread, None) under TSO (one
// queue per thread), (thread, Some(cref)) under PSO (one queue per
// thread-cell pair).
type bufKey struct {
	thread  ids.ThreadID
	cref    ids.CRefID
	hasCRef bool
}

type pendingWrite struct {
	cref  ids.CRefID
	value act.Value
}

// WriteBuffer is the per-thread(-per-cell) queue of pending stores
// described in §3, plus the barrier semantics of §4.3.
type WriteBuffer struct {
	Model  MemoryModel
	queues map[bufKey][]pendingWrite
}

func newWriteBuffer(model MemoryModel) *WriteBuffer {
	return &WriteBuffer{Model: model, queues: make(map[bufKey][]pendingWrite)}
}

func (wb *WriteBuffer) key(thread ids.ThreadID, cref ids.CRefID) bufKey {
	if wb.Model == PartialStoreOrder {
		return bufKey{thread: thread, cref: cref, hasCRef: true}
	}
	return bufKey{thread: thread}
}

// Enqueue buffers a write under TSO/PSO. Callers must not call this
// under SequentialConsistency.
func (wb *WriteBuffer) Enqueue(thread ids.ThreadID, cref ids.CRefID, value act.Value) {
	k := wb.key(thread, cref)
	wb.queues[k] = append(wb.queues[k], pendingWrite{cref: cref, value: value})
}

// ThreadLocalRead implements store-forwarding: the most recent buffered
// write by thread to cref, if any.
func (wb *WriteBuffer) ThreadLocalRead(thread ids.ThreadID, cref ids.CRefID) (act.Value, bool) {
	k := wb.key(thread, cref)
	q := wb.queues[k]
	for i := len(q) - 1; i >= 0; i-- {
		if q[i].cref == cref {
			return q[i].value, true
		}
	}
	return nil, false
}

// PendingKeys lists the buffer keys belonging to thread with at least
// one queued write, used by the run-loop to add ephemeral commit
// threads to the runnable set.
func (wb *WriteBuffer) PendingKeys(thread ids.ThreadID) []bufKey {
	var out []bufKey
	for k, q := range wb.queues {
		if k.thread == thread && len(q) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// AllPendingKeys lists every key with a non-empty queue, across all
// threads.
func (wb *WriteBuffer) AllPendingKeys() []bufKey {
	var out []bufKey
	for k, q := range wb.queues {
		if len(q) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// CommitHead dequeues and returns the head write for key, the CRef it
// targets and the committed value. Ok is false if the queue was empty.
func (wb *WriteBuffer) CommitHead(k bufKey) (ids.CRefID, act.Value, bool) {
	q := wb.queues[k]
	if len(q) == 0 {
		return 0, nil, false
	}
	head := q[0]
	wb.queues[k] = q[1:]
	return head.cref, head.value, true
}

// FlushThread drains every queue belonging to thread, in FIFO order
// within each queue, returning the (cref, value) pairs to apply to
// authoritative CRef storage in that order. This is the writeBarrier of
// §4.3: after it returns, thread's buffer is empty (invariant I2).
func (wb *WriteBuffer) FlushThread(thread ids.ThreadID) []struct {
	CRef  ids.CRefID
	Value act.Value
} {
	var out []struct {
		CRef  ids.CRefID
		Value act.Value
	}
	for _, k := range wb.PendingKeys(thread) {
		for _, pw := range wb.queues[k] {
			out = append(out, struct {
				CRef  ids.CRefID
				Value act.Value
			}{pw.cref, pw.value})
		}
		wb.queues[k] = nil
	}
	return out
}

// Empty reports whether thread has no buffered writes (invariant I2 /
// invariant d under SequentialConsistency, where it must always hold).
func (wb *WriteBuffer) Empty(thread ids.ThreadID) bool {
	return len(wb.PendingKeys(thread)) == 0
}

// Clone deep-copies the buffer for subconcurrency/snapshot use.
func (wb *WriteBuffer) Clone() *WriteBuffer {
	out := newWriteBuffer(wb.Model)
	for k, q := range wb.queues {
		cp := make([]pendingWrite, len(q))
		copy(cp, q)
		out.queues[k] = cp
	}
	return out
}
