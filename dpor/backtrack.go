package dpor

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// bstep is one entry of findBacktrackSteps's output: position j in the
// trace, and the backtracking points discovered for it (§4.6).
type bstep struct {
	index      int
	backtracks map[ids.ThreadID]bool // thread -> conservative?
}

// findBacktrackSteps walks a completed trace left to right and, for
// each step j, looks for runnable-but-not-taken threads whose lookahead
// is dependent with some earlier executed step — those get a
// backtracking point at the earliest such earlier index (§4.6).
func findBacktrackSteps(trace []act.TraceStep, boundKill bool) []bstep {
	out := make([]bstep, len(trace))
	for j := range trace {
		out[j] = bstep{index: j, backtracks: make(map[ids.ThreadID]bool)}
	}

	for j, stepJ := range trace {
		for _, cand := range stepJ.RunnableWithLookahead {
			if cand.Thread == stepJ.Chosen {
				continue
			}
			earliest := -1
			for i := j - 1; i >= 0; i-- {
				d := depStateFromTrace(trace[:i])
				if dependentL(d, trace[i].Action.Actor, trace[i].Action, cand.Thread, cand.Lookahead) {
					earliest = i
				}
			}
			if earliest >= 0 {
				backtrackAt(trace, out, earliest, cand.Thread)
			}
		}

		if boundKill && j == len(trace)-1 {
			for _, cand := range stepJ.RunnableWithLookahead {
				if cand.Thread == stepJ.Chosen {
					continue
				}
				for _, tgt := range fairBacktrackTarget(trace, j, cand.Thread) {
					backtrackAt(trace, out, j, tgt)
				}
			}
		}
	}
	return out
}

// backtrackAt implements §4.6's backtrackAt: if tid isn't runnable at i,
// spread the point to every thread runnable there instead; otherwise
// insert a plain point for tid, and when tid had no point at i before or
// had only a plain one, also add the defensive conservative pre-emption
// point per §4.6.
func backtrackAt(trace []act.TraceStep, steps []bstep, i int, tid ids.ThreadID) {
	runnableAt := func(idx int, target ids.ThreadID) bool {
		for _, c := range trace[idx].RunnableWithLookahead {
			if c.Thread == target {
				return true
			}
		}
		return false
	}

	if !runnableAt(i, tid) {
		for _, c := range trace[i].RunnableWithLookahead {
			insertBacktrack(steps, i, c.Thread, false)
		}
		return
	}

	wasNonConservative, existed := steps[i].backtracks[tid]
	wasNonConservative = existed && !wasNonConservative
	insertBacktrack(steps, i, tid, false)

	if !existed || wasNonConservative {
		addConservativePreemption(trace, steps, i, tid)
	}
}

// insertBacktrack inserts tid -> conservative into step i's backtracks.
// An existing plain entry is upgraded to conservative when a
// conservative point arrives; a conservative entry is never turned
// back into a plain one.
func insertBacktrack(steps []bstep, i int, tid ids.ThreadID, conservative bool) {
	cur, ok := steps[i].backtracks[tid]
	if !ok {
		steps[i].backtracks[tid] = conservative
		return
	}
	if !cur && conservative {
		steps[i].backtracks[tid] = true
	}
}

// addConservativePreemption scans backwards from i-1 for the nearest
// index where the running thread differs from its predecessor and
// neither step is a CommitCRef, and adds a conservative point there for
// tid (§4.6's "conservative pre-emption backtracking").
func addConservativePreemption(trace []act.TraceStep, steps []bstep, i int, tid ids.ThreadID) {
	for k := i - 1; k > 0; k-- {
		if trace[k].Action.Kind == act.TACommitCRef || trace[k-1].Action.Kind == act.TACommitCRef {
			continue
		}
		if trace[k].Chosen != trace[k-1].Chosen {
			insertBacktrack(steps, k, tid, true)
			return
		}
	}
}

// fairBacktrackTarget returns the set of threads a fair-bound insertion
// should backtrack to at i: every runnable thread there if target's
// lookahead is a release operation, else just target (§4.6's
// fair-bound insertion rule).
func fairBacktrackTarget(trace []act.TraceStep, i int, target ids.ThreadID) []ids.ThreadID {
	var lookahead act.Lookahead
	for _, c := range trace[i].RunnableWithLookahead {
		if c.Thread == target {
			lookahead = c.Lookahead
			break
		}
	}
	if !lookahead.Kind.IsRelease() {
		return []ids.ThreadID{target}
	}
	out := make([]ids.ThreadID, 0, len(trace[i].RunnableWithLookahead))
	for _, c := range trace[i].RunnableWithLookahead {
		out = append(out, c.Thread)
	}
	return out
}

// IncorporateBacktrackSteps folds the backtrack points discovered for a
// trace into the tree, walking the same path IncorporateTrace just
// created/confirmed.
func (t *Tree) IncorporateBacktrackSteps(trace []act.TraceStep, steps []bstep) {
	n := t.root
	for j, step := range trace {
		for tid, conservative := range steps[j].backtracks {
			existing, ok := n.backtrack[tid]
			if !ok || (!existing && conservative) {
				n.backtrack[tid] = conservative
			}
		}
		child, ok := n.done[step.Chosen]
		if !ok {
			return // shouldn't happen: IncorporateTrace always runs first
		}
		n = child
	}
}
