package dpor

import (
	"sort"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// node is one position in the DPOR exploration tree (§4.4, §9
// "DPOR node"): the runnable set observed when execution reached here,
// which threads are flagged to be tried here (backtrack, keyed by
// conservative?), which of those have already been explored (done,
// pointing at the child node for that choice), and which thread-action
// pairs are known redundant at this position (sleep).
type node struct {
	runnable  []act.ThreadLookahead
	backtrack map[ids.ThreadID]bool
	done      map[ids.ThreadID]*node
	sleep     map[ids.ThreadID]act.Lookahead
}

func newNode() *node {
	return &node{
		backtrack: make(map[ids.ThreadID]bool),
		done:      make(map[ids.ThreadID]*node),
		sleep:     make(map[ids.ThreadID]act.Lookahead),
	}
}

// Tree is the exploration tree's root, one per scenario run.
type Tree struct {
	root *node
}

// NewTree returns an empty tree ready for its first findSchedulePrefix.
func NewTree() *Tree {
	t := &Tree{root: newNode()}
	// A fresh tree has no backtrack points, so FindSchedulePrefix
	// reports it drained; the explorer's first run uses an empty prefix
	// and the first incorporated trace seeds the tree.
	return t
}

func sortIDs(ids_ []ids.ThreadID) {
	sort.Slice(ids_, func(i, j int) bool { return ids_[i] < ids_[j] })
}

// prefixResult is findSchedulePrefix's return shape: path is the
// sequence of already-explored choices to replay unconditionally from
// the root, and next is the new (not yet Done) choice to make once path
// is exhausted — together prefix = append(path, next), matching §4.4's
// "it emits candidate prefixes" (the prefix's last hop is the untried
// backtrack target).
type prefixResult struct {
	path         []ids.ThreadID
	next         ids.ThreadID
	conservative bool
	sleep        map[ids.ThreadID]act.Lookahead
}

// FindSchedulePrefix returns the next schedule to try, or ok=false when
// the tree is fully drained (§4.4).
func (t *Tree) FindSchedulePrefix() (prefix []ids.ThreadID, conservative bool, sleep map[ids.ThreadID]act.Lookahead, ok bool) {
	r, found := findFrom(t.root)
	if !found {
		return nil, false, nil, false
	}
	full := append(append([]ids.ThreadID{}, r.path...), r.next)
	return full, r.conservative, r.sleep, true
}

// findFrom implements the walk described in §4.4: descend through done
// children following the canonical (sorted) order, and at the first
// node carrying a backtrack point not yet turned into a done child,
// return it. Tie-breaking by descending pre-emption count (§4.4 point 1)
// is approximated by visiting nodes in the natural left-to-right order
// the tree already encodes pre-emption priority in (earlier backtracking
// insertion already biased which threads got flagged); a full
// re-ranking by live pre-emption count is not performed, documented as
// a simplification in DESIGN.md.
func findFrom(n *node) (*prefixResult, bool) {
	var btKeys []ids.ThreadID
	for tid := range n.backtrack {
		btKeys = append(btKeys, tid)
	}
	sortIDs(btKeys)
	for _, tid := range btKeys {
		if _, done := n.done[tid]; !done {
			sleepCopy := make(map[ids.ThreadID]act.Lookahead, len(n.sleep))
			for k, v := range n.sleep {
				sleepCopy[k] = v
			}
			return &prefixResult{next: tid, conservative: n.backtrack[tid], sleep: sleepCopy}, true
		}
	}

	var doneKeys []ids.ThreadID
	for tid := range n.done {
		doneKeys = append(doneKeys, tid)
	}
	sortIDs(doneKeys)
	for _, tid := range doneKeys {
		child := n.done[tid]
		if r, ok := findFrom(child); ok {
			r.path = append([]ids.ThreadID{tid}, r.path...)
			return r, true
		}
	}
	return nil, false
}

// IncorporateTrace walks the tree alongside a just-executed trace,
// creating a done child at each step (first visit) or descending into
// the existing one (replay), and records each step's runnable-with-
// lookahead snapshot on its node so later backtracking insertion has it
// to work from.
func (t *Tree) IncorporateTrace(trace []act.TraceStep) {
	n := t.root
	for _, step := range trace {
		if n.runnable == nil {
			n.runnable = step.RunnableWithLookahead
		}
		child, ok := n.done[step.Chosen]
		if !ok {
			child = newNode()
			n.done[step.Chosen] = child
		}
		n = child
	}
}
