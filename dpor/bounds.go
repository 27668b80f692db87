package dpor

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// Bounds names the pair of §4.5 bound parameters; zero for either field
// means "unbounded" for that dimension.
type Bounds struct {
	Preemption uint32
	Fair       uint32
}

// DefaultBounds matches §6: PreemptionBound default 2, FairBound
// default 5.
func DefaultBounds() Bounds { return Bounds{Preemption: 2, Fair: 5} }

// countPreemptions counts trace positions where Decision is SwitchTo and
// the immediately preceding step's action was not a Yield (§4.5: a
// voluntary yield-then-switch is not a pre-emption).
func countPreemptions(trace []act.TraceStep) uint32 {
	var n uint32
	for i, step := range trace {
		if step.Decision.Kind != act.SwitchTo {
			continue
		}
		if i > 0 && trace[i-1].Action.Kind == act.TAYield {
			continue
		}
		n++
	}
	return n
}

// wouldPreempt reports whether choosing candidate next, given priorActor
// still runnable or not, constitutes a pre-emption by the same rule.
func wouldPreempt(priorActor *ids.ThreadID, priorWasYield bool, runnableReal []ids.ThreadID, candidate ids.ThreadID) bool {
	if priorActor == nil || *priorActor == candidate {
		return false
	}
	if priorWasYield {
		return false
	}
	for _, id := range runnableReal {
		if id == *priorActor {
			return true // SwitchTo: prior thread was still runnable but we picked someone else
		}
	}
	return false // prior thread gone: this is a Start, not a SwitchTo
}

// preemptionAllows is the pre-emption bound predicate: accept candidate
// iff the trace-so-far's pre-emption count, plus one if choosing it
// would itself be a pre-emption, stays within b.Preemption.
func preemptionAllows(b Bounds, trace []act.TraceStep, priorActor *ids.ThreadID, priorWasYield bool, runnableReal []ids.ThreadID, candidate ids.ThreadID) bool {
	count := countPreemptions(trace)
	if wouldPreempt(priorActor, priorWasYield, runnableReal, candidate) {
		count++
	}
	return count <= b.Preemption
}

// yieldCounts tallies, per actor that has appeared in the trace, how
// many Yield actions it has performed. Threads never seen are absent
// (and so excluded from the max-min spread, per §4.5: "for each thread
// observed in the prefix").
func yieldCounts(trace []act.TraceStep) map[ids.ThreadID]uint32 {
	counts := make(map[ids.ThreadID]uint32)
	for _, step := range trace {
		if _, ok := counts[step.Action.Actor]; !ok {
			counts[step.Action.Actor] = 0
		}
		if step.Action.Kind == act.TAYield {
			counts[step.Action.Actor]++
		}
	}
	return counts
}

// fairAllows is the fair bound predicate: reject candidate if choosing
// it (and, if its lookahead is itself a Yield, incrementing its tally)
// would push the max-min spread of observed yield counts beyond b.Fair.
func fairAllows(b Bounds, trace []act.TraceStep, candidate ids.ThreadID, candidateLookahead act.Lookahead) bool {
	counts := yieldCounts(trace)
	if _, ok := counts[candidate]; !ok {
		counts[candidate] = 0
	}
	if candidateLookahead.Kind == act.LAYield {
		counts[candidate]++
	}
	if len(counts) == 0 {
		return true
	}
	var min, max uint32
	first := true
	for _, c := range counts {
		if first {
			min, max = c, c
			first = false
			continue
		}
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	return max-min <= b.Fair
}

// combinedAllows is §4.5's combined bound: both predicates must hold.
func combinedAllows(b Bounds, trace []act.TraceStep, priorActor *ids.ThreadID, priorWasYield bool, runnableReal []ids.ThreadID, candidate ids.ThreadID, candidateLookahead act.Lookahead) bool {
	return preemptionAllows(b, trace, priorActor, priorWasYield, runnableReal, candidate) &&
		fairAllows(b, trace, candidate, candidateLookahead)
}
