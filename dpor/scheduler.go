package dpor

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/conc"
	"github.com/concheck/sct/ids"
)

// scheduler is the stateful DPOR scheduler (§4.7) implementing
// conc.Scheduler: it replays a forced prefix unconditionally, then
// switches to live candidate selection (initialise ordering, bound
// filtering, sleep-set filtering) for everything after.
type scheduler struct {
	prefix []ids.ThreadID
	pos    int

	bounds Bounds
	sleep  map[ids.ThreadID]act.Lookahead
	dep    DepState

	ignore    bool
	boundKill bool
}

func newScheduler(prefix []ids.ThreadID, sleep map[ids.ThreadID]act.Lookahead, bounds Bounds) *scheduler {
	s := &scheduler{
		prefix: prefix,
		bounds: bounds,
		sleep:  make(map[ids.ThreadID]act.Lookahead),
		dep:    newDepState(),
	}
	for k, v := range sleep {
		s.sleep[k] = v
	}
	return s
}

var _ conc.Scheduler = (*scheduler)(nil)

func runnableContains(runnable []act.ThreadLookahead, tid ids.ThreadID) (act.Lookahead, bool) {
	for _, r := range runnable {
		if r.Thread == tid {
			return r.Lookahead, true
		}
	}
	return act.Lookahead{}, false
}

func (s *scheduler) Schedule(prefixTrace []act.TraceStep, prior *act.TraceStep, runnable []act.ThreadLookahead) (*ids.ThreadID, error) {
	// Fold the most recently executed step (if any) into our running
	// DepState and purge any sleep entries it invalidates, before doing
	// anything else this call.
	if len(prefixTrace) > 0 {
		last := prefixTrace[len(prefixTrace)-1]
		s.dep = s.dep.advance(last.Action)
		for tid, look := range s.sleep {
			if dependentL(s.dep, last.Action.Actor, last.Action, tid, look) {
				delete(s.sleep, tid)
			}
		}
	}

	if s.pos < len(s.prefix) {
		want := s.prefix[s.pos]
		s.pos++
		id := want
		return &id, nil
	}

	var priorActor *ids.ThreadID
	priorWasYield := false
	var runnableReal []ids.ThreadID
	for _, r := range runnable {
		if !isSyntheticCommit(r.Thread) {
			runnableReal = append(runnableReal, r.Thread)
		}
	}
	if prior != nil {
		a := prior.Chosen
		priorActor = &a
		priorWasYield = prior.Action.Kind == act.TAYield
	}

	ordered := initialiseCandidates(runnable, priorActor, priorWasYield)

	bounded := make([]ids.ThreadID, 0, len(ordered))
	lookup := make(map[ids.ThreadID]act.Lookahead, len(runnable))
	for _, r := range runnable {
		lookup[r.Thread] = r.Lookahead
	}
	for _, cand := range ordered {
		if combinedAllows(s.bounds, prefixTrace, priorActor, priorWasYield, runnableReal, cand, lookup[cand]) {
			bounded = append(bounded, cand)
		}
	}
	if len(bounded) == 0 {
		s.boundKill = true
		return nil, nil
	}

	var filtered []ids.ThreadID
	for _, cand := range bounded {
		if _, asleep := s.sleep[cand]; asleep {
			continue
		}
		filtered = append(filtered, cand)
	}
	if len(filtered) == 0 {
		s.ignore = true
		return nil, nil
	}

	chosen := filtered[0]
	for _, cand := range bounded {
		if cand != chosen {
			s.sleep[cand] = lookup[cand]
		}
	}
	id := chosen
	return &id, nil
}

func isSyntheticCommit(tid ids.ThreadID) bool {
	const commitFlag ids.ThreadID = 1 << 63
	return tid&commitFlag != 0
}

// initialiseCandidates builds the candidate order §4.7 describes:
// prefer the prior thread if it's still runnable and didn't just yield;
// otherwise non-yielders before yielders; finally, if a thread whose
// next action would end the whole program (InitialThread Stop/Return)
// is among several candidates, push it to the back so daemon threads
// get a chance to run first.
func initialiseCandidates(runnable []act.ThreadLookahead, priorActor *ids.ThreadID, priorWasYield bool) []ids.ThreadID {
	lookup := make(map[ids.ThreadID]act.Lookahead, len(runnable))
	all := make([]ids.ThreadID, 0, len(runnable))
	for _, r := range runnable {
		lookup[r.Thread] = r.Lookahead
		all = append(all, r.Thread)
	}
	sortIDs(all)

	var ordered []ids.ThreadID
	preferred := false
	if priorActor != nil && !priorWasYield {
		for _, id := range all {
			if id == *priorActor {
				ordered = append(ordered, id)
				preferred = true
			}
		}
	}

	var nonYield, yield []ids.ThreadID
	for _, id := range all {
		if preferred && priorActor != nil && id == *priorActor {
			continue
		}
		if lookup[id].Kind == act.LAYield {
			yield = append(yield, id)
		} else {
			nonYield = append(nonYield, id)
		}
	}
	ordered = append(ordered, nonYield...)
	ordered = append(ordered, yield...)

	if len(ordered) > 1 {
		for i, id := range ordered {
			if id == ids.InitialThread &&
				(lookup[id].Kind == act.LAStop || lookup[id].Kind == act.LAReturn) {
				ordered = append(ordered[:i], ordered[i+1:]...)
				ordered = append(ordered, id)
				break
			}
		}
	}
	return ordered
}
