package conc

import (
	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// firstScheduler always advances the lowest-id runnable entry. Since
// runnableList is built in ascending ThreadID order (synthetic commit
// ids, carrying the high bit, sort last), this deterministically
// prefers real thread progress over settling a buffered write.
type firstScheduler struct{}

func (firstScheduler) Schedule(_ []act.TraceStep, _ *act.TraceStep, runnable []act.ThreadLookahead) (*ids.ThreadID, error) {
	id := runnable[0].Thread
	return &id, nil
}

// scriptScheduler prefers the next wanted thread in script whenever it
// is currently runnable, advancing its cursor only on a match;
// otherwise it falls back to the lowest-id runnable entry. This lets a
// test pin exactly the interleaving it wants at the steps that matter
// while leaving every other step (before any race begins, or after it
// is resolved) to a sane default.
type scriptScheduler struct {
	script []ids.ThreadID
	i      int
}

func (s *scriptScheduler) Schedule(_ []act.TraceStep, _ *act.TraceStep, runnable []act.ThreadLookahead) (*ids.ThreadID, error) {
	if s.i < len(s.script) {
		want := s.script[s.i]
		for _, r := range runnable {
			if r.Thread == want {
				s.i++
				id := want
				return &id, nil
			}
		}
	}
	id := runnable[0].Thread
	return &id, nil
}
