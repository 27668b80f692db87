package dpor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

func step(actor ids.ThreadID, kind act.ThreadActionKind, decision act.Decision) act.TraceStep {
	return act.TraceStep{
		Decision: decision,
		Action:   act.ThreadAction{Kind: kind, Actor: actor},
		Chosen:   actor,
	}
}

func TestCountPreemptions(t *testing.T) {
	trace := []act.TraceStep{
		step(0, act.TAWriteCRef, act.Decision{Kind: act.Start}),
		step(1, act.TAWriteCRef, act.Decision{Kind: act.SwitchTo, Thread: 1}),
		step(1, act.TAYield, act.Decision{Kind: act.Continue}),
		step(0, act.TAWriteCRef, act.Decision{Kind: act.SwitchTo, Thread: 0}),
	}
	// step 1 is a genuine pre-emption (thread 0 didn't yield); step 3
	// switches away from thread 1 right after it yielded, so it is not.
	assert.Equal(t, uint32(1), countPreemptions(trace))
}

func TestPreemptionAllows(t *testing.T) {
	b := Bounds{Preemption: 0, Fair: 100}
	trace := []act.TraceStep{step(0, act.TAWriteCRef, act.Decision{Kind: act.Start})}
	prior := ids.ThreadID(0)

	// candidate 1 would switch away from still-runnable thread 0: a
	// pre-emption, disallowed at Preemption: 0.
	assert.False(t, preemptionAllows(b, trace, &prior, false, []ids.ThreadID{0, 1}, 1))
	// candidate 0 continues the same thread: never a pre-emption.
	assert.True(t, preemptionAllows(b, trace, &prior, false, []ids.ThreadID{0, 1}, 0))
	// if thread 0 just yielded, switching to 1 is not a pre-emption.
	assert.True(t, preemptionAllows(b, trace, &prior, true, []ids.ThreadID{0, 1}, 1))
}

func TestFairAllowsRejectsBeyondSpread(t *testing.T) {
	b := Bounds{Preemption: 100, Fair: 2}
	var trace []act.TraceStep
	trace = append(trace, step(0, act.TAFork, act.Decision{Kind: act.Start}))
	for i := 0; i < 3; i++ {
		trace = append(trace, step(1, act.TAYield, act.Decision{Kind: act.Continue}))
	}
	// thread 0 has yielded 0 times, thread 1 has yielded 3 times; one
	// more yield from 1 would push the spread to 4, beyond Fair: 2.
	assert.False(t, fairAllows(b, trace, 1, act.Lookahead{Kind: act.LAYield}))
	// thread 0 catching up (narrowing the spread to 2) is allowed.
	assert.True(t, fairAllows(b, trace, 0, act.Lookahead{Kind: act.LAYield}))
	// a non-yield candidate from the already-ahead thread doesn't grow
	// the spread further, but the existing 3-0 spread already exceeds
	// the bound, so it stays rejected either way.
	assert.False(t, fairAllows(b, trace, 1, act.Lookahead{Kind: act.LAReadCRef}))
}

func TestCombinedAllows(t *testing.T) {
	b := Bounds{Preemption: 0, Fair: 1}
	trace := []act.TraceStep{step(0, act.TAYield, act.Decision{Kind: act.Start})}
	prior := ids.ThreadID(0)
	// switching to 1 right after 0 yielded is not a pre-emption, and the
	// resulting 1-vs-0 yield spread is within the fair bound of 1.
	assert.True(t, combinedAllows(b, trace, &prior, true, []ids.ThreadID{0, 1}, 1, act.Lookahead{Kind: act.LAWriteCRef}))
	// the same candidate is rejected once the fair bound is tightened
	// to 0: the yield spread of 1 exceeds it.
	assert.False(t, combinedAllows(Bounds{Preemption: 0, Fair: 0}, trace, &prior, true, []ids.ThreadID{0, 1}, 1, act.Lookahead{Kind: act.LAWriteCRef}))
}
