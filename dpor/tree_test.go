package dpor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

func traceOf(chosen ...ids.ThreadID) []act.TraceStep {
	out := make([]act.TraceStep, len(chosen))
	for i, c := range chosen {
		out[i] = act.TraceStep{
			Action: act.ThreadAction{Actor: c},
			Chosen: c,
		}
	}
	return out
}

func TestTreeDrainedInitially(t *testing.T) {
	tree := NewTree()
	_, _, _, ok := tree.FindSchedulePrefix()
	assert.False(t, ok, "a tree with no incorporated trace and no backtrack points has nothing to try")
}

func TestTreeIncorporateAndBacktrack(t *testing.T) {
	tree := NewTree()
	trace := traceOf(0, 1)
	tree.IncorporateTrace(trace)

	// a naive backtrack point at thread 2, inserted at index 0.
	steps := []bstep{
		{index: 0, backtracks: map[ids.ThreadID]bool{2: false}},
		{index: 1, backtracks: map[ids.ThreadID]bool{}},
	}
	tree.IncorporateBacktrackSteps(trace, steps)

	prefix, conservative, _, ok := tree.FindSchedulePrefix()
	require.True(t, ok)
	assert.Equal(t, []ids.ThreadID{2}, prefix)
	assert.False(t, conservative)

	// replaying thread 2 as a fresh branch off the root drains that
	// backtrack point; with no further branches to try, the tree empties.
	tree.IncorporateTrace(traceOf(2))
	_, _, _, ok = tree.FindSchedulePrefix()
	assert.False(t, ok)
}

func TestTreeConservativeNeverOverriddenByPlain(t *testing.T) {
	tree := NewTree()
	trace := traceOf(0)
	tree.IncorporateTrace(trace)

	tree.IncorporateBacktrackSteps(trace, []bstep{{index: 0, backtracks: map[ids.ThreadID]bool{1: true}}})
	tree.IncorporateBacktrackSteps(trace, []bstep{{index: 0, backtracks: map[ids.ThreadID]bool{1: true}}})

	prefix, conservative, _, ok := tree.FindSchedulePrefix()
	require.True(t, ok)
	assert.Equal(t, []ids.ThreadID{1}, prefix)
	assert.True(t, conservative)

	// a later plain (non-conservative) insertion for the same thread
	// leaves it conservative: a conservative point is never downgraded.
	tree.IncorporateBacktrackSteps(trace, []bstep{{index: 0, backtracks: map[ids.ThreadID]bool{1: false}}})
	_, conservative, _, ok = tree.FindSchedulePrefix()
	require.True(t, ok)
	assert.True(t, conservative)
}

func TestTreePrefersLowerThreadIDAmongBacktrackPoints(t *testing.T) {
	tree := NewTree()
	trace := traceOf(0)
	tree.IncorporateTrace(trace)
	tree.IncorporateBacktrackSteps(trace, []bstep{{index: 0, backtracks: map[ids.ThreadID]bool{3: false, 1: false}}})

	prefix, _, _, ok := tree.FindSchedulePrefix()
	require.True(t, ok)
	assert.Equal(t, []ids.ThreadID{1}, prefix)
}
