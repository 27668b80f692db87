package dpor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/conc"
	"github.com/concheck/sct/ids"
)

// buildRaceProgram mirrors conc's buildRaceProgram: two writers race on
// a shared CRef, each signalling through its own MVar; main joins both
// and reads the final value. Two distinct result shapes (1 and 2) are
// reachable depending on interleaving.
func buildRaceProgram() act.Action {
	return &act.NewCRef{Initial: act.IntValue(0), K: func(cref ids.CRefID) act.Action {
		return &act.NewMVar{K: func(done1 ids.MVarID) act.Action {
			return &act.NewMVar{K: func(done2 ids.MVarID) act.Action {
				return &act.Fork{Name: "w1", Body: func(act.Umask) act.Action {
					return &act.WriteCRef{CRef: cref, Value: act.IntValue(1), K: func(act.Value) act.Action {
						return &act.PutMVar{MVar: done1, Value: act.NoneValue{}, K: func(act.Value) act.Action {
							return &act.Stop{}
						}}
					}}
				}, K: func(ids.ThreadID) act.Action {
					return &act.Fork{Name: "w2", Body: func(act.Umask) act.Action {
						return &act.WriteCRef{CRef: cref, Value: act.IntValue(2), K: func(act.Value) act.Action {
							return &act.PutMVar{MVar: done2, Value: act.NoneValue{}, K: func(act.Value) act.Action {
								return &act.Stop{}
							}}
						}}
					}, K: func(ids.ThreadID) act.Action {
						return &act.TakeMVar{MVar: done1, K: func(act.Value) act.Action {
							return &act.TakeMVar{MVar: done2, K: func(act.Value) act.Action {
								return &act.ReadCRef{CRef: cref, K: func(v act.Value) act.Action {
									return &act.Return{Value: v}
								}}
							}}
						}}
					}}
				}}
			}}
		}}
	}}
}

// Scenario 2/D1: exhaustively exploring the two-writer race under
// SequentialConsistency must surface both reachable final values.
func TestExplorerTwoWriterRaceFindsBothShapes(t *testing.T) {
	explorer := NewExplorerFor(buildRaceProgram, conc.SequentialConsistency, DefaultBounds())
	executions := explorer.ExploreAll()
	require.NotEmpty(t, executions)

	seen := map[int64]bool{}
	for _, e := range executions {
		require.Equal(t, conc.FailureNone, e.Result.Failure)
		v, ok := e.Result.Value.(act.IntValue)
		require.True(t, ok)
		seen[int64(v)] = true
	}
	assert.True(t, seen[1], "value left by w1 alone must be reachable")
	assert.True(t, seen[2], "value left by w2 alone must be reachable")
	assert.Equal(t, 2, explorer.Shapes.DistinctCount())

	// DPOR reduction should keep the explored set small rather than
	// blowing up combinatorially; this program only has a handful of
	// dependent interleavings worth trying.
	assert.LessOrEqual(t, len(executions), 10)
}

// Scenario 3 under TotalStoreOrder: the explorer must still find both
// shapes, including schedules that settle a writer's buffered write via
// the synthetic commit candidate rather than its own next barrier.
func TestExplorerTwoWriterRaceTSOFindsBothShapes(t *testing.T) {
	explorer := NewExplorerFor(buildRaceProgram, conc.TotalStoreOrder, DefaultBounds())
	executions := explorer.ExploreAll()
	require.NotEmpty(t, executions)

	seen := map[int64]bool{}
	sawCommit := false
	for _, e := range executions {
		require.Equal(t, conc.FailureNone, e.Result.Failure)
		v, ok := e.Result.Value.(act.IntValue)
		require.True(t, ok)
		seen[int64(v)] = true
		for _, step := range e.Trace {
			if step.Action.Kind == act.TACommitCRef {
				sawCommit = true
			}
		}
	}
	assert.True(t, seen[1])
	assert.True(t, seen[2])
	assert.True(t, sawCommit, "some explored schedule should settle a buffered write via an explicit commit")
}

// Scenario 1: a single thread deadlocked on an empty MVar has no
// alternate schedules to explore — the tree drains after one execution.
func TestExplorerSingleThreadDeadlockYieldsOneExecution(t *testing.T) {
	program := func() act.Action {
		return &act.NewMVar{K: func(mv ids.MVarID) act.Action {
			return &act.TakeMVar{MVar: mv, K: func(act.Value) act.Action {
				return &act.Return{Value: act.NoneValue{}}
			}}
		}}
	}
	explorer := NewExplorerFor(program, conc.SequentialConsistency, DefaultBounds())
	executions := explorer.ExploreAll()
	require.Len(t, executions, 1)
	assert.Equal(t, conc.FailureDeadlock, executions[0].Result.Failure)
}

// Scenario 5: a daemon thread that yields forever, with no other
// runnable thread for the whole run, must eventually have its
// candidacy rejected by the fair bound rather than let the explorer
// hang on an unboundedly long single execution.
func TestExplorerFairBoundKillsSpinner(t *testing.T) {
	var loop func() act.Action
	loop = func() act.Action {
		return &act.Yield{K: func(act.Value) act.Action { return loop() }}
	}
	program := func() act.Action {
		return &act.NewMVar{K: func(mv ids.MVarID) act.Action {
			return &act.Fork{Name: "spinner", Body: func(act.Umask) act.Action {
				return loop()
			}, K: func(ids.ThreadID) act.Action {
				return &act.TakeMVar{MVar: mv, K: func(act.Value) act.Action {
					return &act.Return{Value: act.NoneValue{}}
				}}
			}}
		}}
	}

	explorer := NewExplorerFor(program, conc.SequentialConsistency, Bounds{Preemption: 2, Fair: 3})
	executions := explorer.ExploreAll()
	require.NotEmpty(t, executions)

	sawAbort := false
	for _, e := range executions {
		if e.Result.Failure == conc.FailureAbort {
			sawAbort = true
		}
	}
	assert.True(t, sawAbort, "the fair bound must eventually refuse to keep scheduling the spinner")
}
