package conc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

// Scenario 1: a single thread takes an empty MVar and is never woken.
func TestScenarioMVarDeadlock(t *testing.T) {
	program := &act.NewMVar{K: func(mv ids.MVarID) act.Action {
		return &act.TakeMVar{MVar: mv, K: func(act.Value) act.Action {
			return &act.Return{Value: act.NoneValue{}}
		}}
	}}

	ctx := NewContext(program, SequentialConsistency, 1)
	result, trace := RunConcurrency(ctx, firstScheduler{})

	require.Equal(t, FailureDeadlock, result.Failure)
	require.NotEmpty(t, trace)
	assert.Equal(t, act.TABlockedTakeMVar, trace[len(trace)-1].Action.Kind)
}

// buildRaceProgram forks two writers that each store a distinct value
// into a shared CRef, signalling completion through a dedicated MVar
// each; main joins on both and reads the final value (scenarios 2/3).
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

// Scenario 2: two writers race on a shared CRef under SequentialConsistency.
// Forcing each writer to run to completion before the other yields the
// two distinct final reads {1, 2}.
func TestScenarioTwoWriterRaceSC(t *testing.T) {
	w1First := []ids.ThreadID{1, 1, 2, 2}
	w2First := []ids.ThreadID{2, 2, 1, 1}

	ctx1 := NewContext(buildRaceProgram(), SequentialConsistency, 1)
	res1, _ := RunConcurrency(ctx1, &scriptScheduler{script: w1First})
	require.Equal(t, FailureNone, res1.Failure)

	ctx2 := NewContext(buildRaceProgram(), SequentialConsistency, 1)
	res2, _ := RunConcurrency(ctx2, &scriptScheduler{script: w2First})
	require.Equal(t, FailureNone, res2.Failure)

	seen := map[int64]bool{
		int64(res1.Value.(act.IntValue)): true,
		int64(res2.Value.(act.IntValue)): true,
	}
	assert.True(t, seen[1])
	assert.True(t, seen[2])
	assert.NotEqual(t, res1.Value.(act.IntValue), res2.Value.(act.IntValue))
}

// Scenario 3: same program under TotalStoreOrder. Forcing the scheduler
// to select the synthetic commit entry for w1's buffered write (instead
// of letting w1's own PutMVar barrier settle it) still yields the same
// outcome set, and produces an explicit CommitCRef trace entry.
func TestScenarioTwoWriterRaceTSO(t *testing.T) {
	commitW1 := commitThreadID(1, 0, false)
	script := []ids.ThreadID{1, commitW1, 1, 2, 2}

	ctx := NewContext(buildRaceProgram(), TotalStoreOrder, 1)
	result, trace := RunConcurrency(ctx, &scriptScheduler{script: script})

	require.Equal(t, FailureNone, result.Failure)
	v, ok := result.Value.(act.IntValue)
	require.True(t, ok)
	assert.Contains(t, []act.IntValue{1, 2}, v)

	sawCommit := false
	for _, step := range trace {
		if step.Action.Kind == act.TACommitCRef {
			sawCommit = true
		}
	}
	assert.True(t, sawCommit, "expected at least one explicit CommitCRef step")
}

// buildCASProgram forks a writer that unconditionally stores 8, while
// main reads-for-CAS then attempts to CAS in 7 (scenario 4).
func buildCASProgram() act.Action {
	return &act.NewCRef{Initial: act.IntValue(0), K: func(cref ids.CRefID) act.Action {
		return &act.Fork{Name: "writer", Body: func(act.Umask) act.Action {
			return &act.WriteCRef{CRef: cref, Value: act.IntValue(8), K: func(act.Value) act.Action {
				return &act.Stop{}
			}}
		}, K: func(ids.ThreadID) act.Action {
			return &act.ReadCRefCas{CRef: cref, K: func(_ act.Value, ticket act.Ticket) act.Action {
				return &act.CasCRef{CRef: cref, Ticket: ticket, NewValue: act.IntValue(7), K: func(ok bool, _ act.Ticket) act.Action {
					return &act.Return{Value: act.BoolValue(ok)}
				}}
			}}
		}}
	}}
}

func TestScenarioCASProgress(t *testing.T) {
	// writer interleaves between main's read and its CAS attempt: CAS fails.
	failScript := []ids.ThreadID{0, 0, 0, 1, 1}
	ctxFail := NewContext(buildCASProgram(), SequentialConsistency, 1)
	resFail, traceFail := RunConcurrency(ctxFail, &scriptScheduler{script: failScript})
	require.Equal(t, FailureNone, resFail.Failure)
	assert.Equal(t, act.BoolValue(false), resFail.Value)
	assert.Equal(t, act.IntValue(8), ctxFail.CRefs[0].Value)
	foundFailedCas := false
	for _, step := range traceFail {
		if step.Action.Kind == act.TACasCRef && !step.Action.Success {
			foundFailedCas = true
		}
	}
	assert.True(t, foundFailedCas)

	// writer runs to completion before main even reads: CAS succeeds.
	okScript := []ids.ThreadID{1, 1, 0, 0, 0}
	ctxOk := NewContext(buildCASProgram(), SequentialConsistency, 1)
	resOk, traceOk := RunConcurrency(ctxOk, &scriptScheduler{script: okScript})
	require.Equal(t, FailureNone, resOk.Failure)
	assert.Equal(t, act.BoolValue(true), resOk.Value)
	assert.Equal(t, act.IntValue(7), ctxOk.CRefs[0].Value)
	foundOkCas := false
	for _, step := range traceOk {
		if step.Action.Kind == act.TACasCRef && step.Action.Success {
			foundOkCas = true
		}
	}
	assert.True(t, foundOkCas)
}

// buildSTMRetryProgram allocates a shared TVar, then forks a reader that
// retries until it sees a non-zero value and a writer that sets it to 1
// (scenario 6).
func buildSTMRetryProgram() act.Action {
	newTVar := &act.STMNewTVar{Initial: act.IntValue(0), K: func(tv ids.TVarID) act.STMAction {
		return &act.STMReturn{Value: act.IntValue(int64(tv))}
	}}
	return &act.Atomically{Tx: newTVar, K: func(v act.Value) act.Action {
		tv := ids.TVarID(v.(act.IntValue))
		readRetry := func() act.STMAction {
			return &act.STMReadTVar{TVar: tv, K: func(v act.Value) act.STMAction {
				if !v.AsBool() {
					return &act.STMRetry{}
				}
				return &act.STMReturn{Value: v}
			}}
		}
		return &act.Fork{Name: "A", Body: func(act.Umask) act.Action {
			return &act.Atomically{Tx: readRetry(), K: func(act.Value) act.Action {
				return &act.Stop{}
			}}
		}, K: func(ids.ThreadID) act.Action {
			return &act.Fork{Name: "B", Body: func(act.Umask) act.Action {
				return &act.Atomically{
					Tx: &act.STMWriteTVar{TVar: tv, Value: act.IntValue(1), K: func() act.STMAction {
						return &act.STMReturn{Value: act.NoneValue{}}
					}},
					K: func(act.Value) act.Action { return &act.Stop{} },
				}
			}, K: func(ids.ThreadID) act.Action {
				return &act.Stop{}
			}}
		}}
	}}
}

func TestScenarioSTMRetryWakeup(t *testing.T) {
	// A attempts first, blocks; B writes and wakes it; A's retry succeeds.
	blockThenWake := []ids.ThreadID{1, 2, 1}
	ctxBlock := NewContext(buildSTMRetryProgram(), SequentialConsistency, 1)
	resBlock, traceBlock := RunConcurrency(ctxBlock, &scriptScheduler{script: blockThenWake})
	require.Equal(t, FailureNone, resBlock.Failure)

	var kinds []act.ThreadActionKind
	for _, step := range traceBlock {
		kinds = append(kinds, step.Action.Kind)
	}
	assert.Contains(t, kinds, act.TABlockedSTM)
	blockedIdx, stmIdx := -1, -1
	for i, step := range traceBlock {
		if step.Action.Kind == act.TABlockedSTM && step.Action.Actor == 1 {
			blockedIdx = i
		}
		if blockedIdx != -1 && step.Action.Kind == act.TASTM && step.Action.Actor == 1 {
			stmIdx = i
			break
		}
	}
	assert.True(t, blockedIdx >= 0 && stmIdx > blockedIdx, "A must block then later succeed")

	// B writes before A ever attempts: A never blocks.
	writeFirst := []ids.ThreadID{2, 1}
	ctxWrite := NewContext(buildSTMRetryProgram(), SequentialConsistency, 1)
	resWrite, traceWrite := RunConcurrency(ctxWrite, &scriptScheduler{script: writeFirst})
	require.Equal(t, FailureNone, resWrite.Failure)
	for _, step := range traceWrite {
		if step.Action.Actor == 1 {
			assert.Equal(t, act.TASTM, step.Action.Kind)
		}
	}
}
