package dpor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/concheck/sct/act"
	"github.com/concheck/sct/ids"
)

func TestDependentMVar(t *testing.T) {
	d := newDepState()
	take := act.ThreadAction{Kind: act.TATakeMVar, Actor: 0, MVar: 1}
	put := act.ThreadAction{Kind: act.TAPutMVar, Actor: 1, MVar: 1}
	putOther := act.ThreadAction{Kind: act.TAPutMVar, Actor: 1, MVar: 2}

	assert.True(t, dependent(d, 0, probeFromAction(take), 1, probeFromAction(put)))
	assert.False(t, dependent(d, 0, probeFromAction(take), 1, probeFromAction(putOther)))
}

func TestDependentMVarBothTriesFail(t *testing.T) {
	d := newDepState()
	try1 := act.ThreadAction{Kind: act.TATryTakeMVar, Actor: 0, MVar: 1, Success: false}
	try2 := act.ThreadAction{Kind: act.TATryPutMVar, Actor: 1, MVar: 1, Success: false}
	try2ok := act.ThreadAction{Kind: act.TATryPutMVar, Actor: 1, MVar: 1, Success: true}

	assert.False(t, dependent(d, 0, probeFromAction(try1), 1, probeFromAction(try2)))
	assert.True(t, dependent(d, 0, probeFromAction(try1), 1, probeFromAction(try2ok)))
}

func TestDependentCRefReadRead(t *testing.T) {
	d := newDepState()
	r1 := act.ThreadAction{Kind: act.TAReadCRef, Actor: 0, CRef: 5}
	r2 := act.ThreadAction{Kind: act.TAReadCRef, Actor: 1, CRef: 5}
	assert.False(t, dependent(d, 0, probeFromAction(r1), 1, probeFromAction(r2)))

	d.PendingWriteCRefs[5] = true
	assert.True(t, dependent(d, 0, probeFromAction(r1), 1, probeFromAction(r2)))
}

func TestDependentCRefWrite(t *testing.T) {
	d := newDepState()
	w := act.ThreadAction{Kind: act.TAWriteCRef, Actor: 0, CRef: 5}
	r := act.ThreadAction{Kind: act.TAReadCRef, Actor: 1, CRef: 5}
	rOther := act.ThreadAction{Kind: act.TAReadCRef, Actor: 1, CRef: 6}
	assert.True(t, dependent(d, 0, probeFromAction(w), 1, probeFromAction(r)))
	assert.False(t, dependent(d, 0, probeFromAction(w), 1, probeFromAction(rOther)))
}

func TestDependentTVar(t *testing.T) {
	d := newDepState()
	readOnly1 := act.ThreadAction{Kind: act.TASTM, Actor: 0, TVarSet: []ids.TVarID{1, 2}}
	readOnly2 := act.ThreadAction{Kind: act.TASTM, Actor: 1, TVarSet: []ids.TVarID{2, 3}}
	assert.False(t, dependent(d, 0, probeFromAction(readOnly1), 1, probeFromAction(readOnly2)),
		"overlapping read sets with no writes are independent")

	write2 := act.ThreadAction{Kind: act.TASTM, Actor: 1, TVarSet: []ids.TVarID{2, 3}, Writes: []ids.TVarID{2}}
	assert.True(t, dependent(d, 0, probeFromAction(readOnly1), 1, probeFromAction(write2)))

	disjoint := act.ThreadAction{Kind: act.TASTM, Actor: 1, TVarSet: []ids.TVarID{9}, Writes: []ids.TVarID{9}}
	assert.False(t, dependent(d, 0, probeFromAction(readOnly1), 1, probeFromAction(disjoint)))
}

func TestDependentThrowToInterruptible(t *testing.T) {
	d := newDepState()
	d.Blocked[1] = true // thread 1 blocked on an interruptible primitive, Unmasked by default

	throwTo := act.ThreadAction{Kind: act.TAThrowTo, Actor: 0, Target: 1}
	otherAction := act.ThreadAction{Kind: act.TAWriteCRef, Actor: 1, CRef: 7}
	assert.True(t, dependent(d, 0, probeFromAction(throwTo), 1, probeFromAction(otherAction)))

	d.Masking[1] = act.MaskedUninterruptible
	assert.False(t, dependent(d, 0, probeFromAction(throwTo), 1, probeFromAction(otherAction)),
		"uninterruptible target is independent of a ThrowTo")
}

func TestDependentLifecycle(t *testing.T) {
	d := newDepState()
	fork := act.ThreadAction{Kind: act.TAFork, Actor: 0, Forked: 2}
	other := act.ThreadAction{Kind: act.TAWriteCRef, Actor: 2, CRef: 1}
	unrelated := act.ThreadAction{Kind: act.TAWriteCRef, Actor: 3, CRef: 1}

	assert.True(t, dependent(d, 0, probeFromAction(fork), 2, probeFromAction(other)))
	assert.False(t, dependent(d, 0, probeFromAction(fork), 3, probeFromAction(unrelated)))
}

func TestDependentSameThreadAlwaysFalse(t *testing.T) {
	d := newDepState()
	a := act.ThreadAction{Kind: act.TAWriteCRef, Actor: 0, CRef: 1}
	assert.False(t, dependent(d, 0, probeFromAction(a), 0, probeFromAction(a)))
}

func TestDependentLMVarLookahead(t *testing.T) {
	d := newDepState()
	put := act.ThreadAction{Kind: act.TAPutMVar, Actor: 0, MVar: 4}
	takeLookahead := act.Lookahead{Kind: act.LATakeMVar, MVar: 4}
	assert.True(t, dependentL(d, 0, put, 1, takeLookahead))

	otherLookahead := act.Lookahead{Kind: act.LATakeMVar, MVar: 5}
	assert.False(t, dependentL(d, 0, put, 1, otherLookahead))
}
