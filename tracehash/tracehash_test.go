package tracehash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestDeterministic(t *testing.T) {
	s := Shape{Failure: "", Value: "1", Cells: []string{"cref0=1"}}
	h1, err := Digest(s)
	require.NoError(t, err)
	h2, err := Digest(s)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestDigestDistinguishesShapes(t *testing.T) {
	a, err := Digest(Shape{Value: "1"})
	require.NoError(t, err)
	b, err := Digest(Shape{Value: "2"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestShapeSetObserveFreshness(t *testing.T) {
	set := NewShapeSet(0)
	h1, fresh1, err := set.Observe(Shape{Value: "1"})
	require.NoError(t, err)
	assert.True(t, fresh1)

	h2, fresh2, err := set.Observe(Shape{Value: "1"})
	require.NoError(t, err)
	assert.False(t, fresh2)
	assert.Equal(t, h1, h2)

	_, fresh3, err := set.Observe(Shape{Value: "2"})
	require.NoError(t, err)
	assert.True(t, fresh3)

	assert.Equal(t, 2, set.DistinctCount())
	assert.Equal(t, 2, set.CountOf(h1))
}

func TestShapeSetEviction(t *testing.T) {
	set := NewShapeSet(2)
	h1, _, err := set.Observe(Shape{Value: "1"})
	require.NoError(t, err)
	_, _, err = set.Observe(Shape{Value: "2"})
	require.NoError(t, err)
	_, _, err = set.Observe(Shape{Value: "3"})
	require.NoError(t, err)

	// eviction only drops the retained detail entry; the exact observed
	// count for every shape is never lost.
	assert.Equal(t, 3, set.DistinctCount())
	assert.Equal(t, 1, set.CountOf(h1))
}
