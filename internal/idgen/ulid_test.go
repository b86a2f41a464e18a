package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAtomIDHasRepoPrefixAndLength(t *testing.T) {
	g := NewGenerator("proj")
	id, err := g.NewAtomID()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "proj-"))
	assert.Len(t, id, len("proj-")+26)
}

func TestNewAtomIDAtIsMonotonicWithinSameMillisecond(t *testing.T) {
	g := NewGenerator("proj")
	now := time.Now()
	first, err := g.NewAtomIDAt(now)
	require.NoError(t, err)
	second, err := g.NewAtomIDAt(now)
	require.NoError(t, err)
	assert.Less(t, first, second)
}

func TestNormalizeMapsConfusables(t *testing.T) {
	assert.Equal(t, "1", Normalize("i"))
	assert.Equal(t, "1", Normalize("l"))
	assert.Equal(t, "0", Normalize("o"))
	assert.Equal(t, "110", Normalize("IlO"))
}

func TestRandomnessOfRejectsChildIDs(t *testing.T) {
	g := NewGenerator("proj")
	id, err := g.NewAtomID()
	require.NoError(t, err)

	_, ok := RandomnessOf(ChildID(id, 1))
	assert.False(t, ok)

	suffix, ok := RandomnessOf(id)
	assert.True(t, ok)
	assert.Len(t, suffix, 16)
}

func TestCommentIDFormat(t *testing.T) {
	assert.Equal(t, "proj-ABC-c1", CommentID("proj-ABC", 1))
}
