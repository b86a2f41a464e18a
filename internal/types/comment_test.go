package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentDigestIsStableAndSixteenHex(t *testing.T) {
	now := time.Now().UTC()
	c, err := NewComment("a-1-c1", "a-1", "alice", "looks good", now)
	require.NoError(t, err)
	d1 := c.Digest()
	assert.Len(t, d1, 16)

	c2, err := NewComment("a-1-c1", "a-1", "alice", "looks good", now)
	require.NoError(t, err)
	assert.Equal(t, d1, c2.Digest())
}

func TestCommentDigestDiffersOnContent(t *testing.T) {
	now := time.Now().UTC()
	c1, err := NewComment("a-1-c1", "a-1", "alice", "one", now)
	require.NoError(t, err)
	c2, err := NewComment("a-1-c1", "a-1", "alice", "two", now)
	require.NoError(t, err)
	assert.NotEqual(t, c1.Digest(), c2.Digest())
}

func TestNewCommentRejectsOverlongContent(t *testing.T) {
	long := make([]byte, MaxContentLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewComment("a-1-c1", "a-1", "alice", string(long), time.Now())
	require.Error(t, err)
}
