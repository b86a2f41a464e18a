package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBondRejectsSelfReference(t *testing.T) {
	_, err := NewBond("a-1", "a-1", DepBlocks, time.Time{})
	require.Error(t, err)
	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, KindSelfReference, typed.Kind)
}

func TestNewBondKeyIsIdentityTriple(t *testing.T) {
	b, err := NewBond("a-1", "a-2", DepBlocks, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, [3]string{"a-1", "a-2", "blocks"}, b.Key())
}

func TestNewBondRejectsInvalidDependencyType(t *testing.T) {
	_, err := NewBond("a-1", "a-2", DependencyType("nope"), time.Time{})
	require.Error(t, err)
}
