package jsonl

import (
	"testing"
	"time"

	"github.com/eluent/eluent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func atomAt(t *testing.T, id string, updatedAt time.Time) *types.Atom {
	t.Helper()
	a, err := types.NewAtom(types.NewAtomParams{ID: id, Title: "t", IssueType: types.TypeTask})
	require.NoError(t, err)
	a.UpdatedAt = updatedAt
	return a
}

func TestCompactDedupsKeepingNewest(t *testing.T) {
	older := atomAt(t, "a-1", time.Now().Add(-time.Hour))
	newer := atomAt(t, "a-1", time.Now())

	report, atoms, _, _ := Compact([]*types.Atom{older, newer}, nil, nil, DefaultCompactOptions())
	require.Len(t, atoms, 1)
	assert.Equal(t, newer.UpdatedAt, atoms[0].UpdatedAt)
	require.Len(t, report.Duplicates, 1)
}

func TestCompactRemovesBrokenBonds(t *testing.T) {
	a := atomAt(t, "a-1", time.Now())
	b, err := types.NewBond("a-1", "a-missing", types.DepBlocks, time.Time{})
	require.NoError(t, err)

	report, _, bonds, _ := Compact([]*types.Atom{a}, []*types.Bond{b}, nil, DefaultCompactOptions())
	assert.Empty(t, bonds)
	assert.Len(t, report.BrokenBonds, 1)
}

func TestCompactRemovesOrphanComments(t *testing.T) {
	a := atomAt(t, "a-1", time.Now())
	c, err := types.NewComment("a-1-c1", "a-missing", "alice", "hi", time.Now())
	require.NoError(t, err)

	report, _, _, comments := Compact([]*types.Atom{a}, nil, []*types.Comment{c}, DefaultCompactOptions())
	assert.Empty(t, comments)
	assert.Len(t, report.OrphanComments, 1)
}

func TestValidateReportsBrokenBonds(t *testing.T) {
	a := atomAt(t, "a-1", time.Now())
	b, err := types.NewBond("a-1", "a-missing", types.DepBlocks, time.Time{})
	require.NoError(t, err)

	report := Validate([]*types.Atom{a}, []*types.Bond{b}, nil, time.Now())
	assert.True(t, report.HasIssues())
	assert.Len(t, report.BrokenBonds, 1)
}
