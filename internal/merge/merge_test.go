package merge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/eluent/eluent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAtom(t *testing.T, id string) *types.Atom {
	t.Helper()
	a, err := types.NewAtom(types.NewAtomParams{ID: id, Title: id, IssueType: types.TypeTask})
	require.NoError(t, err)
	return a
}

func TestMergeAtomScalarLWWPicksLatestUpdate(t *testing.T) {
	base := mustAtom(t, "a1")
	now := base.UpdatedAt

	left := *base
	left.Title = "left title"
	left.UpdatedAt = now.Add(time.Hour)

	right := *base
	right.Title = "right title"
	right.UpdatedAt = now.Add(2 * time.Hour)

	merged, _ := mergeAtom(base, &left, &right)
	require.NotNil(t, merged)
	assert.Equal(t, "right title", merged.Title, "right was updated more recently")
}

func TestMergeAtomOnlyOneSideChangedWins(t *testing.T) {
	base := mustAtom(t, "a1")
	left := *base
	right := *base
	right.Description = "new description"
	right.UpdatedAt = base.UpdatedAt.Add(time.Minute)

	merged, _ := mergeAtom(base, &left, &right)
	assert.Equal(t, "new description", merged.Description)
}

func TestMergeAtomLabelsUnion(t *testing.T) {
	base := mustAtom(t, "a1")
	left := *base
	left.Labels = []string{"urgent", "backend"}
	right := *base
	right.Labels = []string{"backend", "frontend"}

	merged, _ := mergeAtom(base, &left, &right)
	assert.ElementsMatch(t, []string{"urgent", "backend", "frontend"}, merged.Labels)
}

func TestMergeAtomResurrectionRuleFromSpecExample(t *testing.T) {
	// spec.md §4.6 worked example: base open, local discards, remote edits
	// strictly after base's updated_at — the edit wins and discard clears.
	base := mustAtom(t, "a1")
	base.Status = types.StatusOpen

	local := *base
	local.Status = types.StatusDiscard

	remote := *base
	remote.Title = "x"
	remote.UpdatedAt = base.UpdatedAt.Add(time.Second)

	merged, _ := mergeAtom(base, &local, &remote)
	require.NotNil(t, merged)
	assert.Equal(t, types.StatusOpen, merged.Status)
	assert.Equal(t, "x", merged.Title)
}

func TestMergeAtomDiscardWinsWhenEditNotNewerThanBase(t *testing.T) {
	base := mustAtom(t, "a1")
	base.Status = types.StatusOpen

	local := *base
	local.Status = types.StatusDiscard

	remote := *base
	remote.Title = "x"
	remote.UpdatedAt = base.UpdatedAt // not strictly newer

	merged, _ := mergeAtom(base, &local, &remote)
	require.NotNil(t, merged)
	assert.Equal(t, types.StatusDiscard, merged.Status)
}

func TestMergeAtomBothDiscardDeletes(t *testing.T) {
	base := mustAtom(t, "a1")
	left := *base
	left.Status = types.StatusDiscard
	right := *base
	right.Status = types.StatusDiscard

	merged, _ := mergeAtom(base, &left, &right)
	assert.Nil(t, merged, "atom discarded on both sides is removed from the merged ledger")
}

func TestMergeAtomClosedIsRevertibleToOpen(t *testing.T) {
	base := mustAtom(t, "a1")
	base.Status = types.StatusClosed
	now := time.Now().UTC()
	base.ClosedAt = &now
	base.CloseReason = "done"

	left := *base
	right := *base
	right.Status = types.StatusOpen
	right.UpdatedAt = base.UpdatedAt.Add(time.Minute)

	merged, _ := mergeAtom(base, &left, &right)
	require.NotNil(t, merged)
	assert.Equal(t, types.StatusOpen, merged.Status, "closed must be revertible, unlike the teacher's terminal-closed rule")
	assert.Nil(t, merged.ClosedAt)
	assert.Empty(t, merged.CloseReason)
}

func TestMergeMetadataKeyWiseLWW(t *testing.T) {
	base := mustAtom(t, "a1")
	base.Metadata = map[string]json.RawMessage{
		"k1": json.RawMessage(`"base1"`),
		"k2": json.RawMessage(`"base2"`),
	}
	left := *base
	left.Metadata = map[string]json.RawMessage{
		"k1": json.RawMessage(`"left1"`),
		"k2": json.RawMessage(`"base2"`),
	}
	left.UpdatedAt = base.UpdatedAt.Add(time.Minute)
	right := *base
	right.Metadata = map[string]json.RawMessage{
		"k2": json.RawMessage(`"right2"`),
		"k3": json.RawMessage(`"right3"`),
	}
	right.UpdatedAt = base.UpdatedAt.Add(2 * time.Minute)

	merged, _ := mergeAtom(base, &left, &right)
	assert.Equal(t, json.RawMessage(`"left1"`), merged.Metadata["k1"], "only left changed k1")
	assert.Equal(t, json.RawMessage(`"right2"`), merged.Metadata["k2"], "right changed k2 more recently")
	assert.Equal(t, json.RawMessage(`"right3"`), merged.Metadata["k3"], "only right added k3")
}

func TestMergeBondsUnionDeduplicatedByIdentity(t *testing.T) {
	b1, err := types.NewBond("a", "b", types.DepBlocks, time.Time{})
	require.NoError(t, err)
	b2, err := types.NewBond("a", "b", types.DepBlocks, time.Time{})
	require.NoError(t, err)
	b3, err := types.NewBond("a", "c", types.DepRelated, time.Time{})
	require.NoError(t, err)

	merged := MergeBonds([]*types.Bond{b1}, []*types.Bond{b2, b3})
	require.Len(t, merged, 2, "b1 and b2 share identity (a,b,blocks) and collapse to one")
}

func TestMergeCommentsUnionDeduplicatedByDigest(t *testing.T) {
	now := time.Now().UTC()
	c1, err := types.NewComment("a1-c1", "a1", "alice", "hello", now)
	require.NoError(t, err)
	c2, err := types.NewComment("a1-c2", "a1", "alice", "hello", now) // independently minted, same content
	require.NoError(t, err)
	c3, err := types.NewComment("a1-c3", "a1", "bob", "hi", now.Add(time.Minute))
	require.NoError(t, err)

	merged := MergeComments([]*types.Comment{c1}, []*types.Comment{c2, c3})
	require.Len(t, merged, 2, "c1 and c2 share a content digest and collapse to one")
	assert.True(t, merged[0].CreatedAt.Before(merged[1].CreatedAt) || merged[0].CreatedAt.Equal(merged[1].CreatedAt))
}

func TestMergeWholeSnapshots(t *testing.T) {
	base := mustAtom(t, "a1")
	left := Snapshot{Atoms: []*types.Atom{base}}
	newAtom := mustAtom(t, "a2") // created only on the right side
	right := Snapshot{Atoms: []*types.Atom{base, newAtom}}

	result := Merge(Snapshot{Atoms: []*types.Atom{base}}, left, right)
	require.Len(t, result.Atoms, 2)
}
