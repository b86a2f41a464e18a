package graph

import (
	"testing"
	"time"

	"github.com/eluent/eluent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	atoms     map[string]*types.Atom
	bondsFrom map[string][]*types.Bond
	bondsTo   map[string][]*types.Bond
	children  map[string][]string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		atoms:     make(map[string]*types.Atom),
		bondsFrom: make(map[string][]*types.Bond),
		bondsTo:   make(map[string][]*types.Bond),
		children:  make(map[string][]string),
	}
}

func (f *fakeSource) addAtom(a *types.Atom) {
	f.atoms[a.ID] = a
	if a.ParentID != "" {
		f.children[a.ParentID] = append(f.children[a.ParentID], a.ID)
	}
}

func (f *fakeSource) addBond(b *types.Bond) {
	f.bondsFrom[b.SourceID] = append(f.bondsFrom[b.SourceID], b)
	f.bondsTo[b.TargetID] = append(f.bondsTo[b.TargetID], b)
}

func (f *fakeSource) FindByID(id string) (*types.Atom, bool) { a, ok := f.atoms[id]; return a, ok }
func (f *fakeSource) BondsFrom(id string) []*types.Bond      { return f.bondsFrom[id] }
func (f *fakeSource) BondsTo(id string) []*types.Bond        { return f.bondsTo[id] }
func (f *fakeSource) ChildrenOf(id string) []string          { return f.children[id] }
func (f *fakeSource) AllAtoms() []*types.Atom {
	out := make([]*types.Atom, 0, len(f.atoms))
	for _, a := range f.atoms {
		out = append(out, a)
	}
	return out
}

func atom(t *testing.T, id string, status types.Status) *types.Atom {
	t.Helper()
	a, err := types.NewAtom(types.NewAtomParams{ID: id, Title: id, IssueType: types.TypeTask})
	require.NoError(t, err)
	a.Status = status
	return a
}

func bond(t *testing.T, src, dst string, dt types.DependencyType) *types.Bond {
	t.Helper()
	b, err := types.NewBond(src, dst, dt, time.Time{})
	require.NoError(t, err)
	return b
}

func TestPathExists(t *testing.T) {
	src := newFakeSource()
	src.addAtom(atom(t, "a", types.StatusOpen))
	src.addAtom(atom(t, "b", types.StatusOpen))
	src.addAtom(atom(t, "c", types.StatusOpen))
	src.addBond(bond(t, "a", "b", types.DepBlocks))
	src.addBond(bond(t, "b", "c", types.DepBlocks))

	g := New(src)
	assert.True(t, g.PathExists("a", "c", false))
	assert.False(t, g.PathExists("c", "a", false))
}

func TestCheckCycleRejectsCreatingCycle(t *testing.T) {
	src := newFakeSource()
	src.addAtom(atom(t, "a", types.StatusOpen))
	src.addAtom(atom(t, "b", types.StatusOpen))
	src.addBond(bond(t, "a", "b", types.DepBlocks))

	g := New(src)
	err := g.CheckCycle("b", "a", types.DepBlocks)
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindCycleDetected, typed.Kind)
}

func TestCheckCycleAllowsNonBlockingAlwaysEvenIfCyclic(t *testing.T) {
	src := newFakeSource()
	src.addAtom(atom(t, "a", types.StatusOpen))
	src.addAtom(atom(t, "b", types.StatusOpen))
	src.addBond(bond(t, "a", "b", types.DepRelated))

	g := New(src)
	assert.NoError(t, g.CheckCycle("b", "a", types.DepRelated))
}

func TestBlockingBlocksWhileSourceOpen(t *testing.T) {
	src := newFakeSource()
	src.addAtom(atom(t, "a", types.StatusOpen))
	src.addAtom(atom(t, "b", types.StatusOpen))
	src.addBond(bond(t, "a", "b", types.DepBlocks))

	g := New(src)
	assert.True(t, g.Blocking("b").Blocked)

	src.atoms["a"].Status = types.StatusClosed
	assert.False(t, g.Blocking("b").Blocked)
}

func TestBlockingConditionalBlocksOnFailurePattern(t *testing.T) {
	src := newFakeSource()
	a := atom(t, "a", types.StatusClosed)
	a.CloseReason = "failed: timeout"
	src.addAtom(a)
	src.addAtom(atom(t, "b", types.StatusOpen))
	src.addBond(bond(t, "a", "b", types.DepConditionalBlocks))

	g := New(src)
	assert.True(t, g.Blocking("b").Blocked)

	a.CloseReason = "done successfully"
	assert.False(t, g.Blocking("b").Blocked)
}

func TestBlockingWaitsForTransitiveOpenDescendant(t *testing.T) {
	src := newFakeSource()
	src.addAtom(atom(t, "a", types.StatusClosed))
	src.addAtom(atom(t, "a-child", types.StatusOpen))
	src.addAtom(atom(t, "b", types.StatusOpen))
	src.addBond(bond(t, "a", "a-child", types.DepBlocks))
	src.addBond(bond(t, "a", "b", types.DepWaitsFor))

	g := New(src)
	assert.True(t, g.Blocking("b").Blocked, "a is closed but its descendant a-child is still open")
}

func TestBlockingNonBlockingBondNeverBlocks(t *testing.T) {
	src := newFakeSource()
	src.addAtom(atom(t, "a", types.StatusOpen))
	src.addAtom(atom(t, "b", types.StatusOpen))
	src.addBond(bond(t, "a", "b", types.DepRelated))

	g := New(src)
	assert.False(t, g.Blocking("b").Blocked)
}

func TestBlockingSyntheticParentChildBlocker(t *testing.T) {
	src := newFakeSource()
	parent := atom(t, "parent", types.StatusOpen)
	src.addAtom(parent)
	child, err := types.NewAtom(types.NewAtomParams{ID: "child", Title: "c", IssueType: types.TypeTask, ParentID: "parent"})
	require.NoError(t, err)
	src.addAtom(child)

	g := New(src)
	report := g.Blocking("child")
	assert.True(t, report.Blocked)
	require.Len(t, report.Blockers, 1)
	assert.Equal(t, "parent", report.Blockers[0].SourceID)
}

func TestReadyExcludesBlockedAndTerminal(t *testing.T) {
	src := newFakeSource()
	src.addAtom(atom(t, "a", types.StatusOpen))
	src.addAtom(atom(t, "b", types.StatusOpen))
	src.addAtom(atom(t, "c", types.StatusClosed))
	src.addBond(bond(t, "a", "b", types.DepBlocks))

	g := New(src)
	ready := g.Ready(ReadyFilter{}, SortPriority, time.Now())

	var ids []string
	for _, a := range ready {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, "a")
	assert.NotContains(t, ids, "b", "b is blocked by open a")
	assert.NotContains(t, ids, "c", "c is closed")
}

func TestSortHybridPartitionsByAge(t *testing.T) {
	now := time.Now()
	old := atom(t, "old", types.StatusOpen)
	old.CreatedAt = now.Add(-72 * time.Hour)
	recent := atom(t, "recent", types.StatusOpen)
	recent.Priority = 0
	recent.CreatedAt = now.Add(-time.Hour)

	atoms := []*types.Atom{recent, old}
	sortAtoms(atoms, SortHybrid, now)
	assert.Equal(t, "old", atoms[0].ID, "stale atoms surface first under anti-starvation")
}

func TestRenderTreeAndMermaid(t *testing.T) {
	src := newFakeSource()
	parent, err := types.NewAtom(types.NewAtomParams{ID: "root", Title: "Root", IssueType: types.TypeTask})
	require.NoError(t, err)
	child, err := types.NewAtom(types.NewAtomParams{ID: "root.1", Title: "Child", IssueType: types.TypeTask, ParentID: "root"})
	require.NoError(t, err)
	src.addAtom(parent)
	src.addAtom(child)

	g := New(src)
	tree := g.RenderTree("root", 5)
	require.Len(t, tree, 2)

	out := RenderMermaid(tree)
	assert.Contains(t, out, "flowchart TD")
	assert.Contains(t, out, "root_1")
}
