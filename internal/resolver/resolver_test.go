package resolver

import (
	"testing"
	"time"

	"github.com/eluent/eluent/internal/idgen"
	"github.com/eluent/eluent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	byID   map[string]*types.Atom
	tries  map[string]*idgen.Trie // normalized repo -> trie
}

func newFakeSource() *fakeSource {
	return &fakeSource{byID: make(map[string]*types.Atom), tries: make(map[string]*idgen.Trie)}
}

func (f *fakeSource) add(repo string, a *types.Atom) {
	f.byID[a.ID] = a
	suffix, ok := idgen.RandomnessOf(a.ID)
	if !ok {
		return
	}
	// Keyed like the indexer's tries: the resolver scopes by normalized repo.
	key := idgen.Normalize(repo)
	tr, ok := f.tries[key]
	if !ok {
		tr = idgen.NewTrie()
		f.tries[key] = tr
	}
	tr.Insert(a.ID, suffix)
}

func (f *fakeSource) FindByID(id string) (*types.Atom, bool) {
	a, ok := f.byID[id]
	return a, ok
}

func (f *fakeSource) FindByPrefix(repo, prefix string) []string {
	tr, ok := f.tries[repo]
	if !ok {
		return nil
	}
	return tr.PrefixMatch(prefix)
}

func mustAtom(t *testing.T, id string) *types.Atom {
	t.Helper()
	a, err := types.NewAtom(types.NewAtomParams{ID: id, Title: "t", IssueType: types.TypeTask})
	require.NoError(t, err)
	return a
}

func TestResolveFullID(t *testing.T) {
	src := newFakeSource()
	g := idgen.NewGenerator("PROJ")
	id, err := g.NewAtomID()
	require.NoError(t, err)
	src.add("PROJ", mustAtom(t, id))

	r := New(src)
	got, err := r.Resolve(id, "PROJ")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
}

func TestResolveRelativeReferenceErrors(t *testing.T) {
	r := New(newFakeSource())
	_, err := r.Resolve(".child", "PROJ")
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindRelativeReference, typed.Kind)
}

func TestResolveUnscopedPrefixInCurrentRepo(t *testing.T) {
	src := newFakeSource()
	g := idgen.NewGenerator("PROJ")
	id, err := g.NewAtomID()
	require.NoError(t, err)
	src.add("PROJ", mustAtom(t, id))

	suffix, _ := idgen.RandomnessOf(id)
	prefix := suffix[:4]

	r := New(src)
	got, err := r.Resolve(prefix, "PROJ")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
}

func TestResolveAmbiguousReturnsCandidates(t *testing.T) {
	src := newFakeSource()
	now := time.Now()
	g := idgen.NewGenerator("PROJ")
	id1, _ := g.NewAtomIDAt(now)
	id2, _ := g.NewAtomIDAt(now)
	src.add("PROJ", mustAtom(t, id1))
	src.add("PROJ", mustAtom(t, id2))

	r := New(src)
	_, err := r.Resolve("", "PROJ")
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindAmbiguous, typed.Kind)
	assert.Len(t, typed.Candidates, 2)
}

func TestResolveNotFound(t *testing.T) {
	r := New(newFakeSource())
	_, err := r.Resolve("ZZZZ", "PROJ")
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindNotFound, typed.Kind)
}
