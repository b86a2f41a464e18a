// Package indexer maintains the in-memory derived state rebuilt from the
// JSONL repository on load: the exact ID map, per-repo prefix tries, bond
// adjacency, the parent/child map, and the comment index (spec.md §4.4).
package indexer

import (
	"sort"
	"sync"

	"github.com/eluent/eluent/internal/idgen"
	"github.com/eluent/eluent/internal/types"
)

// Index is the rebuildable, in-memory view over one repository's atoms,
// bonds, and comments. The on-disk JSONL is the authority; Index is
// always derived state (spec.md §3 Ownership).
type Index struct {
	mu sync.RWMutex

	atoms map[string]*types.Atom
	tries map[string]*idgen.Trie // repo name -> trie over atom randomness

	bondsFrom map[string][]*types.Bond // source id -> bonds
	bondsTo   map[string][]*types.Bond // target id -> bonds

	children map[string][]string // parent id -> child ids, insertion order

	comments map[string][]*types.Comment // parent atom id -> comments, sorted by CreatedAt
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		atoms:     make(map[string]*types.Atom),
		tries:     make(map[string]*idgen.Trie),
		bondsFrom: make(map[string][]*types.Bond),
		bondsTo:   make(map[string][]*types.Bond),
		children:  make(map[string][]string),
		comments:  make(map[string][]*types.Comment),
	}
}

// Rebuild discards all derived state and reconstructs it from a full
// atom/bond/comment set, as done after a JSONL load.
func (ix *Index) Rebuild(atoms []*types.Atom, bonds []*types.Bond, comments []*types.Comment) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.atoms = make(map[string]*types.Atom, len(atoms))
	ix.tries = make(map[string]*idgen.Trie)
	ix.bondsFrom = make(map[string][]*types.Bond)
	ix.bondsTo = make(map[string][]*types.Bond)
	ix.children = make(map[string][]string)
	ix.comments = make(map[string][]*types.Comment, len(comments))

	for _, a := range atoms {
		ix.indexAtomLocked(a)
	}
	for _, b := range bonds {
		ix.indexBondLocked(b)
	}
	for _, c := range comments {
		ix.comments[c.ParentID] = append(ix.comments[c.ParentID], c)
	}
	for parent, cs := range ix.comments {
		sort.Slice(cs, func(i, j int) bool { return cs[i].CreatedAt.Before(cs[j].CreatedAt) })
		ix.comments[parent] = cs
	}
}

func (ix *Index) indexAtomLocked(a *types.Atom) {
	ix.atoms[a.ID] = a
	if repo, ok := idgen.RepoOf(a.ID); ok {
		if suffix, ok := idgen.RandomnessOf(a.ID); ok {
			// Keyed by the normalized (uppercased) repo name, matching how
			// FindByPrefix normalizes its repo argument before lookup — atom
			// IDs themselves carry the lowercase sanitized repo_name.
			repoKey := idgen.Normalize(repo)
			tr, exists := ix.tries[repoKey]
			if !exists {
				tr = idgen.NewTrie()
				ix.tries[repoKey] = tr
			}
			tr.Insert(a.ID, suffix)
		}
	}
	if a.ParentID != "" {
		ix.children[a.ParentID] = append(ix.children[a.ParentID], a.ID)
	}
}

func (ix *Index) indexBondLocked(b *types.Bond) {
	ix.bondsFrom[b.SourceID] = append(ix.bondsFrom[b.SourceID], b)
	ix.bondsTo[b.TargetID] = append(ix.bondsTo[b.TargetID], b)
}

// AddAtom indexes a single newly-created or freshly-loaded atom without a
// full rebuild.
func (ix *Index) AddAtom(a *types.Atom) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.indexAtomLocked(a)
}

// AddBond indexes a single newly-created bond.
func (ix *Index) AddBond(b *types.Bond) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.indexBondLocked(b)
}

// AddComment indexes a single newly-created comment, keeping the parent's
// comment slice sorted by CreatedAt.
func (ix *Index) AddComment(c *types.Comment) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	list := append(ix.comments[c.ParentID], c)
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	ix.comments[c.ParentID] = list
}

// FindByID implements resolver.Source.
func (ix *Index) FindByID(id string) (*types.Atom, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	a, ok := ix.atoms[id]
	return a, ok
}

// FindByPrefix implements resolver.Source: every atom ID in repo whose
// randomness suffix starts with prefix.
func (ix *Index) FindByPrefix(repo, prefix string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	tr, ok := ix.tries[idgen.Normalize(repo)]
	if !ok {
		return nil
	}
	return tr.PrefixMatch(prefix)
}

// ChildrenOf returns the direct children of parent, in indexing order.
func (ix *Index) ChildrenOf(parent string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.children[parent]...)
}

// BondsFrom returns every bond whose SourceID is id.
func (ix *Index) BondsFrom(id string) []*types.Bond {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]*types.Bond(nil), ix.bondsFrom[id]...)
}

// BondsTo returns every bond whose TargetID is id.
func (ix *Index) BondsTo(id string) []*types.Bond {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]*types.Bond(nil), ix.bondsTo[id]...)
}

// CommentsFor returns id's comments sorted by CreatedAt.
func (ix *Index) CommentsFor(id string) []*types.Comment {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]*types.Comment(nil), ix.comments[id]...)
}

// AllAtoms returns every indexed atom, in no particular order.
func (ix *Index) AllAtoms() []*types.Atom {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*types.Atom, 0, len(ix.atoms))
	for _, a := range ix.atoms {
		out = append(out, a)
	}
	return out
}
