// Package resolver turns a user-supplied ID or short ID into an atom,
// implementing the lookup sequence from spec.md §4.2.
package resolver

import (
	"strings"

	"github.com/eluent/eluent/internal/idgen"
	"github.com/eluent/eluent/internal/types"
)

// Source is the minimal read surface the resolver needs from the indexer.
type Source interface {
	// FindByID returns the atom with the given full ID, if loaded.
	FindByID(id string) (*types.Atom, bool)
	// FindByPrefix returns every atom ID in repo whose randomness suffix
	// starts with the normalized prefix.
	FindByPrefix(repo, prefix string) []string
}

// Resolver resolves atom ID references against a Source.
type Resolver struct {
	source Source
}

// New returns a Resolver backed by source.
func New(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve implements spec.md §4.2's resolution sequence for ref within
// currentRepo (the repo the caller is operating in, used to scope
// unqualified short-ID lookups).
func (r *Resolver) Resolve(ref, currentRepo string) (*types.Atom, error) {
	if strings.HasPrefix(ref, ".") {
		return nil, types.ErrRelativeReference(ref)
	}

	normalized := idgen.Normalize(ref)

	// Step 3: full-ID exact lookup. A full ID round-trips through
	// RandomnessOf (it only succeeds on a well-formed <repo>-<ulid> shape).
	// Stored IDs keep their repo name's original case, so ref is looked up
	// as given before its normalized form is tried.
	if _, ok := idgen.RandomnessOf(normalized); ok {
		if atom, ok := r.source.FindByID(ref); ok {
			return atom, nil
		}
		if atom, ok := r.source.FindByID(normalized); ok {
			return atom, nil
		}
		return nil, types.ErrNotFound(ref)
	}
	// Allow exact lookup for a dotted child/grandchild ID too, which
	// RandomnessOf rejects by design (it only recognizes bare ULIDs).
	if strings.Contains(normalized, ".") {
		if atom, ok := r.source.FindByID(ref); ok {
			return atom, nil
		}
		if atom, ok := r.source.FindByID(normalized); ok {
			return atom, nil
		}
	}

	repo, prefix := splitScoped(normalized)
	if repo == "" {
		repo = idgen.Normalize(currentRepo)
	}

	candidates := r.source.FindByPrefix(repo, prefix)
	switch len(candidates) {
	case 0:
		return nil, types.ErrNotFound(ref)
	case 1:
		atom, ok := r.source.FindByID(candidates[0])
		if !ok {
			return nil, types.ErrNotFound(ref)
		}
		return atom, nil
	default:
		return nil, types.ErrAmbiguous(ref, candidates)
	}
}

// splitScoped splits a "<repo>-<prefix>" reference into its repo and
// prefix parts. Returns repo="" when ref carries no repo scope, leaving
// the caller to supply the current repo.
func splitScoped(ref string) (repo, prefix string) {
	idx := strings.Index(ref, "-")
	if idx < 0 {
		return "", ref
	}
	return ref[:idx], ref[idx+1:]
}
