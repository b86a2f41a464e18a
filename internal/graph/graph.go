// Package graph implements the dependency DAG operations over bonds:
// traversal, cycle prevention, the blocking resolver, and the readiness
// calculator (spec.md §4.5).
package graph

import (
	"github.com/eluent/eluent/internal/types"
)

// Source is the read surface the graph package needs from the indexer.
type Source interface {
	FindByID(id string) (*types.Atom, bool)
	BondsFrom(id string) []*types.Bond
	BondsTo(id string) []*types.Bond
	ChildrenOf(id string) []string
	AllAtoms() []*types.Atom
}

// Graph wraps a Source with traversal, cycle-detection, and readiness
// operations.
type Graph struct {
	src Source
}

// New returns a Graph backed by src.
func New(src Source) *Graph {
	return &Graph{src: src}
}

func filterBonds(bonds []*types.Bond, blockingOnly bool) []*types.Bond {
	if !blockingOnly {
		return bonds
	}
	out := bonds[:0:0]
	for _, b := range bonds {
		if b.DependencyType.IsBlocking() {
			out = append(out, b)
		}
	}
	return out
}

// PathExists reports whether dst is reachable from src by following
// outgoing bonds (DFS), optionally restricted to blocking edge types.
func (g *Graph) PathExists(src, dst string, blockingOnly bool) bool {
	if src == dst {
		return true
	}
	visited := make(map[string]bool)
	var dfs func(id string) bool
	dfs = func(id string) bool {
		if id == dst {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, b := range filterBonds(g.src.BondsFrom(id), blockingOnly) {
			if dfs(b.TargetID) {
				return true
			}
		}
		return false
	}
	return dfs(src)
}

// AllDescendants returns every atom transitively reachable from id by
// following outgoing bonds (BFS), optionally restricted to blocking types.
func (g *Graph) AllDescendants(id string, blockingOnly bool) []string {
	return g.bfs(id, blockingOnly, g.src.BondsFrom, func(b *types.Bond) string { return b.TargetID })
}

// AllAncestors returns every atom that transitively reaches id by
// following incoming bonds backward (BFS), optionally restricted to
// blocking types.
func (g *Graph) AllAncestors(id string, blockingOnly bool) []string {
	return g.bfs(id, blockingOnly, g.src.BondsTo, func(b *types.Bond) string { return b.SourceID })
}

func (g *Graph) bfs(start string, blockingOnly bool, edgesOf func(string) []*types.Bond, next func(*types.Bond) string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, b := range filterBonds(edgesOf(cur), blockingOnly) {
			n := next(b)
			if visited[n] {
				continue
			}
			visited[n] = true
			out = append(out, n)
			queue = append(queue, n)
		}
	}
	return out
}

// DirectBlockers returns the bonds whose target is id — the atoms that
// directly block id, regardless of whether they currently do so.
func (g *Graph) DirectBlockers(id string) []*types.Bond {
	return g.src.BondsTo(id)
}

// DirectDependents returns the bonds whose source is id — the atoms that
// directly depend on id.
func (g *Graph) DirectDependents(id string) []*types.Bond {
	return g.src.BondsFrom(id)
}
