package graph

import "github.com/eluent/eluent/internal/types"

// CheckCycle validates that creating a blocking bond (source -> target,
// depType) would not close a cycle in the blocking subgraph. Non-blocking
// bond types are never checked, per spec.md §4.5. Self-references are
// rejected earlier, by Bond construction.
func (g *Graph) CheckCycle(source, target string, depType types.DependencyType) error {
	if !depType.IsBlocking() {
		return nil
	}
	if path, found := g.findBlockingPath(target, source); found {
		full := append([]string{source, target}, path...)
		return types.ErrCycleDetected(full)
	}
	return nil
}

// findBlockingPath runs a BFS from start across blocking outgoing edges
// looking for target, returning the path (excluding start) if found.
func (g *Graph) findBlockingPath(start, target string) ([]string, bool) {
	type frame struct {
		id   string
		path []string
	}
	visited := map[string]bool{start: true}
	queue := []frame{{id: start}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.id == target && len(cur.path) > 0 {
			return cur.path, true
		}
		for _, b := range filterBonds(g.src.BondsFrom(cur.id), true) {
			if visited[b.TargetID] {
				continue
			}
			if b.TargetID == target {
				return append(append([]string{}, cur.path...), b.TargetID), true
			}
			visited[b.TargetID] = true
			queue = append(queue, frame{id: b.TargetID, path: append(append([]string{}, cur.path...), b.TargetID)})
		}
	}
	return nil, false
}
