package merge

import (
	"sort"

	"github.com/eluent/eluent/internal/types"
)

// MergeBonds implements spec.md's Bonds-list strategy: union, de-duplicated
// by (source, target, type). Unlike the teacher's mergeDependencies, a
// base snapshot is not consulted and removals are not authoritative —
// bonds are immutable once created, so a "removal" is a separate act of
// deliberately recreating the ledger, not a concurrent edit a merge needs
// to reconcile (see DESIGN.md).
func MergeBonds(left, right []*types.Bond) []*types.Bond {
	seen := make(map[[3]string]*types.Bond, len(left)+len(right))
	var order [][3]string
	add := func(b *types.Bond) {
		k := b.Key()
		if _, ok := seen[k]; !ok {
			order = append(order, k)
		}
		seen[k] = b
	}
	for _, b := range left {
		add(b)
	}
	for _, b := range right {
		add(b)
	}

	out := make([]*types.Bond, 0, len(order))
	for _, k := range order {
		out = append(out, seen[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].DependencyType < out[j].DependencyType
	})
	return out
}
