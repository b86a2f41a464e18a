package graph

import (
	"context"
	"sort"
	"time"

	"github.com/eluent/eluent/internal/telemetry"
	"github.com/eluent/eluent/internal/types"
)

// SortPolicy is a readiness-queue ordering strategy (spec.md §4.5).
type SortPolicy string

const (
	SortPriority SortPolicy = "priority"
	SortOldest   SortPolicy = "oldest"
	SortHybrid   SortPolicy = "hybrid"
)

// antiStarvationAge is the cutoff hybrid sort uses to partition
// older-by-age atoms from recent-by-priority ones.
const antiStarvationAge = 48 * time.Hour

// ReadyFilter narrows a readiness query beyond the base readiness check.
type ReadyFilter struct {
	Priority        *int
	Assignee        string
	LabelsAll       []string // atom must carry every label
	LabelsAny       []string // atom must carry at least one label
	ParentSubtree   string   // restrict to descendants of this atom, inclusive
	IncludeTypes    []types.IssueType
	ExcludeTypes    []types.IssueType
	IncludeAbstract bool
	Limit           int
}

// Ready returns every atom passing spec.md §4.5's readiness definition
// and the supplied filter, ordered per policy.
func (g *Graph) Ready(filter ReadyFilter, policy SortPolicy, now time.Time) []*types.Atom {
	var subtree map[string]bool
	if filter.ParentSubtree != "" {
		subtree = map[string]bool{filter.ParentSubtree: true}
		for _, id := range g.AllDescendantsByParent(filter.ParentSubtree) {
			subtree[id] = true
		}
	}

	var out []*types.Atom
	for _, a := range g.src.AllAtoms() {
		if !a.IsReady(filter.IncludeAbstract, now) {
			continue
		}
		if g.Blocking(a.ID).Blocked {
			continue
		}
		if !matchesFilter(a, filter, subtree) {
			continue
		}
		out = append(out, a)
	}

	sortAtoms(out, policy, now)

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	// Ready has no caller-supplied context (it's a pure in-memory query,
	// never cancelled mid-flight); the metric record is local and
	// non-blocking regardless.
	telemetry.RecordReadinessQuery(context.Background(), len(out))
	return out
}

// AllDescendantsByParent walks the parent/child tree (not bonds) rooted
// at id, used for the ParentSubtree filter.
func (g *Graph) AllDescendantsByParent(id string) []string {
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.src.ChildrenOf(cur) {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

func matchesFilter(a *types.Atom, f ReadyFilter, subtree map[string]bool) bool {
	if f.Priority != nil && a.Priority != *f.Priority {
		return false
	}
	if f.Assignee != "" && a.Assignee != f.Assignee {
		return false
	}
	if len(f.LabelsAll) > 0 && !hasAllLabels(a.Labels, f.LabelsAll) {
		return false
	}
	if len(f.LabelsAny) > 0 && !hasAnyLabel(a.Labels, f.LabelsAny) {
		return false
	}
	if subtree != nil && !subtree[a.ID] {
		return false
	}
	if len(f.IncludeTypes) > 0 && !containsType(f.IncludeTypes, a.IssueType) {
		return false
	}
	if len(f.ExcludeTypes) > 0 && containsType(f.ExcludeTypes, a.IssueType) {
		return false
	}
	return true
}

func hasAllLabels(have, want []string) bool {
	set := toSet(have)
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

func hasAnyLabel(have, want []string) bool {
	set := toSet(have)
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

func containsType(types_ []types.IssueType, t types.IssueType) bool {
	for _, it := range types_ {
		if it == t {
			return true
		}
	}
	return false
}

func sortAtoms(atoms []*types.Atom, policy SortPolicy, now time.Time) {
	switch policy {
	case SortOldest:
		sort.Slice(atoms, func(i, j int) bool { return atoms[i].CreatedAt.Before(atoms[j].CreatedAt) })
	case SortHybrid:
		sortHybrid(atoms, now)
	default: // SortPriority
		sort.Slice(atoms, func(i, j int) bool {
			if atoms[i].Priority != atoms[j].Priority {
				return atoms[i].Priority < atoms[j].Priority
			}
			return atoms[i].CreatedAt.Before(atoms[j].CreatedAt)
		})
	}
}

// sortHybrid partitions by age, emitting stale atoms (older than
// antiStarvationAge) first by age, then the rest by priority — the
// anti-starvation rule spec.md §4.5 asks for.
func sortHybrid(atoms []*types.Atom, now time.Time) {
	var old, recent []*types.Atom
	for _, a := range atoms {
		if now.Sub(a.CreatedAt) >= antiStarvationAge {
			old = append(old, a)
		} else {
			recent = append(recent, a)
		}
	}
	sort.Slice(old, func(i, j int) bool { return old[i].CreatedAt.Before(old[j].CreatedAt) })
	sort.Slice(recent, func(i, j int) bool {
		if recent[i].Priority != recent[j].Priority {
			return recent[i].Priority < recent[j].Priority
		}
		return recent[i].CreatedAt.Before(recent[j].CreatedAt)
	})
	copy(atoms, append(old, recent...))
}
