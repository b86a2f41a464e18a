package graph

import (
	"regexp"
	"time"

	"github.com/eluent/eluent/internal/types"
)

// failurePattern matches a close_reason indicating a conditional_blocks
// source failed, per spec.md §4.5.
var failurePattern = regexp.MustCompile(`(?i)^(fail|error|abort)`)

// BlockReport is the result of resolving whether an atom is blocked.
type BlockReport struct {
	Blocked  bool
	Blockers []*types.Bond
}

// blockingMemo caches per-atom blocked-ness within one resolution call
// tree, avoiding repeated recomputation when waits_for walks transitive
// descendants that share ancestors.
type blockingMemo struct {
	cache map[string]bool
}

func newBlockingMemo() *blockingMemo {
	return &blockingMemo{cache: make(map[string]bool)}
}

// Blocking resolves the blocker set for id: the bonds per spec.md §4.5's
// per-type table that currently block it, plus a synthetic parent_child
// blocker surfaced from atom.ParentID when no explicit bond covers it.
func (g *Graph) Blocking(id string) BlockReport {
	return g.blockingWithMemo(id, newBlockingMemo())
}

func (g *Graph) blockingWithMemo(id string, memo *blockingMemo) BlockReport {
	report := BlockReport{}

	for _, b := range g.src.BondsTo(id) {
		if g.bondBlocks(b, memo) {
			report.Blockers = append(report.Blockers, b)
		}
	}

	if a, ok := g.src.FindByID(id); ok && a.ParentID != "" {
		hasParentChildBond := false
		for _, b := range report.Blockers {
			if b.SourceID == a.ParentID && b.DependencyType == types.DepParentChild {
				hasParentChildBond = true
				break
			}
		}
		if !hasParentChildBond && g.blockingParent(a.ParentID, memo) {
			synthetic, err := types.NewBond(a.ParentID, id, types.DepParentChild, time.Time{})
			if err == nil {
				report.Blockers = append(report.Blockers, synthetic)
			}
		}
	}

	report.Blocked = len(report.Blockers) > 0
	return report
}

// blockingParent reports whether walking up the parent chain from
// parentID finds any non-closed ancestor — the "blocking_parent?" check.
func (g *Graph) blockingParent(parentID string, memo *blockingMemo) bool {
	seen := make(map[string]bool)
	for parentID != "" && !seen[parentID] {
		seen[parentID] = true
		parent, ok := g.src.FindByID(parentID)
		if !ok {
			return false
		}
		if parent.Status != types.StatusClosed {
			return true
		}
		parentID = parent.ParentID
	}
	return false
}

// bondBlocks applies the per-dependency-type blocking rule from
// spec.md §4.5 to determine whether b currently blocks its target.
func (g *Graph) bondBlocks(b *types.Bond, memo *blockingMemo) bool {
	if !b.DependencyType.IsBlocking() {
		return false
	}
	source, ok := g.src.FindByID(b.SourceID)
	if !ok {
		return false
	}

	switch b.DependencyType {
	case types.DepBlocks, types.DepParentChild:
		return source.Status != types.StatusClosed
	case types.DepConditionalBlocks:
		if source.Status != types.StatusClosed {
			return true
		}
		return failurePattern.MatchString(source.CloseReason)
	case types.DepWaitsFor:
		if source.Status == types.StatusOpen {
			return true
		}
		return g.anyTransitiveOpen(source.ID, b.TargetID, memo)
	default:
		return false
	}
}

// anyTransitiveOpen reports whether any blocking-transitive descendant of
// source (excluding exclude, the original target) is open, per
// waits_for's "or any transitive blocking descendant of source is open"
// clause.
func (g *Graph) anyTransitiveOpen(source, exclude string, memo *blockingMemo) bool {
	if cached, ok := memo.cache[source]; ok {
		return cached
	}
	result := false
	for _, id := range g.AllDescendants(source, true) {
		if id == exclude {
			continue
		}
		if a, ok := g.src.FindByID(id); ok && a.Status == types.StatusOpen {
			result = true
			break
		}
	}
	memo.cache[source] = result
	return result
}
