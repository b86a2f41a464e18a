package jsonl

import (
	"fmt"
	"sort"
	"time"

	"github.com/eluent/eluent/internal/types"
)

// CompactOptions controls which repair passes Compact runs.
type CompactOptions struct {
	// RemoveDuplicateAtoms keeps only the newest version (by UpdatedAt)
	// when the same atom ID appears more than once.
	RemoveDuplicateAtoms bool
	// RepairBrokenBonds drops bonds whose source or target no longer
	// resolves to a loaded atom.
	RepairBrokenBonds bool
	// RepairOrphanComments drops comments whose parent atom no longer exists.
	RepairOrphanComments bool
}

// DefaultCompactOptions enables every repair pass.
func DefaultCompactOptions() CompactOptions {
	return CompactOptions{
		RemoveDuplicateAtoms: true,
		RepairBrokenBonds:    true,
		RepairOrphanComments: true,
	}
}

// DuplicateAtom records which version of a duplicated ID was kept.
type DuplicateAtom struct {
	ID      string
	Kept    *types.Atom
	Dropped []*types.Atom
}

// CompactResult summarizes what Compact changed, for an operator-facing
// report before the rewrite is committed to disk.
type CompactResult struct {
	OriginalAtomCount int
	FinalAtomCount    int
	Duplicates        []DuplicateAtom
	BrokenBonds       []*types.Bond
	OrphanComments    []*types.Comment
}

// Compact applies the configured repair passes to a loaded repository
// snapshot, returning the cleaned atoms/bonds/comments alongside a report.
// It never touches disk — callers persist the result via Store.rewriteFile
// equivalents once they are satisfied with the report.
func Compact(atoms []*types.Atom, bonds []*types.Bond, comments []*types.Comment, opts CompactOptions) (*CompactResult, []*types.Atom, []*types.Bond, []*types.Comment) {
	report := &CompactResult{OriginalAtomCount: len(atoms)}

	if opts.RemoveDuplicateAtoms {
		report.Duplicates, atoms = dedupAtoms(atoms)
	}

	idSet := make(map[string]bool, len(atoms))
	for _, a := range atoms {
		idSet[a.ID] = true
	}

	if opts.RepairBrokenBonds {
		var kept []*types.Bond
		for _, b := range bonds {
			if idSet[b.SourceID] && idSet[b.TargetID] {
				kept = append(kept, b)
			} else {
				report.BrokenBonds = append(report.BrokenBonds, b)
			}
		}
		bonds = kept
	}

	if opts.RepairOrphanComments {
		var kept []*types.Comment
		for _, c := range comments {
			if idSet[c.ParentID] {
				kept = append(kept, c)
			} else {
				report.OrphanComments = append(report.OrphanComments, c)
			}
		}
		comments = kept
	}

	report.FinalAtomCount = len(atoms)
	return report, atoms, bonds, comments
}

// dedupAtoms groups atoms by ID and keeps the one with the latest
// UpdatedAt, matching the repository's last-write-wins convention for a
// single corrupted log rather than a cross-replica merge.
func dedupAtoms(atoms []*types.Atom) ([]DuplicateAtom, []*types.Atom) {
	byID := make(map[string][]*types.Atom)
	var order []string
	for _, a := range atoms {
		if _, seen := byID[a.ID]; !seen {
			order = append(order, a.ID)
		}
		byID[a.ID] = append(byID[a.ID], a)
	}

	var dupes []DuplicateAtom
	result := make([]*types.Atom, 0, len(order))
	for _, id := range order {
		group := byID[id]
		if len(group) > 1 {
			sort.Slice(group, func(i, j int) bool {
				return group[i].UpdatedAt.After(group[j].UpdatedAt)
			})
			dupes = append(dupes, DuplicateAtom{ID: id, Kept: group[0], Dropped: group[1:]})
		}
		result = append(result, group[0])
	}
	return dupes, result
}

// ValidationReport summarizes structural problems found in a loaded
// repository snapshot, independent of any repair pass.
type ValidationReport struct {
	TotalAtoms       int
	DuplicateIDs     map[string]int
	BrokenBonds      []string
	OrphanComments   []string
	InvalidAtoms     []InvalidAtomReport
	Timestamp        time.Time
}

// InvalidAtomReport describes an atom that failed Atom.Validate.
type InvalidAtomReport struct {
	ID     string
	Reason string
}

// Validate checks a loaded repository snapshot for the defects Compact
// knows how to repair, without mutating anything.
func Validate(atoms []*types.Atom, bonds []*types.Bond, comments []*types.Comment, now time.Time) *ValidationReport {
	report := &ValidationReport{
		TotalAtoms:   len(atoms),
		DuplicateIDs: make(map[string]int),
		Timestamp:    now,
	}

	idSet := make(map[string]bool, len(atoms))
	for _, a := range atoms {
		idSet[a.ID] = true
		report.DuplicateIDs[a.ID]++
		if err := a.Validate(); err != nil {
			report.InvalidAtoms = append(report.InvalidAtoms, InvalidAtomReport{ID: a.ID, Reason: err.Error()})
		}
	}
	for id, count := range report.DuplicateIDs {
		if count == 1 {
			delete(report.DuplicateIDs, id)
		}
	}

	for _, b := range bonds {
		if !idSet[b.SourceID] || !idSet[b.TargetID] {
			report.BrokenBonds = append(report.BrokenBonds, fmt.Sprintf("%s -> %s (%s)", b.SourceID, b.TargetID, b.DependencyType))
		}
	}
	for _, c := range comments {
		if !idSet[c.ParentID] {
			report.OrphanComments = append(report.OrphanComments, c.ID)
		}
	}

	return report
}

// HasIssues reports whether Validate found anything Compact would repair.
func (r *ValidationReport) HasIssues() bool {
	return len(r.DuplicateIDs) > 0 || len(r.BrokenBonds) > 0 || len(r.OrphanComments) > 0 || len(r.InvalidAtoms) > 0
}
