// Copyright (c) 2024 @neongreen (https://github.com/neongreen)
// Originally from: https://github.com/neongreen/mono/tree/main/beads-merge
//
// MIT License
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// ---
// Vendored into eluent (from beads-merge) with permission from @neongreen,
// then retargeted from beads' Issue model onto eluent's Atom/Bond/Comment
// model and its resurrection-based tombstone rule (spec.md §4.6).

// Package merge implements the three-way merge synchroniser: per-field
// merge strategies keyed by field kind, the status resurrection rule, and
// union de-duplication for bonds and comments.
package merge

import (
	"context"
	"sort"

	"github.com/eluent/eluent/internal/telemetry"
	"github.com/eluent/eluent/internal/types"
)

// Snapshot is one replica's view of the ledger at merge time.
type Snapshot struct {
	Atoms    []*types.Atom
	Bonds    []*types.Bond
	Comments []*types.Comment
}

// Result is the converged ledger state after merging local and remote
// against their last-known common base.
type Result struct {
	Atoms    []*types.Atom
	Bonds    []*types.Bond
	Comments []*types.Comment
}

// Merge reconciles local and remote against base per spec.md §4.6: scalar
// fields are last-write-wins on UpdatedAt, labels are unioned, bonds and
// comments are unioned and de-duplicated by identity, metadata is merged
// key-wise, and status follows the resurrection rule.
func Merge(base, local, remote Snapshot) Result {
	atoms, conflicts := mergeAtoms(indexAtoms(base.Atoms), indexAtoms(local.Atoms), indexAtoms(remote.Atoms))
	// Merge runs synchronously within a sync/claim operation that already
	// owns a context, but plumbing it through every merge helper buys
	// nothing observable here — the metric record itself is local and
	// non-blocking, so context.Background() is used directly.
	telemetry.RecordMerge(context.Background(), len(atoms), conflicts)
	return Result{
		Atoms:    atoms,
		Bonds:    MergeBonds(local.Bonds, remote.Bonds),
		Comments: MergeComments(local.Comments, remote.Comments),
	}
}

func indexAtoms(atoms []*types.Atom) map[string]*types.Atom {
	out := make(map[string]*types.Atom, len(atoms))
	for _, a := range atoms {
		out[a.ID] = a
	}
	return out
}

// mergeAtoms walks the union of every atom ID seen on any side. An ID
// present on only one side is a creation that hasn't reached the other
// replica yet and is taken as-is; an ID present on both sides is reconciled
// field-by-field by mergeAtom; an ID present only in base (neither replica
// still carries it — this cannot happen through ordinary operations, since
// atoms are soft-deleted via discard rather than removed, but a merge is
// defensive about it) is dropped.
func mergeAtoms(base, left, right map[string]*types.Atom) ([]*types.Atom, int) {
	ids := make(map[string]bool, len(base)+len(left)+len(right))
	for id := range base {
		ids[id] = true
	}
	for id := range left {
		ids[id] = true
	}
	for id := range right {
		ids[id] = true
	}

	out := make([]*types.Atom, 0, len(ids))
	conflicts := 0
	for id := range ids {
		l, r := left[id], right[id]
		switch {
		case l == nil && r == nil:
			continue
		case l == nil:
			out = append(out, r)
		case r == nil:
			out = append(out, l)
		default:
			merged, conflicted := mergeAtom(base[id], l, r)
			if conflicted {
				conflicts++
			}
			if merged != nil {
				out = append(out, merged)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, conflicts
}

// mergeAtom merges a single atom present on both sides. base may be nil if
// the atom predates the tracked common ancestor. Returns a nil atom when
// the resurrection rule determines the atom was discarded by both sides
// and should be dropped from the merged ledger entirely. The second
// return reports whether both sides had genuinely edited the atom since
// base — a real concurrent edit, the case mergeScalarByUpdatedAt's
// tie-break logic exists for — independent of whether that turned out to
// require picking a winner on any particular field.
func mergeAtom(base, left, right *types.Atom) (*types.Atom, bool) {
	if base == nil {
		base = &types.Atom{}
	}
	conflicted := !base.UpdatedAt.IsZero() && left.UpdatedAt.After(base.UpdatedAt) && right.UpdatedAt.After(base.UpdatedAt)

	status, deleted := mergeStatus(base, left, right)
	if deleted {
		return nil, conflicted
	}

	merged := &types.Atom{
		ID:          left.ID,
		Title:       mergeScalarByUpdatedAt(base.Title, left.Title, right.Title, left.UpdatedAt, right.UpdatedAt),
		Description: mergeScalarByUpdatedAt(base.Description, left.Description, right.Description, left.UpdatedAt, right.UpdatedAt),
		Design:      mergeScalarByUpdatedAt(base.Design, left.Design, right.Design, left.UpdatedAt, right.UpdatedAt),
		Notes:       mergeScalarByUpdatedAt(base.Notes, left.Notes, right.Notes, left.UpdatedAt, right.UpdatedAt),
		Status:      status,
		IssueType:   mergeScalarByUpdatedAt(base.IssueType, left.IssueType, right.IssueType, left.UpdatedAt, right.UpdatedAt),
		Priority:    mergeScalarByUpdatedAt(base.Priority, left.Priority, right.Priority, left.UpdatedAt, right.UpdatedAt),
		Labels:      mergeLabels(left.Labels, right.Labels),
		Assignee:    mergeScalarByUpdatedAt(base.Assignee, left.Assignee, right.Assignee, left.UpdatedAt, right.UpdatedAt),
		Creator:     mergeField(base.Creator, left.Creator, right.Creator),
		ParentID:    mergeField(base.ParentID, left.ParentID, right.ParentID),
		CloseReason: mergeScalarByUpdatedAt(base.CloseReason, left.CloseReason, right.CloseReason, left.UpdatedAt, right.UpdatedAt),
		Metadata:    mergeMetadata(base.Metadata, left.Metadata, right.Metadata, left.UpdatedAt, right.UpdatedAt),
		CreatedAt:   minTime(left.CreatedAt, right.CreatedAt),
		UpdatedAt:   maxTime(left.UpdatedAt, right.UpdatedAt),
		DeferUntil:  maxTimePtr(left.DeferUntil, right.DeferUntil),
		DueAt:       maxTimePtr(left.DueAt, right.DueAt),
		ClosedAt:    maxTimePtr(left.ClosedAt, right.ClosedAt),
	}

	if !merged.Status.IsTerminal() {
		merged.ClosedAt = nil
		merged.CloseReason = ""
	}

	return merged, conflicted
}
