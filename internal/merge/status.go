package merge

import "github.com/eluent/eluent/internal/types"

// mergeStatus applies spec.md §4.6's resurrection rule in place of plain
// LWW: when exactly one side discarded the atom, the other side's edit
// wins only if it is strictly newer than base's UpdatedAt; otherwise the
// discard wins. When both sides discarded it, the atom is deleted. This
// deliberately drops the teacher's "closed always wins" rule — spec.md
// makes closed revertible to open, unlike the teacher's terminal-closed
// semantics (see DESIGN.md).
func mergeStatus(base, left, right *types.Atom) (status types.Status, deleted bool) {
	leftDiscard := left.Status == types.StatusDiscard
	rightDiscard := right.Status == types.StatusDiscard

	switch {
	case leftDiscard && rightDiscard:
		return types.StatusDiscard, true
	case leftDiscard:
		return resolveResurrection(base, right), false
	case rightDiscard:
		return resolveResurrection(base, left), false
	default:
		return mergeScalarByUpdatedAt(base.Status, left.Status, right.Status, left.UpdatedAt, right.UpdatedAt), false
	}
}

// resolveResurrection decides between edit.Status and discard for the side
// opposite a discarding atom: the edit wins only if it happened strictly
// after base's last known UpdatedAt.
func resolveResurrection(base, edit *types.Atom) types.Status {
	if edit.UpdatedAt.After(base.UpdatedAt) {
		return edit.Status
	}
	return types.StatusDiscard
}
