package merge

import (
	"cmp"
	"sort"
	"time"
)

// mergeScalarByUpdatedAt performs spec.md §4.6's Scalar/LWW strategy,
// ported from the teacher's per-type mergeFieldByUpdatedAt/mergeIssueType/
// mergePriority functions and generalized with a type parameter since the
// three-way dispatch logic is identical for every comparable field. Unlike
// the teacher's mergePriority, no value is treated as "unset" — spec.md's
// priority domain gives 0 its own meaning (highest), so ties are broken
// purely by UpdatedAt like every other scalar field.
func mergeScalarByUpdatedAt[T cmp.Ordered](base, left, right T, leftUpdatedAt, rightUpdatedAt time.Time) T {
	if base == left && base != right {
		return right
	}
	if base == right && base != left {
		return left
	}
	if left == right {
		return left
	}
	// True conflict: both sides changed the field to different values.
	// Break the tie by whichever side's atom was updated more recently; an
	// exact tie (including both unset) falls back to comparing the values
	// themselves so the result doesn't depend on which side is passed as
	// "left" vs "right" — merge(base, local, remote) must equal
	// merge(base, remote, local) (spec.md §8).
	switch {
	case leftUpdatedAt.After(rightUpdatedAt):
		return left
	case rightUpdatedAt.After(leftUpdatedAt):
		return right
	case left > right:
		return left
	default:
		return right
	}
}

// mergeField is the teacher's plain 3-way merge (no timestamp tie-break)
// for identity-ish fields spec.md doesn't list under Scalar/LWW — Creator
// and ParentID are set once at creation and essentially never re-edited,
// so a conflict can only arise from a genuine anomaly; left wins then, as
// the teacher's mergeField does.
func mergeField(base, left, right string) string {
	if base == left && base != right {
		return right
	}
	if base == right && base != left {
		return left
	}
	return left
}

// mergeLabels implements spec.md's Set strategy: plain union, with no
// base and no left-wins tie-break — a generalization of the teacher's
// mergeLabels, which treated labels as a left-wins 3-way scalar.
func mergeLabels(left, right []string) []string {
	seen := make(map[string]bool, len(left)+len(right))
	out := make([]string, 0, len(left)+len(right))
	for _, l := range left {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	for _, l := range right {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// maxTime returns the later of two times, treating a zero time as unset.
// Ported from the teacher verbatim.
func maxTime(t1, t2 time.Time) time.Time {
	t1Zero, t2Zero := t1.IsZero(), t2.IsZero()
	switch {
	case t1Zero && t2Zero:
		return time.Time{}
	case t1Zero:
		return t2
	case t2Zero:
		return t1
	case t1.After(t2):
		return t1
	default:
		return t2
	}
}

// minTime returns the earlier of two non-zero times, or whichever one is
// set if only one is. CreatedAt is identity-only (spec.md §4.6): both
// sides should already agree, this only breaks a defensive tie.
func minTime(t1, t2 time.Time) time.Time {
	t1Zero, t2Zero := t1.IsZero(), t2.IsZero()
	switch {
	case t1Zero && t2Zero:
		return time.Time{}
	case t1Zero:
		return t2
	case t2Zero:
		return t1
	case t1.Before(t2):
		return t1
	default:
		return t2
	}
}

// maxTimePtr returns the later of two pointer times. Nil or zero times are
// unset; a set time beats an unset one. Ported from the teacher verbatim.
func maxTimePtr(t1, t2 *time.Time) *time.Time {
	t1Set := t1 != nil && !t1.IsZero()
	t2Set := t2 != nil && !t2.IsZero()
	switch {
	case !t1Set && !t2Set:
		return nil
	case !t1Set:
		return t2
	case !t2Set:
		return t1
	case t1.After(*t2):
		return t1
	default:
		return t2
	}
}
