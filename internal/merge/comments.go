package merge

import (
	"sort"

	"github.com/eluent/eluent/internal/types"
)

// MergeComments implements spec.md's Comments-list strategy: union,
// de-duplicated by the 16-hex content digest, sorted by CreatedAt. Ported
// from the teacher's mergeCommentPtrs, with the digest substituted for
// ID-equality per spec.md §4.3 (comments are append-only and content-
// addressed, so two replicas can independently mint the same comment
// under different IDs and should still collapse to one).
func MergeComments(left, right []*types.Comment) []*types.Comment {
	seen := make(map[string]*types.Comment, len(left)+len(right))
	add := func(c *types.Comment) {
		d := c.Digest()
		if _, ok := seen[d]; !ok {
			seen[d] = c
		}
	}
	for _, c := range left {
		add(c)
	}
	for _, c := range right {
		add(c)
	}

	out := make([]*types.Comment, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
