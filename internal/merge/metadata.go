package merge

import (
	"encoding/json"
	"time"
)

// mergeMetadata implements spec.md's Map strategy: key-wise union with
// per-key LWW on differing values, extended from the teacher's
// mergeMetadata (which treated the whole map as one opaque LWW blob) per
// the Open Question resolution recorded in DESIGN.md.
func mergeMetadata(base, left, right map[string]json.RawMessage, leftUpdatedAt, rightUpdatedAt time.Time) map[string]json.RawMessage {
	keys := make(map[string]bool, len(base)+len(left)+len(right))
	for k := range base {
		keys[k] = true
	}
	for k := range left {
		keys[k] = true
	}
	for k := range right {
		keys[k] = true
	}
	if len(keys) == 0 {
		return nil
	}

	out := make(map[string]json.RawMessage, len(keys))
	for k := range keys {
		if v := mergeMetadataValue(base[k], left[k], right[k], leftUpdatedAt, rightUpdatedAt); v != nil {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mergeMetadataValue merges one metadata key's value across base/left/
// right. A nil result means the key was deleted by at least one side with
// no competing edit and should be dropped from the merged map.
func mergeMetadataValue(base, left, right json.RawMessage, leftUpdatedAt, rightUpdatedAt time.Time) json.RawMessage {
	switch {
	case jsonEqual(base, left) && jsonEqual(base, right):
		return base
	case jsonEqual(base, right) && !jsonEqual(base, left):
		return left
	case jsonEqual(base, left) && !jsonEqual(base, right):
		return right
	case jsonEqual(left, right):
		return left
	// One side deleted the key while the other edited it: the edit is kept.
	case len(left) == 0:
		return right
	case len(right) == 0:
		return left
	// True conflict: break the tie by recency, falling back to a
	// byte-lexicographic compare on an exact tie so the result doesn't
	// depend on local/remote argument order (spec.md §8).
	case leftUpdatedAt.After(rightUpdatedAt):
		return left
	case rightUpdatedAt.After(leftUpdatedAt):
		return right
	case string(left) > string(right):
		return left
	default:
		return right
	}
}

// jsonEqual compares two raw JSON values by byte equality, treating two
// empty/absent values as equal. Ported from the teacher verbatim.
func jsonEqual(a, b json.RawMessage) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return string(a) == string(b)
}
