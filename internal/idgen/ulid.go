// Package idgen mints and resolves atom/comment identifiers.
//
// Atom IDs have the form <repo_name>-<ulid>[.<child>[.<grandchild>]...],
// where <ulid> is a 26-char Crockford-Base32 ULID whose first character is
// restricted to 0..7 (the 48-bit millisecond timestamp can never overflow
// that range by construction — see oklog/ulid's MaxTime). Comment IDs are
// <atom_id>-c<n>.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator mints monotonically-ordered ULIDs for a single process. A
// process may mint many IDs within the same millisecond (e.g. while
// importing a batch); oklog/ulid's monotonic entropy source keeps their
// ordering stable without needing a wall-clock tick between calls.
type Generator struct {
	mu      sync.Mutex
	repo    string
	entropy *ulid.MonotonicEntropy
}

// NewGenerator returns a Generator that mints IDs prefixed with repoName.
func NewGenerator(repoName string) *Generator {
	return &Generator{
		repo:    repoName,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewAtomID mints a fresh <repo_name>-<ulid> atom ID.
func (g *Generator) NewAtomID() (string, error) {
	return g.NewAtomIDAt(time.Now())
}

// NewAtomIDAt mints an atom ID using the supplied timestamp, letting
// callers pin the timestamp portion (e.g. in tests). The randomness
// portion still comes from crypto/rand, so the IDs are not reproducible.
func (g *Generator) NewAtomIDAt(t time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), g.entropy)
	if err != nil {
		return "", fmt.Errorf("mint ulid: %w", err)
	}
	return g.repo + "-" + id.String(), nil
}

// ChildID derives a child atom ID by appending a dotted segment to parentID,
// forming the <id>.<child>[.<grandchild>]... tree form spec.md §4.2 allows.
func ChildID(parentID string, n int) string {
	return fmt.Sprintf("%s.%d", parentID, n)
}

// CommentID derives the n-th comment ID for atomID.
func CommentID(atomID string, n int) string {
	return fmt.Sprintf("%s-c%d", atomID, n)
}

// confusables maps visually-ambiguous Latin letters to the Crockford digit
// they are excluded in favor of, applied during normalization.
var confusables = map[rune]rune{
	'I': '1',
	'L': '1',
	'O': '0',
}

// Normalize uppercases s and maps confusable characters (I→1, L→1, O→0),
// per spec.md §4.2 step 1. Applied to both insert and query paths so a
// human-transcribed ID always resolves the same way a generated one would.
func Normalize(s string) string {
	s = strings.ToUpper(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := confusables[r]; ok {
			r = repl
		}
		b.WriteRune(r)
	}
	return b.String()
}

// randomnessSuffix returns the last 16 characters of a 26-char ULID string
// — the pure-randomness portion the prefix trie indexes, per spec.md §4.2.
func randomnessSuffix(ulidStr string) string {
	if len(ulidStr) != ulid.EncodedSize {
		return ulidStr
	}
	return ulidStr[10:]
}

// RandomnessOf extracts the randomness suffix from a full atom ID of the
// form <repo>-<ulid>. Returns ok=false if id does not parse as a full ID.
func RandomnessOf(id string) (suffix string, ok bool) {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return "", false
	}
	ulidPart := id[idx+1:]
	// reject dotted child/grandchild suffixes - only a bare ulid qualifies
	if strings.Contains(ulidPart, ".") {
		return "", false
	}
	if len(ulidPart) != ulid.EncodedSize {
		return "", false
	}
	if _, err := ulid.ParseStrict([]byte(Normalize(ulidPart))); err != nil {
		return "", false
	}
	return randomnessSuffix(Normalize(ulidPart)), true
}

// RepoOf extracts the repo_name portion of an atom ID, tolerating a
// dotted child/grandchild suffix (<repo>-<ulid>.<child>...).
func RepoOf(id string) (repo string, ok bool) {
	base := id
	if idx := strings.Index(base, "."); idx >= 0 {
		base = base[:idx]
	}
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return "", false
	}
	return base[:idx], true
}
