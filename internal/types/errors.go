package types

import "fmt"

// Kind identifies the category of a validation or lookup failure so callers
// can branch on error type without string matching.
type Kind string

const (
	KindInvalidStatus     Kind = "invalid_status"
	KindInvalidType       Kind = "invalid_type"
	KindInvalidPriority   Kind = "invalid_priority"
	KindContentTooLong    Kind = "content_too_long"
	KindSelfReference     Kind = "self_reference"
	KindInvalidTime       Kind = "invalid_time"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidMetadata   Kind = "invalid_metadata"
	KindNotFound          Kind = "not_found"
	KindAmbiguous         Kind = "ambiguous"
	KindCycleDetected     Kind = "cycle_detected"
	KindInvalidID         Kind = "invalid_id"
	KindRelativeReference Kind = "relative_reference"
	KindTerminalState     Kind = "terminal_state"
	KindAlreadyClaimed    Kind = "already_claimed"
	KindNotClaimed        Kind = "not_claimed"
	KindConfig            Kind = "config_error"
	KindGitError          Kind = "git_error"
	KindGitTimeout        Kind = "git_timeout"
)

// Error is the single error type every validation and lookup failure in the
// core packages produces, distinguished by Kind.
type Error struct {
	Kind    Kind
	Message string
	// Candidates holds the list of matching IDs for an Ambiguous error.
	Candidates []string
	// Path holds the cycle for a CycleDetected error, source to target.
	Path []string
}

func (e *Error) Error() string {
	return e.Message
}

// Is supports errors.Is comparison by Kind, ignoring Message/Candidates/Path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ErrInvalidStatus(got Status) *Error {
	return newError(KindInvalidStatus, "invalid status %q", got)
}

func ErrInvalidType(got IssueType) *Error {
	return newError(KindInvalidType, "invalid issue type %q", got)
}

func ErrInvalidDependencyType(got DependencyType) *Error {
	return newError(KindInvalidType, "invalid dependency type %q", got)
}

func ErrInvalidPriority(got int) *Error {
	return newError(KindInvalidPriority, "priority %d out of range [0,4]", got)
}

func ErrContentTooLong(field string, max int) *Error {
	return newError(KindContentTooLong, "%s exceeds %d characters", field, max)
}

func ErrSelfReference(id string) *Error {
	return newError(KindSelfReference, "bond cannot reference itself: %s", id)
}

func ErrInvalidTime(reason string) *Error {
	return newError(KindInvalidTime, "invalid time: %s", reason)
}

func ErrInvalidTransition(from, to Status) *Error {
	return newError(KindInvalidTransition, "cannot transition from %q to %q", from, to)
}

func ErrInvalidMetadataKey(key string) *Error {
	return newError(KindInvalidMetadata, "invalid metadata key %q", key)
}

func ErrNotFound(id string) *Error {
	return newError(KindNotFound, "not found: %s", id)
}

func ErrAmbiguous(prefix string, candidates []string) *Error {
	e := newError(KindAmbiguous, "ambiguous prefix %q matches %d atoms", prefix, len(candidates))
	e.Candidates = candidates
	return e
}

func ErrCycleDetected(path []string) *Error {
	e := newError(KindCycleDetected, "cycle detected: %v", path)
	e.Path = path
	return e
}

func ErrInvalidID(id string) *Error {
	return newError(KindInvalidID, "invalid id: %s", id)
}

func ErrRelativeReference(ref string) *Error {
	return newError(KindRelativeReference, "relative reference %q must be resolved against the caller's current item", ref)
}

// ErrTerminalState reports that a claim was attempted on an atom already
// closed or discarded (spec.md §4.7 step 4).
func ErrTerminalState(id string, status Status) *Error {
	return newError(KindTerminalState, "atom %s is %s and cannot be claimed", id, status)
}

// ErrAlreadyClaimed reports that a claim lost to another agent's
// in-progress assignee (spec.md §4.7 step 4). Owner is surfaced so the
// caller can report who holds it.
func ErrAlreadyClaimed(id, owner string) *Error {
	e := newError(KindAlreadyClaimed, "atom %s is already claimed by %s", id, owner)
	e.Candidates = []string{owner}
	return e
}

// ErrNotClaimed reports a heartbeat attempted against an atom not
// currently claimed by agentID (spec.md §4.7 "Heartbeat").
func ErrNotClaimed(id, agentID string) *Error {
	return newError(KindNotClaimed, "atom %s is not claimed by %s", id, agentID)
}

// NewConfigError reports an out-of-range or malformed config.yaml value
// (spec.md §6's CONFIG_ERROR boundary code).
func NewConfigError(key, reason string) *Error {
	return newError(KindConfig, "config %s: %s", key, reason)
}

// ErrGit reports a git subprocess that exited non-zero for reasons other
// than a context deadline (spec.md §6's GIT_ERROR exit-code bucket).
func ErrGit(op, detail string) *Error {
	return newError(KindGitError, "git %s failed: %s", op, detail)
}

// ErrGitTimeout reports a git subprocess that was killed because its
// context deadline expired (spec.md §6's TIMEOUT exit-code bucket).
func ErrGitTimeout(op string) *Error {
	return newError(KindGitTimeout, "git %s timed out", op)
}
