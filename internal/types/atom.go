package types

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Atom is a work item: the vertex type of the dependency DAG.
type Atom struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Design      string         `json:"design,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Status      Status         `json:"status"`
	IssueType   IssueType      `json:"issue_type"`
	Priority    int            `json:"priority"`
	Labels      []string       `json:"labels,omitempty"`
	Assignee    string         `json:"assignee,omitempty"`
	Creator     string         `json:"creator,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	DeferUntil  *time.Time     `json:"defer_until,omitempty"`
	DueAt       *time.Time     `json:"due_at,omitempty"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
	CloseReason string         `json:"close_reason,omitempty"`
	Metadata    map[string]json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewAtomParams collects the caller-supplied fields for NewAtom; everything
// else (status, timestamps) is populated by the constructor, and a zero Now
// defaults to the current time.
type NewAtomParams struct {
	ID          string
	Title       string
	Description string
	Design      string
	Notes       string
	IssueType   IssueType
	Priority    int
	Labels      []string
	Assignee    string
	Creator     string
	ParentID    string
	DeferUntil  *time.Time
	DueAt       *time.Time
	Metadata    map[string]json.RawMessage
	Now         time.Time
}

// NewAtom constructs and validates a new Atom in the open state. A title
// over MaxTitleLen is truncated with a logged warning rather than
// rejected, matching spec.md §4.1; every other oversized content field is
// rejected outright.
func NewAtom(p NewAtomParams) (*Atom, error) {
	if !p.IssueType.Valid() {
		return nil, ErrInvalidType(p.IssueType)
	}
	if err := validatePriority(p.Priority); err != nil {
		return nil, err
	}

	title := normalizeString(p.Title)
	title, truncated := truncateTitle(title)
	if truncated {
		slog.Warn("atom title truncated", "id", p.ID, "max_len", MaxTitleLen)
	}

	description := normalizeString(p.Description)
	if err := validateContentLen("description", description); err != nil {
		return nil, err
	}
	design := normalizeString(p.Design)
	if err := validateContentLen("design", design); err != nil {
		return nil, err
	}
	notes := normalizeString(p.Notes)
	if err := validateContentLen("notes", notes); err != nil {
		return nil, err
	}

	for k := range p.Metadata {
		if err := ValidateMetadataKey(k); err != nil {
			return nil, err
		}
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()

	return &Atom{
		ID:          p.ID,
		Title:       title,
		Description: description,
		Design:      design,
		Notes:       notes,
		Status:      StatusOpen,
		IssueType:   p.IssueType,
		Priority:    p.Priority,
		Labels:      dedupLabels(p.Labels),
		Assignee:    normalizeString(p.Assignee),
		Creator:     normalizeString(p.Creator),
		ParentID:    p.ParentID,
		DeferUntil:  p.DeferUntil,
		DueAt:       p.DueAt,
		Metadata:    p.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Validate re-checks an Atom's invariants, used after deserialisation from
// disk or a merge apply.
func (a *Atom) Validate() error {
	if !a.Status.Valid() {
		return ErrInvalidStatus(a.Status)
	}
	if !a.IssueType.Valid() {
		return ErrInvalidType(a.IssueType)
	}
	if err := validatePriority(a.Priority); err != nil {
		return err
	}
	if err := validateContentLen("description", a.Description); err != nil {
		return err
	}
	if err := validateContentLen("design", a.Design); err != nil {
		return err
	}
	if err := validateContentLen("notes", a.Notes); err != nil {
		return err
	}
	if err := validateTimeOrder(a.CreatedAt, a.UpdatedAt); err != nil {
		return err
	}
	for k := range a.Metadata {
		if err := ValidateMetadataKey(k); err != nil {
			return err
		}
	}
	return nil
}

// TransitionTo moves the atom to next, stamping UpdatedAt (and ClosedAt /
// CloseReason when entering closed) and enforcing spec.md §3's lifecycle
// invariant via Status.CanTransitionTo.
func (a *Atom) TransitionTo(next Status, reason string, now time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return ErrInvalidTransition(a.Status, next)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()

	a.Status = next
	a.UpdatedAt = now
	switch next {
	case StatusClosed:
		a.ClosedAt = &now
		a.CloseReason = reason
	case StatusOpen, StatusInProgress, StatusDeferred:
		a.ClosedAt = nil
		a.CloseReason = ""
	}
	return nil
}

// IsReady reports whether the atom passes the non-graph readiness checks
// from spec.md §4.5: not abstract (unless includeAbstract), not terminal,
// and not deferred into the future. Blocker-set emptiness is the dependency
// graph's responsibility (internal/graph), not the atom's.
func (a *Atom) IsReady(includeAbstract bool, now time.Time) bool {
	if a.Status.IsTerminal() {
		return false
	}
	if a.IssueType.IsAbstract() && !includeAbstract {
		return false
	}
	if a.DeferUntil != nil && a.DeferUntil.After(now) {
		return false
	}
	return true
}

func dedupLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = normalizeString(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
