package types

import (
	"encoding/json"
	"time"
)

// Bond is a directed, immutable edge between two atoms. Identity is the
// triple (SourceID, TargetID, DependencyType) — see spec.md §3.
type Bond struct {
	SourceID       string                     `json:"source_id"`
	TargetID       string                     `json:"target_id"`
	DependencyType DependencyType             `json:"dependency_type"`
	CreatedAt      time.Time                  `json:"created_at"`
	Metadata       map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Key returns the identity triple used for merge de-duplication.
func (b *Bond) Key() [3]string {
	return [3]string{b.SourceID, b.TargetID, string(b.DependencyType)}
}

// NewBond constructs and validates a Bond. CreatedAt defaults to now when
// zero.
func NewBond(sourceID, targetID string, depType DependencyType, createdAt time.Time) (*Bond, error) {
	if sourceID == targetID {
		return nil, ErrSelfReference(sourceID)
	}
	if !depType.Valid() {
		return nil, ErrInvalidDependencyType(depType)
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &Bond{
		SourceID:       sourceID,
		TargetID:       targetID,
		DependencyType: depType,
		CreatedAt:      createdAt.UTC(),
	}, nil
}
