package syncer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StateFileName is the synchroniser's bookkeeping file (spec.md §6).
const StateFileName = ".sync-state"

// State is the last-known-good snapshot of what's been synced, persisted
// as JSON alongside data.jsonl.
type State struct {
	LastSyncAt time.Time `json:"last_sync_at"`
	BaseCommit string    `json:"base_commit"`
	LocalHead  string    `json:"local_head"`
	RemoteHead string    `json:"remote_head"`
}

// LoadState reads .sync-state from eluentDir. A missing or corrupt file
// is not an error: it resolves to the zero State, which Sync treats as
// "no base" and performs a full union (spec.md §4.6).
func LoadState(eluentDir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(eluentDir, StateFileName))
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return &State{}, nil //nolint:nilerr // unreadable state degrades to "no base", not a fatal error
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return &State{}, nil //nolint:nilerr // corrupt state degrades to "no base" per spec.md §4.6
	}
	return &s, nil
}

// Save persists s to eluentDir/.sync-state.
func (s *State) Save(eluentDir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(eluentDir, StateFileName), data, 0o644)
}
