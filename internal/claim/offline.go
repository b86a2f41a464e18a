package claim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const syncStateFileName = ".ledger-sync-state"

// pendingClaim is one record in .ledger-sync-state: a claim performed
// locally while offline, awaiting reconciliation on the next successful
// sync (spec.md §4.7 "Offline fallback").
type pendingClaim struct {
	AtomID    string    `json:"atom_id"`
	AgentID   string    `json:"agent_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// recordPendingClaim appends a pending claim to dataDir's reconciliation
// log. Best-effort: a write failure here doesn't undo the local claim
// that already succeeded, it just means reconciliation loses a record.
func recordPendingClaim(dataDir string, rec pendingClaim) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode pending claim: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dataDir, syncStateFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open sync state: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return f.Sync()
}

// PendingClaims reads every unreconciled claim recorded in dataDir's
// .ledger-sync-state. Malformed lines are skipped.
func PendingClaims(dataDir string) ([]pendingClaim, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, syncStateFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	var out []pendingClaim
	for _, line := range splitNonEmptyLines(data) {
		var rec pendingClaim
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ClearPendingClaims deletes the reconciliation log once every pending
// claim has been folded into a successful sync.
func ClearPendingClaims(dataDir string) error {
	path := filepath.Join(dataDir, syncStateFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path)
}

func splitNonEmptyLines(data []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				out = append(out, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		out = append(out, data[start:])
	}
	return out
}
