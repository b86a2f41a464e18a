// Package claim drives the cross-agent atomic claim protocol (spec.md
// §4.7): a dedicated ledger branch checked out in an auxiliary worktree,
// guarded by a cross-process lock, with fetch/commit/push-with-retry and
// an offline fallback.
package claim

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	ledgerLockFileName = ".ledger.lock"
	lockPollInterval   = 50 * time.Millisecond
)

// ledgerLock is the cross-process exclusive lock over one repository's
// claim protocol, `~/.eluent/<repo>/.ledger.lock` per spec.md §4.7 step 1.
// Ported from the teacher's JSONLLock (cmd/bd/jsonl_lock.go): a
// gofrs/flock-backed lock polled under a context timeout, rather than the
// blocking-only golang.org/x/sys/unix flock internal/lockfile uses for the
// JSONL store — the claim path needs a bounded wait with retry/backoff
// visible to the caller, the store's append path doesn't.
type ledgerLock struct {
	flock *flock.Flock
}

func newLedgerLock(dataDir string) *ledgerLock {
	return &ledgerLock{flock: flock.New(filepath.Join(dataDir, ledgerLockFileName))}
}

// acquire blocks (polling) until the lock is held or ctx is done.
func (l *ledgerLock) acquire(ctx context.Context) error {
	for {
		locked, err := l.flock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire ledger lock: %w", err)
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for ledger lock: %w", ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *ledgerLock) release() error {
	return l.flock.Unlock()
}
