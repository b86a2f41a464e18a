package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eluent/eluent/internal/jsonl"
	"github.com/eluent/eluent/internal/telemetry"
	"github.com/eluent/eluent/internal/types"
)

// OfflineMode controls what Claim does when the ledger remote is
// unreachable (spec.md §4.7 "Offline fallback").
type OfflineMode string

const (
	OfflineModeLocal OfflineMode = "local"
	OfflineModeFail  OfflineMode = "fail"
)

const defaultLedgerBranch = "eluent-ledger"

// Config parameterizes one repository's claim protocol.
type Config struct {
	RepoName     string
	MainRepoDir  string // the repository the caller is working in
	DataDir      string // ~/.eluent/<repo> (or $XDG_DATA_HOME/eluent/<repo>)
	RemoteName   string // default "origin"
	LedgerBranch string // default "eluent-ledger"
	Retries      int           // claim_retries: max push-retry attempts
	Timeout      time.Duration // per-git-invocation timeout
	OfflineMode  OfflineMode
	// StaleTimeout is sync.claim_timeout_hours converted to a duration; an
	// in_progress atom whose UpdatedAt is older than this is eligible for
	// stale-claim reconciliation (spec.md §4.7). Zero disables the check.
	StaleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RemoteName == "" {
		c.RemoteName = "origin"
	}
	if c.LedgerBranch == "" {
		c.LedgerBranch = defaultLedgerBranch
	}
	if c.Retries <= 0 {
		c.Retries = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.OfflineMode == "" {
		c.OfflineMode = OfflineModeFail
	}
	return c
}

// Claimer drives the claim protocol against one repository's ledger
// worktree.
type Claimer struct {
	cfg Config
}

func New(cfg Config) *Claimer {
	return &Claimer{cfg: cfg.withDefaults()}
}

func (c *Claimer) worktreeDir() string {
	return filepath.Join(c.cfg.DataDir, ".sync-worktree")
}

func (c *Claimer) ledgerDataDir() string {
	return filepath.Join(c.worktreeDir(), ".eluent")
}

// Claim executes spec.md §4.7's claim procedure for atom id on behalf of
// agentID: acquire the cross-process lock, ensure the ledger worktree,
// fetch/evaluate/commit/push with retry, and fall back to a local-only
// claim (recorded for later reconciliation) if the remote is unreachable
// and offline_mode == local. A stale-claim reconciliation pass runs first
// (best-effort) when StaleTimeout is configured, so a crashed agent's
// abandoned claim doesn't block a fresh one.
func (c *Claimer) Claim(ctx context.Context, atomID, agentID string) (*types.Atom, error) {
	c.reconcileStaleBestEffort(ctx)
	atom, err := c.transition(ctx, atomID, agentID, claimMutation, "Claim")
	telemetry.RecordClaimAttempt(ctx, claimOutcome(err))
	return atom, err
}

// Release reverses a claim: an in_progress atom assigned to agentID
// reverts to open. Releasing an atom not currently claimed by agentID is a
// no-op success (idempotent), matching Claim's idempotence.
func (c *Claimer) Release(ctx context.Context, atomID, agentID string) (*types.Atom, error) {
	atom, err := c.transition(ctx, atomID, agentID, releaseMutation, "Release")
	telemetry.RecordClaimAttempt(ctx, claimOutcome(err))
	return atom, err
}

// Heartbeat refreshes a claimed atom's UpdatedAt without changing its
// status, defeating the stale-claim timeout for an agent still actively
// working it (spec.md §4.7 "Heartbeat"). It fails if atomID isn't currently
// claimed by agentID.
func (c *Claimer) Heartbeat(ctx context.Context, atomID, agentID string) (*types.Atom, error) {
	atom, err := c.transition(ctx, atomID, agentID, heartbeatMutation, "Heartbeat")
	telemetry.RecordClaimAttempt(ctx, claimOutcome(err))
	return atom, err
}

// reconcileStaleBestEffort runs ReconcileStale and only logs a failure:
// a reconciliation hiccup must never block the claim attempt it precedes.
func (c *Claimer) reconcileStaleBestEffort(ctx context.Context) {
	if c.cfg.StaleTimeout <= 0 {
		return
	}
	if released, err := c.ReconcileStale(ctx); err != nil {
		slog.Warn("stale-claim reconciliation failed before claim attempt", "error", err)
	} else if len(released) > 0 {
		slog.Info("released stale claims", "atom_ids", released)
	}
}

// claimOutcome maps a claim/release/heartbeat result to a low-cardinality
// telemetry label: the kinded error's Kind string, or "success"/"error".
func claimOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var typed *types.Error
	if errors.As(err, &typed) {
		return string(typed.Kind)
	}
	return "error"
}

type mutationFunc func(a *types.Atom, agentID string, now time.Time) (applied bool, err error)

func claimMutation(a *types.Atom, agentID string, now time.Time) (bool, error) {
	switch {
	case a.Status.IsTerminal():
		return false, types.ErrTerminalState(a.ID, a.Status)
	case a.Status == types.StatusInProgress && a.Assignee == agentID:
		return false, nil // idempotent, nothing to commit
	case a.Status == types.StatusInProgress:
		return false, types.ErrAlreadyClaimed(a.ID, a.Assignee)
	default:
		a.Status = types.StatusInProgress
		a.Assignee = agentID
		a.UpdatedAt = now
		return true, nil
	}
}

func releaseMutation(a *types.Atom, agentID string, now time.Time) (bool, error) {
	if a.Status != types.StatusInProgress || a.Assignee != agentID {
		return false, nil // idempotent: not ours to release
	}
	a.Status = types.StatusOpen
	a.Assignee = ""
	a.UpdatedAt = now
	return true, nil
}

func heartbeatMutation(a *types.Atom, agentID string, now time.Time) (bool, error) {
	if a.Status != types.StatusInProgress || a.Assignee != agentID {
		return false, types.ErrNotClaimed(a.ID, agentID)
	}
	a.UpdatedAt = now
	return true, nil
}

// transition is the shared lock/fetch/evaluate/commit/push/retry skeleton
// behind Claim, Release, and Heartbeat. verb labels the resulting commit
// message ("Claim"/"Release"/"Heartbeat").
func (c *Claimer) transition(ctx context.Context, atomID, agentID string, mutate mutationFunc, verb string) (*types.Atom, error) {
	if err := os.MkdirAll(c.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create claim data dir: %w", err)
	}

	lock := newLedgerLock(c.cfg.DataDir)
	if err := lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = lock.release() }()

	if err := ensureWorktree(ctx, c.cfg.MainRepoDir, c.worktreeDir(), c.cfg.LedgerBranch, c.cfg.Timeout); err != nil {
		return c.offlineOrFail(ctx, atomID, agentID, mutate, verb, err)
	}

	var result *types.Atom
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.Retries))
	err := backoff.Retry(func() error {
		if err := fetchAndFastForward(ctx, c.worktreeDir(), c.cfg.RemoteName, c.cfg.LedgerBranch, c.cfg.Timeout); err != nil {
			return err
		}
		atom, err := c.applyAndCommit(ctx, atomID, agentID, mutate, verb)
		if err != nil {
			var typed *types.Error
			if errors.As(err, &typed) {
				return backoff.Permanent(err)
			}
			return err
		}
		if _, err := runGit(ctx, c.worktreeDir(), c.cfg.Timeout, "push", c.cfg.RemoteName, c.cfg.LedgerBranch); err != nil {
			return err // non-fast-forward or network blip: re-fetch and retry
		}
		result = atom
		return nil
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		var typed *types.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return c.offlineOrFail(ctx, atomID, agentID, mutate, verb, err)
	}
	return result, nil
}

// offlineOrFail handles a network-shaped failure (worktree setup, fetch,
// or push all failed) per spec.md §4.7's offline fallback.
func (c *Claimer) offlineOrFail(ctx context.Context, atomID, agentID string, mutate mutationFunc, verb string, cause error) (*types.Atom, error) {
	if c.cfg.OfflineMode != OfflineModeLocal {
		return nil, fmt.Errorf("ledger unreachable: %w", cause)
	}
	atom, err := c.applyAndCommit(ctx, atomID, agentID, mutate, verb)
	if err != nil {
		return nil, err
	}
	rec := pendingClaim{AtomID: atomID, AgentID: agentID, ClaimedAt: time.Now().UTC()}
	if err := recordPendingClaim(c.cfg.DataDir, rec); err != nil {
		slog.Warn("failed to record pending claim for reconciliation", "atom_id", atomID, "error", err)
	}
	return atom, nil
}

// applyAndCommit loads the ledger worktree's atom, applies mutate, and —
// if mutate actually changed anything — rewrites the JSONL file and
// commits under the given verb. Returns the atom's final state either way
// (idempotent calls commit nothing and return the atom unchanged).
func (c *Claimer) applyAndCommit(ctx context.Context, atomID, agentID string, mutate mutationFunc, verb string) (*types.Atom, error) {
	store, err := jsonl.Open(c.ledgerDataDir(), c.cfg.RepoName)
	if err != nil {
		return nil, fmt.Errorf("open ledger worktree store: %w", err)
	}

	result, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load ledger worktree: %w", err)
	}

	var found *types.Atom
	for _, a := range result.Atoms {
		if a.ID == atomID {
			found = a
			break
		}
	}
	if found == nil {
		return nil, types.ErrNotFound(atomID)
	}

	now := time.Now().UTC()
	applied, mutErr := mutate(found, agentID, now)
	if mutErr != nil {
		return nil, mutErr
	}
	if !applied {
		return found, nil
	}

	var final *types.Atom
	err = store.RewriteAtom(atomID, func(a *types.Atom) error {
		*a = *found
		final = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite ledger worktree atom: %w", err)
	}

	if _, err := runGit(ctx, c.worktreeDir(), c.cfg.Timeout, "add", "-A"); err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("%s %s for %s", verb, atomID, agentID)
	if _, err := runGit(ctx, c.worktreeDir(), c.cfg.Timeout, "commit", "-m", msg); err != nil {
		return nil, err
	}
	return final, nil
}

// ReconcileStale batch-releases every in_progress atom whose UpdatedAt
// predates now minus StaleTimeout back to open, clearing Assignee — spec.md
// §4.7's "Release" stale-claim reconciliation and the GLOSSARY's "Stale
// claim" entry. Returns the released atom IDs. A zero StaleTimeout is a
// no-op (nil, nil). Claim runs it before every attempt whatever the
// offline mode; when the ledger is unreachable it fails and Claim only
// logs the failure.
func (c *Claimer) ReconcileStale(ctx context.Context) ([]string, error) {
	if c.cfg.StaleTimeout <= 0 {
		return nil, nil
	}
	if err := os.MkdirAll(c.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create claim data dir: %w", err)
	}

	lock := newLedgerLock(c.cfg.DataDir)
	if err := lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = lock.release() }()

	if err := ensureWorktree(ctx, c.cfg.MainRepoDir, c.worktreeDir(), c.cfg.LedgerBranch, c.cfg.Timeout); err != nil {
		return nil, err
	}

	var released []string
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.Retries))
	err := backoff.Retry(func() error {
		released = nil
		if err := fetchAndFastForward(ctx, c.worktreeDir(), c.cfg.RemoteName, c.cfg.LedgerBranch, c.cfg.Timeout); err != nil {
			return err
		}

		store, err := jsonl.Open(c.ledgerDataDir(), c.cfg.RepoName)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("open ledger worktree store: %w", err))
		}
		result, err := store.Load()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("load ledger worktree: %w", err))
		}

		now := time.Now().UTC()
		cutoff := now.Add(-c.cfg.StaleTimeout)
		for _, a := range result.Atoms {
			if a.Status == types.StatusInProgress && a.UpdatedAt.Before(cutoff) {
				a.Status = types.StatusOpen
				a.Assignee = ""
				a.UpdatedAt = now
				released = append(released, a.ID)
			}
		}
		if len(released) == 0 {
			return nil
		}

		if err := store.ReplaceData(result.Atoms, result.Bonds, result.Comments); err != nil {
			return backoff.Permanent(fmt.Errorf("rewrite ledger worktree: %w", err))
		}
		if _, err := runGit(ctx, c.worktreeDir(), c.cfg.Timeout, "add", "-A"); err != nil {
			return err
		}
		msg := fmt.Sprintf("Release %d stale claim(s)", len(released))
		if _, err := runGit(ctx, c.worktreeDir(), c.cfg.Timeout, "commit", "-m", msg); err != nil {
			return err
		}
		if _, err := runGit(ctx, c.worktreeDir(), c.cfg.Timeout, "push", c.cfg.RemoteName, c.cfg.LedgerBranch); err != nil {
			return err // non-fast-forward or network blip: re-fetch and retry
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}

	telemetry.RecordStaleRelease(ctx, len(released))
	return released, nil
}
