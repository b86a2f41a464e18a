package claim

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/eluent/eluent/internal/jsonl"
	"github.com/eluent/eluent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGitT(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
}

// setupLedgerFixture builds a bare "remote", a main repo clone with a
// default branch, and an eluent-ledger branch seeded with one atom,
// mirroring the teacher's setupGitRepo-style integration test fixtures
// (cmd/bd/sync_lock_test.go).
func setupLedgerFixture(t *testing.T) (mainRepoDir, dataDir string) {
	t.Helper()
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote.git")
	mainRepoDir = filepath.Join(root, "main")
	dataDir = filepath.Join(root, "claim-data")

	require.NoError(t, os.MkdirAll(remoteDir, 0o755))
	runGitT(t, remoteDir, "init", "--bare")

	require.NoError(t, os.MkdirAll(mainRepoDir, 0o755))
	runGitT(t, mainRepoDir, "init")
	runGitT(t, mainRepoDir, "config", "user.email", "test@example.com")
	runGitT(t, mainRepoDir, "config", "user.name", "Test")
	runGitT(t, mainRepoDir, "remote", "add", "origin", remoteDir)

	require.NoError(t, os.WriteFile(filepath.Join(mainRepoDir, "README.md"), []byte("x"), 0o644))
	runGitT(t, mainRepoDir, "add", ".")
	runGitT(t, mainRepoDir, "commit", "-m", "initial")
	runGitT(t, mainRepoDir, "push", "origin", "HEAD:refs/heads/main")

	ledgerScratch := filepath.Join(root, "ledger-scratch")
	runGitT(t, mainRepoDir, "worktree", "add", "-b", "eluent-ledger", ledgerScratch)

	store, err := jsonl.Open(filepath.Join(ledgerScratch, ".eluent"), "testrepo")
	require.NoError(t, err)
	atom, err := types.NewAtom(types.NewAtomParams{ID: "atom1", Title: "t", IssueType: types.TypeTask})
	require.NoError(t, err)
	require.NoError(t, store.AppendAtom(atom, false))

	runGitT(t, ledgerScratch, "add", "-A")
	runGitT(t, ledgerScratch, "commit", "-m", "seed ledger")
	runGitT(t, ledgerScratch, "push", "origin", "eluent-ledger")
	runGitT(t, mainRepoDir, "worktree", "remove", "--force", ledgerScratch)

	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	return mainRepoDir, dataDir
}

func newTestClaimer(mainRepoDir, dataDir string) *Claimer {
	return New(Config{
		RepoName:     "testrepo",
		MainRepoDir:  mainRepoDir,
		DataDir:      dataDir,
		LedgerBranch: "eluent-ledger",
		Retries:      3,
		Timeout:      10 * time.Second,
	})
}

func newTestClaimerWithStaleTimeout(mainRepoDir, dataDir string, staleTimeout time.Duration) *Claimer {
	return New(Config{
		RepoName:     "testrepo",
		MainRepoDir:  mainRepoDir,
		DataDir:      dataDir,
		LedgerBranch: "eluent-ledger",
		Retries:      3,
		Timeout:      10 * time.Second,
		StaleTimeout: staleTimeout,
	})
}

func TestClaimSucceedsAndIsIdempotentForSameAgent(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir)
	ctx := context.Background()

	atom, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, atom.Status)
	assert.Equal(t, "agent-a", atom.Assignee)

	atom2, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)
	assert.Equal(t, "agent-a", atom2.Assignee)
}

func TestClaimByAnotherAgentFailsAlreadyClaimed(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir)
	ctx := context.Background()

	_, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)

	_, err = c.Claim(ctx, "atom1", "agent-b")
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindAlreadyClaimed, typed.Kind)
	assert.Equal(t, []string{"agent-a"}, typed.Candidates)
}

func TestClaimThenReleaseReopensAtom(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir)
	ctx := context.Background()

	_, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)

	atom, err := c.Release(ctx, "atom1", "agent-a")
	require.NoError(t, err)
	assert.Equal(t, types.StatusOpen, atom.Status)
	assert.Empty(t, atom.Assignee)
}

func TestReleaseByNonOwnerIsNoOp(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir)
	ctx := context.Background()

	_, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)

	atom, err := c.Release(ctx, "atom1", "agent-b")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, atom.Status, "release by a non-owner is a no-op, not a takeover")
	assert.Equal(t, "agent-a", atom.Assignee)
}

func TestClaimUnknownAtomReturnsNotFound(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir)

	_, err := c.Claim(context.Background(), "does-not-exist", "agent-a")
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindNotFound, typed.Kind)
}

// backdateLedgerAtom rewrites atomID's updated_at directly on the pushed
// eluent-ledger branch, simulating a claim that's gone stale without
// waiting for real wall-clock time to pass.
func backdateLedgerAtom(t *testing.T, mainRepoDir, atomID string, updatedAt time.Time) {
	t.Helper()
	scratch := filepath.Join(t.TempDir(), "backdate-scratch")
	runGitT(t, mainRepoDir, "fetch", "origin", "eluent-ledger")
	runGitT(t, mainRepoDir, "worktree", "add", scratch, "origin/eluent-ledger")

	store, err := jsonl.Open(filepath.Join(scratch, ".eluent"), "testrepo")
	require.NoError(t, err)
	require.NoError(t, store.RewriteAtom(atomID, func(a *types.Atom) error {
		a.UpdatedAt = updatedAt
		return nil
	}))

	runGitT(t, scratch, "add", "-A")
	runGitT(t, scratch, "commit", "-m", "backdate for test")
	runGitT(t, scratch, "push", "origin", "HEAD:eluent-ledger")
	runGitT(t, mainRepoDir, "worktree", "remove", "--force", scratch)
}

func TestReconcileStaleReleasesOldInProgressAtoms(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir)
	ctx := context.Background()

	_, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)

	backdateLedgerAtom(t, mainRepoDir, "atom1", time.Now().UTC().Add(-2*time.Hour))

	stale := newTestClaimerWithStaleTimeout(mainRepoDir, dataDir, time.Hour)
	released, err := stale.ReconcileStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"atom1"}, released)

	atom, err := stale.Claim(ctx, "atom1", "agent-b")
	require.NoError(t, err)
	assert.Equal(t, "agent-b", atom.Assignee, "stale claim should have been released, allowing a new claimant")
}

func TestReconcileStaleLeavesRecentClaimsAlone(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimerWithStaleTimeout(mainRepoDir, dataDir, time.Hour)
	ctx := context.Background()

	_, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)

	released, err := c.ReconcileStale(ctx)
	require.NoError(t, err)
	assert.Empty(t, released)

	_, err = c.Claim(ctx, "atom1", "agent-b")
	require.Error(t, err, "claim is recent, should not have been reconciled away")
}

func TestReconcileStaleDisabledByZeroTimeout(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir) // StaleTimeout defaults to 0
	released, err := c.ReconcileStale(context.Background())
	require.NoError(t, err)
	assert.Nil(t, released)
}

func TestHeartbeatRefreshesUpdatedAtForOwner(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir)
	ctx := context.Background()

	claimed, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)

	atom, err := c.Heartbeat(ctx, "atom1", "agent-a")
	require.NoError(t, err)
	assert.True(t, atom.UpdatedAt.After(claimed.UpdatedAt) || atom.UpdatedAt.Equal(claimed.UpdatedAt))
	assert.Equal(t, types.StatusInProgress, atom.Status)
	assert.Equal(t, "agent-a", atom.Assignee)
}

func TestHeartbeatByNonOwnerFails(t *testing.T) {
	mainRepoDir, dataDir := setupLedgerFixture(t)
	c := newTestClaimer(mainRepoDir, dataDir)
	ctx := context.Background()

	_, err := c.Claim(ctx, "atom1", "agent-a")
	require.NoError(t, err)

	_, err = c.Heartbeat(ctx, "atom1", "agent-b")
	require.Error(t, err)
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.KindNotClaimed, typed.Kind)
}

func TestPendingClaimsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	none, err := PendingClaims(dir)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, recordPendingClaim(dir, pendingClaim{AtomID: "a1", AgentID: "agent-a", ClaimedAt: time.Now().UTC()}))
	pending, err := PendingClaims(dir)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a1", pending[0].AtomID)

	require.NoError(t, ClearPendingClaims(dir))
	pending, err = PendingClaims(dir)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
