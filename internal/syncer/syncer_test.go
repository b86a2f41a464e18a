package syncer

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

func runGitT(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
	return string(out)
}

func newAtom(t *testing.T, id string) *types.Atom {
	t.Helper()
	a, err := types.NewAtom(types.NewAtomParams{ID: id, Title: "atom " + id, IssueType: types.TypeTask})
	require.NoError(t, err)
	return a
}

// setupSyncFixture builds a bare remote and two independent clones of it
// ("peer A" and "peer B"), each with a seeded .eluent/data.jsonl (and the
// .eluent/.gitignore that `eluent init` writes) committed
// and pushed from peer A before peer B clones, mirroring the two-developer
// divergence scenario spec.md §4.6 is written against.
func setupSyncFixture(t *testing.T) (peerA, peerB string) {
	t.Helper()
	root := t.TempDir()
	remoteDir := filepath.Join(root, "remote.git")
	peerA = filepath.Join(root, "peerA")

	require.NoError(t, os.MkdirAll(remoteDir, 0o755))
	runGitT(t, remoteDir, "init", "--bare")

	require.NoError(t, os.MkdirAll(peerA, 0o755))
	runGitT(t, peerA, "init")
	runGitT(t, peerA, "config", "user.email", "a@example.com")
	runGitT(t, peerA, "config", "user.name", "Peer A")
	runGitT(t, peerA, "remote", "add", "origin", remoteDir)

	store, err := jsonl.Open(filepath.Join(peerA, ".eluent"), "testrepo")
	require.NoError(t, err)
	require.NoError(t, store.AppendAtom(newAtom(t, "atom1"), false))
	require.NoError(t, os.WriteFile(filepath.Join(peerA, ".eluent", ".gitignore"), []byte("ephemeral.jsonl\n.sync-state\n"), 0o644))

	runGitT(t, peerA, "add", ".")
	runGitT(t, peerA, "commit", "-m", "initial")
	runGitT(t, peerA, "push", "origin", "HEAD:refs/heads/main")
	runGitT(t, peerA, "symbolic-ref", "HEAD", "refs/heads/main")
	runGitT(t, remoteDir, "symbolic-ref", "HEAD", "refs/heads/main")

	peerB = filepath.Join(root, "peerB")
	runGitT(t, root, "clone", remoteDir, peerB)
	runGitT(t, peerB, "checkout", "main")
	runGitT(t, peerB, "config", "user.email", "b@example.com")
	runGitT(t, peerB, "config", "user.name", "Peer B")

	return peerA, peerB
}

func TestSyncNoOpWhenUpToDate(t *testing.T) {
	_, peerB := setupSyncFixture(t)
	s := New(peerB, "origin", 10*time.Second)

	result, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.NoOp)

	state, err := LoadState(filepath.Join(peerB, ".eluent"))
	require.NoError(t, err)
	assert.NotEmpty(t, state.LocalHead)
}

func TestSyncMergesDivergentPeers(t *testing.T) {
	peerA, peerB := setupSyncFixture(t)
	ctx := context.Background()

	storeA, err := jsonl.Open(filepath.Join(peerA, ".eluent"), "testrepo")
	require.NoError(t, err)
	require.NoError(t, storeA.AppendAtom(newAtom(t, "atom2"), false))
	runGitT(t, peerA, "add", ".")
	runGitT(t, peerA, "commit", "-m", "peer A adds atom2")
	runGitT(t, peerA, "push", "origin", "main")

	storeB, err := jsonl.Open(filepath.Join(peerB, ".eluent"), "testrepo")
	require.NoError(t, err)
	require.NoError(t, storeB.AppendAtom(newAtom(t, "atom3"), false))
	runGitT(t, peerB, "add", ".")
	runGitT(t, peerB, "commit", "-m", "peer B adds atom3")

	s := New(peerB, "origin", 10*time.Second)
	result, err := s.Sync(ctx)
	require.NoError(t, err)
	require.False(t, result.NoOp)
	require.NotNil(t, result.Merged)

	ids := make(map[string]bool)
	for _, a := range result.Merged.Atoms {
		ids[a.ID] = true
	}
	assert.True(t, ids["atom1"])
	assert.True(t, ids["atom2"])
	assert.True(t, ids["atom3"])

	dirty, err := s.isDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	state, err := LoadState(filepath.Join(peerB, ".eluent"))
	require.NoError(t, err)
	assert.Equal(t, result.CommitHash, state.LocalHead)

	verifyDir := filepath.Join(t.TempDir(), "verify")
	runGitT(t, filepath.Dir(verifyDir), "clone", filepath.Join(filepath.Dir(peerA), "remote.git"), verifyDir)
	data, err := os.ReadFile(filepath.Join(verifyDir, DataFileName))
	require.NoError(t, err)
	decoded, err := jsonl.DecodeBytes(data, "verify")
	require.NoError(t, err)
	verifyIDs := make(map[string]bool)
	for _, a := range decoded.Atoms {
		verifyIDs[a.ID] = true
	}
	assert.True(t, verifyIDs["atom1"])
	assert.True(t, verifyIDs["atom2"])
	assert.True(t, verifyIDs["atom3"], "peer B's push should carry the merged union to the remote")
}

func TestSyncRefusesDirtyWorkingTree(t *testing.T) {
	_, peerB := setupSyncFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(peerB, "scratch.txt"), []byte("uncommitted"), 0o644))

	s := New(peerB, "origin", 10*time.Second)
	_, err := s.Sync(context.Background())
	assert.ErrorIs(t, err, errDirty)
}

func TestLoadStateCorruptFileDegradesToNoBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFileName), []byte("not json"), 0o644))

	state, err := LoadState(dir)
	require.NoError(t, err)
	assert.Empty(t, state.BaseCommit)
}

func TestStateSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := &State{LastSyncAt: time.Now().UTC(), BaseCommit: "abc", LocalHead: "abc", RemoteHead: "abc"}
	require.NoError(t, s.Save(dir))

	loaded, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.BaseCommit)
}
