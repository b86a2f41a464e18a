// Package syncer implements the pull-first git synchronization protocol
// described in spec.md §4.6: fetch the remote's data.jsonl, three-way
// merge it against the local copy using internal/merge, write the
// reconciled snapshot back, then commit and push.
//
// Unlike internal/claim, which protects a single atom's worktree-visible
// claim state, syncer reconciles the whole ledger file in one pass and is
// invoked explicitly by `eluent sync`, not implicitly by every mutation.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/eluent/eluent/internal/gitutil"
	"github.com/eluent/eluent/internal/jsonl"
	"github.com/eluent/eluent/internal/merge"
)

// DataFileName is the path, relative to the repo root, of the synced
// ledger file (spec.md §6's on-disk layout).
const DataFileName = ".eluent/data.jsonl"

// DefaultRemote is the git remote eluent syncs against absent other
// configuration.
const DefaultRemote = "origin"

var errDirty = errors.New("syncer: working tree has uncommitted changes")

// Syncer drives one repository's pull-first sync against a remote.
type Syncer struct {
	repoRoot string
	remote   string
	timeout  time.Duration
}

// New returns a Syncer for the git repository rooted at repoRoot (the
// directory containing .git and .eluent, not a worktree).
func New(repoRoot, remote string, timeout time.Duration) *Syncer {
	if remote == "" {
		remote = DefaultRemote
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Syncer{repoRoot: repoRoot, remote: remote, timeout: timeout}
}

// Result reports what a Sync call did.
type Result struct {
	// NoOp is true when the local and remote heads already matched.
	NoOp bool
	// Merged is the reconciled ledger state that was written and pushed
	// (nil when NoOp).
	Merged *merge.Result
	// CommitHash is the merge commit created (empty when NoOp).
	CommitHash string
}

// Sync fetches s.remote's tracked branch, three-way merges .eluent/data.jsonl
// against the local copy, writes and commits the reconciled result, and
// pushes. It refuses to run against a dirty working tree: commit or stash
// local changes first.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	eluentDir := filepath.Join(s.repoRoot, ".eluent")

	if dirty, err := s.isDirty(ctx); err != nil {
		return nil, err
	} else if dirty {
		return nil, errDirty
	}

	branch, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("syncer: determine current branch: %w", err)
	}
	branch = strings.TrimSpace(branch)

	localHead, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("syncer: determine local head: %w", err)
	}
	localHead = strings.TrimSpace(localHead)

	if _, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "fetch", s.remote, branch); err != nil {
		return nil, fmt.Errorf("syncer: fetch %s %s: %w", s.remote, branch, err)
	}

	remoteRef := s.remote + "/" + branch
	remoteHead, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "rev-parse", remoteRef)
	if err != nil {
		return nil, fmt.Errorf("syncer: resolve %s: %w", remoteRef, err)
	}
	remoteHead = strings.TrimSpace(remoteHead)

	state, err := LoadState(eluentDir)
	if err != nil {
		return nil, err
	}

	if remoteHead == localHead {
		state.LastSyncAt = now()
		state.BaseCommit = localHead
		state.LocalHead = localHead
		state.RemoteHead = remoteHead
		if err := state.Save(eluentDir); err != nil {
			return nil, err
		}
		return &Result{NoOp: true}, nil
	}

	baseRev := state.BaseCommit
	if baseRev == "" {
		if mb, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "merge-base", localHead, remoteHead); err == nil {
			baseRev = strings.TrimSpace(mb)
		}
		// merge-base failing (e.g. unrelated histories) leaves baseRev empty,
		// which readSnapshot treats as an empty base: a full union merge.
	}

	baseSnap, err := s.readSnapshot(ctx, baseRev)
	if err != nil {
		return nil, err
	}
	localSnap, err := s.readSnapshot(ctx, localHead)
	if err != nil {
		return nil, err
	}
	remoteSnap, err := s.readSnapshot(ctx, remoteHead)
	if err != nil {
		return nil, err
	}

	result := merge.Merge(baseSnap, localSnap, remoteSnap)

	if _, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "merge", "--no-commit", "--no-ff", remoteRef); err != nil {
		slog.Warn("syncer: git merge reported conflicts, resolving at the application layer", "error", err)
	}

	store, err := jsonl.Open(eluentDir, "")
	if err != nil {
		_, _ = gitutil.Run(ctx, s.repoRoot, s.timeout, "merge", "--abort")
		return nil, fmt.Errorf("syncer: reopen store for merge write: %w", err)
	}
	if err := store.ReplaceData(result.Atoms, result.Bonds, result.Comments); err != nil {
		_, _ = gitutil.Run(ctx, s.repoRoot, s.timeout, "merge", "--abort")
		return nil, fmt.Errorf("syncer: write merged ledger: %w", err)
	}

	if _, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "add", ".eluent"); err != nil {
		return nil, fmt.Errorf("syncer: git add: %w", err)
	}
	commitMsg := fmt.Sprintf("eluent sync: merge %s into %s", remoteRef, branch)
	if _, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "commit", "-m", commitMsg); err != nil {
		return nil, fmt.Errorf("syncer: git commit: %w", err)
	}

	newHead, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("syncer: resolve new head: %w", err)
	}
	newHead = strings.TrimSpace(newHead)

	if _, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "push", s.remote, branch); err != nil {
		return nil, fmt.Errorf("syncer: push %s %s: %w", s.remote, branch, err)
	}

	state = &State{
		LastSyncAt: now(),
		BaseCommit: newHead,
		LocalHead:  newHead,
		RemoteHead: remoteHead,
	}
	if err := state.Save(eluentDir); err != nil {
		return nil, err
	}

	return &Result{Merged: &result, CommitHash: newHead}, nil
}

// readSnapshot loads the ledger as of rev via `git show`. An empty rev, or
// a rev whose tree has no data.jsonl (a repo predating eluent, or a
// merge-base that couldn't be resolved), decodes as an empty snapshot —
// the full-union case.
func (s *Syncer) readSnapshot(ctx context.Context, rev string) (merge.Snapshot, error) {
	if rev == "" {
		return merge.Snapshot{}, nil
	}
	out, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "show", rev+":"+DataFileName)
	if err != nil {
		// Most likely "path does not exist in that tree"; treat as empty.
		return merge.Snapshot{}, nil
	}
	res, err := jsonl.DecodeBytes([]byte(out), rev+":"+DataFileName)
	if err != nil {
		return merge.Snapshot{}, fmt.Errorf("syncer: decode %s: %w", rev, err)
	}
	return merge.Snapshot{Atoms: res.Atoms, Bonds: res.Bonds, Comments: res.Comments}, nil
}

func (s *Syncer) isDirty(ctx context.Context) (bool, error) {
	out, err := gitutil.Run(ctx, s.repoRoot, s.timeout, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("syncer: git status: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// now is a seam so tests can pin LastSyncAt.
var now = time.Now
