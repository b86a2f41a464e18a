package claim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ensureWorktree makes sure the ledger worktree at worktreeDir exists,
// points at mainRepoDir, and is checked out to branch — removing and
// re-adding it if it's absent or stale, per spec.md §4.7 step 2.
func ensureWorktree(ctx context.Context, mainRepoDir, worktreeDir, branch string, timeout time.Duration) error {
	if worktreeStale(ctx, mainRepoDir, worktreeDir, branch, timeout) {
		_ = os.RemoveAll(worktreeDir)
		if _, err := runGit(ctx, mainRepoDir, timeout, "worktree", "prune"); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(worktreeDir), 0o755); err != nil {
			return err
		}
		if branchExists(ctx, mainRepoDir, branch, timeout) {
			if _, err := runGit(ctx, mainRepoDir, timeout, "worktree", "add", worktreeDir, branch); err != nil {
				return err
			}
		} else {
			if _, err := runGit(ctx, mainRepoDir, timeout, "worktree", "add", "-b", branch, worktreeDir); err != nil {
				return err
			}
		}
	}
	return nil
}

// worktreeStale reports whether worktreeDir is missing, has a broken .git
// pointer, or is checked out to the wrong branch.
func worktreeStale(ctx context.Context, mainRepoDir, worktreeDir, branch string, timeout time.Duration) bool {
	if _, err := os.Stat(filepath.Join(worktreeDir, ".git")); err != nil {
		return true
	}
	out, err := runGit(ctx, worktreeDir, timeout, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return true
	}
	if strings.TrimSpace(out) != branch {
		return true
	}
	_, err = runGit(ctx, mainRepoDir, timeout, "worktree", "list")
	return err != nil
}

func branchExists(ctx context.Context, mainRepoDir, branch string, timeout time.Duration) bool {
	_, err := runGit(ctx, mainRepoDir, timeout, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true
	}
	_, err = runGit(ctx, mainRepoDir, timeout, "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+branch)
	return err == nil
}

// fetchAndFastForward fetches branch from remote and fast-forwards the
// worktree to it, per spec.md §4.7 step 3.
func fetchAndFastForward(ctx context.Context, worktreeDir, remote, branch string, timeout time.Duration) error {
	if _, err := runGit(ctx, worktreeDir, timeout, "fetch", remote, branch); err != nil {
		return err
	}
	_, err := runGit(ctx, worktreeDir, timeout, "merge", "--ff-only", remote+"/"+branch)
	return err
}
