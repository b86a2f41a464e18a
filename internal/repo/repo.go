// Package repo is the single facade over one loaded repository: the JSONL
// store, its derived index, and the graph/resolver/claim operations layered
// on top — the surface cmd/eluent drives. Grounded on the teacher's
// StorageProvider pattern (internal/storage/provider.go), generalized from
// a thin read-only adapter into a full mutex-guarded read/write facade,
// since eluent's Index (unlike the teacher's SQL-backed Storage) has no
// locking of its own.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/eluent/eluent/internal/claim"
	"github.com/eluent/eluent/internal/config"
	"github.com/eluent/eluent/internal/graph"
	"github.com/eluent/eluent/internal/idgen"
	"github.com/eluent/eluent/internal/indexer"
	"github.com/eluent/eluent/internal/jsonl"
	"github.com/eluent/eluent/internal/merge"
	"github.com/eluent/eluent/internal/resolver"
	"github.com/eluent/eluent/internal/types"
)

// EluentDirName is the per-project data directory spec.md §6 describes.
const EluentDirName = ".eluent"

// Repo is one loaded .eluent repository: store, index, and the operations
// layered on top of them. All mutating methods take mu, serializing
// writes against the single in-process Index even though jsonl.Store
// already serializes its own file access — the two must stay consistent
// with each other, which requires one coarser lock above both.
type Repo struct {
	dir      string
	repoName string

	cfg     *config.Loader
	store   *jsonl.Store
	index   *indexer.Index
	graph   *graph.Graph
	resolve *resolver.Resolver
	idgen   *idgen.Generator
	claimer *claim.Claimer

	mu sync.Mutex
}

// Open loads (or initializes) the repository rooted at repoRoot/.eluent,
// rebuilding the index from disk and preparing a Claimer against
// mainRepoDir for cross-agent claim operations.
func Open(repoRoot, mainRepoDir string) (*Repo, error) {
	dir := filepath.Join(repoRoot, EluentDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	current := cfg.Current()

	repoName := current.RepoName
	if repoName == "" {
		repoName = sanitizeRepoName(filepath.Base(repoRoot))
	}

	store, err := jsonl.Open(dir, repoName)
	if err != nil {
		return nil, err
	}

	r := &Repo{
		dir:      dir,
		repoName: repoName,
		cfg:      cfg,
		store:    store,
		index:    indexer.New(),
		idgen:    idgen.NewGenerator(repoName),
	}
	r.graph = graph.New(r.index)
	r.resolve = resolver.New(r.index)

	if err := r.reload(); err != nil {
		return nil, err
	}

	dataDir, err := claimDataDir(repoName, current.SyncGlobalPathOverride)
	if err != nil {
		return nil, err
	}
	var staleTimeout time.Duration
	if current.SyncClaimTimeoutHours != nil {
		staleTimeout = time.Duration(*current.SyncClaimTimeoutHours) * time.Hour
	}
	r.claimer = claim.New(claim.Config{
		RepoName:     repoName,
		MainRepoDir:  mainRepoDir,
		DataDir:      dataDir,
		LedgerBranch: current.SyncLedgerBranch,
		Retries:      current.SyncClaimRetries,
		Timeout:      current.SyncNetworkTimeout,
		OfflineMode:  claim.OfflineMode(current.SyncOfflineMode),
		StaleTimeout: staleTimeout,
	})

	return r, nil
}

// Close releases the config hot-reload watch, if one was started.
func (r *Repo) Close() error {
	return r.cfg.Close()
}

// Config returns the live, hot-reloadable configuration view.
func (r *Repo) Config() config.Config {
	return r.cfg.Current()
}

// reload re-reads both JSONL files and rebuilds the index. Called on Open
// and after any operation that mutates data outside this process's own
// writes (e.g. after Sync pulls a merged snapshot).
func (r *Repo) reload() error {
	result, err := r.store.Load()
	if err != nil {
		return err
	}
	r.index.Rebuild(result.Atoms, result.Bonds, result.Comments)
	return nil
}

// claimDataDir resolves ~/.eluent/<repo_name> (or $XDG_DATA_HOME/eluent/<repo_name>,
// or the sync.global_path_override), per spec.md §6's on-disk layout.
func claimDataDir(repoName, override string) (string, error) {
	base := override
	if base == "" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = filepath.Join(xdg, "eluent")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			base = filepath.Join(home, ".eluent")
		}
	}
	return filepath.Join(base, repoName), nil
}

// CreateAtomParams is the caller-facing parameter set for CreateAtom;
// ID/CreatedAt/UpdatedAt are always assigned by the repo.
type CreateAtomParams struct {
	Title       string
	Description string
	Design      string
	Notes       string
	IssueType   types.IssueType
	Priority    *int // nil uses defaults.priority
	Labels      []string
	Assignee    string
	Creator     string
	ParentID    string
	DeferUntil  *time.Time
	DueAt       *time.Time
	Metadata    map[string]json.RawMessage
	Ephemeral   bool
}

// CreateAtom mints a fresh atom ID, constructs and validates the atom,
// appends it to the store, and indexes it.
func (r *Repo) CreateAtom(p CreateAtomParams) (*types.Atom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.cfg.Current()
	issueType := p.IssueType
	if issueType == "" {
		issueType = cfg.DefaultIssueType
	}
	priority := cfg.DefaultPriority
	if p.Priority != nil {
		priority = *p.Priority
	}

	id, err := r.idgen.NewAtomID()
	if err != nil {
		return nil, err
	}

	atom, err := types.NewAtom(types.NewAtomParams{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		Design:      p.Design,
		Notes:       p.Notes,
		IssueType:   issueType,
		Priority:    priority,
		Labels:      p.Labels,
		Assignee:    p.Assignee,
		Creator:     p.Creator,
		ParentID:    p.ParentID,
		DeferUntil:  p.DeferUntil,
		DueAt:       p.DueAt,
		Metadata:    p.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := r.store.AppendAtom(atom, p.Ephemeral); err != nil {
		return nil, err
	}
	r.index.AddAtom(atom)
	return atom, nil
}

// Resolve looks up ref (a full ID, scoped short ID, or unscoped short ID
// within this repo) and returns the matching atom.
func (r *Repo) Resolve(ref string) (*types.Atom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve.Resolve(ref, r.repoName)
}

// Show is an alias for Resolve, named for the CLI's `show` verb.
func (r *Repo) Show(ref string) (*types.Atom, error) {
	return r.Resolve(ref)
}

// Bond creates a dependency edge from source to target, rejecting it if
// it would close a cycle in the blocking subgraph (spec.md §4.5).
func (r *Repo) Bond(sourceRef, targetRef string, depType types.DependencyType) (*types.Bond, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	source, err := r.resolve.Resolve(sourceRef, r.repoName)
	if err != nil {
		return nil, err
	}
	target, err := r.resolve.Resolve(targetRef, r.repoName)
	if err != nil {
		return nil, err
	}
	if err := r.graph.CheckCycle(source.ID, target.ID, depType); err != nil {
		return nil, err
	}

	bond, err := types.NewBond(source.ID, target.ID, depType, time.Time{})
	if err != nil {
		return nil, err
	}
	if err := r.store.AppendBond(bond); err != nil {
		return nil, err
	}
	r.index.AddBond(bond)
	return bond, nil
}

// Comment appends a comment to parentRef, minting the next <atom_id>-c<n>
// identifier.
func (r *Repo) Comment(parentRef, author, content string, ephemeral bool) (*types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	atom, err := r.resolve.Resolve(parentRef, r.repoName)
	if err != nil {
		return nil, err
	}
	n := len(r.index.CommentsFor(atom.ID)) + 1
	id := idgen.CommentID(atom.ID, n)

	comment, err := types.NewComment(id, atom.ID, author, content, time.Time{})
	if err != nil {
		return nil, err
	}
	if err := r.store.AppendComment(comment, ephemeral); err != nil {
		return nil, err
	}
	r.index.AddComment(comment)
	return comment, nil
}

// Transition moves ref to next, rewriting it on disk.
func (r *Repo) Transition(ref string, next types.Status, reason string) (*types.Atom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	atom, err := r.resolve.Resolve(ref, r.repoName)
	if err != nil {
		return nil, err
	}

	var result *types.Atom
	err = r.store.RewriteAtom(atom.ID, func(a *types.Atom) error {
		if err := a.TransitionTo(next, reason, time.Time{}); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, r.reload()
}

// Ready returns every atom passing the readiness definition and filter,
// ordered per policy.
func (r *Repo) Ready(filter graph.ReadyFilter, policy graph.SortPolicy, now time.Time) []*types.Atom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph.Ready(filter, policy, now)
}

// Tree renders the parent/child tree rooted at ref.
func (r *Repo) Tree(ref string, maxDepth int) ([]*graph.TreeNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	atom, err := r.resolve.Resolve(ref, r.repoName)
	if err != nil {
		return nil, err
	}
	return r.graph.RenderTree(atom.ID, maxDepth), nil
}

// Claim executes the cross-agent claim protocol for ref on behalf of
// agentID, then reloads the local index to reflect the now-synced state.
func (r *Repo) Claim(ctx context.Context, ref, agentID string) (*types.Atom, error) {
	r.mu.Lock()
	atom, err := r.resolve.Resolve(ref, r.repoName)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result, err := r.claimer.Claim(ctx, atom.ID, agentID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return result, r.reload()
}

// Heartbeat refreshes a claimed atom's updated_at, defeating the
// stale-claim timeout for an agent still actively working it (spec.md
// §4.7 "Heartbeat").
func (r *Repo) Heartbeat(ctx context.Context, ref, agentID string) (*types.Atom, error) {
	r.mu.Lock()
	atom, err := r.resolve.Resolve(ref, r.repoName)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result, err := r.claimer.Heartbeat(ctx, atom.ID, agentID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return result, r.reload()
}

// Release reverses a claim; see Claim.
func (r *Repo) Release(ctx context.Context, ref, agentID string) (*types.Atom, error) {
	r.mu.Lock()
	atom, err := r.resolve.Resolve(ref, r.repoName)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result, err := r.claimer.Release(ctx, atom.ID, agentID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return result, r.reload()
}

// Merge applies a three-way merge of base/local/remote snapshots and
// rewrites data.jsonl with the result, then reloads the index. Within this
// module only tests call it; internal/syncer runs merge.Merge and writes
// the ledger itself.
func (r *Repo) Merge(base, local, remote merge.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := merge.Merge(base, local, remote)
	result.Bonds = merge.MergeBonds(local.Bonds, remote.Bonds)
	result.Comments = merge.MergeComments(local.Comments, remote.Comments)

	for _, a := range result.Atoms {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("merged atom %s failed validation: %w", a.ID, err)
		}
	}

	if err := r.store.ReplaceData(result.Atoms, result.Bonds, result.Comments); err != nil {
		return err
	}
	return r.reload()
}

var repoNameSanitizeRe = regexp.MustCompile(`[/\\:*?"<>|]`)
var repoNameCollapseDotsRe = regexp.MustCompile(`\.{2,}`)

// sanitizeRepoName applies spec.md §6's filesystem-safety rule to a
// directory-name-derived repo_name fallback (strip leading/trailing dots;
// replace reserved characters; collapse runs of dots; truncate; lowercase
// so the result also satisfies config's repo_name pattern).
func sanitizeRepoName(name string) string {
	name = strings.ToLower(name)
	name = repoNameSanitizeRe.ReplaceAllString(name, "_")
	name = repoNameCollapseDotsRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, ".")
	if len(name) > 200 {
		name = name[:200]
	}
	if name == "" {
		name = "repo"
	}
	if name[0] < 'a' || name[0] > 'z' {
		name = "r" + name
	}
	if len(name) > 32 {
		name = name[:32]
	}
	return name
}
