package jsonl

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eluent/eluent/internal/lockfile"
	"github.com/eluent/eluent/internal/types"
)

const (
	// DataFileName is the synced, git-tracked log.
	DataFileName = "data.jsonl"
	// EphemeralFileName is the local-only, gitignored log.
	EphemeralFileName = "ephemeral.jsonl"
	generatorName     = "eluent"
)

// Store is the on-disk JSONL repository for one .eluent directory: a
// synced data.jsonl and a local-only ephemeral.jsonl, both header-tagged
// and line-dispatched by _type (spec.md §4.3).
type Store struct {
	dir      string
	repoName string

	mu sync.Mutex
	// ephemeral tracks, per ID, whether the record's last known home is
	// ephemeral.jsonl rather than data.jsonl — consulted by RewriteAtom to
	// route an update to the right file without re-scanning both.
	ephemeral map[string]bool
}

// Open returns a Store rooted at dir, creating dir and the header record
// in data.jsonl if they do not already exist.
func Open(dir, repoName string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create eluent dir: %w", err)
	}
	s := &Store{dir: dir, repoName: repoName, ephemeral: make(map[string]bool)}

	dataPath := s.dataPath()
	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		if err := s.writeHeader(dataPath); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) dataPath() string      { return filepath.Join(s.dir, DataFileName) }
func (s *Store) ephemeralPath() string { return filepath.Join(s.dir, EphemeralFileName) }

func (s *Store) writeHeader(path string) error {
	h := headerRecord{
		Type:      recordTypeHeader,
		RepoName:  s.repoName,
		Generator: generatorName,
		CreatedAt: time.Now().UTC(),
	}
	line, err := encodeLine(h)
	if err != nil {
		return err
	}
	return appendLine(path, line)
}

// appendLine opens path for append, acquires an exclusive blocking flock,
// writes line in a single write(2) call, and releases the lock. The
// single write plus flock is the atomicity contract spec.md §4.3 relies
// on: readers never observe a torn line from a concurrent append.
func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	defer f.Close()

	if err := lockfile.FlockExclusiveBlocking(f); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lockfile.FlockUnlock(f)

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Sync()
}

// AppendAtom appends a to data.jsonl, or to ephemeral.jsonl when
// ephemeral is true, and records its location for future rewrites.
func (s *Store) AppendAtom(a *types.Atom, ephemeral bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := encodeLine(atomRecord{Type: recordTypeAtom, Atom: *a})
	if err != nil {
		return err
	}
	path := s.dataPath()
	if ephemeral {
		path = s.ephemeralPath()
	}
	if err := appendLine(path, line); err != nil {
		return err
	}
	s.ephemeral[a.ID] = ephemeral
	return nil
}

// AppendBond appends b to data.jsonl (bonds are always synced: they
// describe the shared DAG, never local-only scratch state).
func (s *Store) AppendBond(b *types.Bond) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := encodeLine(bondRecord{Type: recordTypeBond, Bond: *b})
	if err != nil {
		return err
	}
	return appendLine(s.dataPath(), line)
}

// AppendComment appends c to data.jsonl, or to ephemeral.jsonl when
// ephemeral is true.
func (s *Store) AppendComment(c *types.Comment, ephemeral bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := encodeLine(commentRecord{Type: recordTypeComment, Comment: *c})
	if err != nil {
		return err
	}
	path := s.dataPath()
	if ephemeral {
		path = s.ephemeralPath()
	}
	if err := appendLine(path, line); err != nil {
		return err
	}
	s.ephemeral[c.ID] = ephemeral
	return nil
}

// Load reads both data.jsonl and ephemeral.jsonl (the latter may not
// exist yet) and returns the combined, reconstructed state. Callers feed
// the result to internal/indexer.Rebuild.
func (s *Store) Load() (*LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadFile(s.dataPath())
	if err != nil {
		return nil, err
	}
	ephemeral, err := s.loadFile(s.ephemeralPath())
	if err != nil {
		return nil, err
	}

	for _, a := range data.Atoms {
		s.ephemeral[a.ID] = false
	}
	for _, c := range data.Comments {
		s.ephemeral[c.ID] = false
	}
	for _, a := range ephemeral.Atoms {
		s.ephemeral[a.ID] = true
	}
	for _, c := range ephemeral.Comments {
		s.ephemeral[c.ID] = true
	}

	merged := &LoadResult{
		Header:   data.Header,
		Atoms:    append(data.Atoms, ephemeral.Atoms...),
		Bonds:    append(data.Bonds, ephemeral.Bonds...),
		Comments: append(data.Comments, ephemeral.Comments...),
		Skipped:  data.Skipped + ephemeral.Skipped,
	}
	return merged, nil
}

func (s *Store) loadFile(path string) (*LoadResult, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &LoadResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return decodeLines(raw, path)
}

// RewriteAtom locates id's home file (ephemeral or data, per the last
// Load/Append), applies mutate to the stored copy, and atomically
// replaces the file via a sibling tmp file + rename — the rewrite's
// commit point, per spec.md §4.3.
func (s *Store) RewriteAtom(id string, mutate func(*types.Atom) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.dataPath()
	if s.ephemeral[id] {
		path = s.ephemeralPath()
	}

	result, err := s.loadFile(path)
	if err != nil {
		return err
	}

	found := false
	for _, a := range result.Atoms {
		if a.ID == id {
			if err := mutate(a); err != nil {
				return err
			}
			found = true
			break
		}
	}
	if !found {
		return types.ErrNotFound(id)
	}

	return s.rewriteFile(path, result)
}

// ReplaceData atomically rewrites data.jsonl with atoms/bonds/comments in
// full, preserving the existing header (writing a fresh one if the file
// didn't exist yet). Used by the merge-apply path (spec.md §4.6), which
// produces a complete merged snapshot rather than a single-record mutation.
// Every replaced atom and comment is marked synced (non-ephemeral): merge
// output is definitionally the state both sides agree belongs in the
// shared log.
func (s *Store) ReplaceData(atoms []*types.Atom, bonds []*types.Bond, comments []*types.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadFile(s.dataPath())
	if err != nil {
		return err
	}
	header := existing.Header
	if header == nil {
		header = &headerRecord{
			Type:      recordTypeHeader,
			RepoName:  s.repoName,
			Generator: generatorName,
			CreatedAt: time.Now().UTC(),
		}
	}

	result := &LoadResult{Header: header, Atoms: atoms, Bonds: bonds, Comments: comments}
	if err := s.rewriteFile(s.dataPath(), result); err != nil {
		return err
	}

	for _, a := range atoms {
		s.ephemeral[a.ID] = false
	}
	for _, c := range comments {
		s.ephemeral[c.ID] = false
	}
	return nil
}

// rewriteFile re-serializes the header, atoms, bonds, and comments in
// result to a temp file and renames it over path.
func (s *Store) rewriteFile(path string, result *LoadResult) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}

	write := func(v any) error {
		line, err := encodeLine(v)
		if err != nil {
			return err
		}
		_, err = f.Write(line)
		return err
	}

	var writeErr error
	if result.Header != nil {
		writeErr = write(*result.Header)
	}
	for i := 0; writeErr == nil && i < len(result.Atoms); i++ {
		writeErr = write(atomRecord{Type: recordTypeAtom, Atom: *result.Atoms[i]})
	}
	for i := 0; writeErr == nil && i < len(result.Bonds); i++ {
		writeErr = write(bondRecord{Type: recordTypeBond, Bond: *result.Bonds[i]})
	}
	for i := 0; writeErr == nil && i < len(result.Comments); i++ {
		writeErr = write(commentRecord{Type: recordTypeComment, Comment: *result.Comments[i]})
	}
	if writeErr == nil {
		writeErr = f.Sync()
	}
	if cerr := f.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return writeErr
	}
	return os.Rename(tmp, path)
}
