// Package jsonl implements the append-only, dual-file JSONL repository
// described in spec.md §4.3: a synced data.jsonl plus a local-only
// ephemeral.jsonl, both header-tagged, both line-dispatched on _type.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/eluent/eluent/internal/types"
)

const (
	recordTypeHeader  = "header"
	recordTypeAtom    = "atom"
	recordTypeBond    = "bond"
	recordTypeComment = "comment"
)

// maxLineSize accommodates very large description/notes fields within the
// 65,536-rune content limit plus JSON escaping overhead.
const maxLineSize = 1 << 20

type envelope struct {
	Type string `json:"_type"`
}

type headerRecord struct {
	Type      string    `json:"_type"`
	RepoName  string    `json:"repo_name"`
	Generator string    `json:"generator"`
	CreatedAt time.Time `json:"created_at"`
}

type atomRecord struct {
	Type string `json:"_type"`
	types.Atom
}

type bondRecord struct {
	Type string `json:"_type"`
	types.Bond
}

type commentRecord struct {
	Type string `json:"_type"`
	types.Comment
}

// LoadResult is the reconstructed in-memory state of one JSONL file.
type LoadResult struct {
	Header   *headerRecord
	Atoms    []*types.Atom
	Bonds    []*types.Bond
	Comments []*types.Comment
	// Skipped counts lines dropped during partial recovery, e.g. because a
	// process crashed mid-write leaving a torn final line.
	Skipped int
}

// DecodeBytes parses a raw JSONL byte stream (e.g. a `git show`'d revision
// of data.jsonl, not necessarily on disk) into a LoadResult. Exposed for
// the sync path, which diffs historical git revisions rather than
// reading through a Store.
func DecodeBytes(data []byte, source string) (*LoadResult, error) {
	return decodeLines(data, source)
}

// decodeLines streams newline-delimited JSON records from data, dispatching
// each by its _type tag. Malformed lines are skipped with a logged warning
// rather than aborting the load, matching spec.md §4.3's partial-recovery
// contract for a torn final line.
func decodeLines(data []byte, source string) (*LoadResult, error) {
	result := &LoadResult{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			slog.Warn("jsonl: skipping malformed line", "source", source, "line", lineNum, "error", err)
			result.Skipped++
			continue
		}

		switch env.Type {
		case recordTypeHeader:
			var h headerRecord
			if err := json.Unmarshal(line, &h); err != nil {
				slog.Warn("jsonl: skipping malformed header", "source", source, "line", lineNum, "error", err)
				result.Skipped++
				continue
			}
			result.Header = &h
		case recordTypeAtom:
			var rec atomRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				slog.Warn("jsonl: skipping malformed atom", "source", source, "line", lineNum, "error", err)
				result.Skipped++
				continue
			}
			a := rec.Atom
			result.Atoms = append(result.Atoms, &a)
		case recordTypeBond:
			var rec bondRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				slog.Warn("jsonl: skipping malformed bond", "source", source, "line", lineNum, "error", err)
				result.Skipped++
				continue
			}
			b := rec.Bond
			result.Bonds = append(result.Bonds, &b)
		case recordTypeComment:
			var rec commentRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				slog.Warn("jsonl: skipping malformed comment", "source", source, "line", lineNum, "error", err)
				result.Skipped++
				continue
			}
			c := rec.Comment
			result.Comments = append(result.Comments, &c)
		default:
			slog.Warn("jsonl: skipping unknown record type", "source", source, "line", lineNum, "type", env.Type)
			result.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("scan %s: %w", source, err)
	}
	return result, nil
}

func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
