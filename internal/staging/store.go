// Package staging persists per-file summaries between the per-file and
// project-level pipeline phases.
package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Location addresses one staged artifact on disk.
type Location string

// Artifact is one staged per-file summary.
type Artifact struct {
	Path        string
	RevisionTag string
	SummaryText string
	Location    Location
}

// Ref pairs a repository path with its staged location, the unit the
// aggregation phase works from.
type Ref struct {
	Path     string
	Location Location
}

// stagedEntry is the on-disk JSON shape.
type stagedEntry struct {
	RevisionTag string `json:"revision_tag"`
	Summary     string `json:"summary"`
}

// Store writes, reads, and deletes staged summaries under one directory.
// Each repository path maps to exactly one location. Failures on individual
// entries degrade (logged and skipped) rather than aborting a run.
type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("staging: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create directory: %w", err)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{dir: dir, log: log}, nil
}

// Dir reports the staging directory.
func (s *Store) Dir() string { return s.dir }

// locationFor maps a repository path to its staging file. Separators become
// underscores, which keeps one file per path for the path alphabet the host
// serves.
func (s *Store) locationFor(path string) Location {
	name := strings.ReplaceAll(path, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return Location(filepath.Join(s.dir, name+".json"))
}

// Put stages one summary, replacing any previous artifact for the path.
func (s *Store) Put(path, revisionTag, summaryText string) (*Artifact, error) {
	loc := s.locationFor(path)
	data, err := json.Marshal(stagedEntry{RevisionTag: revisionTag, Summary: summaryText})
	if err != nil {
		return nil, fmt.Errorf("staging: encode %s: %w", path, err)
	}
	if err := os.WriteFile(string(loc), data, 0o644); err != nil {
		return nil, fmt.Errorf("staging: write %s: %w", path, err)
	}
	return &Artifact{Path: path, RevisionTag: revisionTag, SummaryText: summaryText, Location: loc}, nil
}

// Lookup returns the staged artifact for path if one exists with a matching
// revision tag. Unchanged files reuse their staged summary across runs
// instead of burning fresh model calls.
func (s *Store) Lookup(path, revisionTag string) (*Artifact, bool) {
	if revisionTag == "" {
		return nil, false
	}
	loc := s.locationFor(path)
	entry, err := readEntry(loc)
	if err != nil {
		return nil, false
	}
	if entry.RevisionTag != revisionTag {
		return nil, false
	}
	return &Artifact{Path: path, RevisionTag: revisionTag, SummaryText: entry.Summary, Location: loc}, true
}

// Read loads one staged summary text.
func (s *Store) Read(loc Location) (string, error) {
	entry, err := readEntry(loc)
	if err != nil {
		return "", err
	}
	return entry.Summary, nil
}

// ReadAll loads summary texts preserving input order. Unreadable entries are
// logged and dropped from the result.
func (s *Store) ReadAll(locs []Location) []string {
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		text, err := s.Read(loc)
		if err != nil {
			s.log.Warn("skipping unreadable staged artifact", "location", string(loc), "err", err)
			continue
		}
		out = append(out, text)
	}
	return out
}

// Delete removes staged artifacts best-effort and reports how many came off
// disk. Leftovers are logged, never fatal.
func (s *Store) Delete(locs []Location) int {
	removed := 0
	for _, loc := range locs {
		if err := os.Remove(string(loc)); err != nil {
			s.log.Warn("could not delete staged artifact", "location", string(loc), "err", err)
			continue
		}
		removed++
	}
	return removed
}

func readEntry(loc Location) (stagedEntry, error) {
	var entry stagedEntry
	data, err := os.ReadFile(string(loc))
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("decode %s: %w", loc, err)
	}
	return entry, nil
}
