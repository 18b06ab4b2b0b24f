// Package workspace owns the mutable server state: the set of known files,
// the configured search prefixes, and the memoized parse cache. Queries read
// from consistent snapshots; file installation is serialized and atomic with
// load-pattern derivation.
package workspace

import (
	"path"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/lexcodex/zeekls/lang"
)

// File is one known script: its identity, current source snapshot, and the
// load pattern other files may reference it under.
type File struct {
	URI    uri.URI
	Source string
	Load   string
}

// Store is the shared registry passed into every query.
type Store struct {
	logger *zap.Logger

	mu       sync.RWMutex
	files    map[uri.URI]*File
	prefixes []string
	implicit []uri.URI

	cacheMu sync.Mutex
	cache   map[uri.URI]*parseEntry
}

type parseEntry struct {
	source string
	once   sync.Once
	tree   *lang.Tree
	ok     bool
}

// NewStore builds an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger: logger,
		files:  make(map[uri.URI]*File),
		cache:  make(map[uri.URI]*parseEntry),
	}
}

// SetPrefixes installs the search prefixes used for load-pattern
// normalization and rederives the pattern of every known file, since system
// files may arrive before or after prefix discovery.
func (s *Store) SetPrefixes(prefixes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixes = make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimRight(p, "/"); p != "" {
			s.prefixes = append(s.prefixes, p)
		}
	}
	for _, f := range s.files {
		f.Load = s.loadPatternLocked(f.URI)
	}
}

// Prefixes returns the configured search prefixes.
func (s *Store) Prefixes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.prefixes...)
}

// AddFile installs or wholesale-replaces a file. The new source and its
// derived load pattern appear together; no query observes a half-updated
// record.
func (s *Store) AddFile(u uri.URI, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[u] = &File{URI: u, Source: source, Load: s.loadPatternLocked(u)}
}

// MarkImplicit records a file as part of the always-visible system load set.
func (s *Store) MarkImplicit(u uri.URI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, known := range s.implicit {
		if known == u {
			return
		}
	}
	s.implicit = append(s.implicit, u)
}

// Source returns the current text of a known file.
func (s *Store) Source(u uri.URI) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[u]
	if !ok {
		return "", false
	}
	return f.Source, true
}

// Files returns a snapshot of all known files, ordered by URI so dependent
// queries are deterministic.
func (s *Store) Files() []File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

func (s *Store) implicitURIs() []uri.URI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uri.URI(nil), s.implicit...)
}

// Parse returns the syntax tree for the file's current source, computing it
// at most once per (file, content) snapshot even under concurrent callers.
// The bool result is false for unknown files and for source the parser
// cannot process at all.
func (s *Store) Parse(u uri.URI) (*lang.Tree, bool) {
	tree, _, ok := s.Snapshot(u)
	return tree, ok
}

// Snapshot returns the tree together with the exact source it was parsed
// from. Callers that walk the tree and slice the text must use this pair;
// fetching Source separately can observe a newer edit than the tree.
func (s *Store) Snapshot(u uri.URI) (*lang.Tree, string, bool) {
	source, ok := s.Source(u)
	if !ok {
		return nil, "", false
	}

	s.cacheMu.Lock()
	e := s.cache[u]
	if e == nil || e.source != source {
		e = &parseEntry{source: source}
		s.cache[u] = e
	}
	s.cacheMu.Unlock()

	e.once.Do(func() {
		tree, err := lang.Parse([]byte(e.source))
		if err != nil {
			s.logger.Warn("parse failed", zap.String("uri", string(u)), zap.Error(err))
			return
		}
		e.tree = tree
		e.ok = true
	})
	return e.tree, e.source, e.ok
}

// LoadPattern computes the pattern under which the given URI can be loaded.
func (s *Store) LoadPattern(u uri.URI) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.files[u]; ok {
		return f.Load
	}
	return s.loadPatternLocked(u)
}

// loadPatternLocked normalizes a path against the longest matching prefix.
// Index-style bootstrap files resolve to their directory; everything else
// drops its extension. Files outside every prefix fall back to `./<stem>`.
func (s *Store) loadPatternLocked(u uri.URI) string {
	p := u.Filename()

	best := ""
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(p, prefix+"/") && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		rel := strings.TrimPrefix(p, best+"/")
		base := path.Base(rel)
		if base == "__load__.zeek" || base == "__preload__.zeek" {
			return path.Dir(rel)
		}
		return strings.TrimSuffix(rel, path.Ext(rel))
	}

	stem := strings.TrimSuffix(path.Base(p), path.Ext(p))
	return "./" + stem
}

// PossibleLoads returns every unique load pattern known to the workspace,
// for completing an open load directive in the given file.
func (s *Store) PossibleLoads(u uri.URI) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, f := range s.files {
		if f.URI == u || f.Load == "" {
			continue
		}
		if _, dup := seen[f.Load]; dup {
			continue
		}
		seen[f.Load] = struct{}{}
		out = append(out, f.Load)
	}
	sort.Strings(out)
	return out
}
