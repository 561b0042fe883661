package filesystem

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/globserve/globserve/filesystem/common"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// TraversalHandler receives every canonical directory entered and every
// canonical regular file matched during a traversal.
type TraversalHandler interface {
	HandleDirectory(path string) error
	HandleFile(path string) error
}

// IgnoreChecker is satisfied by *ignore.GitIgnore.
type IgnoreChecker interface {
	MatchesPath(path string) bool
}

// TraversalStats tracks what a single traversal saw
type TraversalStats struct {
	DirsVisited    int64
	FilesMatched   int64
	EntriesSkipped int64
	LevelsSkipped  int64
}

// Traverser expands a glob pattern in a directory, then again in every
// matched subdirectory, handing regular files to a TraversalHandler.
// Recursion is explicit: the pattern never has to cross a directory boundary
// on its own, though "**" may.
type Traverser struct {
	pattern string
	exclude IgnoreChecker
	logger  zerolog.Logger
}

// TraverserOption configures a Traverser
type TraverserOption func(*Traverser)

// WithTraverserLogger sets the logger used for skipped entries (debug level).
func WithTraverserLogger(logger zerolog.Logger) TraverserOption {
	return func(t *Traverser) {
		t.logger = logger
	}
}

// WithIgnore excludes entries whose root-relative slash path matches.
// Excluded directories are not descended into.
func WithIgnore(exclude IgnoreChecker) TraverserOption {
	return func(t *Traverser) {
		t.exclude = exclude
	}
}

// NewTraverser creates a traverser for pattern. An empty pattern matches everything.
func NewTraverser(pattern string, opts ...TraverserOption) *Traverser {
	if pattern == "" {
		pattern = "*"
	}
	t := &Traverser{
		pattern: pattern,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Pattern returns the glob applied at each level
func (t *Traverser) Pattern() string {
	return t.pattern
}

// ValidPattern reports whether the pattern parses. An invalid pattern is not
// an error for Traverse, it just matches nothing.
func (t *Traverser) ValidPattern() bool {
	return doublestar.ValidatePattern(t.pattern)
}

type traversal struct {
	*Traverser
	root    string
	handler TraversalHandler
	visited map[string]struct{}
	stats   TraversalStats
}

// Traverse walks root, which must be canonical, and reports what it found.
// Errors on individual entries or levels are logged and skipped, never returned.
// Nothing outside root (after symlink resolution) is ever handed to handler.
func (t *Traverser) Traverse(root string, handler TraversalHandler) TraversalStats {
	tr := &traversal{
		Traverser: t,
		root:      root,
		handler:   handler,
		visited:   make(map[string]struct{}),
	}
	tr.walkDir(root)

	t.logger.Debug().
		Str("root", root).
		Str("pattern", t.pattern).
		Int64("dirs", tr.stats.DirsVisited).
		Int64("files", tr.stats.FilesMatched).
		Int64("skipped_entries", tr.stats.EntriesSkipped).
		Int64("skipped_levels", tr.stats.LevelsSkipped).
		Msg("traversal completed")

	return tr.stats
}

func (tr *traversal) walkDir(dir string) {
	canonical, err := common.Canonicalize(dir)
	if err != nil {
		tr.skipEntry(dir, "canonicalize directory", err)
		return
	}
	if !common.IsSubpath(tr.root, canonical) {
		tr.skipEntry(dir, "directory escapes root", nil)
		return
	}
	if _, seen := tr.visited[canonical]; seen {
		return
	}
	tr.visited[canonical] = struct{}{}
	tr.stats.DirsVisited++

	if err := tr.handler.HandleDirectory(canonical); err != nil {
		tr.logger.Warn().Str("path", canonical).Err(err).Msg("handler error for directory")
	}

	matches, err := doublestar.Glob(os.DirFS(canonical), tr.pattern, doublestar.WithNoFollow())
	if err != nil {
		tr.stats.LevelsSkipped++
		tr.logger.Debug().Str("dir", canonical).Str("pattern", tr.pattern).Err(err).Msg("skipping level")
		return
	}

	for _, match := range matches {
		tr.visit(canonical, filepath.Join(canonical, filepath.FromSlash(match)))
	}
}

func (tr *traversal) visit(parent, path string) {
	if path == parent {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		tr.skipEntry(path, "stat", err)
		return
	}

	if tr.excluded(path, info.IsDir()) {
		tr.stats.EntriesSkipped++
		tr.logger.Debug().Str("path", path).Msg("excluded")
		return
	}

	switch {
	case info.IsDir():
		tr.walkDir(path)
	case info.Mode().IsRegular():
		canonical, err := common.Canonicalize(path)
		if err != nil {
			tr.skipEntry(path, "canonicalize file", err)
			return
		}
		if !common.IsSubpath(tr.root, canonical) {
			tr.skipEntry(path, "file escapes root", nil)
			return
		}
		tr.stats.FilesMatched++
		if err := tr.handler.HandleFile(canonical); err != nil {
			tr.logger.Warn().Str("path", canonical).Err(err).Msg("handler error for file")
		}
	default:
		tr.skipEntry(path, "not a regular file", nil)
	}
}

func (tr *traversal) excluded(path string, isDir bool) bool {
	if tr.exclude == nil {
		return false
	}
	rel, ok := common.RelativeSlash(tr.root, path)
	if !ok {
		return false
	}
	if tr.exclude.MatchesPath(rel) {
		return true
	}
	return isDir && tr.exclude.MatchesPath(rel+"/")
}

func (tr *traversal) skipEntry(path, reason string, err error) {
	tr.stats.EntriesSkipped++
	evt := tr.logger.Debug().Str("path", path).Str("reason", reason)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("skipping entry")
}
