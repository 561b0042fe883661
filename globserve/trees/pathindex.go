package trees

import (
	"fmt"
	"path/filepath"

	"github.com/ZanzyTHEbar/globserve/globserve/filesystem"
	"github.com/ZanzyTHEbar/globserve/globserve/filesystem/common"

	"github.com/armon/go-radix"
	"github.com/rs/zerolog"
)

// PathIndex is the set of canonical file paths that may be served from a base
// directory. It is filled once by Build and only read afterwards, so any number
// of goroutines may call Resolve concurrently without locking.
//
// The paths are kept in a patricia tree keyed by canonical path; values are unused.
type PathIndex struct {
	base    string
	pattern string
	exclude filesystem.IgnoreChecker
	logger  zerolog.Logger
	tree    *radix.Tree
}

// Option configures a PathIndex
type Option func(*PathIndex)

// WithLogger sets the logger used for build diagnostics
func WithLogger(logger zerolog.Logger) Option {
	return func(idx *PathIndex) {
		idx.logger = logger
	}
}

// WithExcludes drops entries matching exclude (gitignore syntax, relative to base)
func WithExcludes(exclude filesystem.IgnoreChecker) Option {
	return func(idx *PathIndex) {
		idx.exclude = exclude
	}
}

// New creates an empty index over base. The base directory must exist and be
// readable; it is stored in canonical form. An empty pattern matches everything.
func New(base, pattern string, opts ...Option) (*PathIndex, error) {
	if err := common.ValidateDirectoryReadable(base); err != nil {
		return nil, fmt.Errorf("invalid base directory: %w", err)
	}

	canonical, err := common.Canonicalize(base)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize base directory %s: %w", base, err)
	}

	if pattern == "" {
		pattern = "*"
	}

	idx := &PathIndex{
		base:    canonical,
		pattern: pattern,
		logger:  zerolog.Nop(),
		tree:    radix.New(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Build walks the base directory and replaces the index contents with every
// matched regular file. Unreadable entries and levels are skipped, never fatal.
// It must complete before the index is shared.
func (idx *PathIndex) Build() {
	opts := []filesystem.TraverserOption{filesystem.WithTraverserLogger(idx.logger)}
	if idx.exclude != nil {
		opts = append(opts, filesystem.WithIgnore(idx.exclude))
	}
	traverser := filesystem.NewTraverser(idx.pattern, opts...)
	if !traverser.ValidPattern() {
		idx.logger.Warn().Str("pattern", idx.pattern).Msg("pattern is malformed, nothing will match")
	}

	collector := &pathCollector{tree: radix.New()}
	stats := traverser.Traverse(idx.base, collector)
	idx.tree = collector.tree

	idx.logger.Debug().
		Str("base", idx.base).
		Str("pattern", idx.pattern).
		Int("indexed", idx.tree.Len()).
		Int64("dirs", stats.DirsVisited).
		Int64("skipped", stats.EntriesSkipped+stats.LevelsSkipped).
		Msg("path index built")
}

// Resolve maps an untrusted request path to an indexed canonical path.
// The request is joined onto the base and canonicalized first; only an exact
// match of the canonical form counts. Any failure is reported as not found.
func (idx *PathIndex) Resolve(requested string) (string, bool) {
	if err := common.ValidateRequestPath(requested); err != nil {
		return "", false
	}

	// Not filepath.Join: that would clean ".." lexically before symlinks are seen.
	canonical, err := filepath.EvalSymlinks(idx.base + string(filepath.Separator) + filepath.FromSlash(requested))
	if err != nil {
		return "", false
	}

	if _, found := idx.tree.Get(canonical); !found {
		return "", false
	}
	return canonical, true
}

// Count returns the number of indexed files
func (idx *PathIndex) Count() int {
	return idx.tree.Len()
}

// Base returns the canonical base directory
func (idx *PathIndex) Base() string {
	return idx.base
}

// Pattern returns the glob pattern applied at each level
func (idx *PathIndex) Pattern() string {
	return idx.pattern
}

// Paths returns every indexed path in lexical order
func (idx *PathIndex) Paths() []string {
	paths := make([]string, 0, idx.tree.Len())
	idx.tree.Walk(func(key string, _ interface{}) bool {
		paths = append(paths, key)
		return false
	})
	return paths
}

// RelativePaths returns Paths relative to the base, slash separated
func (idx *PathIndex) RelativePaths() []string {
	paths := idx.Paths()
	for i, p := range paths {
		paths[i], _ = common.RelativeSlash(idx.base, p)
	}
	return paths
}

// pathCollector inserts traversal results into a fresh tree
type pathCollector struct {
	tree *radix.Tree
}

func (c *pathCollector) HandleDirectory(string) error {
	return nil
}

func (c *pathCollector) HandleFile(path string) error {
	c.tree.Insert(path, struct{}{})
	return nil
}
