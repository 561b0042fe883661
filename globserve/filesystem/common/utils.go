package common

import (
	"path/filepath"
	"strings"
)

// Canonicalize returns the absolute path of p with every symlink, "." and ".."
// resolved against the real filesystem. It fails if any component does not exist.
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// IsSubpath reports whether child equals parent or lies below it.
// Both arguments must already be canonical; no filesystem access happens here.
func IsSubpath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RelativeSlash returns target relative to base using forward slashes,
// the form gitignore matchers expect.
func RelativeSlash(base, target string) (string, bool) {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
