// Package walker traverses a directory tree, honours ignore rules, and
// yields indexable file paths.
package walker

import (
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"codeindex/internal/codeerrors"
	"codeindex/internal/logging"
)

// Options configures a Walk call.
type Options struct {
	IgnoreGlobs []string
}

// Walk traverses root and calls fn for every regular file not matched by an
// ignore glob. fn returning an error does not abort the walk; Walk collects
// and returns the first error only after traversal completes, matching the
// indexing pipeline's "per-file errors never abort a run" requirement.
func Walk(root string, opts Options, fn func(path string) error) error {
	var firstErr error
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Get(logging.CategoryWalk).Warn("walk error at %s: %v", path, err)
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if matchesAny(rel, opts.IgnoreGlobs) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if callErr := fn(path); callErr != nil && firstErr == nil {
			firstErr = callErr
		}
		return nil
	})
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindIo, "walk "+root, err)
	}
	return firstErr
}

func matchesAny(relPath string, globs []string) bool {
	slashPath := filepath.ToSlash(relPath)
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, slashPath); ok {
			return true
		}
	}
	return false
}
