// Package parser opens a source file, selects its grammar from the
// registry, and builds a parsed concrete-syntax tree plus the raw source
// buffer. Unsupported extensions and read failures are soft failures: they
// are reported to the caller, not panics, so bulk indexing runs never abort
// on a single bad file.
package parser

import (
	"context"
	"os"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"

	"codeindex/internal/codeerrors"
	"codeindex/internal/logging"
	"codeindex/internal/registry"
)

// Parsed bundles a parsed tree with its grammar and source buffer. Callers
// must call Close when done to release the underlying tree-sitter tree.
type Parsed struct {
	Tree    *sitter.Tree
	Source  []byte
	Grammar *registry.Grammar
	Path    string
}

// Close releases the tree-sitter tree.
func (p *Parsed) Close() {
	if p != nil && p.Tree != nil {
		p.Tree.Close()
	}
}

// ParseFile reads path, selects a grammar by extension, and parses it.
// Returns a codeerrors.KindUnsupportedLanguage error if no grammar claims
// the extension, or KindParse/KindIo for read/parse failures.
func ParseFile(ctx context.Context, reg *registry.Registry, path string) (*Parsed, error) {
	ext := filepath.Ext(path)
	grammar, ok := reg.Lookup(ext)
	if !ok {
		return nil, codeerrors.New(codeerrors.KindUnsupportedLanguage, "unsupported extension "+ext)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindIo, "read "+path, err)
	}

	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(grammar.Language)

	tree, err := sp.ParseCtx(ctx, nil, source)
	if err != nil {
		logging.Get(logging.CategoryParse).Warn("parse failed for %s: %v", path, err)
		return nil, codeerrors.Wrap(codeerrors.KindParse, "parse "+path, err)
	}

	return &Parsed{Tree: tree, Source: source, Grammar: grammar, Path: path}, nil
}
