// Package indexing drives the end-to-end pipeline: walk(dir) -> [path],
// then per path in a worker pool, parse -> extract -> batched store write;
// a second pass resolves call sites to callee symbols against the now-
// populated store.
package indexing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"codeindex/internal/callgraph"
	"codeindex/internal/codeerrors"
	"codeindex/internal/extractor"
	"codeindex/internal/logging"
	"codeindex/internal/model"
	"codeindex/internal/parser"
	"codeindex/internal/progress"
	"codeindex/internal/registry"
	"codeindex/internal/store"
	"codeindex/internal/walker"
)

// Options configures an indexing run.
type Options struct {
	IgnoreGlobs    []string
	WorkerPoolSize int // 0 => runtime.GOMAXPROCS
}

// Summary reports the outcome of an indexing run.
type Summary struct {
	FilesIndexed   int
	FilesSkipped   int
	SymbolsTotal   int
	CallEdgesTotal int
	Errors         int
}

// fileWork carries one file's extraction output through to the second pass.
type fileWork struct {
	path   string
	file   model.File
	result *extractor.Result
	source []byte
	parsed *parser.Parsed
}

// IndexDirectory walks root, parses and extracts every file the registry
// claims, writes symbols/references/imports in a first pass, then resolves
// call edges against the populated store in a second pass.
func IndexDirectory(ctx context.Context, reg *registry.Registry, st *store.Store, tracker *progress.Tracker, root string, opts Options) (Summary, error) {
	var paths []string
	if err := walker.Walk(root, walker.Options{IgnoreGlobs: opts.IgnoreGlobs}, func(path string) error {
		paths = append(paths, path)
		return nil
	}); err != nil {
		return Summary{}, err
	}

	if tracker != nil {
		tracker.Start(len(paths))
		defer tracker.Stop()
	}

	poolSize := opts.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = runtime.GOMAXPROCS(0)
	}

	var (
		mu      sync.Mutex
		works   []fileWork
		summary Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			w, skip, err := parseAndExtract(gctx, reg, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors++
				if tracker != nil {
					tracker.ErrorOccurred()
				}
				logging.Get(logging.CategoryExtract).Warn("extract failed for %s: %v", path, err)
				return nil // per-file errors never abort a run
			}
			if skip {
				summary.FilesSkipped++
				if tracker != nil {
					tracker.FileProcessed()
				}
				return nil
			}
			works = append(works, w)
			summary.FilesIndexed++
			summary.SymbolsTotal += len(w.result.Symbols)
			if tracker != nil {
				tracker.FileProcessed()
				tracker.SymbolsExtracted(len(w.result.Symbols))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	// First pass: write symbols/references/imports for every file, with no
	// call edges yet (those need the store populated to resolve cross-file
	// targets).
	for _, w := range works {
		if err := st.AddExtractionResultsBatch(w.file, w.result.Symbols, w.result.References, w.result.Imports, nil); err != nil {
			return summary, err
		}
	}

	// Second pass: resolve call sites against the now-populated store.
	for _, w := range works {
		edges := resolveCallEdges(w, st)
		if err := st.AddCallEdgesForFile(w.path, edges); err != nil {
			return summary, err
		}
		summary.CallEdgesTotal += len(edges)
	}

	for _, w := range works {
		w.parsed.Close()
	}

	return summary, nil
}

func parseAndExtract(ctx context.Context, reg *registry.Registry, path string) (fileWork, bool, error) {
	parsed, err := parser.ParseFile(ctx, reg, path)
	if err != nil {
		if codeerrors.Is(err, codeerrors.KindUnsupportedLanguage) {
			return fileWork{}, true, nil // soft-skip, not an error
		}
		return fileWork{}, false, err
	}

	result, err := extractor.ExtractAll(parsed)
	if err != nil {
		parsed.Close()
		return fileWork{}, false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		parsed.Close()
		return fileWork{}, false, codeerrors.Wrap(codeerrors.KindIo, "stat "+path, err)
	}

	file := model.File{
		Path:               path,
		Language:           parsed.Grammar.Name,
		ContentHash:        contentHash(parsed.Source),
		ModTimeNanos:       info.ModTime().UnixNano(),
		Size:               info.Size(),
		ExportedSymbolHash: exportedSymbolHash(result.Symbols),
	}

	return fileWork{path: path, file: file, result: result, source: parsed.Source, parsed: parsed}, false, nil
}

func contentHash(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// exportedSymbolHash hashes the set of public symbol names, used to detect
// interface churn across re-indexes.
func exportedSymbolHash(symbols []model.Symbol) string {
	h := sha256.New()
	for _, sym := range symbols {
		if sym.Visibility == model.VisPublic {
			h.Write([]byte(sym.Name))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// resolveCallEdges runs the call analyzer over every call site extracted
// from one file.
func resolveCallEdges(w fileWork, st *store.Store) []model.CallGraphEdge {
	grammar := w.parsed.Grammar

	parentByID := make(map[string]string, len(w.result.Symbols))
	for _, sym := range w.result.Symbols {
		parentByID[sym.ID] = sym.Parent
	}

	var edges []model.CallGraphEdge
	for _, site := range w.result.CallSites {
		callerParent := parentByID[site.CallerID]
		res := callgraph.Analyze(site, w.source, grammar, callerParent, st.FindDefinition, st.FindDefinitionByParent)
		edges = append(edges, model.CallGraphEdge{
			From:       site.CallerID,
			To:         res.CalleeID,
			CalleeName: res.CalleeName,
			CallSite:   site.Location,
			Confidence: res.Confidence,
			Reason:     res.Reason,
		})
	}
	return edges
}
