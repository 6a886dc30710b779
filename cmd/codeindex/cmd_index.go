package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeindex/internal/filetags"
	"codeindex/internal/indexing"
	"codeindex/internal/manifest"
	"codeindex/internal/progress"
	"codeindex/internal/registry"
	"codeindex/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Walk a directory, parse every supported file, and populate the index",
	Long: `Parses every file the language registry recognizes under path (default:
workspace root), extracts symbols/references/imports/call sites, resolves the
call graph, and records any Cargo/NPM/Gradle/Maven manifests and
.codeindex-tags.yaml sidecars found along the way.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	root := workspace
	if root == "" {
		root = "."
	}
	if len(args) == 1 {
		root = args[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := registry.New()
	tracker := progress.New()

	summary, err := indexing.IndexDirectory(ctx, reg, st, tracker, root, indexing.Options{
		IgnoreGlobs:    cfg.Walk.IgnoreGlobs,
		WorkerPoolSize: cfg.Walk.WorkerPoolSize,
	})
	if err != nil {
		return err
	}

	if err := manifest.ScanDirectory(root, st); err != nil {
		logger.Warn("manifest scan failed", zap.Error(err))
	}
	if err := filetags.ScanDirectory(root, st); err != nil {
		logger.Warn("file tag scan failed", zap.Error(err))
	}

	fmt.Printf("indexed %d files (%d skipped, %d errors): %d symbols, %d call edges\n",
		summary.FilesIndexed, summary.FilesSkipped, summary.Errors, summary.SymbolsTotal, summary.CallEdgesTotal)
	return nil
}
