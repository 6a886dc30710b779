package filetags

import (
	"encoding/json"
	"path/filepath"

	"codeindex/internal/logging"
	"codeindex/internal/model"
	"codeindex/internal/store"
	"codeindex/internal/walker"
)

// tagSink is the subset of *store.Store the scanner needs.
type tagSink interface {
	UpsertFileTag(tag model.FileTag, tagsJSON string) error
}

// ScanDirectory walks root for .codeindex-tags.yaml sidecars and writes every
// declared entry into st as a FileTag row.
func ScanDirectory(root string, st *store.Store) error {
	return scan(root, st)
}

func scan(root string, sink tagSink) error {
	log := logging.Get(logging.CategoryStore)

	return walker.Walk(root, walker.Options{IgnoreGlobs: []string{"**/.git/**", "**/node_modules/**"}}, func(path string) error {
		if filepath.Base(path) != SidecarName {
			return nil
		}
		tags, err := ParseSidecar(path)
		if err != nil {
			log.Warn("skipping sidecar %s: %v", path, err)
			return nil
		}
		for _, t := range tags {
			tagsJSON, err := json.Marshal(t.Tags)
			if err != nil {
				return err
			}
			if err := sink.UpsertFileTag(t, string(tagsJSON)); err != nil {
				return err
			}
		}
		return nil
	})
}
