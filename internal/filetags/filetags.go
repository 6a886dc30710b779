// Package filetags parses sidecar file-tag declarations: a small YAML file
// per directory carrying per-file tags, intent, stability, and a doc
// summary, plus a front-matter variant embedded in a leading source comment
// block. Parsed tags feed the store's file_tags rows.
package filetags

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"codeindex/internal/codeerrors"
	"codeindex/internal/model"
)

// SidecarName is the per-directory sidecar file name.
const SidecarName = ".codeindex-tags.yaml"

type sidecarEntry struct {
	Tags      []string `yaml:"tags"`
	Intent    string   `yaml:"intent"`
	Stability string   `yaml:"stability"`
	Doc       string   `yaml:"doc"`
}

// sidecarFile maps a file's base name (relative to the sidecar's directory)
// to its declared attributes.
type sidecarFile map[string]sidecarEntry

// ParseSidecar reads a .codeindex-tags.yaml file and returns one FileTag per
// entry, with FilePath resolved relative to the sidecar's directory.
func ParseSidecar(path string) ([]model.FileTag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindIo, "read "+path, err)
	}
	var sc sidecarFile
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindParse, "parse "+path, err)
	}

	dir := filepath.Dir(path)
	out := make([]model.FileTag, 0, len(sc))
	for name, entry := range sc {
		out = append(out, model.FileTag{
			FilePath:   filepath.Join(dir, name),
			Tags:       entry.Tags,
			Intent:     entry.Intent,
			Stability:  normalizeStability(entry.Stability),
			DocSummary: entry.Doc,
			Source:     model.MetaManual,
		})
	}
	return out, nil
}

// frontMatterDelim brackets a front-matter block inside a leading comment:
//
//	// ---codeindex---
//	// tags: [foo, bar]
//	// intent: parses widgets
//	// ---codeindex---
const frontMatterDelim = "---codeindex---"

// ParseFrontMatter scans the first commentLines lines of a source file for a
// front-matter block delimited by frontMatterDelim, with leading line-comment
// markers ("//", "#") stripped before YAML decoding.
func ParseFrontMatter(path string, commentLines int) (model.FileTag, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.FileTag{}, false, codeerrors.Wrap(codeerrors.KindIo, "read "+path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var block strings.Builder
	inBlock := false
	found := false
	for i := 0; i < commentLines && scanner.Scan(); i++ {
		line := stripCommentMarker(scanner.Text())
		if strings.TrimSpace(line) == frontMatterDelim {
			if inBlock {
				found = true
				break
			}
			inBlock = true
			continue
		}
		if inBlock {
			block.WriteString(line)
			block.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return model.FileTag{}, false, codeerrors.Wrap(codeerrors.KindIo, "scan "+path, err)
	}
	if !found {
		return model.FileTag{}, false, nil
	}

	var entry sidecarEntry
	if err := yaml.Unmarshal([]byte(block.String()), &entry); err != nil {
		return model.FileTag{}, false, codeerrors.Wrap(codeerrors.KindParse, "parse front matter in "+path, err)
	}
	return model.FileTag{
		FilePath:   path,
		Tags:       entry.Tags,
		Intent:     entry.Intent,
		Stability:  normalizeStability(entry.Stability),
		DocSummary: entry.Doc,
		Source:     model.MetaManual,
	}, true, nil
}

func stripCommentMarker(line string) string {
	trimmed := strings.TrimSpace(line)
	for _, marker := range []string{"//", "#", "*"} {
		if strings.HasPrefix(trimmed, marker) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, marker))
		}
	}
	return trimmed
}

func normalizeStability(s string) model.Stability {
	switch model.Stability(s) {
	case model.StabilityExperimental, model.StabilityStable, model.StabilityDeprecated:
		return model.Stability(s)
	default:
		return model.StabilityStable
	}
}
