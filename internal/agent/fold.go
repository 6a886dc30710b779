package agent

import (
	"fmt"

	"codeindex/internal/model"
)

// foldIntoDigest applies the tool -> digest-layer mapping table.
// Tool executors return plain map[string]any results; this function reads
// the conventional fields each tool's result is expected to carry and turns
// them into deduplicated DigestEdge entries.
func foldIntoDigest(digest *model.TaskContextDigest, tool string, args map[string]any, result map[string]any) {
	switch tool {
	case "list_modules", "find_module_dependencies":
		for _, e := range edgeList(result, "edges") {
			digest.AddDeduped("module_graph", model.DigestEdge{
				From:     str(e, "from"),
				To:       str(e, "to"),
				Relation: "depends_on",
			})
		}

	case "get_imports":
		file := str(args, "file")
		for _, e := range edgeList(result, "imports") {
			digest.AddDeduped("file_import_graph", model.DigestEdge{
				From:     file,
				To:       str(e, "raw_path"),
				Relation: "imports",
			})
		}

	case "search_symbols":
		q := str(args, "query")
		for _, e := range edgeList(result, "symbols") {
			digest.AddDeduped("symbol_interactions", model.DigestEdge{
				From:     "query:" + q,
				To:       str(e, "name"),
				Relation: "matches",
			})
		}

	case "find_references":
		name := str(args, "name")
		for _, e := range edgeList(result, "references") {
			loc := fmt.Sprintf("%s:%v", str(e, "file"), e["line"])
			digest.AddDeduped("symbol_interactions", model.DigestEdge{
				From:     loc,
				To:       name,
				Relation: "references",
				Location: loc,
			})
		}
		for _, e := range edgeList(result, "callers") {
			loc := fmt.Sprintf("%s:%v", str(e, "file"), e["line"])
			digest.AddDeduped("symbol_interactions", model.DigestEdge{
				From:     str(e, "caller"),
				To:       name,
				Relation: "calls",
				Location: loc,
			})
		}

	case "analyze_call_graph":
		for _, e := range edgeList(result, "edges") {
			loc := fmt.Sprintf("%s:%v", str(e, "file"), e["line"])
			digest.AddDeduped("symbol_interactions", model.DigestEdge{
				From:     str(e, "from"),
				To:       str(e, "to"),
				Relation: "calls",
				Location: loc,
			})
		}

	case "get_file_outline":
		file := str(args, "file")
		doc := str(result, "doc")
		if doc == "" {
			doc = str(result, "purpose")
		}
		digest.AddDeduped("docs_config_digest", model.DigestEdge{
			From:     file,
			To:       doc,
			Relation: "outline",
		})

	case "get_architecture_summary", "get_stats", "get_doc_section", "get_project_compass", "get_project_commands":
		digest.AddDeduped("docs_config_digest", model.DigestEdge{
			From:     tool,
			To:       str(result, "summary"),
			Relation: "summary",
			Extra:    map[string]string{"source": tool},
		})

	case "list_dependencies", "get_dependency_info", "get_dependency_source":
		for _, e := range edgeList(result, "dependencies") {
			digest.AddDeduped("deps_touchpoints", model.DigestEdge{
				From:     tool,
				To:       str(e, "name"),
				Relation: "depends_on",
				Extra:    map[string]string{"version": str(e, "version")},
			})
		}
		if len(result) > 0 && str(result, "name") != "" {
			digest.AddDeduped("deps_touchpoints", model.DigestEdge{
				From:     tool,
				To:       str(result, "name"),
				Relation: "depends_on",
				Extra:    map[string]string{"version": str(result, "version")},
			})
		}
	}
}

func edgeList(result map[string]any, key string) []map[string]any {
	raw, ok := result[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// synthesizeGaps builds CoverageGap/NextAction/SuggestedToolCall entries for
// every missing required layer, plus recommended follow-ups.
func synthesizeGaps(coverage model.Coverage, req Request) ([]CoverageGap, []NextAction, []SuggestedToolCall) {
	type layerTool struct {
		layer   string
		missing bool
		tool    string
		args    map[string]any
		hint    string
	}
	// Only the three required layers synthesize gaps; deps_touchpoints and
	// docs_config_digest are optional and their absence is not a gap.
	candidates := []layerTool{
		{"module_graph", !coverage.ModuleGraph, "list_modules", map[string]any{"workspace_path": inferModule(req.Query, req.File)}, "collect the module dependency graph"},
		{"file_import_graph", !coverage.FileImportGraph, "get_imports", map[string]any{"file": req.File}, "collect file-level imports"},
		{"symbol_interactions", !coverage.SymbolInteractions, "find_references", map[string]any{"name": inferSymbol(req.Query)}, "collect symbol reference/call interactions"},
	}

	var gaps []CoverageGap
	var nextActions []NextAction
	var suggested []SuggestedToolCall
	for _, c := range candidates {
		if !c.missing {
			continue
		}
		sug := SuggestedToolCall{Tool: c.tool, Args: c.args, Reason: "layer " + c.layer + " is incomplete"}
		gaps = append(gaps, CoverageGap{Layer: c.layer, Reason: "no edges collected for " + c.layer, RecommendedToolCall: sug})
		nextActions = append(nextActions, NextAction{Tool: c.tool, Args: c.args, Hint: c.hint})
		suggested = append(suggested, sug)
	}
	return gaps, nextActions, suggested
}
