// Package agenttools adapts the allow-listed agent tool names onto the
// query surface in internal/store, producing the result maps
// internal/agent/fold.go folds into a TaskContextDigest. This is the
// query-surface-to-tool-call bridge the agent package deliberately leaves
// to its caller.
package agenttools

import (
	"context"
	"path"
	"strings"

	"codeindex/internal/codeerrors"
	"codeindex/internal/model"
	"codeindex/internal/store"
)

// Executor builds an agent.ToolExecutor backed by st.
type Executor struct {
	st *store.Store
}

// New builds an Executor over st.
func New(st *store.Store) *Executor {
	return &Executor{st: st}
}

// Execute dispatches one allow-listed tool call. Unknown tools are rejected;
// the agent loop records those as an orchestration-layer CoverageGap.
func (e *Executor) Execute(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "search_symbols":
		return e.searchSymbols(args)
	case "find_references":
		return e.findReferences(args)
	case "analyze_call_graph":
		return e.analyzeCallGraph(args)
	case "get_file_outline":
		return e.getFileOutline(args)
	case "get_imports":
		return e.getImports(args)
	case "list_modules":
		return e.listModules(args)
	case "find_module_dependencies":
		return e.findModuleDependencies(args)
	case "get_architecture_summary":
		return e.getArchitectureSummary(args)
	case "get_stats":
		return e.getStats(args)
	case "list_dependencies":
		return e.listDependencies(args)
	case "get_dependency_info":
		return e.getDependencyInfo(args)
	case "get_dependency_source":
		return e.getDependencySource(args)
	case "get_doc_section", "get_project_compass", "get_project_commands":
		return e.getDocsPlaceholder(tool, args)
	default:
		return nil, codeerrors.New(codeerrors.KindMcp, "tool not allow-listed: "+tool)
	}
}

func argStr(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func symbolsToMaps(symbols []model.Symbol) []map[string]any {
	out := make([]map[string]any, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, map[string]any{
			"name": s.Name,
			"kind": string(s.Kind),
			"file": s.Location.FilePath,
			"line": s.Location.StartLine,
		})
	}
	return out
}

func (e *Executor) searchSymbols(args map[string]any) (map[string]any, error) {
	q := argStr(args, "query")
	symbols, err := e.st.Search(q, model.SearchOptions{Limit: 25})
	if err != nil {
		return nil, err
	}
	return map[string]any{"symbols": symbolsToMaps(symbols)}, nil
}

func (e *Executor) findReferences(args map[string]any) (map[string]any, error) {
	name := argStr(args, "name")
	refs, err := e.st.FindReferences(name, model.SearchOptions{Limit: 50})
	if err != nil {
		return nil, err
	}
	refOut := make([]map[string]any, 0, len(refs))
	for _, r := range refs {
		refOut = append(refOut, map[string]any{"file": r.FromFile, "line": r.Line, "kind": string(r.Kind)})
	}
	result := map[string]any{"references": refOut}

	if includeCallers, _ := args["include_callers"].(bool); includeCallers {
		depth := 1
		if d, ok := args["depth"].(float64); ok {
			depth = int(d)
		}
		edges, err := e.st.FindCallers(name, depth)
		if err != nil {
			return nil, err
		}
		callerOut := make([]map[string]any, 0, len(edges))
		for _, ed := range edges {
			caller := ed.From
			var callerName string
			if e.st.DB().QueryRow(`SELECT name FROM symbols WHERE id = ?`, ed.From).Scan(&callerName) == nil {
				caller = callerName
			}
			callerOut = append(callerOut, map[string]any{
				"caller": caller,
				"file":   ed.CallSite.FilePath,
				"line":   ed.CallSite.StartLine,
			})
		}
		result["callers"] = callerOut
	}
	return result, nil
}

func (e *Executor) analyzeCallGraph(args map[string]any) (map[string]any, error) {
	root := argStr(args, "root")
	if root == "" {
		root = argStr(args, "name")
	}
	maxDepth := 5
	if d, ok := args["max_depth"].(float64); ok {
		maxDepth = int(d)
	}

	entries, err := e.st.GetCallGraph(root, maxDepth)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		from, to := entry.FromName, entry.ToName
		if from == "" {
			from = entry.FromID
		}
		if to == "" {
			to = entry.ToID
		}
		out = append(out, map[string]any{"from": from, "to": to, "file": "", "line": 0})
	}
	return map[string]any{"edges": out}, nil
}

func (e *Executor) getFileOutline(args map[string]any) (map[string]any, error) {
	file := argStr(args, "file")
	symbols, err := e.st.GetFileSymbols(file)
	if err != nil {
		return nil, err
	}
	var doc string
	for _, s := range symbols {
		if s.Doc != "" {
			doc = s.Doc
			break
		}
	}
	return map[string]any{"doc": doc, "symbol_count": len(symbols)}, nil
}

func (e *Executor) getImports(args map[string]any) (map[string]any, error) {
	file := argStr(args, "file")
	imports, err := e.st.GetFileImports(file)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(imports))
	for _, im := range imports {
		out = append(out, map[string]any{"raw_path": im.RawPath, "type": string(im.Type)})
	}
	return map[string]any{"imports": out}, nil
}

// moduleOf derives a coarse "module" from a file path: its top-level
// directory relative to the workspace. A richer per-language module model
// would need manifest awareness; directory granularity is enough for the
// digest's module graph.
func moduleOf(filePath string) string {
	clean := strings.TrimPrefix(path.Clean(filePath), "/")
	parts := strings.SplitN(clean, "/", 2)
	if len(parts) == 0 {
		return "."
	}
	return parts[0]
}

func (e *Executor) listModules(args map[string]any) (map[string]any, error) {
	imports, err := e.allImports()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var modules []string
	var edges []map[string]any
	for _, im := range imports {
		m := moduleOf(im.FromFile)
		if !seen[m] {
			seen[m] = true
			modules = append(modules, m)
			edges = append(edges, map[string]any{"from": ".", "to": m})
		}
	}
	return map[string]any{"modules": modules, "edges": edges}, nil
}

func (e *Executor) findModuleDependencies(args map[string]any) (map[string]any, error) {
	imports, err := e.allImports()
	if err != nil {
		return nil, err
	}
	type key struct{ from, to string }
	seen := map[key]bool{}
	var edges []map[string]any
	for _, im := range imports {
		from := moduleOf(im.FromFile)
		to := moduleOf(im.RawPath)
		if from == "" || to == "" || from == to {
			continue
		}
		k := key{from, to}
		if seen[k] {
			continue
		}
		seen[k] = true
		edges = append(edges, map[string]any{"from": from, "to": to})
	}
	return map[string]any{"edges": edges}, nil
}

func (e *Executor) allImports() ([]model.Import, error) {
	rows, err := e.st.DB().Query(`SELECT from_file, raw_path, imported_symbol, type FROM imports`)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "list imports", err)
	}
	defer rows.Close()
	var out []model.Import
	for rows.Next() {
		var im model.Import
		var typ string
		if err := rows.Scan(&im.FromFile, &im.RawPath, &im.ImportedSymbol, &typ); err != nil {
			return nil, codeerrors.Wrap(codeerrors.KindDatabase, "scan import row", err)
		}
		im.Type = model.ImportType(typ)
		out = append(out, im)
	}
	return out, nil
}

func (e *Executor) getArchitectureSummary(args map[string]any) (map[string]any, error) {
	stats, err := e.st.GetStats("", store.StatsOptions{IncludeArchitecture: true})
	if err != nil {
		return nil, err
	}
	return map[string]any{"summary": architectureSummaryText(stats.ByLanguage, stats.FileCount)}, nil
}

func architectureSummaryText(byLanguage map[string]int, fileCount int) string {
	if len(byLanguage) == 0 {
		return "empty index"
	}
	var sb strings.Builder
	sb.WriteString("workspace spans ")
	first := true
	for lang, count := range byLanguage {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(lang)
		sb.WriteString(" (")
		sb.WriteString(itoa(count))
		sb.WriteString(" symbols)")
	}
	_ = fileCount
	return sb.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func (e *Executor) getStats(args map[string]any) (map[string]any, error) {
	stats, err := e.st.GetStats("", store.StatsOptions{})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"summary":       architectureSummaryText(stats.ByLanguage, stats.FileCount),
		"total_symbols": stats.TotalSymbols,
		"file_count":    stats.FileCount,
	}, nil
}

func depsToMaps(deps []store.Dependency) []map[string]any {
	out := make([]map[string]any, 0, len(deps))
	for _, d := range deps {
		out = append(out, map[string]any{"name": d.Name, "version": d.Version, "kind": d.Kind})
	}
	return out
}

func (e *Executor) listDependencies(args map[string]any) (map[string]any, error) {
	deps, err := e.st.ListDependencies()
	if err != nil {
		return nil, err
	}
	return map[string]any{"dependencies": depsToMaps(deps)}, nil
}

func (e *Executor) getDependencyInfo(args map[string]any) (map[string]any, error) {
	name := argStr(args, "name")
	dep, found, err := e.st.GetDependencyInfo(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{}, nil
	}
	return map[string]any{"name": dep.Name, "version": dep.Version, "kind": dep.Kind}, nil
}

// getDependencySource reports the manifest a dependency was declared in, the
// closest the read-only index comes to "source" without fetching a package
// registry.
func (e *Executor) getDependencySource(args map[string]any) (map[string]any, error) {
	name := argStr(args, "name")
	dep, found, err := e.st.GetDependencyInfo(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{}, nil
	}
	return map[string]any{"name": dep.Name, "manifest_path": dep.ManifestPath}, nil
}

// getDocsPlaceholder serves get_doc_section/get_project_compass/
// get_project_commands from recorded file-tag doc summaries; none of these
// has a dedicated backing table.
func (e *Executor) getDocsPlaceholder(tool string, args map[string]any) (map[string]any, error) {
	rows, err := e.st.DB().Query(`SELECT file_path, doc_summary FROM file_tags WHERE doc_summary != '' LIMIT 5`)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "query doc summaries for "+tool, err)
	}
	defer rows.Close()

	var sb strings.Builder
	for rows.Next() {
		var file, doc string
		if err := rows.Scan(&file, &doc); err != nil {
			return nil, err
		}
		if sb.Len() > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(file)
		sb.WriteString(": ")
		sb.WriteString(doc)
	}
	if sb.Len() == 0 {
		return map[string]any{"summary": "no documented sections found"}, nil
	}
	return map[string]any{"summary": sb.String()}, nil
}
