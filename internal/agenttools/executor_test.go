package agenttools

import (
	"context"
	"path/filepath"
	"testing"

	"codeindex/internal/model"
	"codeindex/internal/store"
)

func newSeededStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	mainSym := model.Symbol{
		ID: "id-main", Name: "main", Kind: model.KindFunction, Language: "rust",
		Location: model.Location{FilePath: "src/main.rs", StartLine: 1, StartCol: 1, EndLine: 3, EndCol: 1},
	}
	runSym := model.Symbol{
		ID: "id-run", Name: "run", Kind: model.KindFunction, Language: "rust",
		Location: model.Location{FilePath: "core/app.rs", StartLine: 1, StartCol: 1, EndLine: 5, EndCol: 1},
	}
	refs := []model.Reference{
		{FromFile: "src/main.rs", Line: 2, Col: 5, TargetName: "run", Kind: model.RefCall},
	}
	imports := []model.Import{
		{FromFile: "src/main.rs", RawPath: "core/app", Type: model.ImportModule},
	}
	edges := []model.CallGraphEdge{
		{From: "id-main", To: "id-run", CalleeName: "run",
			CallSite: model.Location{FilePath: "src/main.rs", StartLine: 2, StartCol: 5}, Confidence: model.Certain},
	}

	f1 := model.File{Path: "src/main.rs", Language: "rust"}
	if err := st.AddExtractionResultsBatch(f1, []model.Symbol{mainSym}, refs, imports, edges); err != nil {
		t.Fatal(err)
	}
	f2 := model.File{Path: "core/app.rs", Language: "rust"}
	if err := st.AddExtractionResultsBatch(f2, []model.Symbol{runSym}, nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertDependency("serde", "1.0.200", "dependency", "Cargo.toml"); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestExecuteSearchSymbols(t *testing.T) {
	exec := New(newSeededStore(t))
	res, err := exec.Execute(context.Background(), "search_symbols", map[string]any{"query": "run"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	symbols, ok := res["symbols"].([]map[string]any)
	if !ok || len(symbols) == 0 {
		t.Fatalf("result = %v, want symbols", res)
	}
	if symbols[0]["name"] != "run" {
		t.Errorf("first symbol = %v", symbols[0])
	}
}

func TestExecuteFindReferences(t *testing.T) {
	exec := New(newSeededStore(t))
	res, err := exec.Execute(context.Background(), "find_references",
		map[string]any{"name": "run", "include_callers": true, "depth": float64(2)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	refs := res["references"].([]map[string]any)
	if len(refs) != 1 || refs[0]["file"] != "src/main.rs" {
		t.Errorf("references = %v", refs)
	}
	callers, ok := res["callers"].([]map[string]any)
	if !ok || len(callers) == 0 {
		t.Errorf("callers = %v, want the recorded call edge", res["callers"])
	}
}

func TestExecuteAnalyzeCallGraph(t *testing.T) {
	exec := New(newSeededStore(t))
	res, err := exec.Execute(context.Background(), "analyze_call_graph",
		map[string]any{"root": "main", "max_depth": float64(2)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	edges := res["edges"].([]map[string]any)
	if len(edges) != 1 {
		t.Fatalf("edges = %v, want main -> run", edges)
	}
	if edges[0]["from"] != "main" || edges[0]["to"] != "run" {
		t.Errorf("edge = %v", edges[0])
	}
}

func TestExecuteGetImports(t *testing.T) {
	exec := New(newSeededStore(t))
	res, err := exec.Execute(context.Background(), "get_imports", map[string]any{"file": "src/main.rs"})
	if err != nil {
		t.Fatal(err)
	}
	imports := res["imports"].([]map[string]any)
	if len(imports) != 1 || imports[0]["raw_path"] != "core/app" {
		t.Errorf("imports = %v", imports)
	}
}

func TestExecuteListModules(t *testing.T) {
	exec := New(newSeededStore(t))
	res, err := exec.Execute(context.Background(), "list_modules", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	modules, ok := res["modules"].([]string)
	if !ok || len(modules) == 0 {
		t.Fatalf("modules = %v", res["modules"])
	}
	edges, ok := res["edges"].([]map[string]any)
	if !ok || len(edges) != len(modules) {
		t.Errorf("edges = %v, want one edge per module", res["edges"])
	}
}

func TestExecuteFindModuleDependencies(t *testing.T) {
	exec := New(newSeededStore(t))
	res, err := exec.Execute(context.Background(), "find_module_dependencies", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	edges, _ := res["edges"].([]map[string]any)
	found := false
	for _, e := range edges {
		if e["from"] == "src" && e["to"] == "core" {
			found = true
		}
	}
	if !found {
		t.Errorf("edges = %v, want src -> core from the recorded import", edges)
	}
}

func TestExecuteDependencyTools(t *testing.T) {
	exec := New(newSeededStore(t))

	res, err := exec.Execute(context.Background(), "list_dependencies", nil)
	if err != nil {
		t.Fatal(err)
	}
	deps := res["dependencies"].([]map[string]any)
	if len(deps) != 1 || deps[0]["name"] != "serde" {
		t.Errorf("dependencies = %v", deps)
	}

	res, err = exec.Execute(context.Background(), "get_dependency_info", map[string]any{"name": "serde"})
	if err != nil {
		t.Fatal(err)
	}
	if res["version"] != "1.0.200" {
		t.Errorf("info = %v", res)
	}

	res, err = exec.Execute(context.Background(), "get_dependency_source", map[string]any{"name": "serde"})
	if err != nil {
		t.Fatal(err)
	}
	if res["manifest_path"] != "Cargo.toml" {
		t.Errorf("source = %v", res)
	}

	res, err = exec.Execute(context.Background(), "get_dependency_info", map[string]any{"name": "absent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("missing dependency should yield an empty result, got %v", res)
	}
}

func TestExecuteStatsAndSummary(t *testing.T) {
	exec := New(newSeededStore(t))

	res, err := exec.Execute(context.Background(), "get_stats", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res["total_symbols"] != 2 {
		t.Errorf("stats = %v", res)
	}

	res, err = exec.Execute(context.Background(), "get_architecture_summary", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res["summary"] == "" {
		t.Error("summary should not be empty for a populated index")
	}
}

func TestExecuteUnknownToolRejected(t *testing.T) {
	exec := New(newSeededStore(t))
	if _, err := exec.Execute(context.Background(), "drop_tables", nil); err == nil {
		t.Error("unknown tool must be rejected")
	}
}

func TestModuleOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"src/main.rs", "src"},
		{"core/app.rs", "core"},
		{"/abs/path.go", "abs"},
		{"single.go", "single.go"},
	}
	for _, tt := range tests {
		if got := moduleOf(tt.path); got != tt.want {
			t.Errorf("moduleOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
