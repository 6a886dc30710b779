package store

import (
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"codeindex/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, path
}

func sym(file, name string, kind model.SymbolKind, line int) model.Symbol {
	return model.Symbol{
		ID:       model.ComputeSymbolID(file, name, kind, uint32(line)),
		Name:     name,
		Kind:     kind,
		Language: "go",
		Location: model.Location{FilePath: file, StartLine: line, StartCol: 1, EndLine: line + 2, EndCol: 1},
	}
}

func seedFile(t *testing.T, st *Store, file string, symbols []model.Symbol, refs []model.Reference, imports []model.Import, edges []model.CallGraphEdge) {
	t.Helper()
	f := model.File{Path: file, Language: "go", ContentHash: "h-" + file}
	if err := st.AddExtractionResultsBatch(f, symbols, refs, imports, edges); err != nil {
		t.Fatalf("AddExtractionResultsBatch(%s) error = %v", file, err)
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	st, _ := newTestStore(t)
	if v := GetSchemaVersion(st.db); v != CurrentSchemaVersion {
		t.Errorf("schema version after open = %d, want %d", v, CurrentSchemaVersion)
	}
}

func TestBatchInsertAndFileSymbols(t *testing.T) {
	st, _ := newTestStore(t)
	const file = "src/a.go"
	symbols := []model.Symbol{
		sym(file, "main", model.KindFunction, 1),
		sym(file, "Cfg", model.KindType, 5),
	}
	seedFile(t, st, file, symbols, nil, nil, nil)

	got, err := st.GetFileSymbols(file)
	if err != nil {
		t.Fatalf("GetFileSymbols() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d symbols, want 2", len(got))
	}
	for _, s := range got {
		if s.Location.FilePath != file {
			t.Errorf("symbol %s has file_path %q, want %q", s.Name, s.Location.FilePath, file)
		}
	}
}

func TestAddBatches(t *testing.T) {
	st, _ := newTestStore(t)

	if err := st.AddSymbols([]model.Symbol{sym("x.go", "solo", model.KindFunction, 1)}); err != nil {
		t.Fatalf("AddSymbols() error = %v", err)
	}
	if err := st.AddReferences([]model.Reference{{FromFile: "x.go", Line: 2, Col: 1, TargetName: "solo", Kind: model.RefCall}}); err != nil {
		t.Fatalf("AddReferences() error = %v", err)
	}
	if err := st.AddImports([]model.Import{{FromFile: "x.go", RawPath: "fmt", Type: model.ImportModule}}); err != nil {
		t.Fatalf("AddImports() error = %v", err)
	}

	defs, err := st.FindDefinition("solo")
	if err != nil || len(defs) != 1 {
		t.Errorf("FindDefinition = (%v, %v)", defs, err)
	}
	refs, err := st.FindReferences("solo", model.SearchOptions{Limit: -1})
	if err != nil || len(refs) != 1 {
		t.Errorf("FindReferences = (%v, %v)", refs, err)
	}
	imports, err := st.GetFileImports("x.go")
	if err != nil || len(imports) != 1 {
		t.Errorf("GetFileImports = (%v, %v)", imports, err)
	}
}

func TestReindexIsIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	const file = "src/a.go"
	symbols := []model.Symbol{sym(file, "main", model.KindFunction, 1)}
	refs := []model.Reference{{FromFile: file, Line: 2, Col: 3, TargetName: "helper", Kind: model.RefCall}}

	seedFile(t, st, file, symbols, refs, nil, nil)
	seedFile(t, st, file, symbols, refs, nil, nil)

	got, err := st.GetFileSymbols(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("re-index accumulated rows: %d symbols, want 1", len(got))
	}

	gotRefs, err := st.FindReferences("helper", model.SearchOptions{Limit: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(gotRefs) != 1 {
		t.Errorf("re-index accumulated rows: %d references, want 1", len(gotRefs))
	}
}

func TestDeleteFileCascades(t *testing.T) {
	st, _ := newTestStore(t)
	const file = "src/gone.go"
	seedFile(t, st, file,
		[]model.Symbol{sym(file, "orphan", model.KindFunction, 1)},
		[]model.Reference{{FromFile: file, Line: 1, Col: 1, TargetName: "x", Kind: model.RefCall}},
		[]model.Import{{FromFile: file, RawPath: "fmt", Type: model.ImportModule}},
		nil)

	if err := st.DeleteFile(file); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}

	syms, _ := st.GetFileSymbols(file)
	if len(syms) != 0 {
		t.Error("symbols survived file deletion")
	}
	imports, _ := st.GetFileImports(file)
	if len(imports) != 0 {
		t.Error("imports survived file deletion")
	}
	refs, _ := st.FindReferences("x", model.SearchOptions{Limit: -1})
	if len(refs) != 0 {
		t.Error("references survived file deletion")
	}
}

func TestFindDefinition(t *testing.T) {
	st, _ := newTestStore(t)
	seedFile(t, st, "a.go", []model.Symbol{sym("a.go", "parse_file", model.KindFunction, 1)}, nil, nil, nil)

	defs, err := st.FindDefinition("parse_file")
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 1 || defs[0].Name != "parse_file" {
		t.Errorf("FindDefinition = %v, want the single parse_file symbol", defs)
	}

	// A missing symbol is an empty result, not an error.
	missing, err := st.FindDefinition("nope")
	if err != nil {
		t.Errorf("missing definition should not error, got %v", err)
	}
	if missing == nil || len(missing) != 0 {
		t.Errorf("missing definition = %v, want empty non-nil slice", missing)
	}
}

func TestFindDefinitionByParent(t *testing.T) {
	st, _ := newTestStore(t)
	run1 := sym("a.go", "run", model.KindMethod, 1)
	run1.Parent = "Server"
	run2 := sym("b.go", "run", model.KindMethod, 1)
	run2.Parent = "Client"
	seedFile(t, st, "a.go", []model.Symbol{run1}, nil, nil, nil)
	seedFile(t, st, "b.go", []model.Symbol{run2}, nil, nil, nil)

	got, err := st.FindDefinitionByParent("run", "Server", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Parent != "Server" {
		t.Errorf("got %v, want only the Server member", got)
	}

	// Parent matching is case-sensitive substring.
	got, err = st.FindDefinitionByParent("run", "server", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("lower-case parent matched %v, the filter is case-sensitive", got)
	}
}

func TestFindDefinitionSubsetOfSearch(t *testing.T) {
	st, _ := newTestStore(t)
	seedFile(t, st, "a.go", []model.Symbol{
		sym("a.go", "walk", model.KindFunction, 1),
		sym("a.go", "walker", model.KindType, 5),
	}, nil, nil, nil)

	defs, err := st.FindDefinition("walk")
	if err != nil {
		t.Fatal(err)
	}
	all, err := st.Search("walk", model.SearchOptions{Limit: -1})
	if err != nil {
		t.Fatal(err)
	}

	inSearch := make(map[string]bool, len(all))
	for _, s := range all {
		inSearch[s.ID] = true
	}
	for _, d := range defs {
		if !inSearch[d.ID] {
			t.Errorf("definition %s missing from unlimited search results", d.Name)
		}
	}
}

func TestGetSymbolMembers(t *testing.T) {
	st, _ := newTestStore(t)
	m := sym("a.go", "start", model.KindMethod, 3)
	m.Parent = "Engine"
	seedFile(t, st, "a.go", []model.Symbol{sym("a.go", "Engine", model.KindType, 1), m}, nil, nil, nil)

	members, err := st.GetSymbolMembers("Engine")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].Name != "start" {
		t.Errorf("members = %v, want [start]", members)
	}
}

func TestListFunctionsAndTypes(t *testing.T) {
	st, _ := newTestStore(t)
	seedFile(t, st, "a.go", []model.Symbol{
		sym("a.go", "run", model.KindFunction, 1),
		sym("a.go", "Runner", model.KindType, 5),
		sym("a.go", "count", model.KindVariable, 9),
	}, nil, nil, nil)

	funcs, err := st.ListFunctions(ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(funcs) != 1 || funcs[0].Name != "run" {
		t.Errorf("ListFunctions = %v, want [run]", funcs)
	}

	types, err := st.ListTypes(ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 1 || types[0].Name != "Runner" {
		t.Errorf("ListTypes = %v, want [Runner]", types)
	}

	none, err := st.ListFunctions(ListOptions{Language: "rust"})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("language filter leaked results: %v", none)
	}
}

func TestGetStats(t *testing.T) {
	st, dbPath := newTestStore(t)
	seedFile(t, st, "a.go", []model.Symbol{
		sym("a.go", "run", model.KindFunction, 1),
		sym("a.go", "Cfg", model.KindType, 5),
	}, nil, nil, nil)

	stats, err := st.GetStats(dbPath, StatsOptions{IncludeDeps: true, IncludeArchitecture: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSymbols != 2 {
		t.Errorf("total_symbols = %d, want 2", stats.TotalSymbols)
	}
	if stats.ByKind["function"] != 1 || stats.ByKind["type"] != 1 {
		t.Errorf("by-kind histogram = %v", stats.ByKind)
	}
	if stats.ByLanguage["go"] != 2 {
		t.Errorf("by-language histogram = %v", stats.ByLanguage)
	}
	if stats.FileCount != 1 {
		t.Errorf("file_count = %d, want 1", stats.FileCount)
	}
	if stats.IndexByteSize == 0 {
		t.Error("index byte size should reflect the database file")
	}
	if stats.Deps == nil || stats.Architecture == nil {
		t.Error("requested sub-reports missing")
	}
}

func TestFileTagLifecycle(t *testing.T) {
	st, _ := newTestStore(t)
	const file = "tagged.go"
	seedFile(t, st, file, []model.Symbol{sym(file, "f", model.KindFunction, 1)}, nil, nil, nil)

	tag := model.FileTag{FilePath: file, Intent: "parses widgets", Stability: model.StabilityStable, DocSummary: "widget parser", Source: model.MetaManual}
	if err := st.UpsertFileTag(tag, `["parser"]`); err != nil {
		t.Fatal(err)
	}

	// FileTag rows are owned by the file and deleted with it.
	if err := st.DeleteFile(file); err != nil {
		t.Fatal(err)
	}
	var count int
	if err := st.db.QueryRow(`SELECT COUNT(*) FROM file_tags WHERE file_path = ?`, file).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("file tag survived file deletion")
	}
}

func TestDependencies(t *testing.T) {
	st, _ := newTestStore(t)
	if err := st.UpsertDependency("serde", "1.0.200", "dependency", "Cargo.toml"); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertDependency("tokio", "1.38.0", "dependency", "Cargo.toml"); err != nil {
		t.Fatal(err)
	}

	deps, err := st.ListDependencies()
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 {
		t.Fatalf("listed %d dependencies, want 2", len(deps))
	}

	dep, found, err := st.GetDependencyInfo("serde")
	if err != nil || !found {
		t.Fatalf("GetDependencyInfo = (%v, %v, %v)", dep, found, err)
	}
	if dep.Version != "1.0.200" || dep.ManifestPath != "Cargo.toml" {
		t.Errorf("dependency = %+v", dep)
	}

	// Re-scanning a manifest replaces, not accumulates.
	if err := st.ClearDependenciesFromManifest("Cargo.toml"); err != nil {
		t.Fatal(err)
	}
	deps, _ = st.ListDependencies()
	if len(deps) != 0 {
		t.Errorf("clear left %d rows", len(deps))
	}
}
