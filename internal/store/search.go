package store

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"codeindex/internal/codeerrors"
	"codeindex/internal/model"
)

// effectiveLimit maps opts.Limit onto a truncation bound: a positive value
// truncates at exactly N, zero yields no results, and a negative value
// disables truncation. Defaults are the call sites' concern.
func effectiveLimit(opts model.SearchOptions) int {
	return opts.Limit
}

// kindPriority ranks function/method first, type second, everything else
// last, used as the ranking tie-breaker in Search.
func kindPriority(k model.SymbolKind) int {
	switch k {
	case model.KindFunction, model.KindMethod:
		return 0
	case model.KindType:
		return 1
	default:
		return 2
	}
}

func scanSymbol(rows *sql.Rows) (model.Symbol, error) {
	var sym model.Symbol
	err := rows.Scan(&sym.ID, &sym.Name, &sym.Kind, &sym.Language, &sym.Location.FilePath,
		&sym.Location.StartLine, &sym.Location.StartCol, &sym.Location.EndLine, &sym.Location.EndCol,
		&sym.Parent, &sym.Signature, &sym.Visibility, &sym.Doc, &sym.SourceType, &sym.ScopeID,
		&sym.GenericParamsJSON, &sym.ContentHash)
	return sym, err
}

const symbolColumns = `id, name, kind, language, file_path, start_line, start_col, end_line, end_col,
	parent, signature, visibility, doc, source_type, scope_id, generic_params_json, content_hash`

func (s *Store) queryAllSymbols() ([]model.Symbol, error) {
	rows, err := s.db.Query(`SELECT ` + symbolColumns + ` FROM symbols`)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "query symbols", err)
	}
	defer rows.Close()
	var out []model.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, codeerrors.Wrap(codeerrors.KindDatabase, "scan symbol", err)
		}
		out = append(out, sym)
	}
	return out, nil
}

func applyFilters(symbols []model.Symbol, opts model.SearchOptions) []model.Symbol {
	var out []model.Symbol
	for _, sym := range symbols {
		if len(opts.KindFilter) > 0 && !kindIn(sym.Kind, opts.KindFilter) {
			continue
		}
		if len(opts.LanguageFilter) > 0 && !stringIn(sym.Language, opts.LanguageFilter) {
			continue
		}
		if opts.FileFilter != "" && !globMatch(opts.FileFilter, sym.Location.FilePath) {
			continue
		}
		if opts.Pattern != "" && !globMatch(opts.Pattern, sym.Name) {
			continue
		}
		out = append(out, sym)
	}
	return out
}

func kindIn(k model.SymbolKind, set []model.SymbolKind) bool {
	for _, x := range set {
		if x == k {
			return true
		}
	}
	return false
}

func stringIn(v string, set []string) bool {
	for _, x := range set {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	ok, err := matchGlobOrPlain(pattern, name)
	return err == nil && ok
}

// Search ranks results: exact-prefix > substring, with kind priority and
// current-file promotion as secondary keys.
func (s *Store) Search(query string, opts model.SearchOptions) ([]model.Symbol, error) {
	limit := effectiveLimit(opts)
	if limit == 0 {
		return []model.Symbol{}, nil
	}

	all, err := s.queryAllSymbols()
	if err != nil {
		return nil, err
	}
	filtered := applyFilters(all, opts)

	q := strings.ToLower(query)
	type scored struct {
		sym   model.Symbol
		score int // lower is better
	}
	var candidates []scored
	for _, sym := range filtered {
		name := strings.ToLower(sym.Name)
		var score int
		switch {
		case strings.HasPrefix(name, q):
			score = 0
		case strings.Contains(name, q):
			score = 1
		default:
			continue
		}
		candidates = append(candidates, scored{sym: sym, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score < b.score
		}
		if opts.CurrentFile != "" {
			ai := a.sym.Location.FilePath == opts.CurrentFile
			bi := b.sym.Location.FilePath == opts.CurrentFile
			if ai != bi {
				return ai
			}
		}
		return kindPriority(a.sym.Kind) < kindPriority(b.sym.Kind)
	})

	var out []model.Symbol
	for _, c := range candidates {
		out = append(out, c.sym)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SearchFuzzy tolerates insertions, deletions, and swaps. A match must share
// at least one 2-gram with the query; results are ordered by similarity.
func (s *Store) SearchFuzzy(query string, opts model.SearchOptions) ([]model.Symbol, error) {
	limit := effectiveLimit(opts)
	if limit == 0 {
		return []model.Symbol{}, nil
	}

	all, err := s.queryAllSymbols()
	if err != nil {
		return nil, err
	}
	filtered := applyFilters(all, opts)

	q := strings.ToLower(query)
	qGrams := bigrams(q)

	type scored struct {
		sym   model.Symbol
		score float64
	}
	var candidates []scored
	for _, sym := range filtered {
		name := strings.ToLower(sym.Name)
		if !shareBigram(qGrams, bigrams(name)) {
			continue
		}
		sim, err := edlib.StringsSimilarity(q, name, edlib.Levenshtein)
		if err != nil {
			continue
		}
		candidates = append(candidates, scored{sym: sym, score: float64(sim)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var out []model.Symbol
	for _, c := range candidates {
		out = append(out, c.sym)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func bigrams(s string) map[string]bool {
	out := make(map[string]bool)
	r := []rune(s)
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])] = true
	}
	return out
}

func shareBigram(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0 // allowed only when neither string has a 2-gram
	}
	for g := range a {
		if b[g] {
			return true
		}
	}
	return false
}

// FindDefinition returns every symbol named exactly name. A missing symbol
// is not an error: it returns an empty slice.
func (s *Store) FindDefinition(name string) ([]model.Symbol, error) {
	rows, err := s.db.Query(`SELECT `+symbolColumns+` FROM symbols WHERE name = ?`, name)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "find_definition "+name, err)
	}
	defer rows.Close()
	var out []model.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, codeerrors.Wrap(codeerrors.KindDatabase, "scan symbol", err)
		}
		out = append(out, sym)
	}
	if out == nil {
		out = []model.Symbol{}
	}
	return out, nil
}

// FindDefinitionByParent narrows FindDefinition by a parent substring match
// (case-sensitive) and optional language.
func (s *Store) FindDefinitionByParent(name string, parent, language string) ([]model.Symbol, error) {
	all, err := s.FindDefinition(name)
	if err != nil {
		return nil, err
	}
	var out []model.Symbol
	for _, sym := range all {
		if parent != "" && !strings.Contains(sym.Parent, parent) {
			continue
		}
		if language != "" && !strings.EqualFold(sym.Language, language) {
			continue
		}
		out = append(out, sym)
	}
	if out == nil {
		out = []model.Symbol{}
	}
	return out, nil
}

// FindReferences returns references targeting name.
func (s *Store) FindReferences(name string, opts model.SearchOptions) ([]model.Reference, error) {
	rows, err := s.db.Query(`SELECT from_file, line, col, target_name, kind FROM refs WHERE target_name = ?`, name)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "find_references "+name, err)
	}
	defer rows.Close()
	var out []model.Reference
	for rows.Next() {
		var r model.Reference
		if err := rows.Scan(&r.FromFile, &r.Line, &r.Col, &r.TargetName, &r.Kind); err != nil {
			return nil, codeerrors.Wrap(codeerrors.KindDatabase, "scan reference", err)
		}
		out = append(out, r)
	}
	limit := effectiveLimit(opts)
	if limit == 0 {
		out = nil
	} else if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []model.Reference{}
	}
	return out, nil
}

// FindCallers returns call edges whose callee_name is name, optionally
// following edges up to depth hops through intermediate callers.
func (s *Store) FindCallers(name string, depth int) ([]model.CallGraphEdge, error) {
	if depth <= 0 {
		depth = 1
	}
	visited := make(map[string]bool)
	frontier := []string{name}
	var out []model.CallGraphEdge
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, calleeName := range frontier {
			rows, err := s.db.Query(`SELECT from_id, to_id, callee_name, call_file, call_line, call_col, confidence, reason
				FROM call_edges WHERE callee_name = ?`, calleeName)
			if err != nil {
				return nil, codeerrors.Wrap(codeerrors.KindDatabase, "find_callers "+name, err)
			}
			var level []model.CallGraphEdge
			for rows.Next() {
				e, err := scanEdge(rows)
				if err != nil {
					rows.Close()
					return nil, err
				}
				level = append(level, e)
			}
			rows.Close()
			for _, e := range level {
				out = append(out, e)
				callerName := symbolNameByID(s.db, e.From)
				if callerName != "" && !visited[callerName] {
					visited[callerName] = true
					next = append(next, callerName)
				}
			}
		}
		frontier = next
	}
	if out == nil {
		out = []model.CallGraphEdge{}
	}
	return out, nil
}

// FindCallees returns call edges originating from the symbol named name.
func (s *Store) FindCallees(name string) ([]model.CallGraphEdge, error) {
	defs, err := s.FindDefinition(name)
	if err != nil {
		return nil, err
	}
	var out []model.CallGraphEdge
	for _, def := range defs {
		rows, err := s.db.Query(`SELECT from_id, to_id, callee_name, call_file, call_line, call_col, confidence, reason
			FROM call_edges WHERE from_id = ?`, def.ID)
		if err != nil {
			return nil, codeerrors.Wrap(codeerrors.KindDatabase, "find_callees "+name, err)
		}
		for rows.Next() {
			e, err := scanEdge(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, e)
		}
		rows.Close()
	}
	if out == nil {
		out = []model.CallGraphEdge{}
	}
	return out, nil
}

func scanEdge(rows *sql.Rows) (model.CallGraphEdge, error) {
	var e model.CallGraphEdge
	err := rows.Scan(&e.From, &e.To, &e.CalleeName, &e.CallSite.FilePath, &e.CallSite.StartLine, &e.CallSite.StartCol, &e.Confidence, &e.Reason)
	if err != nil {
		return e, codeerrors.Wrap(codeerrors.KindDatabase, "scan call edge", err)
	}
	return e, nil
}

func symbolNameByID(db *sql.DB, id string) string {
	if id == "" {
		return ""
	}
	var name string
	_ = db.QueryRow(`SELECT name FROM symbols WHERE id = ?`, id).Scan(&name)
	return name
}

// AllCallEdges returns every call edge, used by internal/logic to build its
// fact store for get_call_graph / find_dead_code.
func (s *Store) AllCallEdges() ([]model.CallGraphEdge, error) {
	rows, err := s.db.Query(`SELECT from_id, to_id, callee_name, call_file, call_line, call_col, confidence, reason FROM call_edges`)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "all call edges", err)
	}
	defer rows.Close()
	var out []model.CallGraphEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FindImplementations returns concrete symbols whose parent names the given
// interface/trait symbol name. The relation is syntactic, not type-checked.
func (s *Store) FindImplementations(name string) ([]model.Symbol, error) {
	rows, err := s.db.Query(`SELECT `+symbolColumns+` FROM symbols WHERE parent = ? AND kind IN ('method')`, name)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "find_implementations "+name, err)
	}
	defer rows.Close()
	var out []model.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	if out == nil {
		out = []model.Symbol{}
	}
	return out, nil
}

// GetFileSymbols returns every symbol declared in file F; each result's
// location carries F as its file path.
func (s *Store) GetFileSymbols(path string) ([]model.Symbol, error) {
	rows, err := s.db.Query(`SELECT `+symbolColumns+` FROM symbols WHERE file_path = ?`, path)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "get_file_symbols "+path, err)
	}
	defer rows.Close()
	var out []model.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	if out == nil {
		out = []model.Symbol{}
	}
	return out, nil
}

// GetFileImports returns raw imports declared by file F.
func (s *Store) GetFileImports(path string) ([]model.Import, error) {
	rows, err := s.db.Query(`SELECT from_file, raw_path, imported_symbol, type FROM imports WHERE from_file = ?`, path)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "get_file_imports "+path, err)
	}
	defer rows.Close()
	var out []model.Import
	for rows.Next() {
		var imp model.Import
		if err := rows.Scan(&imp.FromFile, &imp.RawPath, &imp.ImportedSymbol, &imp.Type); err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	if out == nil {
		out = []model.Import{}
	}
	return out, nil
}

// GetFileImporters returns files that import the given raw path.
func (s *Store) GetFileImporters(rawPath string) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT from_file FROM imports WHERE raw_path = ?`, rawPath)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "get_file_importers "+rawPath, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// FileMetrics summarises a file's symbol composition.
type FileMetrics struct {
	SymbolCount   int
	FunctionCount int
	TypeCount     int
}

// GetFileMetrics derives simple size metrics for a file.
func (s *Store) GetFileMetrics(path string) (FileMetrics, error) {
	syms, err := s.GetFileSymbols(path)
	if err != nil {
		return FileMetrics{}, err
	}
	m := FileMetrics{SymbolCount: len(syms)}
	for _, sym := range syms {
		switch sym.Kind {
		case model.KindFunction, model.KindMethod:
			m.FunctionCount++
		case model.KindType:
			m.TypeCount++
		}
	}
	return m, nil
}

// ListOptions filters list_functions / list_types.
type ListOptions struct {
	Language string
	FileGlob string
	Kind     model.SymbolKind
	Pattern  string
	Limit    int
}

// ListFunctions returns function/method symbols, filterable.
func (s *Store) ListFunctions(opts ListOptions) ([]model.Symbol, error) {
	return s.listByKinds(opts, []model.SymbolKind{model.KindFunction, model.KindMethod})
}

// ListTypes returns type symbols, filterable.
func (s *Store) ListTypes(opts ListOptions) ([]model.Symbol, error) {
	return s.listByKinds(opts, []model.SymbolKind{model.KindType})
}

func (s *Store) listByKinds(opts ListOptions, kinds []model.SymbolKind) ([]model.Symbol, error) {
	all, err := s.queryAllSymbols()
	if err != nil {
		return nil, err
	}
	searchOpts := model.SearchOptions{
		KindFilter: kinds,
		Pattern:    opts.Pattern,
		FileFilter: opts.FileGlob,
	}
	if opts.Language != "" {
		searchOpts.LanguageFilter = []string{opts.Language}
	}
	if opts.Kind != "" {
		searchOpts.KindFilter = []model.SymbolKind{opts.Kind}
	}
	filtered := applyFilters(all, searchOpts)
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	if filtered == nil {
		filtered = []model.Symbol{}
	}
	return filtered, nil
}

// FunctionMetrics reports simple size metrics for one function symbol.
type FunctionMetrics struct {
	LineCount   int
	CalleeCount int
	CallerCount int
}

// GetFunctionMetrics derives line span and fan-in/fan-out for a function.
func (s *Store) GetFunctionMetrics(name string) (FunctionMetrics, error) {
	defs, err := s.FindDefinition(name)
	if err != nil {
		return FunctionMetrics{}, err
	}
	if len(defs) == 0 {
		return FunctionMetrics{}, codeerrors.New(codeerrors.KindSymbolNotFound, "no such function: "+name)
	}
	sym := defs[0]
	callees, err := s.FindCallees(name)
	if err != nil {
		return FunctionMetrics{}, err
	}
	callers, err := s.FindCallers(name, 1)
	if err != nil {
		return FunctionMetrics{}, err
	}
	return FunctionMetrics{
		LineCount:   sym.Location.EndLine - sym.Location.StartLine + 1,
		CalleeCount: len(callees),
		CallerCount: len(callers),
	}, nil
}

// GetSymbolMembers returns child symbols whose parent is name (fields,
// methods, interface methods).
func (s *Store) GetSymbolMembers(name string) ([]model.Symbol, error) {
	rows, err := s.db.Query(`SELECT `+symbolColumns+` FROM symbols WHERE parent = ?`, name)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "get_symbol_members "+name, err)
	}
	defer rows.Close()
	var out []model.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	if out == nil {
		out = []model.Symbol{}
	}
	return out, nil
}

// matchGlobOrPlain matches using doublestar glob semantics; callers pass
// either a real glob or a plain substring-free name.
func matchGlobOrPlain(pattern, name string) (bool, error) {
	return globCompat(pattern, name)
}
