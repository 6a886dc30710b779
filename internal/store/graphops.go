package store

import (
	"codeindex/internal/codeerrors"
	"codeindex/internal/logic"
	"codeindex/internal/model"
)

// CallGraphEntry is one reachable edge in a bounded call-graph traversal,
// with both endpoints resolved to names where the symbols are known.
type CallGraphEntry struct {
	FromID   string
	FromName string
	ToID     string
	ToName   string
	Depth    int
}

// GetCallGraph returns every symbol reachable from the definition(s) of
// root within maxDepth hops. Traversal is bounded breadth-first over
// persisted edge tuples; cycles terminate via the underlying visited set.
// An unknown root yields an empty result, not an error.
func (s *Store) GetCallGraph(root string, maxDepth int) ([]CallGraphEntry, error) {
	defs, err := s.FindDefinition(root)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return []CallGraphEntry{}, nil
	}

	edges, err := s.AllCallEdges()
	if err != nil {
		return nil, err
	}
	declared, err := s.allSymbolIDs()
	if err != nil {
		return nil, err
	}

	graph, err := logic.NewGraph(edges, declared)
	if err != nil {
		return nil, err
	}

	var out []CallGraphEntry
	seen := make(map[string]bool)
	for _, def := range defs {
		results, err := graph.GetCallGraph(def.ID, maxDepth)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if seen[r.From+"\x00"+r.To] {
				continue
			}
			seen[r.From+"\x00"+r.To] = true
			out = append(out, CallGraphEntry{
				FromID:   r.From,
				FromName: symbolNameByID(s.db, r.From),
				ToID:     r.To,
				ToName:   symbolNameByID(s.db, r.To),
				Depth:    r.Depth,
			})
		}
	}
	if out == nil {
		out = []CallGraphEntry{}
	}
	return out, nil
}

// DeadCodeReport partitions never-used symbols by kind. The invariant
// TotalCount = len(UnusedFunctions) + len(UnusedTypes) always holds.
type DeadCodeReport struct {
	UnusedFunctions []model.Symbol
	UnusedTypes     []model.Symbol
	TotalCount      int
}

// FindDeadCode reports declared functions with no incoming call edge and
// declared types with no type-use reference outside their own declaration.
func (s *Store) FindDeadCode() (DeadCodeReport, error) {
	all, err := s.queryAllSymbols()
	if err != nil {
		return DeadCodeReport{}, err
	}

	edges, err := s.AllCallEdges()
	if err != nil {
		return DeadCodeReport{}, err
	}
	var funcIDs []string
	byID := make(map[string]model.Symbol, len(all))
	for _, sym := range all {
		byID[sym.ID] = sym
		if sym.Kind == model.KindFunction || sym.Kind == model.KindMethod {
			funcIDs = append(funcIDs, sym.ID)
		}
	}

	graph, err := logic.NewGraph(edges, funcIDs)
	if err != nil {
		return DeadCodeReport{}, err
	}
	unused, err := graph.FindDeadCode()
	if err != nil {
		return DeadCodeReport{}, err
	}

	report := DeadCodeReport{}
	for _, u := range unused {
		if sym, ok := byID[u.Name]; ok {
			report.UnusedFunctions = append(report.UnusedFunctions, sym)
		}
	}

	for _, sym := range all {
		if sym.Kind != model.KindType {
			continue
		}
		used, err := s.typeIsReferenced(sym)
		if err != nil {
			return DeadCodeReport{}, err
		}
		if !used {
			report.UnusedTypes = append(report.UnusedTypes, sym)
		}
	}

	report.TotalCount = len(report.UnusedFunctions) + len(report.UnusedTypes)
	return report, nil
}

// typeIsReferenced reports whether any type-use reference targets sym from
// outside its own declaration line (the declaration itself captures its own
// identifier in most grammars).
func (s *Store) typeIsReferenced(sym model.Symbol) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM refs
		WHERE target_name = ? AND kind = ?
		AND NOT (from_file = ? AND line = ?)`,
		sym.Name, string(model.RefType), sym.Location.FilePath, sym.Location.StartLine).Scan(&count)
	if err != nil {
		return false, codeerrors.Wrap(codeerrors.KindDatabase, "count type references for "+sym.Name, err)
	}
	return count > 0, nil
}

func (s *Store) allSymbolIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM symbols`)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "list symbol ids", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, codeerrors.Wrap(codeerrors.KindDatabase, "scan symbol id", err)
		}
		out = append(out, id)
	}
	return out, nil
}
