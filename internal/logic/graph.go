// Package logic evaluates the index's two graph-closure queries
// (call-graph reachability and dead-code detection) as Datalog programs
// over google/mangle. Only genuine transitive-closure and negation queries
// live here; the call analyzer's sequential heuristics stay plain Go.
package logic

import (
	"fmt"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"codeindex/internal/codeerrors"
	"codeindex/internal/model"
)

// Graph holds calls(From, To) and declared(Symbol) EDB facts; each query
// evaluates its own fixed Datalog program against a fresh copy of them, so
// repeated queries on one Graph never see another query's derived facts.
type Graph struct {
	baseFacts []ast.Atom
}

// NewGraph builds the EDB fact set from the store's call edges and declared
// symbol keys; the store passes symbol ids, the same strings its edges use.
func NewGraph(edges []model.CallGraphEdge, declaredNames []string) (*Graph, error) {
	var facts []ast.Atom
	for _, e := range edges {
		if e.From == "" || e.To == "" {
			continue // unresolved edges contribute no calls(_, _) fact
		}
		facts = append(facts, ast.NewAtom("calls", ast.String(e.From), ast.String(e.To)))
	}
	for _, name := range declaredNames {
		facts = append(facts, ast.NewAtom("declared", ast.String(name)))
	}
	return &Graph{baseFacts: facts}, nil
}

func (g *Graph) freshStore() factstore.FactStore {
	store := factstore.NewSimpleInMemoryStore()
	for _, f := range g.baseFacts {
		store.Add(f)
	}
	return store
}

// CallGraphResult is one discovered edge from root, at a given hop
// distance.
type CallGraphResult struct {
	From  string
	To    string
	Depth int
}

// GetCallGraph returns every symbol reachable from root within maxDepth
// hops, by evaluating a depth-unrolled Datalog program. Mangle has no
// native recursion-depth cap, so each hop gets its own rule.
func (g *Graph) GetCallGraph(root string, maxDepth int) ([]CallGraphResult, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}

	var sb strings.Builder
	sb.WriteString("reach_0(X, X) :- declared(X).\n")
	for d := 1; d <= maxDepth; d++ {
		fmt.Fprintf(&sb, "reach_%d(X, Y) :- reach_%d(X, Z), calls(Z, Y).\n", d, d-1)
	}

	programInfo, err := analyze(sb.String())
	if err != nil {
		return nil, err
	}

	evalStore := g.freshStore()
	if _, err := engine.EvalProgramWithStats(programInfo, evalStore); err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindIndex, "evaluate call-graph program", err)
	}

	visited := map[string]int{root: 0}
	var out []CallGraphResult
	for d := 1; d <= maxDepth; d++ {
		predName := fmt.Sprintf("reach_%d", d)
		pred, ok := findPredicate(programInfo, predName)
		if !ok {
			continue
		}
		evalErr := evalStore.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
			if len(a.Args) != 2 {
				return nil
			}
			from, okF := constString(a.Args[0])
			to, okT := constString(a.Args[1])
			if !okF || !okT || from != root {
				return nil
			}
			if prev, seen := visited[to]; !seen || prev > d {
				visited[to] = d
				out = append(out, CallGraphResult{From: root, To: to, Depth: d})
			}
			return nil
		})
		if evalErr != nil {
			return nil, codeerrors.Wrap(codeerrors.KindIndex, "read call-graph facts", evalErr)
		}
	}
	return out, nil
}

// DeadCodeResult names a declared symbol with no incoming call edge.
type DeadCodeResult struct {
	Name string
}

// FindDeadCode returns declared symbols that are never called, via Datalog
// negation: unused(X) :- declared(X), !called(X).
func (g *Graph) FindDeadCode() ([]DeadCodeResult, error) {
	program := `
		called(X) :- calls(_, X).
		unused(X) :- declared(X), !called(X).
	`
	programInfo, err := analyze(program)
	if err != nil {
		return nil, err
	}

	evalStore := g.freshStore()
	if _, err := engine.EvalProgramWithStats(programInfo, evalStore); err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindIndex, "evaluate dead-code program", err)
	}

	pred, ok := findPredicate(programInfo, "unused")
	if !ok {
		return nil, nil
	}
	var out []DeadCodeResult
	if err := evalStore.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
		if len(a.Args) != 1 {
			return nil
		}
		if name, ok := constString(a.Args[0]); ok {
			out = append(out, DeadCodeResult{Name: name})
		}
		return nil
	}); err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindIndex, "read dead-code facts", err)
	}
	return out, nil
}

func analyze(program string) (*analysis.ProgramInfo, error) {
	// calls/2 and declared/1 come from freshStore, not from rules, so they
	// are declared ahead of every program.
	const edbDecls = "Decl calls(From, To).\nDecl declared(Symbol).\n"
	parsed, err := parse.Unit(strings.NewReader(edbDecls + program))
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindParse, "parse datalog program", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(parsed, nil)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindIndex, "analyze datalog program", err)
	}
	return programInfo, nil
}

func findPredicate(info *analysis.ProgramInfo, name string) (ast.PredicateSym, bool) {
	for pred := range info.Decls {
		if pred.Symbol == name {
			return pred, true
		}
	}
	return ast.PredicateSym{}, false
}

func constString(t ast.BaseTerm) (string, bool) {
	c, ok := t.(ast.Constant)
	if !ok {
		return "", false
	}
	return c.Symbol, true
}

