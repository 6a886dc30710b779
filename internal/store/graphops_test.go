package store

import (
	"testing"

	"codeindex/internal/model"
)

// seedCallChain builds main -> helper -> leaf, plus an uncalled function and
// a referenced + an unreferenced type.
func seedCallChain(t *testing.T, st *Store) (main, helper, leaf, unused model.Symbol) {
	t.Helper()
	main = sym("a.go", "main", model.KindFunction, 1)
	helper = sym("a.go", "helper", model.KindFunction, 10)
	leaf = sym("a.go", "leaf", model.KindFunction, 20)
	unused = sym("a.go", "forgotten", model.KindFunction, 30)
	usedType := sym("a.go", "Used", model.KindType, 40)
	deadType := sym("a.go", "Dead", model.KindType, 50)

	refs := []model.Reference{
		// Used is referenced from another file; Dead only on its own
		// declaration line.
		{FromFile: "b.go", Line: 4, Col: 2, TargetName: "Used", Kind: model.RefType},
		{FromFile: "a.go", Line: 50, Col: 6, TargetName: "Dead", Kind: model.RefType},
	}
	edges := []model.CallGraphEdge{
		{From: main.ID, To: helper.ID, CalleeName: "helper", CallSite: model.Location{FilePath: "a.go", StartLine: 2}, Confidence: model.Certain},
		{From: helper.ID, To: leaf.ID, CalleeName: "leaf", CallSite: model.Location{FilePath: "a.go", StartLine: 12}, Confidence: model.Certain},
	}
	seedFile(t, st, "a.go", []model.Symbol{main, helper, leaf, unused, usedType, deadType}, nil, nil, edges)
	seedFile(t, st, "b.go", nil, refs, nil, nil)
	return main, helper, leaf, unused
}

func TestGetCallGraphBoundedTraversal(t *testing.T) {
	st, _ := newTestStore(t)
	_, helper, leaf, _ := seedCallChain(t, st)

	t.Run("depth one", func(t *testing.T) {
		entries, err := st.GetCallGraph("main", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].ToID != helper.ID || entries[0].Depth != 1 {
			t.Errorf("entries = %+v, want only helper at depth 1", entries)
		}
		if entries[0].ToName != "helper" {
			t.Errorf("to name = %q, want helper", entries[0].ToName)
		}
	})

	t.Run("depth two reaches the leaf", func(t *testing.T) {
		entries, err := st.GetCallGraph("main", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %+v, want helper and leaf", entries)
		}
		foundLeaf := false
		for _, e := range entries {
			if e.ToID == leaf.ID && e.Depth == 2 {
				foundLeaf = true
			}
		}
		if !foundLeaf {
			t.Error("leaf not reached at depth 2")
		}
	})

	t.Run("unknown root is empty, not an error", func(t *testing.T) {
		entries, err := st.GetCallGraph("nonexistent", 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("entries = %+v, want none", entries)
		}
	})
}

func TestGetCallGraphTerminatesOnCycles(t *testing.T) {
	st, _ := newTestStore(t)
	a := sym("c.go", "ping", model.KindFunction, 1)
	b := sym("c.go", "pong", model.KindFunction, 10)
	edges := []model.CallGraphEdge{
		{From: a.ID, To: b.ID, CalleeName: "pong", CallSite: model.Location{FilePath: "c.go", StartLine: 2}, Confidence: model.Certain},
		{From: b.ID, To: a.ID, CalleeName: "ping", CallSite: model.Location{FilePath: "c.go", StartLine: 12}, Confidence: model.Certain},
	}
	seedFile(t, st, "c.go", []model.Symbol{a, b}, nil, nil, edges)

	entries, err := st.GetCallGraph("ping", 10)
	if err != nil {
		t.Fatal(err)
	}
	// pong is reachable; the cycle back to ping must not loop forever or
	// re-report visited nodes.
	if len(entries) != 1 || entries[0].ToName != "pong" {
		t.Errorf("entries = %+v, want a single pong entry", entries)
	}
}

func TestFindDeadCode(t *testing.T) {
	st, _ := newTestStore(t)
	main, _, _, unused := seedCallChain(t, st)

	report, err := st.FindDeadCode()
	if err != nil {
		t.Fatal(err)
	}

	if report.TotalCount != len(report.UnusedFunctions)+len(report.UnusedTypes) {
		t.Errorf("total_count = %d, want |unused_functions| + |unused_types| = %d",
			report.TotalCount, len(report.UnusedFunctions)+len(report.UnusedTypes))
	}

	wantFuncs := map[string]bool{main.Name: true, unused.Name: true}
	if len(report.UnusedFunctions) != 2 {
		t.Fatalf("unused functions = %v, want main (never called) and forgotten", names(report.UnusedFunctions))
	}
	for _, f := range report.UnusedFunctions {
		if !wantFuncs[f.Name] {
			t.Errorf("unexpected unused function %s", f.Name)
		}
	}

	if len(report.UnusedTypes) != 1 || report.UnusedTypes[0].Name != "Dead" {
		t.Errorf("unused types = %v, want [Dead]", names(report.UnusedTypes))
	}
}
