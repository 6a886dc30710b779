package logic

import (
	"sort"
	"testing"

	"codeindex/internal/model"
)

func edge(from, to string) model.CallGraphEdge {
	return model.CallGraphEdge{From: from, To: to, CalleeName: to, Confidence: model.Certain}
}

func TestGetCallGraphReachability(t *testing.T) {
	g, err := NewGraph([]model.CallGraphEdge{
		edge("a", "b"),
		edge("b", "c"),
		edge("c", "d"),
	}, []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatal(err)
	}

	results, err := g.GetCallGraph("a", 2)
	if err != nil {
		t.Fatalf("GetCallGraph() error = %v", err)
	}

	byTarget := make(map[string]int)
	for _, r := range results {
		if r.From != "a" {
			t.Errorf("result from %q, every entry must originate at the root", r.From)
		}
		byTarget[r.To] = r.Depth
	}
	if byTarget["b"] != 1 || byTarget["c"] != 2 {
		t.Errorf("depths = %v, want b at 1 and c at 2", byTarget)
	}
	if _, ok := byTarget["d"]; ok {
		t.Error("d is beyond max_depth=2 and must not be reported")
	}
}

func TestGetCallGraphCycle(t *testing.T) {
	g, err := NewGraph([]model.CallGraphEdge{
		edge("a", "b"),
		edge("b", "a"),
	}, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}

	results, err := g.GetCallGraph("a", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].To != "b" {
		t.Errorf("results = %+v, want only b (the root is never re-reported)", results)
	}
}

func TestGetCallGraphDefaultDepth(t *testing.T) {
	g, err := NewGraph([]model.CallGraphEdge{
		edge("a", "b"), edge("b", "c"), edge("c", "d"), edge("d", "e"),
	}, []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}

	// maxDepth <= 0 falls back to 3 hops.
	results, err := g.GetCallGraph("a", 0)
	if err != nil {
		t.Fatal(err)
	}
	var targets []string
	for _, r := range results {
		targets = append(targets, r.To)
	}
	sort.Strings(targets)
	want := []string{"b", "c", "d"}
	if len(targets) != len(want) {
		t.Fatalf("targets = %v, want %v", targets, want)
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Errorf("targets = %v, want %v", targets, want)
		}
	}
}

func TestUnresolvedEdgesContributeNoFacts(t *testing.T) {
	g, err := NewGraph([]model.CallGraphEdge{
		{From: "a", To: "", CalleeName: "external", Confidence: model.Possible, Reason: model.ReasonExternalLibrary},
	}, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	results, err := g.GetCallGraph("a", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, unresolved edges must not create reachability", results)
	}
}

func TestFindDeadCode(t *testing.T) {
	g, err := NewGraph([]model.CallGraphEdge{
		edge("a", "b"),
	}, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}

	unused, err := g.FindDeadCode()
	if err != nil {
		t.Fatalf("FindDeadCode() error = %v", err)
	}

	var got []string
	for _, u := range unused {
		got = append(got, u.Name)
	}
	sort.Strings(got)
	// a has no caller; c has no caller; b is called by a.
	want := []string{"a", "c"}
	if len(got) != len(want) {
		t.Fatalf("unused = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("unused = %v, want %v", got, want)
		}
	}
}

func TestFindDeadCodeAllUsed(t *testing.T) {
	g, err := NewGraph([]model.CallGraphEdge{
		edge("a", "b"),
		edge("b", "a"),
	}, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	unused, err := g.FindDeadCode()
	if err != nil {
		t.Fatal(err)
	}
	if len(unused) != 0 {
		t.Errorf("unused = %v, want none in a mutually recursive pair", unused)
	}
}

func TestRepeatedQueriesAreIndependent(t *testing.T) {
	g, err := NewGraph([]model.CallGraphEdge{edge("a", "b")}, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		results, err := g.GetCallGraph("a", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 {
			t.Fatalf("run %d: results = %+v, evaluation state leaked between queries", i, results)
		}
	}
}
