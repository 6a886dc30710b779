// Package callgraph resolves call-site nodes to callee symbols with a
// two-level confidence rubric: a syntactic receiver check, a
// virtual-dispatch marker check, and a receiver-type-filtered definition
// lookup, in that order.
package callgraph

import (
	"strings"

	"codeindex/internal/extractor"
	"codeindex/internal/model"
	"codeindex/internal/registry"
)

// DefinitionLookup resolves a name to every candidate symbol definition; it
// is the store's FindDefinition, injected so this package stays storage-
// agnostic and unit-testable without a live database.
type DefinitionLookup func(name string) ([]model.Symbol, error)

// ParentLookup resolves a definition by name constrained to a parent
// substring; it is the store's FindDefinitionByParent.
type ParentLookup func(name, parent, language string) ([]model.Symbol, error)

// Result is the call analyzer's output for one call site.
type Result struct {
	CalleeName string
	CalleeID   string // empty when unresolved
	Confidence model.Confidence
	Reason     model.UncertaintyReason
}

// dynamicLanguages are languages whose receivers are not statically typed;
// a zero-candidate lookup resolves to DynamicReceiver rather than
// ExternalLibrary for these.
var dynamicLanguages = map[string]bool{
	"python":     true,
	"javascript": true,
}

// Analyze runs the five-step rubric for one call site.
func Analyze(site extractor.CallSite, source []byte, grammar *registry.Grammar, callerParent string, findDefinition DefinitionLookup, findByParent ParentLookup) Result {
	fullText := ""
	if site.Node != nil {
		fullText = site.Node.Content(source)
	}
	receiver, identifier, ok := splitCallTarget(fullText)
	if !ok || identifier == "" {
		// Callee syntactic form cannot be extracted.
		return Result{CalleeName: "unknown", Confidence: model.Possible, Reason: model.ReasonDynamicReceiver}
	}

	// Step 2: self-reference receiver.
	if grammar.SelfToken != "" && receiver == grammar.SelfToken && callerParent != "" {
		members, err := findByParent(identifier, callerParent, grammar.Name)
		if err == nil && len(members) == 1 {
			return Result{CalleeName: identifier, CalleeID: members[0].ID, Confidence: model.Certain}
		}
	}

	// Step 3: virtual-dispatch carrier.
	if receiver != "" && isInterfaceCarrier(receiver, grammar, findDefinition) {
		return Result{CalleeName: identifier, Confidence: model.Possible, Reason: model.ReasonVirtualDispatch}
	}

	// Step 4: general definition lookup.
	candidates, err := findDefinition(identifier)
	if err != nil {
		candidates = nil
	}

	// Step 5: for languages that mark interface methods at the symbol level,
	// any interface/trait member among the candidates forces virtual dispatch,
	// regardless of how the receiver filter would otherwise narrow the set.
	if member, ok := anyInterfaceMember(candidates, grammar, findDefinition); ok {
		return Result{CalleeName: identifier, CalleeID: member.ID, Confidence: model.Possible, Reason: model.ReasonVirtualDispatch}
	}

	switch len(candidates) {
	case 0:
		reason := model.ReasonExternalLibrary
		if dynamicLanguages[grammar.Name] {
			reason = model.ReasonDynamicReceiver
		}
		return Result{CalleeName: identifier, Confidence: model.Possible, Reason: reason}
	case 1:
		return Result{CalleeName: identifier, CalleeID: candidates[0].ID, Confidence: model.Certain}
	default:
		survivors := filterByReceiverType(candidates, receiver)
		if len(survivors) == 1 {
			return Result{CalleeName: identifier, CalleeID: survivors[0].ID, Confidence: model.Certain}
		}
		return Result{CalleeName: identifier, CalleeID: candidates[0].ID, Confidence: model.Possible, Reason: model.ReasonMultipleCandidates}
	}
}

// splitCallTarget separates a call expression's text into its receiver
// (left of the last `.`/`::` before the argument list) and the called
// identifier (the final segment). A call with no receiver returns
// receiver="".
func splitCallTarget(fullText string) (receiver, identifier string, ok bool) {
	text := strings.TrimSpace(fullText)
	if i := strings.IndexAny(text, "(<"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}

	sep := ""
	lastIdx := -1
	for _, s := range []string{"::", "."} {
		if i := strings.LastIndex(text, s); i > lastIdx {
			lastIdx = i
			sep = s
		}
	}
	if lastIdx < 0 {
		return "", text, true
	}
	return strings.TrimSpace(text[:lastIdx]), strings.TrimSpace(text[lastIdx+len(sep):]), true
}

// filterByReceiverType prefers candidates whose parent textually contains
// the receiver's text: lower-case substring, either direction. A typed
// resolver would supersede this heuristic; none exists, since type
// inference is out of scope.
func filterByReceiverType(candidates []model.Symbol, receiver string) []model.Symbol {
	if receiver == "" {
		return nil
	}
	recv := strings.ToLower(receiver)
	var out []model.Symbol
	for _, c := range candidates {
		parent := strings.ToLower(c.Parent)
		if parent == "" {
			continue
		}
		if strings.Contains(parent, recv) || strings.Contains(recv, parent) {
			out = append(out, c)
		}
	}
	return out
}

// isInterfaceCarrier reports whether receiver's textual form names a
// declared interface/trait symbol for this language.
func isInterfaceCarrier(receiver string, grammar *registry.Grammar, findDefinition DefinitionLookup) bool {
	if len(grammar.InterfaceKinds) == 0 {
		return false
	}
	defs, err := findDefinition(receiver)
	if err != nil {
		return false
	}
	for _, d := range defs {
		if d.Kind == model.KindType && strings.Contains(d.GenericParamsJSON, `"interface"`) {
			return true
		}
	}
	return false
}

// anyInterfaceMember scans the full, unfiltered candidate set for a member
// of an interface/trait type and returns the first one found. Only
// meaningful for languages that mark interface methods at the symbol level.
func anyInterfaceMember(candidates []model.Symbol, grammar *registry.Grammar, findDefinition DefinitionLookup) (model.Symbol, bool) {
	if len(grammar.InterfaceKinds) == 0 {
		return model.Symbol{}, false
	}
	for _, c := range candidates {
		if strings.Contains(c.GenericParamsJSON, `"interface"`) {
			return c, true
		}
		if c.Parent == "" {
			continue
		}
		parentDefs, err := findDefinition(c.Parent)
		if err != nil {
			continue
		}
		for _, p := range parentDefs {
			if p.Kind == model.KindType && strings.Contains(p.GenericParamsJSON, `"interface"`) {
				return c, true
			}
		}
	}
	return model.Symbol{}, false
}
