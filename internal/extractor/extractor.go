// Package extractor runs a grammar's four query templates against a parsed
// tree and emits symbols, references, imports, and call sites.
package extractor

import (
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"codeindex/internal/codeerrors"
	"codeindex/internal/model"
	"codeindex/internal/parser"
)

// CallSite is a call reference preserved with its caller's enclosing scope,
// consumed later by the call analyzer.
type CallSite struct {
	CallerName string // enclosing function/method symbol name, empty if file-scope
	CallerID   string
	Node       *sitter.Node
	Location   model.Location
}

// Result is extract_all's output for one file.
type Result struct {
	Symbols    []model.Symbol
	References []model.Reference
	Imports    []model.Import
	CallSites  []CallSite
	ErrorCount int
}

// ExtractAll runs the functions/types/imports/references queries over a
// parsed tree and assembles a Result.
func ExtractAll(p *parser.Parsed) (*Result, error) {
	if !utf8.Valid(p.Source) {
		return nil, codeerrors.New(codeerrors.KindParse, "non-UTF-8 source: "+p.Path)
	}

	res := &Result{}

	symbolByByte := make(map[uint32]model.Symbol)
	seenIDs := make(map[string]bool)

	// Step 1+5: functions query.
	runQuery(p, p.Grammar.FunctionsQuery, func(captures map[string]*sitter.Node) {
		nameNode := captures["function.name"]
		declNode := captures["function.decl"]
		if nameNode == nil || declNode == nil {
			return
		}
		name := nameNode.Content(p.Source)
		if name == "" {
			return // anonymous symbols are skipped
		}
		kind := model.KindFunction
		if captures["function.receiver"] != nil {
			kind = model.KindMethod
		}
		sym := model.Symbol{
			ID:         model.ComputeSymbolID(p.Path, name, kind, declNode.StartByte()),
			Name:       name,
			Kind:       kind,
			Language:   p.Grammar.Name,
			Location:   nodeLocation(p.Path, declNode),
			Parent:     enclosingTypeName(declNode, p.Source),
			Signature:  firstLine(declNode.Content(p.Source)),
			Visibility: visibilityOf(name),
			SourceType: model.SourceProject,
		}
		if seenIDs[sym.ID] {
			return
		}
		seenIDs[sym.ID] = true
		res.Symbols = append(res.Symbols, sym)
		symbolByByte[declNode.StartByte()] = sym
	})

	// Step 2: types query.
	runQuery(p, p.Grammar.TypesQuery, func(captures map[string]*sitter.Node) {
		nameNode := captures["type.name"]
		declNode := captures["type.decl"]
		if declNode == nil {
			declNode = nameNode
		}
		if nameNode == nil || declNode == nil {
			return
		}
		name := nameNode.Content(p.Source)
		if name == "" {
			return
		}
		kind := model.KindType
		sub := typeSubKind(captures, p.Grammar.InterfaceKinds)
		sym := model.Symbol{
			ID:         model.ComputeSymbolID(p.Path, name, kind, declNode.StartByte()),
			Name:       name,
			Kind:       kind,
			Language:   p.Grammar.Name,
			Location:   nodeLocation(p.Path, declNode),
			Parent:     enclosingTypeName(declNode, p.Source),
			Signature:  firstLine(declNode.Content(p.Source)),
			Visibility: visibilityOf(name),
			SourceType: model.SourceProject,
		}
		if sub != "" {
			sym.GenericParamsJSON = `{"type_subkind":"` + sub + `"}`
		}
		// Overlapping type patterns (a struct type_spec also matches the
		// generic alias pattern) emit the same declaration twice; the first,
		// most specific match wins.
		if seenIDs[sym.ID] {
			return
		}
		seenIDs[sym.ID] = true
		res.Symbols = append(res.Symbols, sym)
		symbolByByte[declNode.StartByte()] = sym
	})

	// Step 3: imports query.
	runQuery(p, p.Grammar.ImportsQuery, func(captures map[string]*sitter.Node) {
		if wildcard := captures["import.wildcard"]; wildcard != nil {
			res.Imports = append(res.Imports, model.Import{
				FromFile: p.Path,
				RawPath:  wildcard.Content(p.Source),
				Type:     model.ImportWildcard,
			})
			return
		}
		pathNode := captures["import.path"]
		if pathNode == nil {
			return
		}
		raw := strings.Trim(pathNode.Content(p.Source), "\"'")
		res.Imports = append(res.Imports, model.Import{
			FromFile: p.Path,
			RawPath:  raw,
			Type:     model.ImportModule,
		})
	})

	// Step 4: references query (including call sites).
	runQuery(p, p.Grammar.ReferencesQuery, func(captures map[string]*sitter.Node) {
		if callNode := captures["reference.call"]; callNode != nil {
			loc := nodeLocation(p.Path, callNode)
			res.References = append(res.References, model.Reference{
				FromFile:   p.Path,
				Line:       loc.StartLine,
				Col:        loc.StartCol,
				TargetName: calleeText(callNode, p.Source),
				Kind:       model.RefCall,
			})
			caller := enclosingFunctionSymbol(callNode, p.Source, symbolByByte)
			res.CallSites = append(res.CallSites, CallSite{
				CallerName: caller.Name,
				CallerID:   caller.ID,
				Node:       callNode,
				Location:   loc,
			})
			return
		}
		if typeNode := captures["reference.type-use"]; typeNode != nil {
			loc := nodeLocation(p.Path, typeNode)
			res.References = append(res.References, model.Reference{
				FromFile:   p.Path,
				Line:       loc.StartLine,
				Col:        loc.StartCol,
				TargetName: typeNode.Content(p.Source),
				Kind:       model.RefType,
			})
		}
	})

	return res, nil
}

// runQuery compiles and executes a query template, invoking fn once per
// match with the match's captures keyed by capture name (without the
// leading '@'). Query compilation failures are silently skipped: an empty
// or unsupported template for a pass simply yields no captures for it.
func runQuery(p *parser.Parsed, queryStr string, fn func(map[string]*sitter.Node)) {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return
	}
	q, err := sitter.NewQuery([]byte(queryStr), p.Grammar.Language)
	if err != nil {
		return
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, p.Tree.RootNode())

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		captures := make(map[string]*sitter.Node, len(match.Captures))
		for _, c := range match.Captures {
			name := q.CaptureNameForId(c.Index)
			captures[name] = c.Node
		}
		fn(captures)
	}
}

func nodeLocation(path string, n *sitter.Node) model.Location {
	start := n.StartPoint()
	end := n.EndPoint()
	return model.Location{
		FilePath:  path,
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// enclosingTypeName walks ancestors to find the nearest enclosing
// type/module declaration, skipping function bodies.
func enclosingTypeName(n *sitter.Node, source []byte) string {
	cur := n.Parent()
	for cur != nil {
		t := cur.Type()
		switch t {
		case "type_spec", "struct_item", "class_declaration", "class_definition", "interface_declaration", "trait_item", "enum_item":
			if name := cur.ChildByFieldName("name"); name != nil {
				return name.Content(source)
			}
		case "impl_item":
			// Rust impl blocks name their type under the "type" field.
			if name := cur.ChildByFieldName("type"); name != nil {
				return name.Content(source)
			}
		}
		cur = cur.Parent()
	}
	return ""
}

// enclosingFunctionSymbol finds the nearest enclosing function/method symbol
// for a call site, by walking ancestors until a declaration node's start
// byte is present in the already-collected symbol table.
func enclosingFunctionSymbol(n *sitter.Node, source []byte, byByte map[uint32]model.Symbol) model.Symbol {
	cur := n.Parent()
	for cur != nil {
		switch cur.Type() {
		case "function_declaration", "method_declaration", "function_definition", "function_item", "method_definition":
			if sym, ok := byByte[cur.StartByte()]; ok {
				return sym
			}
		}
		cur = cur.Parent()
	}
	return model.Symbol{}
}

func calleeText(callNode *sitter.Node, source []byte) string {
	text := callNode.Content(source)
	// Qualified paths (a::b::c / pkg.Fn) use only the final segment.
	for _, sep := range []string{"::", "."} {
		if i := strings.LastIndex(text, sep); i >= 0 {
			text = text[i+len(sep):]
		}
	}
	if i := strings.IndexAny(text, "(<"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func visibilityOf(name string) model.Visibility {
	if name == "" {
		return model.VisPrivate
	}
	r := []rune(name)[0]
	if r >= 'A' && r <= 'Z' {
		return model.VisPublic
	}
	return model.VisPrivate
}

func typeSubKind(captures map[string]*sitter.Node, interfaceKinds []string) string {
	if captures["type.interface"] != nil {
		return "interface"
	}
	if captures["type.struct"] != nil {
		return "struct"
	}
	return ""
}
