// Package registry is the static, immutable mapping from file extension to a
// LanguageGrammar capability. Adding a language is a data entry, not a new
// code path: each grammar carries a CST handle plus four tree-query
// templates (functions, types, imports, references).
package registry

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Grammar is the LanguageGrammar capability: a name, the extensions it
// claims, a CST engine handle, and four query templates.
type Grammar struct {
	Name       string
	Extensions []string
	Language   *sitter.Language

	// Query templates, one per extractor pass. Capture names carry the
	// classification the extractor dispatches on (e.g. @function.name,
	// @type.struct, @import.wildcard, @reference.call).
	FunctionsQuery  string
	TypesQuery      string
	ImportsQuery    string
	ReferencesQuery string

	// SelfToken is the language's self-reference token used by the call
	// analyzer's receiver check: "self" for Python/Rust, "this" for JS/TS.
	SelfToken string

	// InterfaceKinds lists the symbol kinds this language marks at the
	// symbol level as interface-like; calls resolving into them are always
	// virtual dispatch.
	InterfaceKinds []string
}

// Registry is the process-wide, immutable extension -> Grammar table. It is
// constructed once and shared by reference; no mutation is permitted after
// first use.
type Registry struct {
	byExt map[string]*Grammar
}

// New builds the registry with every built-in grammar.
func New() *Registry {
	r := &Registry{byExt: make(map[string]*Grammar)}
	for _, g := range builtins() {
		g := g
		for _, ext := range g.Extensions {
			r.byExt[ext] = g
		}
	}
	return r
}

// Lookup returns the grammar registered for a file extension (including the
// leading dot, e.g. ".go"), and whether one was found.
func (r *Registry) Lookup(ext string) (*Grammar, bool) {
	g, ok := r.byExt[ext]
	return g, ok
}

// Languages returns the distinct set of registered language names.
func (r *Registry) Languages() []string {
	seen := make(map[string]bool)
	var names []string
	for _, g := range r.byExt {
		if !seen[g.Name] {
			seen[g.Name] = true
			names = append(names, g.Name)
		}
	}
	return names
}

func builtins() []*Grammar {
	return []*Grammar{
		{
			Name:       "go",
			Extensions: []string{".go"},
			Language:   golang.GetLanguage(),
			FunctionsQuery: `
				(function_declaration name: (identifier) @function.name) @function.decl
				(method_declaration receiver: (parameter_list) @function.receiver name: (field_identifier) @function.name) @function.decl`,
			TypesQuery: `
				(type_spec name: (type_identifier) @type.name type: (struct_type) @type.struct) @type.decl
				(type_spec name: (type_identifier) @type.name type: (interface_type) @type.interface) @type.decl
				(type_spec name: (type_identifier) @type.name) @type.decl`,
			ImportsQuery: `
				(import_spec_list (import_spec path: (interpreted_string_literal) @import.path) @import.spec)
				(import_spec path: (interpreted_string_literal) @import.path) @import.spec`,
			ReferencesQuery: `
				(call_expression function: (_) @reference.call)
				(type_identifier) @reference.type-use`,
			SelfToken:      "",
			InterfaceKinds: []string{"interface"},
		},
		{
			Name:       "python",
			Extensions: []string{".py"},
			Language:   python.GetLanguage(),
			FunctionsQuery: `
				(function_definition name: (identifier) @function.name) @function.decl`,
			TypesQuery: `
				(class_definition name: (identifier) @type.name) @type.decl`,
			ImportsQuery: `
				(import_statement name: (dotted_name) @import.path) @import.spec
				(import_from_statement module_name: (dotted_name) @import.path) @import.spec
				(wildcard_import) @import.wildcard`,
			ReferencesQuery: `
				(call function: (_) @reference.call)
				(attribute) @reference.type-use`,
			SelfToken:      "self",
			InterfaceKinds: []string{},
		},
		{
			Name:       "javascript",
			Extensions: []string{".js", ".jsx", ".mjs"},
			Language:   javascript.GetLanguage(),
			FunctionsQuery: `
				(function_declaration name: (identifier) @function.name) @function.decl
				(method_definition name: (property_identifier) @function.name) @function.decl`,
			TypesQuery: `
				(class_declaration name: (identifier) @type.name) @type.decl`,
			ImportsQuery: `
				(import_statement source: (string) @import.path) @import.spec`,
			ReferencesQuery: `
				(call_expression function: (_) @reference.call)
				(new_expression constructor: (_) @reference.type-use)`,
			SelfToken:      "this",
			InterfaceKinds: []string{},
		},
		{
			Name:       "typescript",
			Extensions: []string{".ts", ".tsx"},
			Language:   typescript.GetLanguage(),
			FunctionsQuery: `
				(function_declaration name: (identifier) @function.name) @function.decl
				(method_definition name: (property_identifier) @function.name) @function.decl`,
			TypesQuery: `
				(class_declaration name: (type_identifier) @type.name) @type.decl
				(interface_declaration name: (type_identifier) @type.name) @type.interface`,
			ImportsQuery: `
				(import_statement source: (string) @import.path) @import.spec`,
			ReferencesQuery: `
				(call_expression function: (_) @reference.call)
				(new_expression constructor: (_) @reference.type-use)`,
			SelfToken:      "this",
			InterfaceKinds: []string{"interface"},
		},
		{
			Name:       "rust",
			Extensions: []string{".rs"},
			Language:   rust.GetLanguage(),
			FunctionsQuery: `
				(function_item name: (identifier) @function.name) @function.decl`,
			TypesQuery: `
				(struct_item name: (type_identifier) @type.name) @type.struct
				(enum_item name: (type_identifier) @type.name) @type.decl
				(trait_item name: (type_identifier) @type.name) @type.interface`,
			ImportsQuery: `
				(use_declaration argument: (_) @import.path) @import.spec`,
			ReferencesQuery: `
				(call_expression function: (_) @reference.call)
				(type_identifier) @reference.type-use`,
			SelfToken:      "self",
			InterfaceKinds: []string{"trait"},
		},
	}
}
