// Package model defines the core entities of the code-symbol index: symbols,
// references, imports, call-graph edges, files, and the agent's task-context digest.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SymbolKind is the closed set of symbol kinds the registry may emit.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindType     SymbolKind = "type" // class/struct/enum/interface/trait/alias
	KindModule   SymbolKind = "module"
	KindVariable SymbolKind = "variable" // also constants
	KindMacro    SymbolKind = "macro"
	KindOther    SymbolKind = "other"
)

// TypeSubKind distinguishes the type-like kinds a grammar's types query may capture.
type TypeSubKind string

const (
	TypeClass     TypeSubKind = "class"
	TypeStruct    TypeSubKind = "struct"
	TypeEnum      TypeSubKind = "enum"
	TypeInterface TypeSubKind = "interface"
	TypeTrait     TypeSubKind = "trait"
	TypeAlias     TypeSubKind = "alias"
)

// Visibility is the closed set of visibility modifiers.
type Visibility string

const (
	VisPublic    Visibility = "public"
	VisPrivate   Visibility = "private"
	VisProtected Visibility = "protected"
	VisPackage   Visibility = "package"
)

// SourceType distinguishes project-owned code from third-party dependency code.
type SourceType string

const (
	SourceProject    SourceType = "project"
	SourceDependency SourceType = "dependency"
)

// Location is a 1-based line/column span within a file.
type Location struct {
	FilePath  string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Symbol is a named, located program construct.
type Symbol struct {
	ID                string
	Name              string
	Kind              SymbolKind
	Language          string
	Location          Location
	Parent            string // enclosing type/module name, empty if top-level
	Signature         string
	Visibility        Visibility
	Doc               string
	ScopeID           string
	GenericParamsJSON string
	SourceType        SourceType
	ContentHash       string
}

// ComputeSymbolID derives a stable, content-addressed symbol id. Re-indexing
// the same (file, name, kind, start_byte) always yields the same id.
func ComputeSymbolID(filePath, name string, kind SymbolKind, startByte uint32) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d", filePath, name, kind, startByte)
	return hex.EncodeToString(h.Sum(nil))
}

// ReferenceKind is the closed set of reference classifications.
type ReferenceKind string

const (
	RefCall   ReferenceKind = "call"
	RefType   ReferenceKind = "type-use"
	RefImport ReferenceKind = "import"
	RefExtend ReferenceKind = "extend"
)

// Reference is a textual use of a name at a location. It is not required to
// resolve to a known symbol.
type Reference struct {
	FromFile   string
	Line       int
	Col        int
	TargetName string
	Kind       ReferenceKind
}

// ImportType is the closed set of import classifications.
type ImportType string

const (
	ImportModule     ImportType = "module"
	ImportSymbol     ImportType = "symbol"
	ImportWildcard   ImportType = "wildcard"
	ImportSideEffect ImportType = "side-effect"
)

// Import is a raw, unresolved import declaration.
type Import struct {
	FromFile       string
	RawPath        string
	ImportedSymbol string
	Type           ImportType
}

// Confidence is the two-level call-edge confidence model.
type Confidence string

const (
	Certain  Confidence = "certain"
	Possible Confidence = "possible"
)

// UncertaintyReason explains why a call edge is Possible rather than Certain.
type UncertaintyReason string

const (
	ReasonExternalLibrary    UncertaintyReason = "external_library"
	ReasonMultipleCandidates UncertaintyReason = "multiple_candidates"
	ReasonVirtualDispatch    UncertaintyReason = "virtual_dispatch"
	ReasonDynamicReceiver    UncertaintyReason = "dynamic_receiver"
)

// CallGraphEdge connects a caller symbol to a (possibly unresolved) callee.
type CallGraphEdge struct {
	From       string // caller symbol id
	To         string // resolved callee symbol id, empty if unresolved
	CalleeName string
	CallSite   Location
	Confidence Confidence
	Reason     UncertaintyReason
}

// File is an indexed source file.
type File struct {
	Path               string
	Language           string
	ContentHash        string
	ModTimeNanos       int64
	Size               int64
	ExportedSymbolHash string
}

// MetaSource records how a FileTag/FileMeta entry was produced.
type MetaSource string

const (
	MetaManual  MetaSource = "manual"
	MetaDerived MetaSource = "derived"
)

// Stability is the closed set of file-stability classifications.
type Stability string

const (
	StabilityExperimental Stability = "experimental"
	StabilityStable       Stability = "stable"
	StabilityDeprecated   Stability = "deprecated"
)

// FileTag is a sidecar-declared set of attributes for a file, owned by and
// deleted with that file.
type FileTag struct {
	FilePath   string
	Tags       []string
	Intent     string
	Stability  Stability
	DocSummary string
	Source     MetaSource
}

// DigestEdge is one entry in a TaskContextDigest layer.
type DigestEdge struct {
	From     string
	To       string
	Relation string
	Location string
	Extra    map[string]string
}

// CanonicalKey is the per-layer dedup key for a DigestEdge.
func (e DigestEdge) CanonicalKey() string {
	return e.From + "\x00" + e.To + "\x00" + e.Relation
}

// TaskContextDigest is the agent orchestrator's five-layer, request-scoped
// answer. It never persists.
type TaskContextDigest struct {
	ModuleGraph        []DigestEdge
	FileImportGraph    []DigestEdge
	SymbolInteractions []DigestEdge
	DepsTouchpoints    []DigestEdge
	DocsConfigDigest   []DigestEdge
}

// AddDeduped appends an edge to the named layer, skipping it if its canonical
// key is already present in that layer.
func (d *TaskContextDigest) AddDeduped(layer string, e DigestEdge) {
	layerPtr := d.layerPtr(layer)
	if layerPtr == nil {
		return
	}
	key := e.CanonicalKey()
	for _, existing := range *layerPtr {
		if existing.CanonicalKey() == key {
			return
		}
	}
	*layerPtr = append(*layerPtr, e)
}

func (d *TaskContextDigest) layerPtr(layer string) *[]DigestEdge {
	switch layer {
	case "module_graph":
		return &d.ModuleGraph
	case "file_import_graph":
		return &d.FileImportGraph
	case "symbol_interactions":
		return &d.SymbolInteractions
	case "deps_touchpoints":
		return &d.DepsTouchpoints
	case "docs_config_digest":
		return &d.DocsConfigDigest
	default:
		return nil
	}
}

// Coverage is the boolean vector over the five digest layers.
type Coverage struct {
	ModuleGraph        bool
	FileImportGraph    bool
	SymbolInteractions bool
	DepsTouchpoints    bool
	DocsConfigDigest   bool
}

// Complete reports whether the three required layers are populated.
func (c Coverage) Complete() bool {
	return c.ModuleGraph && c.FileImportGraph && c.SymbolInteractions
}

// Recompute derives coverage flags from the digest's current contents.
func (c *Coverage) Recompute(d *TaskContextDigest) {
	c.ModuleGraph = len(d.ModuleGraph) > 0
	c.FileImportGraph = len(d.FileImportGraph) > 0
	c.SymbolInteractions = len(d.SymbolInteractions) > 0
	c.DepsTouchpoints = len(d.DepsTouchpoints) > 0
	c.DocsConfigDigest = len(d.DocsConfigDigest) > 0
}

// SearchOptions filters and biases query results. Unset fields are zero
// values and are not applied as filters.
type SearchOptions struct {
	Limit          int
	KindFilter     []SymbolKind
	LanguageFilter []string
	FileFilter     string // glob
	CurrentFile    string
	Pattern        string // glob on name
}
