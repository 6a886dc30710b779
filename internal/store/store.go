// Package store implements the CodeIndex capability: an embedded relational
// store (SQLite) behind a single pooled writer connection, with versioned
// schema migrations and a rich read-only query surface.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"codeindex/internal/codeerrors"
	"codeindex/internal/logging"
	"codeindex/internal/model"
)

// Store is the CodeIndex capability. It is safe for shared read + single
// writer usage: the underlying *sql.DB pool is capped at one connection so
// SQLite's own single-writer semantics are the only serialisation needed.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path for read-write
// use, applying WAL journaling and running any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "open "+path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = NORMAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, codeerrors.Wrap(codeerrors.KindDatabase, "pragma "+p, err)
		}
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Get(logging.CategoryStore).Info("opened store at %s, schema v%d", path, CurrentSchemaVersion)
	return &Store{db: db}, nil
}

// OpenReadOnly opens path for query-only use (CLI/MCP read paths) and
// enforces that the schema is exactly CurrentSchemaVersion; a mismatch is a
// precise, user-directed error.
func OpenReadOnly(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "open read-only "+path, err)
	}
	db.SetMaxOpenConns(1)
	if err := VerifyReadCompatible(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddExtractionResultsBatch is the preferred hot path: a single transaction
// that removes any existing rows for the affected file(s) then inserts the
// new symbols/references/imports/call edges, plus the file row itself.
// Re-indexing a file twice in succession is idempotent.
func (s *Store) AddExtractionResultsBatch(file model.File, symbols []model.Symbol, refs []model.Reference, imports []model.Import, edges []model.CallGraphEdge) error {
	tx, err := s.db.Begin()
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "begin batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_path = ?`, file.Path); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "clear symbols for "+file.Path, err)
	}
	if _, err := tx.Exec(`DELETE FROM refs WHERE from_file = ?`, file.Path); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "clear refs for "+file.Path, err)
	}
	if _, err := tx.Exec(`DELETE FROM imports WHERE from_file = ?`, file.Path); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "clear imports for "+file.Path, err)
	}
	if _, err := tx.Exec(`DELETE FROM call_edges WHERE call_file = ?`, file.Path); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "clear call edges for "+file.Path, err)
	}

	if _, err := tx.Exec(`INSERT INTO files(path, language, content_hash, size, mtime_ns, exported_symbol_hash)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET language=excluded.language, content_hash=excluded.content_hash,
			size=excluded.size, mtime_ns=excluded.mtime_ns, exported_symbol_hash=excluded.exported_symbol_hash`,
		file.Path, file.Language, file.ContentHash, file.Size, file.ModTimeNanos, file.ExportedSymbolHash); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "upsert file "+file.Path, err)
	}

	for _, sym := range symbols {
		if err := insertSymbol(tx, sym); err != nil {
			return err
		}
	}
	for _, r := range refs {
		if _, err := tx.Exec(`INSERT INTO refs(from_file, line, col, target_name, kind) VALUES(?,?,?,?,?)`,
			r.FromFile, r.Line, r.Col, r.TargetName, r.Kind); err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "insert reference", err)
		}
	}
	for _, imp := range imports {
		if _, err := tx.Exec(`INSERT INTO imports(from_file, raw_path, imported_symbol, type) VALUES(?,?,?,?)`,
			imp.FromFile, imp.RawPath, imp.ImportedSymbol, imp.Type); err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "insert import", err)
		}
	}
	for _, e := range edges {
		if _, err := tx.Exec(`INSERT INTO call_edges(from_id, to_id, callee_name, call_file, call_line, call_col, confidence, reason)
			VALUES(?,?,?,?,?,?,?,?)`,
			e.From, e.To, e.CalleeName, e.CallSite.FilePath, e.CallSite.StartLine, e.CallSite.StartCol, e.Confidence, e.Reason); err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "insert call edge", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "commit batch for "+file.Path, err)
	}
	return nil
}

func insertSymbol(tx *sql.Tx, sym model.Symbol) error {
	_, err := tx.Exec(`INSERT INTO symbols(id, name, kind, language, file_path, start_line, start_col, end_line, end_col,
			parent, signature, visibility, doc, source_type, scope_id, generic_params_json, content_hash)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, kind=excluded.kind, language=excluded.language,
			file_path=excluded.file_path, start_line=excluded.start_line, start_col=excluded.start_col,
			end_line=excluded.end_line, end_col=excluded.end_col, parent=excluded.parent,
			signature=excluded.signature, visibility=excluded.visibility, doc=excluded.doc,
			source_type=excluded.source_type, scope_id=excluded.scope_id,
			generic_params_json=excluded.generic_params_json, content_hash=excluded.content_hash`,
		sym.ID, sym.Name, sym.Kind, sym.Language, sym.Location.FilePath, sym.Location.StartLine, sym.Location.StartCol,
		sym.Location.EndLine, sym.Location.EndCol, sym.Parent, sym.Signature, sym.Visibility, sym.Doc,
		sym.SourceType, sym.ScopeID, sym.GenericParamsJSON, sym.ContentHash)
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "insert symbol "+sym.Name, err)
	}
	return nil
}

// AddSymbols inserts a batch of symbols in one transaction. Rows for a file
// are not cleared first; use AddExtractionResultsBatch for re-indexing.
func (s *Store) AddSymbols(symbols []model.Symbol) error {
	tx, err := s.db.Begin()
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "begin symbol batch", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, sym := range symbols {
		if err := insertSymbol(tx, sym); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "commit symbol batch", err)
	}
	return nil
}

// AddReferences inserts a batch of references in one transaction.
func (s *Store) AddReferences(refs []model.Reference) error {
	tx, err := s.db.Begin()
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "begin reference batch", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range refs {
		if _, err := tx.Exec(`INSERT INTO refs(from_file, line, col, target_name, kind) VALUES(?,?,?,?,?)`,
			r.FromFile, r.Line, r.Col, r.TargetName, r.Kind); err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "insert reference", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "commit reference batch", err)
	}
	return nil
}

// AddImports inserts a batch of imports in one transaction.
func (s *Store) AddImports(imports []model.Import) error {
	tx, err := s.db.Begin()
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "begin import batch", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, imp := range imports {
		if _, err := tx.Exec(`INSERT INTO imports(from_file, raw_path, imported_symbol, type) VALUES(?,?,?,?)`,
			imp.FromFile, imp.RawPath, imp.ImportedSymbol, imp.Type); err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "insert import", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "commit import batch", err)
	}
	return nil
}

// DeleteFile removes a file and every row tagged with its path.
func (s *Store) DeleteFile(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range []string{
		`DELETE FROM symbols WHERE file_path = ?`,
		`DELETE FROM refs WHERE from_file = ?`,
		`DELETE FROM imports WHERE from_file = ?`,
		`DELETE FROM call_edges WHERE call_file = ?`,
		`DELETE FROM file_tags WHERE file_path = ?`,
		`DELETE FROM files WHERE path = ?`,
	} {
		if _, err := tx.Exec(stmt, path); err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "delete rows for "+path, err)
		}
	}
	return codeerrorsWrapCommit(tx, path)
}

func codeerrorsWrapCommit(tx *sql.Tx, path string) error {
	if err := tx.Commit(); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "commit delete for "+path, err)
	}
	return nil
}

// UpsertFileTag writes a sidecar FileTag row (internal/filetags collaborator).
func (s *Store) UpsertFileTag(tag model.FileTag, tagsJSON string) error {
	_, err := s.db.Exec(`INSERT INTO file_tags(file_path, tags_json, intent, stability, doc_summary, source)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(file_path) DO UPDATE SET tags_json=excluded.tags_json, intent=excluded.intent,
			stability=excluded.stability, doc_summary=excluded.doc_summary, source=excluded.source`,
		tag.FilePath, tagsJSON, tag.Intent, tag.Stability, tag.DocSummary, tag.Source)
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "upsert file tag for "+tag.FilePath, err)
	}
	return nil
}

// UpsertDependency writes a manifest-derived dependency row.
func (s *Store) UpsertDependency(name, version, kind, manifestPath string) error {
	_, err := s.db.Exec(`INSERT INTO dependencies(name, version, kind, manifest_path) VALUES(?,?,?,?)`,
		name, version, kind, manifestPath)
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "insert dependency "+name, err)
	}
	return nil
}

// ClearDependenciesFromManifest removes every dependency row previously
// recorded from manifestPath, so a re-scan of that manifest doesn't
// accumulate duplicates.
func (s *Store) ClearDependenciesFromManifest(manifestPath string) error {
	_, err := s.db.Exec(`DELETE FROM dependencies WHERE manifest_path = ?`, manifestPath)
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "clear dependencies for "+manifestPath, err)
	}
	return nil
}

// DB exposes the underlying connection for packages that build queries this
// file doesn't (e.g. internal/logic's fact loader). Read-only use only.
func (s *Store) DB() *sql.DB { return s.db }

// AddCallEdgesForFile replaces every call edge whose call site is in file
// with edges, in one transaction. Used by the indexing pipeline's second
// pass, after every file's symbols are committed and cross-file
// find_definition lookups are meaningful.
func (s *Store) AddCallEdgesForFile(file string, edges []model.CallGraphEdge) error {
	tx, err := s.db.Begin()
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "begin call-edge batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM call_edges WHERE call_file = ?`, file); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "clear call edges for "+file, err)
	}
	for _, e := range edges {
		if _, err := tx.Exec(`INSERT INTO call_edges(from_id, to_id, callee_name, call_file, call_line, call_col, confidence, reason)
			VALUES(?,?,?,?,?,?,?,?)`,
			e.From, e.To, e.CalleeName, e.CallSite.FilePath, e.CallSite.StartLine, e.CallSite.StartCol, e.Confidence, e.Reason); err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "insert call edge", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "commit call-edge batch for "+file, err)
	}
	return nil
}
