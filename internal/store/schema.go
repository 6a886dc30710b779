// Schema migrations for the embedded relational store. Migrations are
// append-only and ordered; never edit an earlier one.
package store

import (
	"database/sql"
	"fmt"

	"codeindex/internal/codeerrors"
	"codeindex/internal/logging"
)

// CurrentSchemaVersion is the schema revision this binary expects.
const CurrentSchemaVersion = 9

type migrationFunc func(tx *sql.Tx) error

// migrations is the ordered, append-only list. Index i applies schema
// version i+1.
var migrations = []migrationFunc{
	migrateV1BaseSchema,
	migrateV2SourceType,
	migrateV3ScopeColumns,
	migrateV4StableSymbolID,
	migrateV5ContentHash,
	migrateV6FileTagsIntent,
	migrateV7ExtendedSymbolMeta,
	migrateV8DefinitionIndex,
	migrateV9FilePrefilterMeta,
}

// RunMigrations applies every migration with version > current, each in its
// own transaction, advancing schema_version after each success.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	if err := ensureMetaTable(db); err != nil {
		return err
	}

	current := GetSchemaVersion(db)
	logging.Get(logging.CategoryStore).Info("schema at version %d, target %d", current, CurrentSchemaVersion)

	for i := current; i < len(migrations); i++ {
		step := migrations[i]
		tx, err := db.Begin()
		if err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "begin migration tx", err)
		}
		if err := step(tx); err != nil {
			_ = tx.Rollback()
			return codeerrors.Wrap(codeerrors.KindIndex, fmt.Sprintf("migration step %d failed", i+1), err)
		}
		if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value`, fmt.Sprintf("%d", i+1)); err != nil {
			_ = tx.Rollback()
			return codeerrors.Wrap(codeerrors.KindDatabase, "advance schema_version", err)
		}
		if err := tx.Commit(); err != nil {
			return codeerrors.Wrap(codeerrors.KindDatabase, "commit migration", err)
		}
		logging.Get(logging.CategoryStore).Info("applied migration to schema version %d", i+1)
	}
	return nil
}

func ensureMetaTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindDatabase, "create meta table", err)
	}
	return nil
}

// GetSchemaVersion reads meta.schema_version, falling back to table/column
// probing for databases created before schema_version existed.
func GetSchemaVersion(db *sql.DB) int {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&value)
	if err == nil {
		var v int
		if _, scanErr := fmt.Sscanf(value, "%d", &v); scanErr == nil {
			return v
		}
	}
	return inferSchemaVersion(db)
}

// inferSchemaVersion assigns a version to pre-versioning databases by
// probing for column/table presence, in reverse migration order.
func inferSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "symbols") {
		return 0
	}
	if columnExists(db, "files", "mtime_ns") {
		return 9
	}
	if indexExists(db, "idx_symbols_definition") {
		return 8
	}
	if columnExists(db, "symbols", "generic_params_json") {
		return 7
	}
	if columnExists(db, "file_tags", "intent") {
		return 6
	}
	if columnExists(db, "symbols", "content_hash") {
		return 5
	}
	if indexExists(db, "idx_symbols_id_unique") {
		return 4
	}
	if columnExists(db, "symbols", "scope_id") {
		return 3
	}
	if columnExists(db, "symbols", "source_type") {
		return 2
	}
	return 1
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	return err == nil && count > 0
}

func indexExists(db *sql.DB, name string) bool {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?`, name).Scan(&count)
	return err == nil && count > 0
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk) == nil && name == column {
			return true
		}
	}
	return false
}

func addColumnIfMissing(tx *sql.Tx, table, column, def string) error {
	rows, err := tx.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return err
	}
	exists := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk) == nil && name == column {
			exists = true
		}
	}
	rows.Close()
	if exists {
		return nil
	}
	_, err = tx.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, def))
	return err
}

// migrateV1BaseSchema creates the base tables.
func migrateV1BaseSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			language TEXT,
			content_hash TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS symbols (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			language TEXT,
			file_path TEXT NOT NULL,
			start_line INTEGER,
			start_col INTEGER,
			end_line INTEGER,
			end_col INTEGER,
			parent TEXT,
			signature TEXT,
			visibility TEXT,
			doc TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS refs (
			from_file TEXT NOT NULL,
			line INTEGER,
			col INTEGER,
			target_name TEXT,
			kind TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS imports (
			from_file TEXT NOT NULL,
			raw_path TEXT,
			imported_symbol TEXT,
			type TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS call_edges (
			from_id TEXT,
			to_id TEXT,
			callee_name TEXT,
			call_file TEXT,
			call_line INTEGER,
			call_col INTEGER,
			confidence TEXT,
			reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_file ON refs(from_file)`,
		`CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(from_file)`,
		`CREATE INDEX IF NOT EXISTS idx_call_edges_from ON call_edges(from_id)`,
		`CREATE INDEX IF NOT EXISTS idx_call_edges_to ON call_edges(to_id)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func migrateV2SourceType(tx *sql.Tx) error {
	return addColumnIfMissing(tx, "symbols", "source_type", "TEXT DEFAULT 'project'")
}

func migrateV3ScopeColumns(tx *sql.Tx) error {
	return addColumnIfMissing(tx, "symbols", "scope_id", "TEXT DEFAULT ''")
}

// migrateV4StableSymbolID records the id-stability contract; the id column
// already exists from v1 as a content-addressed primary key, so this step
// only adds the supporting unique index used by re-index upserts.
func migrateV4StableSymbolID(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_symbols_id_unique ON symbols(id)`)
	return err
}

func migrateV5ContentHash(tx *sql.Tx) error {
	if err := addColumnIfMissing(tx, "symbols", "content_hash", "TEXT DEFAULT ''"); err != nil {
		return err
	}
	return addColumnIfMissing(tx, "files", "exported_symbol_hash", "TEXT DEFAULT ''")
}

func migrateV6FileTagsIntent(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS file_tags (
		file_path TEXT PRIMARY KEY,
		tags_json TEXT DEFAULT '[]',
		intent TEXT DEFAULT '',
		stability TEXT DEFAULT 'experimental',
		doc_summary TEXT DEFAULT '',
		source TEXT DEFAULT 'derived'
	)`)
	return err
}

func migrateV7ExtendedSymbolMeta(tx *sql.Tx) error {
	return addColumnIfMissing(tx, "symbols", "generic_params_json", "TEXT DEFAULT ''")
}

func migrateV8DefinitionIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_symbols_definition ON symbols(name, kind)`)
	return err
}

func migrateV9FilePrefilterMeta(tx *sql.Tx) error {
	if err := addColumnIfMissing(tx, "files", "size", "INTEGER DEFAULT 0"); err != nil {
		return err
	}
	if err := addColumnIfMissing(tx, "files", "mtime_ns", "INTEGER DEFAULT 0"); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS dependencies (
		name TEXT,
		version TEXT,
		kind TEXT,
		manifest_path TEXT
	)`)
	return err
}

// VerifyReadCompatible enforces the read-path compatibility gate: a
// database opened read-only must be exactly CurrentSchemaVersion.
func VerifyReadCompatible(db *sql.DB) error {
	if !tableExists(db, "meta") {
		return codeerrors.Wrap(codeerrors.KindIndex, "database uninitialised", codeerrors.ErrSchemaUninitialised)
	}
	v := GetSchemaVersion(db)
	switch {
	case v < CurrentSchemaVersion:
		return codeerrors.Wrap(codeerrors.KindIndex, fmt.Sprintf("schema at version %d, outdated, run index", v), codeerrors.ErrSchemaOutdated)
	case v > CurrentSchemaVersion:
		return codeerrors.Wrap(codeerrors.KindIndex, fmt.Sprintf("schema at version %d, newer than binary (%d), upgrade required", v, CurrentSchemaVersion), codeerrors.ErrSchemaTooNew)
	}
	return nil
}
