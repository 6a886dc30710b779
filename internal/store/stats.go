package store

import (
	"os"

	"codeindex/internal/codeerrors"
)

// Stats is get_stats's return shape.
type Stats struct {
	TotalSymbols  int
	ByKind        map[string]int
	ByLanguage    map[string]int
	FileCount     int
	IndexByteSize int64

	Workspace    map[string]interface{}
	Deps         map[string]interface{}
	Architecture map[string]interface{}
}

// StatsOptions gates the optional sub-reports.
type StatsOptions struct {
	IncludeWorkspace    bool
	IncludeDeps         bool
	IncludeArchitecture bool
}

// GetStats summarises the store's contents.
func (s *Store) GetStats(dbPath string, opts StatsOptions) (Stats, error) {
	all, err := s.queryAllSymbols()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		TotalSymbols: len(all),
		ByKind:       map[string]int{},
		ByLanguage:   map[string]int{},
	}
	for _, sym := range all {
		stats.ByKind[string(sym.Kind)]++
		stats.ByLanguage[sym.Language]++
	}

	var fileCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&fileCount); err != nil {
		return Stats{}, codeerrors.Wrap(codeerrors.KindDatabase, "count files", err)
	}
	stats.FileCount = fileCount

	if dbPath != "" {
		if fi, err := os.Stat(dbPath); err == nil {
			stats.IndexByteSize = fi.Size()
		}
	}

	if opts.IncludeWorkspace {
		stats.Workspace = map[string]interface{}{"file_count": fileCount}
	}
	if opts.IncludeDeps {
		var depCount int
		_ = s.db.QueryRow(`SELECT COUNT(*) FROM dependencies`).Scan(&depCount)
		stats.Deps = map[string]interface{}{"dependency_count": depCount}
	}
	if opts.IncludeArchitecture {
		stats.Architecture = map[string]interface{}{"languages": stats.ByLanguage}
	}

	return stats, nil
}

// ListDependencies returns every recorded dependency row.
func (s *Store) ListDependencies() ([]Dependency, error) {
	rows, err := s.db.Query(`SELECT name, version, kind, manifest_path FROM dependencies`)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindDatabase, "list dependencies", err)
	}
	defer rows.Close()
	var out []Dependency
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.Name, &d.Version, &d.Kind, &d.ManifestPath); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Dependency is a manifest-derived dependency record.
type Dependency struct {
	Name         string
	Version      string
	Kind         string
	ManifestPath string
}

// GetDependencyInfo returns the first dependency row matching name.
func (s *Store) GetDependencyInfo(name string) (Dependency, bool, error) {
	var d Dependency
	err := s.db.QueryRow(`SELECT name, version, kind, manifest_path FROM dependencies WHERE name = ? LIMIT 1`, name).
		Scan(&d.Name, &d.Version, &d.Kind, &d.ManifestPath)
	if err != nil {
		return Dependency{}, false, nil
	}
	return d, true, nil
}
