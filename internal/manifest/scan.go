package manifest

import (
	"path/filepath"

	"codeindex/internal/logging"
	"codeindex/internal/store"
	"codeindex/internal/walker"
)

// vendorIgnoreGlobs keeps the scan out of trees that are themselves full of
// manifests (installed packages, vendored crates, build output).
var vendorIgnoreGlobs = []string{
	"**/node_modules/**/node_modules/**",
	"**/.git/**",
	"**/target/**",
	"**/vendor/**",
	"**/build/**",
}

// depSink is the subset of *store.Store the scanner needs, kept narrow so
// tests can substitute a mock.
type depSink interface {
	ClearDependenciesFromManifest(manifestPath string) error
	UpsertDependency(name, version, kind, manifestPath string) error
}

// ScanDirectory walks root for Cargo.toml, package.json, settings.gradle(.kts)
// and pom.xml manifests and
// records every dependency it finds into st, skipping vendored trees.
func ScanDirectory(root string, st *store.Store) error {
	return scan(root, st)
}

func scan(root string, sink depSink) error {
	log := logging.Get(logging.CategoryStore)

	return walker.Walk(root, walker.Options{IgnoreGlobs: vendorIgnoreGlobs}, func(path string) error {
		name := filepath.Base(path)
		switch name {
		case "Cargo.toml":
			deps, err := ParseCargo(path)
			if err != nil {
				log.Warn("skipping cargo manifest %s: %v", path, err)
				return nil
			}
			return upsertAll(sink, path, deps)

		case "package.json":
			if filepath.Base(filepath.Dir(filepath.Dir(path))) == "node_modules" {
				return nil // installed package, not a workspace manifest
			}
			deps, err := ParseNPM(path)
			if err != nil {
				log.Warn("skipping npm manifest %s: %v", path, err)
				return nil
			}
			return upsertAll(sink, path, deps)

		case "settings.gradle", "settings.gradle.kts":
			settings, err := ParseGradleSettings(path)
			if err != nil {
				log.Warn("skipping gradle settings %s: %v", path, err)
				return nil
			}
			if err := sink.ClearDependenciesFromManifest(path); err != nil {
				return err
			}
			for _, m := range settings.Modules {
				if err := sink.UpsertDependency(m, "", "module", path); err != nil {
					return err
				}
			}
			return nil

		case "pom.xml":
			pom, err := ParseMavenPom(path)
			if err != nil {
				log.Warn("skipping pom %s: %v", path, err)
				return nil
			}
			if err := sink.ClearDependenciesFromManifest(path); err != nil {
				return err
			}
			for _, m := range pom.Modules {
				if err := sink.UpsertDependency(m, "", "module", path); err != nil {
					return err
				}
			}
			return nil
		}
		return nil
	})
}

func upsertAll(sink depSink, manifestPath string, deps []Dependency) error {
	if err := sink.ClearDependenciesFromManifest(manifestPath); err != nil {
		return err
	}
	for _, d := range deps {
		if err := sink.UpsertDependency(d.Name, d.Version, d.Kind, manifestPath); err != nil {
			return err
		}
	}
	return nil
}
