// Package manifest provides read-only parsers for workspace manifest
// formats: Cargo, NPM, Gradle, Maven. The Cargo and NPM parsers produce
// Dependency rows; the Gradle and Maven parsers return module lists, which
// the scanner records as module rows. The rows fill the store's
// dependencies table, consumed by the
// agent's list_dependencies/get_dependency_info/get_dependency_source tools
// (deps_touchpoints layer).
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"codeindex/internal/codeerrors"
)

// Dependency is one parsed manifest dependency.
type Dependency struct {
	Name         string
	Version      string
	Kind         string // e.g. "dependency", "dev-dependency", "build-dependency"
	ManifestPath string
}

type cargoDepValue struct {
	Version string
}

func (v *cargoDepValue) UnmarshalTOML(data interface{}) error {
	switch t := data.(type) {
	case string:
		v.Version = t
	case map[string]interface{}:
		if ver, ok := t["version"].(string); ok {
			v.Version = ver
		}
	}
	return nil
}

type cargoManifest struct {
	Package struct {
		Name    string
		Version string
	}
	Dependencies      map[string]cargoDepValue `toml:"dependencies"`
	DevDependencies   map[string]cargoDepValue `toml:"dev-dependencies"`
	BuildDependencies map[string]cargoDepValue `toml:"build-dependencies"`
}

type cargoLock struct {
	Package []struct {
		Name    string
		Version string
	} `toml:"package"`
}

// ParseCargo reads a Cargo.toml (and an adjacent Cargo.lock, if present) and
// returns its declared dependencies, upgraded to exact locked versions where
// available.
func ParseCargo(path string) ([]Dependency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindIo, "read "+path, err)
	}
	var m cargoManifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindParse, "parse "+path, err)
	}

	locked := loadCargoLock(filepath.Join(filepath.Dir(path), "Cargo.lock"))

	var out []Dependency
	appendDeps := func(set map[string]cargoDepValue, kind string) {
		for name, v := range set {
			version := v.Version
			if lv, ok := locked[name]; ok {
				version = lv
			}
			out = append(out, Dependency{Name: name, Version: version, Kind: kind, ManifestPath: path})
		}
	}
	appendDeps(m.Dependencies, "dependency")
	appendDeps(m.DevDependencies, "dev-dependency")
	appendDeps(m.BuildDependencies, "build-dependency")
	return out, nil
}

func loadCargoLock(path string) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var lock cargoLock
	if _, err := toml.Decode(string(data), &lock); err != nil {
		return nil
	}
	out := make(map[string]string, len(lock.Package))
	for _, p := range lock.Package {
		out[p.Name] = p.Version
	}
	return out
}

// packageJSON mirrors the subset of package.json fields the scanner reads.
type packageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

// ParseNPM reads a package.json and returns its declared dependencies,
// resolving each to the installed version found under node_modules when
// present, including scoped packages.
func ParseNPM(path string) ([]Dependency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindIo, "read "+path, err)
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindParse, "parse "+path, err)
	}

	root := filepath.Dir(path)
	var out []Dependency
	appendDeps := func(set map[string]string, kind string) {
		for name, version := range set {
			if installed := npmInstalledVersion(root, name); installed != "" {
				version = installed
			}
			out = append(out, Dependency{Name: name, Version: version, Kind: kind, ManifestPath: path})
		}
	}
	appendDeps(pkg.Dependencies, "dependency")
	appendDeps(pkg.DevDependencies, "dev-dependency")
	appendDeps(pkg.PeerDependencies, "peer-dependency")
	appendDeps(pkg.OptionalDependencies, "optional-dependency")
	return out, nil
}

// npmInstalledVersion reads node_modules/<name>/package.json (scoped
// packages resolve to node_modules/@scope/name) and returns its version.
func npmInstalledVersion(root, name string) string {
	nodeModulesPath := filepath.Join(append([]string{root, "node_modules"}, strings.Split(name, "/")...)...)
	data, err := os.ReadFile(filepath.Join(nodeModulesPath, "package.json"))
	if err != nil {
		return ""
	}
	var installed packageJSON
	if json.Unmarshal(data, &installed) != nil {
		return ""
	}
	return installed.Version
}
