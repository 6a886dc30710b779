package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func depByName(deps []Dependency, name string) (Dependency, bool) {
	for _, d := range deps {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}

func TestParseCargo(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")
	write(t, manifest, `[package]
name = "demo"
version = "0.1.0"

[dependencies]
serde = "1.0"
tokio = { version = "1.38", features = ["full"] }

[dev-dependencies]
insta = "1.39"

[build-dependencies]
cc = "1.0"
`)

	deps, err := ParseCargo(manifest)
	if err != nil {
		t.Fatalf("ParseCargo() error = %v", err)
	}
	if len(deps) != 4 {
		t.Fatalf("parsed %d deps, want 4: %+v", len(deps), deps)
	}

	serde, _ := depByName(deps, "serde")
	if serde.Version != "1.0" || serde.Kind != "dependency" {
		t.Errorf("serde = %+v", serde)
	}
	tokio, _ := depByName(deps, "tokio")
	if tokio.Version != "1.38" {
		t.Errorf("table-valued dependency version = %q, want 1.38", tokio.Version)
	}
	insta, _ := depByName(deps, "insta")
	if insta.Kind != "dev-dependency" {
		t.Errorf("insta kind = %q", insta.Kind)
	}
	cc, _ := depByName(deps, "cc")
	if cc.Kind != "build-dependency" {
		t.Errorf("cc kind = %q", cc.Kind)
	}
}

func TestParseCargoUpgradesFromLock(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")
	write(t, manifest, `[package]
name = "demo"

[dependencies]
serde = "1.0"
`)
	write(t, filepath.Join(dir, "Cargo.lock"), `[[package]]
name = "serde"
version = "1.0.203"

[[package]]
name = "unrelated"
version = "0.2.0"
`)

	deps, err := ParseCargo(manifest)
	if err != nil {
		t.Fatal(err)
	}
	serde, ok := depByName(deps, "serde")
	if !ok || serde.Version != "1.0.203" {
		t.Errorf("serde = %+v, want the exact locked version", serde)
	}
}

func TestParseNPM(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "package.json")
	write(t, manifest, `{
  "name": "demo",
  "version": "1.0.0",
  "dependencies": {"express": "^4.19.0", "@scope/pkg": "^2.0.0"},
  "devDependencies": {"vitest": "^1.6.0"},
  "peerDependencies": {"react": ">=18"},
  "optionalDependencies": {"fsevents": "^2.3.0"}
}`)
	// Installed versions under node_modules, including a scoped package.
	write(t, filepath.Join(dir, "node_modules", "express", "package.json"), `{"name": "express", "version": "4.19.2"}`)
	write(t, filepath.Join(dir, "node_modules", "@scope", "pkg", "package.json"), `{"name": "@scope/pkg", "version": "2.1.3"}`)

	deps, err := ParseNPM(manifest)
	if err != nil {
		t.Fatalf("ParseNPM() error = %v", err)
	}
	if len(deps) != 5 {
		t.Fatalf("parsed %d deps, want 5", len(deps))
	}

	express, _ := depByName(deps, "express")
	if express.Version != "4.19.2" {
		t.Errorf("express version = %q, want the installed version", express.Version)
	}
	scoped, _ := depByName(deps, "@scope/pkg")
	if scoped.Version != "2.1.3" {
		t.Errorf("scoped version = %q, want resolution via node_modules/@scope/pkg", scoped.Version)
	}
	vitest, _ := depByName(deps, "vitest")
	if vitest.Version != "^1.6.0" || vitest.Kind != "dev-dependency" {
		t.Errorf("vitest = %+v, uninstalled deps keep their declared range", vitest)
	}
	react, _ := depByName(deps, "react")
	if react.Kind != "peer-dependency" {
		t.Errorf("react kind = %q", react.Kind)
	}
}

func TestParseGradleSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.gradle.kts")
	write(t, path, `rootProject.name = "demo-app"

include(":core", ":feature:login")
include(":util")
`)

	settings, err := ParseGradleSettings(path)
	if err != nil {
		t.Fatalf("ParseGradleSettings() error = %v", err)
	}
	if settings.RootProjectName != "demo-app" {
		t.Errorf("root project = %q", settings.RootProjectName)
	}
	want := []string{":core", ":feature:login", ":util"}
	if len(settings.Modules) != len(want) {
		t.Fatalf("modules = %v, want %v", settings.Modules, want)
	}
	for i := range want {
		if settings.Modules[i] != want[i] {
			t.Errorf("modules = %v, want %v", settings.Modules, want)
		}
	}
}

func TestParseGradleBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.gradle.kts")
	write(t, path, `plugins {
    id("application")
    kotlin("jvm")
}

dependencies {
    implementation(project(":core"))
    implementation(project(":util"))
}
`)

	build, err := ParseGradleBuild(path)
	if err != nil {
		t.Fatalf("ParseGradleBuild() error = %v", err)
	}
	if len(build.Plugins) != 2 || build.Plugins[0] != "application" || build.Plugins[1] != "jvm" {
		t.Errorf("plugins = %v", build.Plugins)
	}
	if len(build.ProjectDeps) != 2 || build.ProjectDeps[0] != ":core" {
		t.Errorf("project deps = %v", build.ProjectDeps)
	}
}

func TestParseMavenPom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pom.xml")
	write(t, path, `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>demo</groupId>
  <artifactId>parent</artifactId>
  <modules>
    <module>core</module>
    <module>cli</module>
  </modules>
</project>
`)

	pom, err := ParseMavenPom(path)
	if err != nil {
		t.Fatalf("ParseMavenPom() error = %v", err)
	}
	if len(pom.Modules) != 2 || pom.Modules[0] != "core" || pom.Modules[1] != "cli" {
		t.Errorf("modules = %v", pom.Modules)
	}
}

type recordingSink struct {
	cleared  []string
	upserted []Dependency
}

func (r *recordingSink) ClearDependenciesFromManifest(path string) error {
	r.cleared = append(r.cleared, path)
	return nil
}

func (r *recordingSink) UpsertDependency(name, version, kind, manifestPath string) error {
	r.upserted = append(r.upserted, Dependency{Name: name, Version: version, Kind: kind, ManifestPath: manifestPath})
	return nil
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"x\"\n\n[dependencies]\nserde = \"1.0\"\n")
	write(t, filepath.Join(dir, "web", "package.json"), `{"dependencies": {"express": "^4.0.0"}}`)
	write(t, filepath.Join(dir, "jvm", "settings.gradle"), `include(":core")`)
	write(t, filepath.Join(dir, "jvm", "pom.xml"), `<project><modules><module>core</module></modules></project>`)
	// Installed packages under node_modules are not workspace manifests.
	write(t, filepath.Join(dir, "web", "node_modules", "express", "package.json"), `{"name": "express", "dependencies": {"accepts": "1.0.0"}}`)

	sink := &recordingSink{}
	if err := scan(dir, sink); err != nil {
		t.Fatalf("scan() error = %v", err)
	}

	byName := map[string]Dependency{}
	for _, d := range sink.upserted {
		byName[d.Name] = d
	}
	if _, ok := byName["serde"]; !ok {
		t.Error("cargo dependency not recorded")
	}
	if _, ok := byName["express"]; !ok {
		t.Error("npm dependency not recorded")
	}
	if _, ok := byName[":core"]; !ok {
		t.Error("gradle module not recorded")
	}
	if _, ok := byName["core"]; !ok {
		t.Error("maven module not recorded")
	}
	if _, ok := byName["accepts"]; ok {
		t.Error("installed package manifests must be skipped")
	}
	if len(sink.cleared) != 4 {
		t.Errorf("cleared %d manifests, want 4", len(sink.cleared))
	}
}
