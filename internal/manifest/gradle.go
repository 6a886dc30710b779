package manifest

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"codeindex/internal/codeerrors"
)

var (
	includeRe    = regexp.MustCompile(`include\s*\(?\s*((?:['"][^'"]+['"]\s*,?\s*)+)\)?`)
	rootNameRe   = regexp.MustCompile(`rootProject\.name\s*=\s*['"]([^'"]+)['"]`)
	projectDepRe = regexp.MustCompile(`project\(\s*['"]([^'"]+)['"]\s*\)`)
	pluginRe     = regexp.MustCompile(`^\s*(?:id|kotlin)\s*\(?\s*['"]([^'"]+)['"]`)
	quotedRe     = regexp.MustCompile(`['"]([^'"]+)['"]`)
)

// GradleSettings is the parsed result of settings.gradle(.kts): the root
// project name and the module paths it includes.
type GradleSettings struct {
	RootProjectName string
	Modules         []string
}

// ParseGradleSettings reads settings.gradle or settings.gradle.kts and
// extracts rootProject.name and include(...) directives.
func ParseGradleSettings(path string) (GradleSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GradleSettings{}, codeerrors.Wrap(codeerrors.KindIo, "read "+path, err)
	}
	text := string(data)

	var out GradleSettings
	if m := rootNameRe.FindStringSubmatch(text); m != nil {
		out.RootProjectName = m[1]
	}
	for _, m := range includeRe.FindAllStringSubmatch(text, -1) {
		for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
			out.Modules = append(out.Modules, q[1])
		}
	}
	return out, nil
}

// GradleModuleDeps is one module's build.gradle(.kts) plugin and
// project(...) dependency declarations.
type GradleModuleDeps struct {
	Plugins     []string
	ProjectDeps []string
}

// ParseGradleBuild reads a per-module build.gradle(.kts) and returns the
// plugin(...) and project(":x") dependency lines it declares.
func ParseGradleBuild(path string) (GradleModuleDeps, error) {
	f, err := os.Open(path)
	if err != nil {
		return GradleModuleDeps{}, codeerrors.Wrap(codeerrors.KindIo, "read "+path, err)
	}
	defer f.Close()

	var out GradleModuleDeps
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := pluginRe.FindStringSubmatch(line); m != nil {
			out.Plugins = append(out.Plugins, m[1])
		}
		for _, m := range projectDepRe.FindAllStringSubmatch(line, -1) {
			out.ProjectDeps = append(out.ProjectDeps, m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return out, codeerrors.Wrap(codeerrors.KindIo, "scan "+path, err)
	}
	return out, nil
}
