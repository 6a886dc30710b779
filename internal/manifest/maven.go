package manifest

import (
	"encoding/xml"
	"os"

	"codeindex/internal/codeerrors"
)

type mavenProject struct {
	Modules struct {
		Module []string `xml:"module"`
	} `xml:"modules"`
}

// MavenModules is the basic Maven view the scanner needs: presence of
// pom.xml plus the <modules> it declares, nothing deeper.
type MavenModules struct {
	Modules []string
}

// ParseMavenPom reads a pom.xml and returns its declared <modules> entries.
func ParseMavenPom(path string) (MavenModules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MavenModules{}, codeerrors.Wrap(codeerrors.KindIo, "read "+path, err)
	}
	var p mavenProject
	if err := xml.Unmarshal(data, &p); err != nil {
		return MavenModules{}, codeerrors.Wrap(codeerrors.KindParse, "parse "+path, err)
	}
	return MavenModules{Modules: p.Modules.Module}, nil
}
