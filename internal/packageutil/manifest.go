package packageutil

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// ManifestReader looks up the version of the package installed in dir.
type ManifestReader interface {
	Version(dir string) (string, bool)
}

// FileManifestReader reads versions from package.json files on the local
// file system.
type FileManifestReader struct{}

type manifest struct {
	Version string `json:"version"`
}

func (FileManifestReader) Version(dir string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(filepath.FromSlash(dir), "package.json"))
	if err != nil {
		return "", false
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil || m.Version == "" {
		return "", false
	}
	return m.Version, true
}
