package highlight

import (
	"io"
	"os"
	"path/filepath"
)

// SourceOpener opens the source files named in a trace.
type SourceOpener interface {
	Open(path string) (io.ReadCloser, error)
}

type FileSourceOpener struct{}

func (FileSourceOpener) Open(path string) (io.ReadCloser, error) {
	return os.Open(filepath.FromSlash(path))
}
