package volume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Dir resolves volumes as sibling files in one local directory.
type Dir struct {
	// Path is the directory holding the volumes.
	Path string
}

var _ Source = Dir{}

// Open opens the named volume for reading.
//
// name must be a bare file name; anything that would escape the directory is rejected.
func (d Dir) Open(_ context.Context, name string) (io.ReadSeekCloser, error) {
	if name != filepath.Base(name) || strings.HasPrefix(name, "..") {
		return nil, fmt.Errorf(`invalid volume name "%s"`, name)
	}

	f, err := os.Open(filepath.Join(d.Path, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(`volume "%s": %w`, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf(`open volume "%s" error: %w`, name, err)
	}
	return f, nil
}
