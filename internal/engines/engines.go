// Package engines picks the archive engine a command runs against: the native shared library when one is available
// (or explicitly named), the pure-Go fallback otherwise.
package engines

import (
	"fmt"
	"path/filepath"

	"github.com/nguyengg/zbridge/engine"
	"github.com/nguyengg/zbridge/engine/goseven"
)

var defaultPath string

// SetLibraryPath names the native library every later Default call loads.
func SetLibraryPath(path string) {
	defaultPath = path
}

// Default loads the engine configured by SetLibraryPath (or the platform default).
func Default() (engine.Engine, error) {
	return New(defaultPath)
}

// New loads the engine at libraryPath.
//
// An empty libraryPath tries the platform's default native library first and quietly falls back to the pure-Go
// engine; a named library that fails to load is an error.
func New(libraryPath string) (engine.Engine, error) {
	if libraryPath != "" {
		eng, err := engine.Load(libraryPath)
		if err != nil {
			return nil, fmt.Errorf(`load engine library "%s" error: %w`, libraryPath, err)
		}
		return eng, nil
	}

	if eng, err := engine.Load(""); err == nil {
		return eng, nil
	}
	return goseven.Engine{}, nil
}

// FormatOf guesses the container format of the named archive from its extension.
func FormatOf(name string) (engine.Format, error) {
	ext := filepath.Ext(name)
	f, ok := engine.FormatByExtension(ext)
	if !ok {
		return 0, fmt.Errorf(`unknown archive format "%s"`, ext)
	}
	return f, nil
}
