package engine

import (
	"errors"
	"fmt"
	"sync"
)

// The process-wide default engine library path. It can be overridden exactly once, before the first Load; after that
// the selection is frozen so every operation in the process talks to the same binary.

var defaultLibrary = struct {
	sync.Mutex
	path   string
	frozen bool
}{path: defaultLibraryPath}

// ErrLibraryFrozen is returned by SetDefaultLibrary after an Engine has already been loaded with the default path.
var ErrLibraryFrozen = errors.New("default engine library is already in use")

// SetDefaultLibrary overrides the process-wide default path of the engine binary.
//
// It must be called before the first Load that relies on the default; later calls return ErrLibraryFrozen.
func SetDefaultLibrary(path string) error {
	defaultLibrary.Lock()
	defer defaultLibrary.Unlock()

	if defaultLibrary.frozen {
		return ErrLibraryFrozen
	}

	defaultLibrary.path = path
	return nil
}

// Load loads the engine binary at path and binds its entry points.
//
// An empty path selects the process-wide default (see SetDefaultLibrary). Each returned Engine is independent;
// operations on separate Engine handles may run concurrently on separate goroutines.
func Load(path string) (Engine, error) {
	if path == "" {
		defaultLibrary.Lock()
		defaultLibrary.frozen = true
		path = defaultLibrary.path
		defaultLibrary.Unlock()
	}

	e, err := load(path)
	if err != nil {
		return nil, fmt.Errorf(`load engine library "%s" error: %w`, path, err)
	}
	return e, nil
}
