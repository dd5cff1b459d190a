//go:build !windows

package engine

import "errors"

const defaultLibraryPath = "7z.so"

// ErrUnsupportedPlatform is returned by Load on platforms without a native binding.
//
// Read-only operations can still run through the pure-Go fallback in the goseven package.
var ErrUnsupportedPlatform = errors.New("native engine loading is not supported on this platform")

func load(string) (Engine, error) {
	return nil, ErrUnsupportedPlatform
}
