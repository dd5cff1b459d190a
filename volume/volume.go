// Package volume resolves the additional volume streams of multi-volume archives by name.
//
// The engine asks for volumes through the open-volume callback ("archive.7z.002", "archive.z01", ...); a Source turns
// those names into seekable byte streams, whether the volumes sit next to the first one on disk or in an S3 bucket.
package volume

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by a Source when no volume with the requested name exists.
//
// The bridge reports it to the engine as "no such volume" rather than a hard failure, so the engine can stop probing
// for more volumes.
var ErrNotFound = errors.New("volume not found")

// Source resolves one volume stream by name.
//
// The returned stream is exclusively owned by the caller, which closes it when the engine is done with the volume.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadSeekCloser, error)
}
