//go:build !windows

package stream

import (
	"os"
	"time"
)

// restoreTimes sets last-access and last-write times. Creation (birth) time is not settable through any portable
// interface on these platforms, so it is left to the filesystem.
func restoreTimes(path string, t time.Time) error {
	return os.Chtimes(path, t, t)
}
