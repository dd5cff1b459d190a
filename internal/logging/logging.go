// Package logging creates the per-file prefixed loggers the commands use.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

// Prefix creates a consistent prefix for all file-based commands to use.
//
// i and n are the zero-based ordinal and expected count.
func Prefix(i, n int, name flags.Filename) string {
	return fmt.Sprintf(`[%d/%d] "%s" - `, i+1, n, truncateRight(filepath.Base(string(name)), 30, "..."))
}

// NewLogger creates a logger whose prefix identifies the i-th of n files being processed.
func NewLogger(i, n int, name flags.Filename) *log.Logger {
	return log.New(os.Stderr, Prefix(i, n, name), 0)
}

// truncateRight caps text at n runes, appending suffix if anything was cut.
func truncateRight(text string, n int, suffix string) string {
	if n <= 0 {
		return suffix
	}

	rs := make([]rune, 0, n)
	for i, r := range text {
		if i >= n {
			return string(rs) + suffix
		}
		rs = append(rs, r)
	}
	return text
}
