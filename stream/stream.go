// Package stream adapts host-owned byte streams to the read/write/seek/resize contract the archive engine drives its
// transfers through.
//
// An adapter exclusively owns its underlying stream for its whole lifetime: create it right before handing it to the
// engine for one item's transfer, and Close it as soon as that item is done, on every exit path. Closing an adapter
// that was given a path and timestamp also restores the file times on that path, strictly after the underlying stream
// has been closed (some platforms reject metadata writes while the handle is still open).
package stream

import (
	"errors"
	"time"
)

// ErrNotSeekable is returned by Seek when the underlying stream does not support repositioning.
var ErrNotSeekable = errors.New("underlying stream is not seekable")

// ErrNotResizable is returned by SetSize when the underlying stream cannot be truncated or extended.
var ErrNotResizable = errors.New("underlying stream cannot be resized")

// TransferFunc observes successful transfers for progress aggregation.
//
// It is advisory only; correctness never depends on it being installed or observed.
type TransferFunc func(n int)

// Options customises NewIn and NewOut.
type Options struct {
	// OnTransfer, if non-nil, is invoked after each successful read or write with the number of bytes moved.
	OnTransfer TransferFunc

	path     string
	stamp    time.Time
	hasStamp bool
}

// WithTransfer installs an advisory transfer notification.
func WithTransfer(fn TransferFunc) func(*Options) {
	return func(opts *Options) {
		opts.OnTransfer = fn
	}
}

// WithTimestamps makes Close set creation, last-write, and last-access times of the named path to t, after the
// underlying stream has been closed.
func WithTimestamps(path string, t time.Time) func(*Options) {
	return func(opts *Options) {
		opts.path = path
		opts.stamp = t
		opts.hasStamp = true
	}
}

func applyOptions(optFns []func(*Options)) *Options {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}
	return opts
}
