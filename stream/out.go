package stream

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// truncater is the capability SetSize needs from the underlying stream; *os.File satisfies it.
type truncater interface {
	Truncate(size int64) error
}

// Out presents a host-owned sink to the engine's sequential/random write contract.
//
// Write may process fewer bytes than offered; the engine loops. A single Out must never be shared across concurrent
// operations.
type Out struct {
	dst        io.Writer
	onTransfer TransferFunc

	path     string
	stamp    time.Time
	hasStamp bool

	closeOnce sync.Once
	closeErr  error
}

// NewOut wraps dst, taking exclusive ownership of it until Close.
//
// Seek and SetSize work only if dst has the respective capability (io.Seeker, Truncate). If a path and timestamp were
// supplied via WithTimestamps, Close restores the file times after closing dst.
func NewOut(dst io.Writer, optFns ...func(*Options)) *Out {
	opts := applyOptions(optFns)
	return &Out{
		dst:        dst,
		onTransfer: opts.OnTransfer,
		path:       opts.path,
		stamp:      opts.stamp,
		hasStamp:   opts.hasStamp,
	}
}

// Write delivers p to the underlying sink.
//
// The number of bytes processed is returned even when smaller than len(p); a nil error with a short count simply means
// the caller should offer the remainder again.
func (a *Out) Write(p []byte) (int, error) {
	n, err := a.dst.Write(p)
	if n > 0 && a.onTransfer != nil {
		a.onTransfer(n)
	}
	return n, err
}

// Seek repositions the underlying sink.
func (a *Out) Seek(offset int64, whence int) (int64, error) {
	s, ok := a.dst.(io.Seeker)
	if !ok {
		return 0, ErrNotSeekable
	}

	pos, err := s.Seek(offset, whence)
	if err != nil {
		return 0, fmt.Errorf("seek error: %w", err)
	}
	return pos, nil
}

// SetSize truncates or extends the underlying sink to size bytes.
func (a *Out) SetSize(size int64) error {
	t, ok := a.dst.(truncater)
	if !ok {
		return ErrNotResizable
	}

	if err := t.Truncate(size); err != nil {
		return fmt.Errorf("resize to %d bytes error: %w", size, err)
	}
	return nil
}

// Close releases the underlying sink exactly once, then restores file times if a path and timestamp were supplied.
//
// The close-then-stamp order is required: the filesystem may refuse metadata writes while the stream's own handle is
// still open. Subsequent calls return the first result.
func (a *Out) Close() error {
	a.closeOnce.Do(func() {
		if c, ok := a.dst.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.closeErr = fmt.Errorf("close stream error: %w", err)
				// keep going; timestamps are still worth restoring.
			}
		}

		if a.hasStamp {
			if err := restoreTimes(a.path, a.stamp); err != nil && a.closeErr == nil {
				a.closeErr = fmt.Errorf(`restore times of "%s" error: %w`, a.path, err)
			}
		}
	})
	return a.closeErr
}
