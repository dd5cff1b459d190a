package stream

import (
	"fmt"
	"io"
	"sync"
)

// In presents a host-owned source to the engine's sequential/random read contract.
//
// Read is explicitly permitted to return fewer bytes than requested; the engine loops until it has what it needs. A
// single In must never be shared across concurrent operations.
type In struct {
	src        io.Reader
	onTransfer TransferFunc

	closeOnce sync.Once
	closeErr  error
}

// NewIn wraps src, taking exclusive ownership of it until Close.
//
// Seek works only if src also implements io.Seeker. If src implements io.Closer it is closed by Close.
func NewIn(src io.Reader, optFns ...func(*Options)) *In {
	opts := applyOptions(optFns)
	return &In{src: src, onTransfer: opts.OnTransfer}
}

// Read reads up to len(p) bytes from the underlying source.
//
// It makes at least one byte of progress whenever len(p) > 0 and the source still has bytes, retrying the underlying
// reader over transient zero-byte results. It returns (0, io.EOF) only at genuine end-of-data; short reads are normal
// and must be handled by the caller looping.
func (a *In) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		n, err := a.src.Read(p)
		if n > 0 {
			if a.onTransfer != nil {
				a.onTransfer(n)
			}
			// hold back a simultaneous error; the next call will rediscover it.
			return n, nil
		}

		if err != nil {
			return 0, err
		}
	}
}

// Seek repositions the underlying source.
func (a *In) Seek(offset int64, whence int) (int64, error) {
	s, ok := a.src.(io.Seeker)
	if !ok {
		return 0, ErrNotSeekable
	}

	pos, err := s.Seek(offset, whence)
	if err != nil {
		return 0, fmt.Errorf("seek error: %w", err)
	}
	return pos, nil
}

// Close releases the underlying source exactly once. Subsequent calls return the first result.
func (a *In) Close() error {
	a.closeOnce.Do(func() {
		if c, ok := a.src.(io.Closer); ok {
			a.closeErr = c.Close()
		}
	})
	return a.closeErr
}
