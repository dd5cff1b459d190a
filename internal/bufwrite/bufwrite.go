// Package bufwrite wraps an output file in a buffer that survives the wrapping: closing the writer flushes the buffer
// before closing the file, so callers can treat the pair as one handle.
package bufwrite

import (
	"bufio"
	"fmt"
	"io"
)

const defaultSize = 64 * 1024

// Writer is a buffered io.WriteCloser. The zero value is not usable; use New.
//
// Seek and Truncate are forwarded to the underlying writer when it has the capability, flushing first so buffered
// bytes land before the reposition or resize.
type Writer struct {
	under io.Writer
	bw    *bufio.Writer
	c     io.Closer
}

var _ io.WriteCloser = (*Writer)(nil)

// New buffers writes to w with the default 64 KiB buffer.
//
// If w is also an io.Closer, Close closes it after flushing.
func New(w io.Writer) *Writer {
	return NewSize(w, defaultSize)
}

// NewSize buffers writes to w with a buffer of at least the given size.
func NewSize(w io.Writer, size int) *Writer {
	bw := bufio.NewWriterSize(w, size)
	c, _ := w.(io.Closer)
	return &Writer{under: w, bw: bw, c: c}
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.bw.Write(p)
}

// Seek flushes buffered bytes, then repositions the underlying writer.
func (w *Writer) Seek(offset int64, whence int) (int64, error) {
	s, ok := w.under.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("underlying writer is not seekable")
	}
	if err := w.bw.Flush(); err != nil {
		return 0, err
	}
	return s.Seek(offset, whence)
}

// Truncate flushes buffered bytes, then resizes the underlying writer.
func (w *Writer) Truncate(size int64) error {
	t, ok := w.under.(interface{ Truncate(int64) error })
	if !ok {
		return fmt.Errorf("underlying writer cannot be resized")
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return t.Truncate(size)
}

// Flush writes any buffered bytes through to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Close flushes then closes the underlying writer. The flush error wins over the close error.
func (w *Writer) Close() error {
	err := w.bw.Flush()

	if w.c != nil {
		if cerr := w.c.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close error: %w", cerr)
		}
	}
	return err
}
