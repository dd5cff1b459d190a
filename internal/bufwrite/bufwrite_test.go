package bufwrite

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	bytes.Buffer
	writes int
	closed bool
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestWriter_BatchesSmallWrites(t *testing.T) {
	under := &recordingWriter{}
	w := NewSize(under, 1024)

	for i := 0; i < 100; i++ {
		n, err := w.Write([]byte("0123456789"))
		require.NoError(t, err)
		require.Equal(t, 10, n)
	}
	require.NoError(t, w.Close())

	assert.True(t, under.closed)
	assert.Equal(t, 1000, under.Len())
	assert.Less(t, under.writes, 100, "writes must have been batched")
}

func TestWriter_CloseFlushes(t *testing.T) {
	under := &recordingWriter{}
	w := New(under)

	_, err := w.Write([]byte("pending"))
	require.NoError(t, err)
	assert.Zero(t, under.Len(), "bytes must still be buffered")

	require.NoError(t, w.Close())
	assert.Equal(t, "pending", under.String())
	assert.True(t, under.closed)
}

func TestWriter_NonCloserUnderlying(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	_, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "abc", buf.String())
}

func TestWriter_TruncateFlushesFirst(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	w := New(f)
	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)

	require.NoError(t, w.Truncate(4))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data))
}

func TestWriter_TruncateOnPlainBuffer(t *testing.T) {
	w := New(&bytes.Buffer{})
	assert.Error(t, w.Truncate(4))
}

type failingCloser struct {
	bytes.Buffer
}

func (failingCloser) Close() error { return errors.New("close failed") }

func TestWriter_CloseErrorSurfaces(t *testing.T) {
	w := New(&failingCloser{})
	assert.Error(t, w.Close())
}
