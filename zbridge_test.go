package zbridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/nguyengg/zbridge/engine"
	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/propvar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader scripts the engine's side of the protocol: it reads a few header bytes at Open, then drives the extract
// callback per item in prepare/stream/result order, reporting the scripted result for each item.
type fakeReader struct {
	items []fakeItem

	// calls records every per-item callback invocation as "method(index)" for order assertions.
	calls []string

	closed bool
}

type fakeItem struct {
	data   []byte
	result engine.OpResult
}

var _ engine.Reader = (*fakeReader)(nil)

func (f *fakeReader) Open(in engine.InStream, _ int64, _ engine.OpenCallback) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(in, header); err != nil {
		return fmt.Errorf("read signature error: %w", err)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func (f *fakeReader) NumberOfItems() (uint32, error) {
	return uint32(len(f.items)), nil
}

func (f *fakeReader) ItemProperty(index uint32, id props.ID) (propvar.Variant, error) {
	if id == props.Size {
		return propvar.NewUInt64(uint64(len(f.items[index].data))), nil
	}
	return propvar.Variant{}, nil
}

func (f *fakeReader) ArchiveProperty(props.ID) (propvar.Variant, error) {
	return propvar.Variant{}, nil
}

func (f *fakeReader) Extract(indexes []uint32, testMode bool, cb engine.ExtractCallback) error {
	if indexes == nil {
		indexes = make([]uint32, len(f.items))
		for i := range indexes {
			indexes[i] = uint32(i)
		}
	}

	mode := engine.AskExtract
	if testMode {
		mode = engine.AskTest
	}

	var total uint64
	for _, i := range indexes {
		total += uint64(len(f.items[i].data))
	}
	if err := cb.SetTotal(total); err != nil {
		return err
	}

	var completed uint64
	for _, i := range indexes {
		f.calls = append(f.calls, fmt.Sprintf("prepare(%d)", i))
		if err := cb.PrepareOperation(mode); err != nil {
			return err
		}

		f.calls = append(f.calls, fmt.Sprintf("stream(%d)", i))
		sink, err := cb.Stream(i, mode)
		if err != nil && !errors.Is(err, engine.ErrSkip) {
			return err
		}

		if sink != nil {
			if _, err = sink.Write(f.items[i].data); err != nil {
				return err
			}
		}

		f.calls = append(f.calls, fmt.Sprintf("result(%d)", i))
		if err = cb.SetOperationResult(f.items[i].result); err != nil {
			return err
		}

		completed += uint64(len(f.items[i].data))
		if err = cb.SetCompleted(completed); err != nil {
			return err
		}
	}
	return nil
}

// closableBuffer counts closes so tests can assert each adapter is disposed exactly once.
type closableBuffer struct {
	bytes.Buffer
	closes int
}

func (b *closableBuffer) Close() error {
	b.closes++
	return nil
}

func TestExtract_PerItemCRCErrorDoesNotAbort(t *testing.T) {
	// scenario: items 0..2 where item 1 reports a checksum failure.
	r := &fakeReader{items: []fakeItem{
		{data: []byte("alpha"), result: engine.OpOK},
		{data: []byte("beta"), result: engine.OpCRCError},
		{data: []byte("gamma"), result: engine.OpOK},
	}}

	a := New(r)
	require.NoError(t, a.Open(bytes.NewReader([]byte("7z\xBC\xAF..."))))
	require.Equal(t, StateOpened, a.State())

	sinks := map[uint32]*closableBuffer{}
	var results []ItemResult
	summary, err := a.Extract(nil, ExtractHooks{
		Stream: func(index uint32, mode engine.AskMode) (engine.SequentialOutStream, error) {
			sinks[index] = &closableBuffer{}
			return sinks[index], nil
		},
		OnResult: func(index uint32, result engine.OpResult) {
			results = append(results, ItemResult{Index: index, Result: result})
		},
	})
	require.NoError(t, err)

	// the crc error on item 1 must not have stopped item 2 from going through the full sequence.
	assert.Equal(t, []string{
		"prepare(0)", "stream(0)", "result(0)",
		"prepare(1)", "stream(1)", "result(1)",
		"prepare(2)", "stream(2)", "result(2)",
	}, r.calls)

	assert.Equal(t, StateFinished, a.State())
	assert.Equal(t, 2, summary.OK)
	assert.Equal(t, 1, summary.CRCErrors)
	assert.Equal(t, []ItemResult{
		{Index: 0, Result: engine.OpOK},
		{Index: 1, Result: engine.OpCRCError},
		{Index: 2, Result: engine.OpOK},
	}, results)

	// every adapter was disposed exactly once, and the bytes got through.
	for index, sink := range sinks {
		assert.Equalf(t, 1, sink.closes, "sink %d close count", index)
		assert.Equal(t, r.items[index].data, sink.Bytes())
	}
}

func TestOpen_FirstReadFailureFailsWithZeroPerItemCalls(t *testing.T) {
	// scenario: the very first read of the archive stream fails.
	r := &fakeReader{items: []fakeItem{{data: []byte("never seen")}}}

	a := New(r)
	err := a.Open(&brokenStream{err: errors.New("disk on fire")})
	require.Error(t, err)

	assert.Equal(t, StateFailed, a.State())
	assert.Empty(t, r.calls, "no per-item calls may happen after a failed open")

	// a failed operation accepts no further work.
	_, err = a.Extract(nil, ExtractHooks{})
	assert.Error(t, err)
}

type brokenStream struct {
	err error
}

func (s *brokenStream) Read([]byte) (int, error)       { return 0, s.err }
func (s *brokenStream) Seek(int64, int) (int64, error) { return 0, nil }

func TestExtract_SkippedItemGetsNoSink(t *testing.T) {
	r := &fakeReader{items: []fakeItem{
		{data: []byte("kept"), result: engine.OpOK},
		{data: []byte("skipped"), result: engine.OpOK},
	}}

	a := New(r)
	require.NoError(t, a.Open(bytes.NewReader([]byte("head"))))

	var kept closableBuffer
	summary, err := a.Extract(nil, ExtractHooks{
		Stream: func(index uint32, _ engine.AskMode) (engine.SequentialOutStream, error) {
			if index == 1 {
				return nil, nil
			}
			return &kept, nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("kept"), kept.Bytes())
	assert.Equal(t, 1, kept.closes)

	// the skipped item still got its result reported.
	assert.Equal(t, 2, summary.OK)
	assert.Len(t, summary.Items, 2)
}

func TestExtract_CompletedNeverDecreases(t *testing.T) {
	r := &regressingReader{}

	a := New(r)
	require.NoError(t, a.Open(bytes.NewReader([]byte("head"))))

	var seen []uint64
	_, err := a.Extract(nil, ExtractHooks{
		OnCompleted: func(completed uint64) { seen = append(seen, completed) },
	})
	require.NoError(t, err)

	// the engine reported 10, 5, 20; the regression to 5 must not be observable.
	assert.Equal(t, []uint64{10, 20}, seen)
}

// regressingReader reports a decreasing completed value mid-operation.
type regressingReader struct {
	fakeReader
}

func (r *regressingReader) Extract(_ []uint32, _ bool, cb engine.ExtractCallback) error {
	if err := cb.SetTotal(20); err != nil {
		return err
	}
	for _, v := range []uint64{10, 5, 20} {
		if err := cb.SetCompleted(v); err != nil {
			return err
		}
	}
	return nil
}

// fakeWriter scripts the engine's update side: for each item it asks for the item info, one property, the source
// stream when there is new data, then reports OK.
type fakeWriter struct {
	calls []string
}

var _ engine.Writer = (*fakeWriter)(nil)

func (w *fakeWriter) UpdateItems(out engine.SequentialOutStream, numItems uint32, cb engine.UpdateCallback) error {
	if err := cb.SetTotal(uint64(numItems)); err != nil {
		return err
	}

	for i := uint32(0); i < numItems; i++ {
		w.calls = append(w.calls, fmt.Sprintf("info(%d)", i))
		newData, newProps, indexInArchive, err := cb.UpdateItemInfo(i)
		if err != nil {
			return err
		}

		if newProps {
			w.calls = append(w.calls, fmt.Sprintf("property(%d)", i))
			v, err := cb.Property(i, props.Name)
			if err != nil {
				return err
			}
			_ = v.Clear()
		}

		if newData {
			w.calls = append(w.calls, fmt.Sprintf("stream(%d)", i))
			src, err := cb.Stream(i)
			if err != nil {
				return err
			}
			if _, err = io.Copy(out, src); err != nil {
				return err
			}
		} else if indexInArchive >= 0 {
			// data is copied verbatim from the existing archive slot; nothing to pull from the host.
			w.calls = append(w.calls, fmt.Sprintf("copy(%d->%d)", indexInArchive, i))
		}

		if err = cb.SetOperationResult(engine.OpOK); err != nil {
			return err
		}
	}
	return nil
}

func TestUpdate_MetadataOnlyItemNeverOpensSource(t *testing.T) {
	// scenario: item 5 carries changed metadata for existing archive slot 3, with no new bytes.
	sourceOpened := make(map[int]bool)
	propertyAsked := make(map[int]bool)

	items := make([]UpdateItem, 6)
	for i := range items {
		i := i
		items[i] = UpdateItem{
			IndexInArchive: -1,
			NewData:        true,
			NewProperties:  true,
			Property: func(id props.ID) (propvar.Variant, error) {
				propertyAsked[i] = true
				return propvar.NewString(propvar.NewHostString(fmt.Sprintf("item-%d", i))), nil
			},
			Source: func() (engine.SequentialInStream, error) {
				sourceOpened[i] = true
				return bytes.NewReader([]byte("data")), nil
			},
		}
	}
	items[5].NewData = false
	items[5].IndexInArchive = 3

	w := &fakeWriter{}
	var out bytes.Buffer
	summary, err := Update(w, &out, items, UpdateHooks{})
	require.NoError(t, err)

	assert.True(t, propertyAsked[5], "metadata of item 5 must still be queried")
	assert.False(t, sourceOpened[5], "source of item 5 must never be opened")
	assert.Contains(t, w.calls, "copy(3->5)")
	assert.NotContains(t, w.calls, "stream(5)")
	assert.Equal(t, 6, summary.OK)
}

func TestUpdate_StreamForUnchangedDataIsRefused(t *testing.T) {
	opened := false
	cb := &updateCallback{items: []UpdateItem{{
		IndexInArchive: 3,
		NewProperties:  true,
		Source: func() (engine.SequentialInStream, error) {
			opened = true
			return nil, nil
		},
	}}}

	// even a misbehaving engine asking for the stream must be refused before the host's Source runs.
	_, err := cb.Stream(0)
	assert.ErrorIs(t, err, ErrNoNewData)
	assert.False(t, opened)
}

func TestUpdate_PropertyKindMismatchIsCaught(t *testing.T) {
	cb := &updateCallback{items: []UpdateItem{{
		NewProperties: true,
		Property: func(props.ID) (propvar.Variant, error) {
			return propvar.NewBool(true), nil
		},
	}}}

	// props.Size is exchanged as UInt64; a Bool answer must never reach the engine.
	_, err := cb.Property(0, props.Size)
	assert.ErrorContains(t, err, "want UInt64")
}

func TestUpdate_NewDataRequiresSource(t *testing.T) {
	_, err := Update(&fakeWriter{}, &bytes.Buffer{}, []UpdateItem{{NewData: true}}, UpdateHooks{})
	assert.Error(t, err)
}

func TestArchive_CloseDisposesInStream(t *testing.T) {
	r := &fakeReader{}

	closes := 0
	in := &closableStream{Reader: bytes.NewReader([]byte("head")), closes: &closes}

	a := New(r)
	require.NoError(t, a.Open(in))
	require.NoError(t, a.Close())

	assert.True(t, r.closed)
	assert.Equal(t, 1, closes)
}

type closableStream struct {
	*bytes.Reader
	closes *int
}

func (s *closableStream) Close() error {
	*s.closes++
	return nil
}
