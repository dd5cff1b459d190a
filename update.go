package zbridge

import (
	"errors"
	"fmt"
	"io"

	"github.com/nguyengg/zbridge/engine"
	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/propvar"
)

// ErrNoNewData is returned to the engine when it asks for the source stream of an item whose data is unchanged.
//
// Metadata-only updates (NewData false, NewProperties true) legitimately have properties but no bytes to stream; a
// request for their stream is a protocol violation that must not reach the host's Source function.
var ErrNoNewData = errors.New("item has no new data to stream")

// UpdateItem describes one item of an update operation.
type UpdateItem struct {
	// IndexInArchive maps the item to an existing archive slot, or -1 when the item is newly added.
	IndexInArchive int32

	// NewData is true when the item's bytes must be (re)compressed from Source.
	NewData bool

	// NewProperties is true when the item's metadata changed.
	NewProperties bool

	// Property answers per-item metadata queries (props.Name, props.Size, props.LastWriteTime, ...).
	//
	// Nil, or returning an Empty variant, means "no answer".
	Property func(id props.ID) (propvar.Variant, error)

	// Source opens the item's content stream. Required when NewData is true; never invoked otherwise.
	//
	// The bridge disposes the returned stream (if it is an io.Closer, e.g. *stream.In) once the engine is done
	// with the item.
	Source func() (engine.SequentialInStream, error)
}

// UpdateHooks lets the host observe one update operation. Every hook is optional.
type UpdateHooks struct {
	OnTotal     func(total uint64)
	OnCompleted func(completed uint64)
	OnResult    func(index uint32, result engine.OpResult)
}

// Update writes a new archive of the given items to out, driving w through the update callback protocol.
//
// out is host-owned and stays open; close it (and flush any buffering) after Update returns. Source streams opened
// during the run are disposed before Update returns, on the abort path included.
func Update(w engine.Writer, out engine.SequentialOutStream, items []UpdateItem, hooks UpdateHooks) (*Summary, error) {
	for i, item := range items {
		if item.NewData && item.Source == nil {
			return nil, fmt.Errorf("update error: item %d has new data but no source", i)
		}
	}

	cb := &updateCallback{items: items, hooks: hooks}
	err := w.UpdateItems(out, uint32(len(items)), cb)

	if cerr := cb.closeSource(); err == nil && cerr != nil {
		err = cerr
	}

	if err != nil {
		return &cb.summary, fmt.Errorf("update error: %w", err)
	}
	return &cb.summary, nil
}

// updateCallback adapts a slice of UpdateItems to the engine's update role.
type updateCallback struct {
	items   []UpdateItem
	hooks   UpdateHooks
	summary Summary

	index     uint32
	haveItem  bool
	source    engine.SequentialInStream
	completed uint64
}

var _ engine.UpdateCallback = (*updateCallback)(nil)

func (cb *updateCallback) SetTotal(total uint64) error {
	cb.summary.Total = total
	if cb.hooks.OnTotal != nil {
		cb.hooks.OnTotal(total)
	}
	return nil
}

func (cb *updateCallback) SetCompleted(completed uint64) error {
	if completed < cb.completed {
		return nil
	}

	cb.completed = completed
	cb.summary.Completed = completed
	if cb.hooks.OnCompleted != nil {
		cb.hooks.OnCompleted(completed)
	}
	return nil
}

func (cb *updateCallback) UpdateItemInfo(index uint32) (bool, bool, int32, error) {
	item, err := cb.item(index)
	if err != nil {
		return false, false, -1, err
	}

	cb.index, cb.haveItem = index, true
	return item.NewData, item.NewProperties, item.IndexInArchive, nil
}

func (cb *updateCallback) Property(index uint32, id props.ID) (propvar.Variant, error) {
	item, err := cb.item(index)
	if err != nil {
		return propvar.Variant{}, err
	}

	if item.Property == nil {
		return propvar.Variant{}, nil
	}

	v, err := item.Property(id)
	if err != nil {
		return propvar.Variant{}, err
	}

	// catch schema mismatches before the value crosses the boundary.
	if want := props.KindOf(id); want != propvar.Empty && !v.IsEmpty() && v.Kind() != want {
		got := v.Kind()
		_ = v.Clear()
		return propvar.Variant{}, fmt.Errorf("item %d property %s: got kind %s, want %s", index, id, got, want)
	}
	return v, nil
}

func (cb *updateCallback) Stream(index uint32) (engine.SequentialInStream, error) {
	item, err := cb.item(index)
	if err != nil {
		return nil, err
	}
	if !item.NewData {
		return nil, fmt.Errorf("item %d: %w", index, ErrNoNewData)
	}

	if err = cb.closeSource(); err != nil {
		return nil, err
	}

	src, err := item.Source()
	if err != nil {
		return nil, fmt.Errorf("open source for item %d error: %w", index, err)
	}

	cb.index, cb.haveItem = index, true
	cb.source = src
	return src, nil
}

func (cb *updateCallback) SetOperationResult(result engine.OpResult) error {
	err := cb.closeSource()

	if cb.haveItem {
		cb.summary.record(cb.index, result)
		if cb.hooks.OnResult != nil {
			cb.hooks.OnResult(cb.index, result)
		}
		cb.haveItem = false
	}
	return err
}

func (cb *updateCallback) item(index uint32) (*UpdateItem, error) {
	if int(index) >= len(cb.items) {
		return nil, fmt.Errorf("item index %d out of range (%d items)", index, len(cb.items))
	}
	return &cb.items[index], nil
}

func (cb *updateCallback) closeSource() error {
	if cb.source == nil {
		return nil
	}

	src := cb.source
	cb.source = nil
	if c, ok := src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("dispose item source error: %w", err)
		}
	}
	return nil
}
