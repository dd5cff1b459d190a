package zbridge

import (
	"fmt"
	"io"

	"github.com/nguyengg/zbridge/engine"
)

// ExtractHooks lets the host observe and steer one extract or test operation.
//
// Every hook is optional and is invoked synchronously on the operation's goroutine.
type ExtractHooks struct {
	// OnTotal receives the total number of bytes the operation will process.
	OnTotal func(total uint64)

	// OnCompleted receives monotonically non-decreasing byte progress.
	OnCompleted func(completed uint64)

	// Stream returns the sink for the item at index, or (nil, nil) to skip it.
	//
	// The bridge disposes the returned sink (if it is an io.Closer, e.g. *stream.Out) once the item's result has
	// been reported, on error paths included. A nil Stream hook skips every item, which is what test mode wants.
	Stream func(index uint32, mode engine.AskMode) (engine.SequentialOutStream, error)

	// OnResult receives the per-item outcome right after the item's stream has been drained and disposed.
	OnResult func(index uint32, result engine.OpResult)
}

// ItemResult is the reported outcome of one item.
type ItemResult struct {
	Index  uint32
	Result engine.OpResult
}

// Summary aggregates the per-item outcomes of one operation.
type Summary struct {
	Total     uint64
	Completed uint64

	OK                int
	UnsupportedMethod int
	DataErrors        int
	CRCErrors         int

	Items []ItemResult
}

func (s *Summary) record(index uint32, result engine.OpResult) {
	s.Items = append(s.Items, ItemResult{Index: index, Result: result})
	switch result {
	case engine.OpOK:
		s.OK++
	case engine.OpUnsupportedMethod:
		s.UnsupportedMethod++
	case engine.OpDataError:
		s.DataErrors++
	case engine.OpCRCError:
		s.CRCErrors++
	}
}

// Extract extracts the given item indexes (nil means all) through hooks.
//
// Per-item data and checksum errors are reported through hooks.OnResult and the Summary without aborting the
// operation; only an engine-level failure (or a callback returning engine.ErrAbort) fails the whole run. Either way
// every adapter handed out during the run has been disposed by the time Extract returns.
func (a *Archive) Extract(indexes []uint32, hooks ExtractHooks) (*Summary, error) {
	return a.run(indexes, false, hooks)
}

// Test verifies the given item indexes (nil means all) without producing output.
func (a *Archive) Test(indexes []uint32, hooks ExtractHooks) (*Summary, error) {
	return a.run(indexes, true, hooks)
}

func (a *Archive) run(indexes []uint32, testMode bool, hooks ExtractHooks) (*Summary, error) {
	if a.state != StateOpened && a.state != StateFinished {
		return nil, fmt.Errorf("extract error: operation is %s", a.state)
	}

	cb := &extractCallback{hooks: hooks}
	err := a.r.Extract(indexes, testMode, cb)

	// the current item's sink must be disposed no matter how the engine returned.
	if cerr := cb.closeSink(); err == nil && cerr != nil {
		err = cerr
	}

	if err != nil {
		a.state = StateFailed
		return &cb.summary, fmt.Errorf("extract error: %w", err)
	}

	a.state = StateFinished
	return &cb.summary, nil
}

// extractCallback adapts ExtractHooks to the engine's extract role and keeps the per-item bookkeeping: which index is
// in flight, the adapter that must be disposed before the engine moves on, and the running totals.
type extractCallback struct {
	hooks   ExtractHooks
	summary Summary

	index     uint32
	haveItem  bool
	sink      engine.SequentialOutStream
	completed uint64 // high-water mark; the engine never observes progress going backwards
}

var _ engine.ExtractCallback = (*extractCallback)(nil)

func (cb *extractCallback) SetTotal(total uint64) error {
	cb.summary.Total = total
	if cb.hooks.OnTotal != nil {
		cb.hooks.OnTotal(total)
	}
	return nil
}

func (cb *extractCallback) SetCompleted(completed uint64) error {
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

func (cb *extractCallback) Stream(index uint32, mode engine.AskMode) (engine.SequentialOutStream, error) {
	// a leftover sink here means the engine started a new item without reporting the previous one; dispose it
	// before anything else so no adapter outlives its item.
	if err := cb.closeSink(); err != nil {
		return nil, err
	}

	cb.index, cb.haveItem = index, true

	if mode == engine.AskSkip || cb.hooks.Stream == nil {
		return nil, engine.ErrSkip
	}

	sink, err := cb.hooks.Stream(index, mode)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, engine.ErrSkip
	}

	cb.sink = sink
	return sink, nil
}

func (cb *extractCallback) PrepareOperation(engine.AskMode) error {
	return nil
}

func (cb *extractCallback) SetOperationResult(result engine.OpResult) error {
	err := cb.closeSink()

	if cb.haveItem {
		cb.summary.record(cb.index, result)
		if cb.hooks.OnResult != nil {
			cb.hooks.OnResult(cb.index, result)
		}
		cb.haveItem = false
	}
	return err
}

func (cb *extractCallback) closeSink() error {
	if cb.sink == nil {
		return nil
	}

	sink := cb.sink
	cb.sink = nil
	if c, ok := sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("dispose item stream error: %w", err)
		}
	}
	return nil
}
