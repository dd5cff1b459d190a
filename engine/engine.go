// Package engine defines the binary calling contract of the native archive engine and loads the engine as a dynamic
// component.
//
// The boundary is a set of narrow interfaces, one per capability the engine knows how to talk to: input/output
// streams, the open/extract/update callback roles, and the archive reader/writer objects the engine hands back. The
// engine's raw result-code convention never leaks past this package; every foreign code is translated into a Go error
// at the FFI call site.
package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/propvar"
)

// ErrAbort, returned from any callback method, instructs the engine to abort the whole operation.
var ErrAbort = errors.New("operation aborted by callback")

// ErrSkip, returned from ExtractCallback.Stream, tells the engine there is no sink for the item and it must not
// attempt to write it.
var ErrSkip = errors.New("item skipped")

// AskMode tells an extract callback what the engine intends to do with the requested item.
//
// The numeric values are the engine's wire contract.
type AskMode int32

const (
	AskExtract AskMode = 0
	AskTest    AskMode = 1
	AskSkip    AskMode = 2
)

func (m AskMode) String() string {
	switch m {
	case AskExtract:
		return "Extract"
	case AskTest:
		return "Test"
	case AskSkip:
		return "Skip"
	default:
		return fmt.Sprintf("AskMode(%d)", int32(m))
	}
}

// OpResult is the engine's per-item outcome.
//
// The numeric values are the engine's wire contract.
type OpResult int32

const (
	OpOK                OpResult = 0
	OpUnsupportedMethod OpResult = 1
	OpDataError         OpResult = 2
	OpCRCError          OpResult = 3
)

func (r OpResult) String() string {
	switch r {
	case OpOK:
		return "OK"
	case OpUnsupportedMethod:
		return "UnsupportedMethod"
	case OpDataError:
		return "DataError"
	case OpCRCError:
		return "CRCError"
	default:
		return fmt.Sprintf("OpResult(%d)", int32(r))
	}
}

// SequentialInStream is the engine's read contract.
//
// Read follows io.Reader semantics with one strengthening: it must make at least one byte of progress whenever the
// buffer is non-empty and the source still has bytes, and it returns 0 bytes only at genuine end-of-data
// (io.EOF). Short reads are normal; the engine loops.
type SequentialInStream interface {
	io.Reader
}

// InStream adds random access to SequentialInStream.
type InStream interface {
	SequentialInStream
	io.Seeker
}

// SequentialOutStream is the engine's write contract. Partial writes are normal; the engine loops.
type SequentialOutStream interface {
	io.Writer
}

// OutStream adds random access and resizing to SequentialOutStream.
type OutStream interface {
	SequentialOutStream
	io.Seeker
	SetSize(size int64) error
}

// OpenCallback answers archive-level questions while the engine is opening an archive.
//
// Implementations may additionally satisfy PasswordProvider or OptionalPasswordProvider; the engine probes for those
// capabilities when it hits encrypted content.
type OpenCallback interface {
	// ArchiveProperty supplies an archive-level property such as props.Name or props.Size.
	//
	// Return an Empty variant for properties the host has no answer for.
	ArchiveProperty(id props.ID) (propvar.Variant, error)

	// VolumeStream resolves an additional volume of a multi-volume archive by name.
	VolumeStream(name string) (InStream, error)
}

// PasswordProvider supplies a password when the engine requests one.
type PasswordProvider interface {
	Password() (string, error)
}

// OptionalPasswordProvider additionally reports whether a password is defined at all, letting the engine skip
// prompting when none exists.
type OptionalPasswordProvider interface {
	PasswordProvider
	HasPassword() bool
}

// ExtractCallback is driven synchronously by the engine during extraction, one item at a time.
//
// For each item the engine calls PrepareOperation, then Stream, streams the bytes, then SetOperationResult.
type ExtractCallback interface {
	// SetTotal reports the total number of bytes the operation will process.
	SetTotal(total uint64) error

	// SetCompleted reports monotonically non-decreasing byte progress.
	SetCompleted(completed uint64) error

	// Stream returns the sink for the item at index given the engine's intent.
	//
	// Returning (nil, ErrSkip) or (nil, nil) means the engine must not write the item.
	Stream(index uint32, mode AskMode) (SequentialOutStream, error)

	// PrepareOperation is called immediately before streaming begins for the current item.
	PrepareOperation(mode AskMode) error

	// SetOperationResult reports the item's outcome immediately after its stream has been drained.
	SetOperationResult(result OpResult) error
}

// UpdateCallback mirrors ExtractCallback in the write direction.
type UpdateCallback interface {
	SetTotal(total uint64) error
	SetCompleted(completed uint64) error

	// UpdateItemInfo describes how item index relates to the existing archive.
	//
	// indexInArchive is -1 when the item does not map to an existing archive slot.
	UpdateItemInfo(index uint32) (newData, newProperties bool, indexInArchive int32, err error)

	// Property supplies one piece of per-item metadata.
	Property(index uint32, id props.ID) (propvar.Variant, error)

	// Stream supplies the source bytes for an item whose data is new or changed.
	Stream(index uint32) (SequentialInStream, error)

	SetOperationResult(result OpResult) error
}

// Reader is one archive handle opened for reading.
//
// A Reader is driven by exactly one operation at a time; concurrent operations need their own Reader.
type Reader interface {
	// Open reads the archive headers from in, scanning at most maxCheckStartPosition bytes for the signature
	// (pass a negative value for no limit), and consults cb for volumes, passwords, and archive properties.
	Open(in InStream, maxCheckStartPosition int64, cb OpenCallback) error

	Close() error

	NumberOfItems() (uint32, error)

	ItemProperty(index uint32, id props.ID) (propvar.Variant, error)

	ArchiveProperty(id props.ID) (propvar.Variant, error)

	// Extract processes the given item indexes in engine-chosen order, driving cb per item.
	//
	// indexes == nil means all items. testMode verifies integrity without producing output.
	Extract(indexes []uint32, testMode bool, cb ExtractCallback) error
}

// Writer is one archive handle opened for writing.
type Writer interface {
	// UpdateItems writes a new archive of numItems items to out, pulling item descriptions, metadata, and
	// source bytes from cb.
	UpdateItems(out SequentialOutStream, numItems uint32, cb UpdateCallback) error
}

// Engine is one loaded instance of the native component.
type Engine interface {
	// NewReader creates an archive reader for the given container format.
	NewReader(format Format) (Reader, error)

	// NewWriter creates an archive writer for the given container format.
	NewWriter(format Format) (Writer, error)

	Close() error
}
