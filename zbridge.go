// Package zbridge drives a native archive engine through its callback protocol to extract from and update compressed
// archives.
//
// The engine (loaded by the engine package, or substituted by the pure-Go engine/goseven fallback) supplies all
// compression and container parsing; this package supplies the protocol glue: it hands the engine stream adapters for
// host-owned byte streams, answers its typed property queries, and tracks each operation through the
// open/per-item/finish state machine.
//
// The engine invokes every callback synchronously on the goroutine that started the operation and does not move to
// the next item until the current callback returns. Run a whole operation on a dedicated goroutine if the host needs
// to stay responsive; never block inside a callback waiting on external state. Independent operations, each with its
// own Archive, may run concurrently, but a single Archive, stream adapter, or variant belongs to exactly one
// operation at a time.
package zbridge

import "fmt"

// State is the lifecycle of one archive operation.
type State int32

const (
	StateNotStarted State = iota
	StateOpened
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateOpened:
		return "Opened"
	case StateFinished:
		return "Finished"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
