package engine

import (
	"errors"
	"fmt"
)

// HResult is the engine's raw signed 32-bit result-code convention. Zero is success; the high bit set means failure.
//
// HResult values are confined to this package: every FFI call site translates them into Go errors immediately, and
// callback errors are translated back right before control returns to the engine.
type HResult uint32

const (
	hrOK           HResult = 0x00000000
	hrFalse        HResult = 0x00000001
	hrNotImpl      HResult = 0x80004001
	hrNoInterface  HResult = 0x80004002
	hrAbort        HResult = 0x80004004
	hrFail         HResult = 0x80004005
	hrInvalidArg   HResult = 0x80070057
	hrOutOfMemory  HResult = 0x8007000E
	hrDataMismatch HResult = 0x80070026 // reached end of data
)

// EngineError is a failure result code from the engine that has no more specific translation.
type EngineError struct {
	HR HResult
	Op string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s error: engine result code 0x%08X", e.Op, uint32(e.HR))
}

// err translates a result code returned by the engine into a Go error; op names the failed operation.
func (hr HResult) err(op string) error {
	switch hr {
	case hrOK, hrFalse:
		return nil
	case hrAbort:
		return fmt.Errorf("%s error: %w", op, ErrAbort)
	default:
		return &EngineError{HR: hr, Op: op}
	}
}

// toHResult translates an error from a host callback into the result code handed back to the engine.
func toHResult(err error) HResult {
	switch {
	case err == nil:
		return hrOK
	case errors.Is(err, ErrAbort):
		return hrAbort
	default:
		return hrFail
	}
}
