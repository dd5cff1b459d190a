// Package propvar implements the tagged property-variant value used to exchange typed metadata with the archive
// engine.
//
// A Variant carries exactly one payload selected by its Kind. The numeric Kind values mirror the engine's wire
// contract and must never be renumbered. Variants are short-lived: create one per property query or response, pass it
// across a single call boundary, then Clear it so any engine-allocated resource is released.
package propvar

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Kind discriminates the active payload of a Variant.
//
// The numeric values are the engine's wire contract.
type Kind uint16

const (
	Empty    Kind = 0
	String   Kind = 8 // string-by-reference, engine-allocated
	Bool     Kind = 11
	UInt8    Kind = 17
	UInt32   Kind = 19
	Int64    Kind = 20
	UInt64   Kind = 21
	Pointer  Kind = 26 // opaque handle
	FileTime Kind = 64 // 100ns ticks since 1601-01-01 UTC
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "Empty"
	case String:
		return "String"
	case Bool:
		return "Bool"
	case UInt8:
		return "UInt8"
	case UInt32:
		return "UInt32"
	case Int64:
		return "Int64"
	case UInt64:
		return "UInt64"
	case Pointer:
		return "Pointer"
	case FileTime:
		return "FileTime"
	default:
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
}

// KindError is returned by the typed getters when the caller assumed the wrong active kind.
type KindError struct {
	Want, Got Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("variant kind mismatch: want %s, got %s", e.Want, e.Got)
}

// ReleaseError wraps a failure from the engine's release routine during Clear.
//
// The variant is still reset to Empty; the error is informational and should not abort the surrounding operation.
type ReleaseError struct {
	Kind Kind
	Err  error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %s payload error: %v", e.Kind, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// StringRef is a string payload held by reference.
//
// Addr identifies the engine-side allocation; Value is a decoded copy for reading. Two String variants are equal only
// if they reference the same allocation, never by comparing Value (engine semantics, preserved as is).
type StringRef struct {
	addr    uintptr
	value   string
	release func() error
}

// NewStringRef wraps an engine-side string allocation.
//
// release may be nil for strings the engine retains ownership of.
func NewStringRef(addr uintptr, value string, release func() error) *StringRef {
	return &StringRef{addr: addr, value: value, release: release}
}

// NewHostString mints a host-side string reference with a process-unique identity and no release routine.
//
// Use it for metadata the host sends to the engine; identity-based equality still holds because every call returns a
// distinct identity.
func NewHostString(value string) *StringRef {
	return &StringRef{addr: uintptr(hostStringIDs.Add(1)), value: value}
}

var hostStringIDs atomic.Uint64

// Addr returns the identity of the referenced allocation.
func (r *StringRef) Addr() uintptr { return r.addr }

// Value returns the decoded string contents.
func (r *StringRef) Value() string { return r.value }

// Variant is a tagged union carrying one typed value. The zero value is Empty.
//
// Only the payload matching Kind is valid. A Variant holding a String or Pointer payload must be Cleared before reuse
// and before it goes out of scope; clearing a plain scalar is a zero-cost tag reset.
type Variant struct {
	kind    Kind
	scalar  uint64
	ref     *StringRef
	ptr     uintptr
	release func() error
}

// NewBool returns a Bool variant.
func NewBool(v bool) Variant {
	var s uint64
	if v {
		s = 1
	}
	return Variant{kind: Bool, scalar: s}
}

// NewUInt8 returns a UInt8 variant.
func NewUInt8(v uint8) Variant {
	return Variant{kind: UInt8, scalar: uint64(v)}
}

// NewUInt32 returns a UInt32 variant.
func NewUInt32(v uint32) Variant {
	return Variant{kind: UInt32, scalar: uint64(v)}
}

// NewUInt64 returns a UInt64 variant.
func NewUInt64(v uint64) Variant {
	return Variant{kind: UInt64, scalar: v}
}

// NewInt64 returns an Int64 variant.
func NewInt64(v int64) Variant {
	return Variant{kind: Int64, scalar: uint64(v)}
}

// NewFileTime returns a FileTime variant from a calendar timestamp.
//
// The conversion truncates to the engine's 100ns tick granularity.
func NewFileTime(t time.Time) Variant {
	return Variant{kind: FileTime, scalar: TicksFromTime(t)}
}

// NewTicks returns a FileTime variant from a raw tick count.
func NewTicks(ticks uint64) Variant {
	return Variant{kind: FileTime, scalar: ticks}
}

// NewString returns a String variant referencing ref.
func NewString(ref *StringRef) Variant {
	return Variant{kind: String, ref: ref}
}

// NewPointer returns a Pointer variant holding an opaque handle.
//
// release, if non-nil, is invoked by Clear to free the handle through the engine.
func NewPointer(addr uintptr, release func() error) Variant {
	return Variant{kind: Pointer, ptr: addr, release: release}
}

// Kind returns the active kind.
func (v Variant) Kind() Kind { return v.kind }

// IsEmpty reports whether no payload is active.
func (v Variant) IsEmpty() bool { return v.kind == Empty }

// Bool returns the Bool payload.
func (v Variant) Bool() (bool, error) {
	if v.kind != Bool {
		return false, &KindError{Want: Bool, Got: v.kind}
	}
	return v.scalar != 0, nil
}

// Uint8 returns the UInt8 payload.
func (v Variant) Uint8() (uint8, error) {
	if v.kind != UInt8 {
		return 0, &KindError{Want: UInt8, Got: v.kind}
	}
	return uint8(v.scalar), nil
}

// Uint32 returns the UInt32 payload.
func (v Variant) Uint32() (uint32, error) {
	if v.kind != UInt32 {
		return 0, &KindError{Want: UInt32, Got: v.kind}
	}
	return uint32(v.scalar), nil
}

// Uint64 returns the UInt64 payload.
func (v Variant) Uint64() (uint64, error) {
	if v.kind != UInt64 {
		return 0, &KindError{Want: UInt64, Got: v.kind}
	}
	return v.scalar, nil
}

// Int64 returns the Int64 payload.
func (v Variant) Int64() (int64, error) {
	if v.kind != Int64 {
		return 0, &KindError{Want: Int64, Got: v.kind}
	}
	return int64(v.scalar), nil
}

// Ticks returns the FileTime payload as a raw 100ns tick count.
func (v Variant) Ticks() (uint64, error) {
	if v.kind != FileTime {
		return 0, &KindError{Want: FileTime, Got: v.kind}
	}
	return v.scalar, nil
}

// FileTime returns the FileTime payload as a calendar timestamp in UTC.
func (v Variant) FileTime() (time.Time, error) {
	if v.kind != FileTime {
		return time.Time{}, &KindError{Want: FileTime, Got: v.kind}
	}
	return TimeFromTicks(v.scalar), nil
}

// Str returns the String payload.
func (v Variant) Str() (*StringRef, error) {
	if v.kind != String {
		return nil, &KindError{Want: String, Got: v.kind}
	}
	return v.ref, nil
}

// Pointer returns the Pointer payload.
func (v Variant) Pointer() (uintptr, error) {
	if v.kind != Pointer {
		return 0, &KindError{Want: Pointer, Got: v.kind}
	}
	return v.ptr, nil
}

// Clear releases any referenced resource through the engine's release routine, then resets the variant to Empty.
//
// Clear is idempotent. A release failure is returned as *ReleaseError but never prevents the reset; callers should
// record it and carry on.
func (v *Variant) Clear() error {
	var release func() error
	var kind = v.kind

	switch v.kind {
	case String:
		if v.ref != nil {
			release = v.ref.release
		}
	case Pointer:
		release = v.release
	}

	*v = Variant{}

	if release != nil {
		if err := release(); err != nil {
			return &ReleaseError{Kind: kind, Err: err}
		}
	}
	return nil
}

// Equal reports whether two variants hold the same value.
//
// Kinds must match. Scalar payloads compare widened to 64 bits; String payloads compare by referenced identity, not
// by contents.
func (v Variant) Equal(o Variant) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case Empty:
		return true
	case String:
		if v.ref == o.ref {
			return true
		}
		return v.ref != nil && o.ref != nil && v.ref.addr == o.ref.addr
	case Pointer:
		return v.ptr == o.ptr
	default:
		return v.scalar == o.scalar
	}
}

// Hash returns a hash consistent with Equal.
func (v Variant) Hash() uint64 {
	var payload uint64
	switch v.kind {
	case Empty:
	case String:
		if v.ref != nil {
			payload = uint64(v.ref.addr)
		}
	case Pointer:
		payload = uint64(v.ptr)
	default:
		payload = v.scalar
	}

	// fibonacci hashing on the kind, xor'ed with the widened payload.
	return (uint64(v.kind)+1)*0x9e3779b97f4a7c15 ^ payload
}

// Scoped invokes fn with the variant and clears it on every exit path, including panics.
//
// The release error, if any, is returned only when fn itself succeeded.
func Scoped(v *Variant, fn func(*Variant) error) (err error) {
	defer func() {
		cerr := v.Clear()
		if err == nil {
			err = cerr
		}
	}()
	return fn(v)
}
