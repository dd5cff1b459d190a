//go:build windows

package engine

import (
	"fmt"
	"unsafe"

	"github.com/nguyengg/zbridge/propvar"
	"golang.org/x/sys/windows"
)

// rawVariant is the engine's property-variant wire layout: a 16-bit tag, three reserved words, and an 8-byte-aligned
// payload union.
type rawVariant struct {
	vt       uint16
	reserved [3]uint16
	val      uint64
	val2     uint64
}

// fromRaw copies an engine-filled variant into the host representation.
//
// For string-by-reference payloads the engine-side allocation stays alive until the variant is Cleared; Clear hands
// the allocation back to the engine's release routine.
func fromRaw(raw *rawVariant) (propvar.Variant, error) {
	switch propvar.Kind(raw.vt) {
	case propvar.Empty:
		return propvar.Variant{}, nil
	case propvar.Bool:
		return propvar.NewBool(uint16(raw.val) != 0), nil
	case propvar.UInt8:
		return propvar.NewUInt8(uint8(raw.val)), nil
	case propvar.UInt32:
		return propvar.NewUInt32(uint32(raw.val)), nil
	case propvar.UInt64:
		return propvar.NewUInt64(raw.val), nil
	case propvar.Int64:
		return propvar.NewInt64(int64(raw.val)), nil
	case propvar.FileTime:
		// low and high halves laid out little-endian are exactly the 64-bit tick count.
		return propvar.NewTicks(raw.val), nil
	case propvar.String:
		addr := uintptr(raw.val)
		if addr == 0 {
			return propvar.NewString(propvar.NewStringRef(0, "", nil)), nil
		}
		value := windows.UTF16PtrToString((*uint16)(unsafe.Pointer(addr)))
		return propvar.NewString(propvar.NewStringRef(addr, value, func() error {
			_, _, _ = sysFreeString.Call(addr)
			return nil
		})), nil
	case propvar.Pointer:
		return propvar.NewPointer(uintptr(raw.val), nil), nil
	default:
		return propvar.Variant{}, fmt.Errorf("unsupported variant tag %d from engine", raw.vt)
	}
}

// toRaw fills an engine-owned variant slot from the host representation.
//
// String payloads are copied into a fresh engine-side allocation that the engine releases when it clears the variant.
func toRaw(v propvar.Variant, raw *rawVariant) error {
	*raw = rawVariant{vt: uint16(v.Kind())}

	switch v.Kind() {
	case propvar.Empty:
	case propvar.Bool:
		if b, _ := v.Bool(); b {
			raw.val = 0xFFFF
		}
	case propvar.UInt8:
		b, _ := v.Uint8()
		raw.val = uint64(b)
	case propvar.UInt32:
		u, _ := v.Uint32()
		raw.val = uint64(u)
	case propvar.UInt64:
		raw.val, _ = v.Uint64()
	case propvar.Int64:
		i, _ := v.Int64()
		raw.val = uint64(i)
	case propvar.FileTime:
		raw.val, _ = v.Ticks()
	case propvar.String:
		ref, _ := v.Str()
		bstr, err := allocString(ref.Value())
		if err != nil {
			return err
		}
		raw.val = uint64(bstr)
	default:
		return fmt.Errorf("cannot pass variant kind %s to engine", v.Kind())
	}
	return nil
}

// allocString copies s into an engine-side string allocation and returns its address.
func allocString(s string) (uintptr, error) {
	p, err := windows.UTF16PtrFromString(s)
	if err != nil {
		return 0, fmt.Errorf("encode string for engine error: %w", err)
	}

	bstr, _, _ := sysAllocString.Call(uintptr(unsafe.Pointer(p)))
	if bstr == 0 {
		return 0, fmt.Errorf("allocate engine string error: out of memory")
	}
	return bstr, nil
}
