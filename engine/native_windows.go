//go:build windows

package engine

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/propvar"
	"golang.org/x/sys/windows"
)

const defaultLibraryPath = "7z.dll"

var (
	oleaut32       = windows.NewLazySystemDLL("oleaut32.dll")
	sysAllocString = oleaut32.NewProc("SysAllocString")
	sysFreeString  = oleaut32.NewProc("SysFreeString")
)

// library binds the engine binary's single entry point.
type library struct {
	dll          *windows.DLL
	createObject *windows.Proc
}

func load(path string) (Engine, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, err
	}

	proc, err := dll.FindProc("CreateObject")
	if err != nil {
		_ = dll.Release()
		return nil, err
	}

	return &library{dll: dll, createObject: proc}, nil
}

func (l *library) newObject(clsid, riid IID) (uintptr, error) {
	var obj uintptr
	hr, _, _ := l.createObject.Call(
		uintptr(unsafe.Pointer(&clsid)),
		uintptr(unsafe.Pointer(&riid)),
		uintptr(unsafe.Pointer(&obj)))
	if err := HResult(hr).err("create engine object"); err != nil {
		return 0, err
	}
	if obj == 0 {
		return 0, fmt.Errorf("create engine object error: engine returned no object")
	}
	return obj, nil
}

func (l *library) NewReader(format Format) (Reader, error) {
	obj, err := l.newObject(format.ClassID(), IIDInArchive)
	if err != nil {
		return nil, fmt.Errorf("%s reader: %w", format, err)
	}
	return &nativeReader{obj: obj}, nil
}

func (l *library) NewWriter(format Format) (Writer, error) {
	obj, err := l.newObject(format.ClassID(), IIDOutArchive)
	if err != nil {
		return nil, fmt.Errorf("%s writer: %w", format, err)
	}
	return &nativeWriter{obj: obj}, nil
}

func (l *library) Close() error {
	return l.dll.Release()
}

// comCall dispatches through the object's vtable by method ordinal.
func comCall(obj uintptr, ordinal uintptr, args ...uintptr) HResult {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	method := *(*uintptr)(unsafe.Pointer(vtbl + ordinal*unsafe.Sizeof(uintptr(0))))
	hr, _, _ := syscall.SyscallN(method, append([]uintptr{obj}, args...)...)
	return HResult(hr)
}

func comRelease(obj uintptr) {
	if obj != 0 {
		_ = comCall(obj, 2)
	}
}

// nativeReader drives the engine's archive-reader object. Vtable ordinals are fixed by the binary contract.
type nativeReader struct {
	obj uintptr
}

const (
	ordReaderOpen = iota + 3
	ordReaderClose
	ordReaderNumberOfItems
	ordReaderGetProperty
	ordReaderExtract
	ordReaderGetArchiveProperty
)

func (r *nativeReader) Open(in InStream, maxCheckStartPosition int64, cb OpenCallback) error {
	inObj := exportInStream(in)
	defer comRelease(inObj)

	cbObj := export(&openCallbackExport{cb: cb})
	defer comRelease(cbObj)

	maxCheck := maxCheckArg(maxCheckStartPosition)
	hr := comCall(r.obj, ordReaderOpen, inObj, uintptr(unsafe.Pointer(maxCheck)), cbObj)
	runtime.KeepAlive(maxCheck)
	return hr.err("open archive")
}

// maxCheckArg maps the scan limit onto the engine's optional-pointer convention: nil means no limit.
func maxCheckArg(maxCheckStartPosition int64) *uint64 {
	if maxCheckStartPosition < 0 {
		return nil
	}
	v := uint64(maxCheckStartPosition)
	return &v
}

func (r *nativeReader) Close() error {
	err := comCall(r.obj, ordReaderClose).err("close archive")
	comRelease(r.obj)
	r.obj = 0
	return err
}

func (r *nativeReader) NumberOfItems() (uint32, error) {
	var n uint32
	if err := comCall(r.obj, ordReaderNumberOfItems, uintptr(unsafe.Pointer(&n))).err("get item count"); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *nativeReader) ItemProperty(index uint32, id props.ID) (propvar.Variant, error) {
	var raw rawVariant
	hr := comCall(r.obj, ordReaderGetProperty,
		uintptr(index), uintptr(uint32(id)), uintptr(unsafe.Pointer(&raw)))
	if err := hr.err("get item property"); err != nil {
		return propvar.Variant{}, err
	}
	return fromRaw(&raw)
}

func (r *nativeReader) ArchiveProperty(id props.ID) (propvar.Variant, error) {
	var raw rawVariant
	hr := comCall(r.obj, ordReaderGetArchiveProperty,
		uintptr(uint32(id)), uintptr(unsafe.Pointer(&raw)))
	if err := hr.err("get archive property"); err != nil {
		return propvar.Variant{}, err
	}
	return fromRaw(&raw)
}

func (r *nativeReader) Extract(indexes []uint32, testMode bool, cb ExtractCallback) error {
	cbObj := export(&extractCallbackExport{cb: cb})
	defer comRelease(cbObj)

	indices, num := extractIndexArgs(indexes)

	var test uintptr
	if testMode {
		test = 1
	}

	hr := comCall(r.obj, ordReaderExtract, indices, uintptr(num), test, cbObj)
	runtime.KeepAlive(indexes)
	return hr.err("extract")
}

// extractIndexArgs marshals the index selection: nil selects every item (the all-ones count with no array), an empty
// slice selects none.
func extractIndexArgs(indexes []uint32) (indices uintptr, num uint32) {
	if indexes == nil {
		return 0, 0xFFFFFFFF
	}
	if len(indexes) == 0 {
		return 0, 0
	}
	return uintptr(unsafe.Pointer(&indexes[0])), uint32(len(indexes))
}

type nativeWriter struct {
	obj uintptr
}

const ordWriterUpdateItems = 3

func (w *nativeWriter) UpdateItems(out SequentialOutStream, numItems uint32, cb UpdateCallback) error {
	outObj := exportOutStream(out)
	defer comRelease(outObj)

	cbObj := export(&updateCallbackExport{cb: cb})
	defer comRelease(cbObj)

	return comCall(w.obj, ordWriterUpdateItems, outObj, uintptr(numItems), cbObj).err("update items")
}
