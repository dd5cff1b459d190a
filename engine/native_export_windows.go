//go:build windows

package engine

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/nguyengg/zbridge/props"
	"golang.org/x/sys/windows"
)

// Host callback implementations are handed to the engine as objects whose first pointer is a vtable of the role's
// methods. The vtables are built once per role from syscall.NewCallback trampolines; per-object state lives in a
// registry keyed by a handle stored right after the vtable pointer, so the trampolines can find their way back to the
// Go implementation.

var iidUnknown = IID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}

// comExport is the exact memory the engine sees: vtable first, registry handle second.
type comExport struct {
	vtbl *uintptr
	id   uintptr
}

type exportEntry struct {
	impl any

	// password capabilities resolved once at export time so crypto tear-offs need no repeated assertions.
	pw  PasswordProvider
	pw2 OptionalPasswordProvider

	iids []IID
	refs int32

	mu   sync.Mutex
	objs map[IID]*comExport // primary object plus lazily created tear-offs, kept alive here
}

var exports = struct {
	sync.RWMutex
	m    map[uintptr]*exportEntry
	next uintptr
}{m: make(map[uintptr]*exportEntry)}

type inStreamExport struct {
	s SequentialInStream
}

type outStreamExport struct {
	s SequentialOutStream
}

type openCallbackExport struct {
	cb OpenCallback
}

type extractCallbackExport struct {
	cb ExtractCallback
}

type updateCallbackExport struct {
	cb UpdateCallback
}

// export registers impl and returns the pointer of its primary object, holding one reference the caller must
// eventually drop via comRelease.
func export(impl any) uintptr {
	e := &exportEntry{impl: impl, refs: 1, objs: make(map[IID]*comExport)}

	switch x := impl.(type) {
	case *inStreamExport:
		if _, ok := x.s.(io.Seeker); ok {
			e.iids = []IID{IIDInStream, IIDSequentialInStream}
		} else {
			e.iids = []IID{IIDSequentialInStream}
		}
	case *outStreamExport:
		if _, ok := x.s.(OutStream); ok {
			e.iids = []IID{IIDOutStream, IIDSequentialOutStream}
		} else {
			e.iids = []IID{IIDSequentialOutStream}
		}
	case *openCallbackExport:
		e.iids = []IID{IIDArchiveOpenCallback, IIDArchiveOpenVolumeCallback}
		e.resolvePasswords(x.cb)
	case *extractCallbackExport:
		e.iids = []IID{IIDArchiveExtractCallback}
		e.resolvePasswords(x.cb)
	case *updateCallbackExport:
		e.iids = []IID{IIDArchiveUpdateCallback}
		e.resolvePasswords(x.cb)
	default:
		panic("engine: unknown export type")
	}

	exports.Lock()
	exports.next++
	id := exports.next
	exports.m[id] = e
	exports.Unlock()

	return uintptr(unsafe.Pointer(e.object(id, e.iids[0])))
}

func (e *exportEntry) resolvePasswords(cb any) {
	if pw, ok := cb.(PasswordProvider); ok {
		e.pw = pw
		e.iids = append(e.iids, IIDCryptoGetTextPassword)
	}
	if pw2, ok := cb.(OptionalPasswordProvider); ok {
		e.pw2 = pw2
		e.iids = append(e.iids, IIDCryptoGetTextPassword2)
	}
}

// object returns the entry's object for the given role, creating the tear-off on first use.
func (e *exportEntry) object(id uintptr, riid IID) *comExport {
	e.mu.Lock()
	defer e.mu.Unlock()

	if obj, ok := e.objs[riid]; ok {
		return obj
	}

	obj := &comExport{vtbl: vtableFor(riid), id: id}
	e.objs[riid] = obj
	return obj
}

func (e *exportEntry) supports(riid IID) bool {
	for _, i := range e.iids {
		if i == riid {
			return true
		}
	}
	return false
}

func entryOf(this uintptr) (uintptr, *exportEntry) {
	id := (*comExport)(unsafe.Pointer(this)).id

	exports.RLock()
	e := exports.m[id]
	exports.RUnlock()
	return id, e
}

func exportInStream(s SequentialInStream) uintptr {
	return export(&inStreamExport{s: s})
}

func exportOutStream(s SequentialOutStream) uintptr {
	return export(&outStreamExport{s: s})
}

// Standard object plumbing shared by every exported role.

func stdQueryInterface(this, riid, out uintptr) uintptr {
	if riid == 0 || out == 0 {
		return uintptr(hrInvalidArg)
	}
	*(*uintptr)(unsafe.Pointer(out)) = 0

	id, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}

	want := *(*IID)(unsafe.Pointer(riid))
	if want == iidUnknown {
		want = e.iids[0]
	}
	if !e.supports(want) {
		return uintptr(hrNoInterface)
	}

	atomic.AddInt32(&e.refs, 1)
	*(*uintptr)(unsafe.Pointer(out)) = uintptr(unsafe.Pointer(e.object(id, want)))
	return uintptr(hrOK)
}

func stdAddRef(this uintptr) uintptr {
	if _, e := entryOf(this); e != nil {
		return uintptr(atomic.AddInt32(&e.refs, 1))
	}
	return 1
}

func stdRelease(this uintptr) uintptr {
	id, e := entryOf(this)
	if e == nil {
		return 0
	}

	n := atomic.AddInt32(&e.refs, -1)
	if n == 0 {
		exports.Lock()
		delete(exports.m, id)
		exports.Unlock()
	}
	return uintptr(n)
}

// Role vtables, assembled once. The backing arrays live for the process lifetime.

var (
	vtblOnce sync.Once
	vtbls    map[IID][]uintptr
)

func vtableFor(riid IID) *uintptr {
	vtblOnce.Do(buildVtables)
	v := vtbls[riid]
	return &v[0]
}

func buildVtables() {
	qi := syscall.NewCallback(stdQueryInterface)
	addRef := syscall.NewCallback(stdAddRef)
	release := syscall.NewCallback(stdRelease)

	std := []uintptr{qi, addRef, release}

	read := syscall.NewCallback(streamRead)
	seekIn := syscall.NewCallback(streamSeek)
	write := syscall.NewCallback(streamWrite)
	seekOut := syscall.NewCallback(outSeek)

	vtbls = map[IID][]uintptr{
		IIDSequentialInStream:  append(append([]uintptr{}, std...), read),
		IIDInStream:            append(append([]uintptr{}, std...), read, seekIn),
		IIDSequentialOutStream: append(append([]uintptr{}, std...), write),
		IIDOutStream: append(append([]uintptr{}, std...),
			write, seekOut, syscall.NewCallback(outSetSize)),

		IIDArchiveOpenCallback: append(append([]uintptr{}, std...),
			syscall.NewCallback(openSetTotal),
			syscall.NewCallback(openSetCompleted)),
		IIDArchiveOpenVolumeCallback: append(append([]uintptr{}, std...),
			syscall.NewCallback(openGetProperty),
			syscall.NewCallback(openGetStream)),

		IIDCryptoGetTextPassword: append(append([]uintptr{}, std...),
			syscall.NewCallback(cryptoGetTextPassword)),
		IIDCryptoGetTextPassword2: append(append([]uintptr{}, std...),
			syscall.NewCallback(cryptoGetTextPassword2)),

		IIDArchiveExtractCallback: append(append([]uintptr{}, std...),
			syscall.NewCallback(extractSetTotal),
			syscall.NewCallback(extractSetCompleted),
			syscall.NewCallback(extractGetStream),
			syscall.NewCallback(extractPrepareOperation),
			syscall.NewCallback(extractSetOperationResult)),

		IIDArchiveUpdateCallback: append(append([]uintptr{}, std...),
			syscall.NewCallback(updateSetTotal),
			syscall.NewCallback(updateSetCompleted),
			syscall.NewCallback(updateGetUpdateItemInfo),
			syscall.NewCallback(updateGetProperty),
			syscall.NewCallback(updateGetStream),
			syscall.NewCallback(updateSetOperationResult)),
	}
}

// Stream role methods.

func streamRead(this, data, size, processed uintptr) uintptr {
	if processed != 0 {
		*(*uint32)(unsafe.Pointer(processed)) = 0
	}
	if size == 0 {
		return uintptr(hrOK)
	}

	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	s := e.impl.(*inStreamExport).s

	buf := unsafe.Slice((*byte)(unsafe.Pointer(data)), int(uint32(size)))
	n, err := s.Read(buf)
	if processed != 0 {
		*(*uint32)(unsafe.Pointer(processed)) = uint32(n)
	}

	// zero bytes with a clean result is how end-of-data crosses the boundary.
	if err != nil && !errors.Is(err, io.EOF) {
		return uintptr(toHResult(err))
	}
	return uintptr(hrOK)
}

func streamSeek(this, offset, origin, newPosition uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}

	s, ok := e.impl.(*inStreamExport).s.(io.Seeker)
	if !ok {
		return uintptr(hrNotImpl)
	}
	return uintptr(doSeek(s, int64(offset), uint32(origin), newPosition))
}

func outSeek(this, offset, origin, newPosition uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}

	s, ok := e.impl.(*outStreamExport).s.(io.Seeker)
	if !ok {
		return uintptr(hrNotImpl)
	}
	return uintptr(doSeek(s, int64(offset), uint32(origin), newPosition))
}

// doSeek maps the engine's origin convention (0 begin, 1 current, 2 end) onto io.Seeker whence values, which happen
// to coincide.
func doSeek(s io.Seeker, offset int64, origin uint32, newPosition uintptr) HResult {
	if origin > 2 {
		return hrInvalidArg
	}

	pos, err := s.Seek(offset, int(origin))
	if err != nil {
		return toHResult(err)
	}
	if newPosition != 0 {
		*(*uint64)(unsafe.Pointer(newPosition)) = uint64(pos)
	}
	return hrOK
}

func streamWrite(this, data, size, processed uintptr) uintptr {
	if processed != 0 {
		*(*uint32)(unsafe.Pointer(processed)) = 0
	}
	if size == 0 {
		return uintptr(hrOK)
	}

	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	s := e.impl.(*outStreamExport).s

	buf := unsafe.Slice((*byte)(unsafe.Pointer(data)), int(uint32(size)))
	n, err := s.Write(buf)
	if processed != 0 {
		*(*uint32)(unsafe.Pointer(processed)) = uint32(n)
	}
	if err != nil {
		return uintptr(toHResult(err))
	}
	return uintptr(hrOK)
}

func outSetSize(this, newSize uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}

	s, ok := e.impl.(*outStreamExport).s.(OutStream)
	if !ok {
		return uintptr(hrNotImpl)
	}
	return uintptr(toHResult(s.SetSize(int64(newSize))))
}

// Open-volume role methods.

func openSetTotal(this, files, bytes uintptr) uintptr {
	// advisory; the open phase reports no granular progress upward.
	return uintptr(hrOK)
}

func openSetCompleted(this, files, bytes uintptr) uintptr {
	return uintptr(hrOK)
}

func openGetProperty(this, propID, value uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil || value == 0 {
		return uintptr(hrFail)
	}
	cb := e.impl.(*openCallbackExport).cb

	v, err := cb.ArchiveProperty(props.ID(uint32(propID)))
	if err != nil {
		return uintptr(toHResult(err))
	}
	defer v.Clear()

	if err = toRaw(v, (*rawVariant)(unsafe.Pointer(value))); err != nil {
		return uintptr(toHResult(err))
	}
	return uintptr(hrOK)
}

func openGetStream(this, name, inStream uintptr) uintptr {
	if inStream == 0 {
		return uintptr(hrInvalidArg)
	}
	*(*uintptr)(unsafe.Pointer(inStream)) = 0

	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	cb := e.impl.(*openCallbackExport).cb

	s, err := cb.VolumeStream(windows.UTF16PtrToString((*uint16)(unsafe.Pointer(name))))
	if err != nil {
		return uintptr(toHResult(err))
	}
	if s == nil {
		// no such volume; a clean false result lets the engine stop probing.
		return uintptr(hrFalse)
	}

	*(*uintptr)(unsafe.Pointer(inStream)) = exportInStream(s)
	return uintptr(hrOK)
}

// Password role methods.

func cryptoGetTextPassword(this, password uintptr) uintptr {
	if password == 0 {
		return uintptr(hrInvalidArg)
	}
	*(*uintptr)(unsafe.Pointer(password)) = 0

	_, e := entryOf(this)
	if e == nil || e.pw == nil {
		return uintptr(hrNotImpl)
	}

	p, err := e.pw.Password()
	if err != nil {
		return uintptr(toHResult(err))
	}

	bstr, err := allocString(p)
	if err != nil {
		return uintptr(toHResult(err))
	}
	*(*uintptr)(unsafe.Pointer(password)) = bstr
	return uintptr(hrOK)
}

func cryptoGetTextPassword2(this, passwordIsDefined, password uintptr) uintptr {
	if passwordIsDefined == 0 || password == 0 {
		return uintptr(hrInvalidArg)
	}
	*(*int32)(unsafe.Pointer(passwordIsDefined)) = 0
	*(*uintptr)(unsafe.Pointer(password)) = 0

	_, e := entryOf(this)
	if e == nil || e.pw2 == nil {
		return uintptr(hrNotImpl)
	}

	if !e.pw2.HasPassword() {
		return uintptr(hrOK)
	}

	p, err := e.pw2.Password()
	if err != nil {
		return uintptr(toHResult(err))
	}

	bstr, err := allocString(p)
	if err != nil {
		return uintptr(toHResult(err))
	}
	*(*int32)(unsafe.Pointer(passwordIsDefined)) = 1
	*(*uintptr)(unsafe.Pointer(password)) = bstr
	return uintptr(hrOK)
}

// Extract role methods.

func extractSetTotal(this, total uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	return uintptr(toHResult(e.impl.(*extractCallbackExport).cb.SetTotal(uint64(total))))
}

func extractSetCompleted(this, completed uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	if completed == 0 {
		return uintptr(hrOK)
	}
	return uintptr(toHResult(e.impl.(*extractCallbackExport).cb.SetCompleted(*(*uint64)(unsafe.Pointer(completed)))))
}

func extractGetStream(this, index, outStream, askExtractMode uintptr) uintptr {
	if outStream == 0 {
		return uintptr(hrInvalidArg)
	}
	*(*uintptr)(unsafe.Pointer(outStream)) = 0

	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}

	s, err := e.impl.(*extractCallbackExport).cb.Stream(uint32(index), AskMode(int32(askExtractMode)))
	switch {
	case errors.Is(err, ErrSkip), err == nil && s == nil:
		// no sink; the engine must not write this item.
		return uintptr(hrOK)
	case err != nil:
		return uintptr(toHResult(err))
	}

	*(*uintptr)(unsafe.Pointer(outStream)) = exportOutStream(s)
	return uintptr(hrOK)
}

func extractPrepareOperation(this, askExtractMode uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	return uintptr(toHResult(e.impl.(*extractCallbackExport).cb.PrepareOperation(AskMode(int32(askExtractMode)))))
}

func extractSetOperationResult(this, result uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	return uintptr(toHResult(e.impl.(*extractCallbackExport).cb.SetOperationResult(OpResult(int32(result)))))
}

// Update role methods.

func updateSetTotal(this, total uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	return uintptr(toHResult(e.impl.(*updateCallbackExport).cb.SetTotal(uint64(total))))
}

func updateSetCompleted(this, completed uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	if completed == 0 {
		return uintptr(hrOK)
	}
	return uintptr(toHResult(e.impl.(*updateCallbackExport).cb.SetCompleted(*(*uint64)(unsafe.Pointer(completed)))))
}

func updateGetUpdateItemInfo(this, index, newData, newProperties, indexInArchive uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}

	nd, np, idx, err := e.impl.(*updateCallbackExport).cb.UpdateItemInfo(uint32(index))
	if err != nil {
		return uintptr(toHResult(err))
	}

	if newData != 0 {
		*(*int32)(unsafe.Pointer(newData)) = b2i(nd)
	}
	if newProperties != 0 {
		*(*int32)(unsafe.Pointer(newProperties)) = b2i(np)
	}
	if indexInArchive != 0 {
		// -1 crosses the boundary as the all-ones index.
		*(*uint32)(unsafe.Pointer(indexInArchive)) = uint32(idx)
	}
	return uintptr(hrOK)
}

func updateGetProperty(this, index, propID, value uintptr) uintptr {
	if value == 0 {
		return uintptr(hrInvalidArg)
	}

	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}

	v, err := e.impl.(*updateCallbackExport).cb.Property(uint32(index), props.ID(uint32(propID)))
	if err != nil {
		return uintptr(toHResult(err))
	}
	defer v.Clear()

	if err = toRaw(v, (*rawVariant)(unsafe.Pointer(value))); err != nil {
		return uintptr(toHResult(err))
	}
	return uintptr(hrOK)
}

func updateGetStream(this, index, inStream uintptr) uintptr {
	if inStream == 0 {
		return uintptr(hrInvalidArg)
	}
	*(*uintptr)(unsafe.Pointer(inStream)) = 0

	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}

	s, err := e.impl.(*updateCallbackExport).cb.Stream(uint32(index))
	if err != nil {
		return uintptr(toHResult(err))
	}
	if s == nil {
		return uintptr(hrFalse)
	}

	*(*uintptr)(unsafe.Pointer(inStream)) = exportInStream(s)
	return uintptr(hrOK)
}

func updateSetOperationResult(this, result uintptr) uintptr {
	_, e := entryOf(this)
	if e == nil {
		return uintptr(hrFail)
	}
	return uintptr(toHResult(e.impl.(*updateCallbackExport).cb.SetOperationResult(OpResult(int32(result)))))
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
