// Package goseven is a pure-Go fallback engine for hosts that cannot load the native binary.
//
// It implements the engine.Reader contract for 7z archives on top of github.com/bodgit/sevenzip, driving the same
// callback protocol as the native engine so the rest of the bridge cannot tell the two apart. Compression and
// container parsing live entirely in that library; this package only speaks the protocol. The write direction is not
// supported.
package goseven

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nguyengg/zbridge/engine"
	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/propvar"
)

// ErrWriteUnsupported is returned by Engine.NewWriter; the fallback can only read.
var ErrWriteUnsupported = errors.New("goseven: write direction requires the native engine")

// ErrFormatUnsupported is returned by Engine.NewReader for formats other than 7z.
var ErrFormatUnsupported = errors.New("goseven: only the 7z format is supported")

// Engine implements engine.Engine without any native component.
type Engine struct{}

var _ engine.Engine = Engine{}

func (Engine) NewReader(format engine.Format) (engine.Reader, error) {
	if format != engine.Format7z {
		return nil, fmt.Errorf("%w (got %s)", ErrFormatUnsupported, format)
	}
	return &reader{}, nil
}

func (Engine) NewWriter(engine.Format) (engine.Writer, error) {
	return nil, ErrWriteUnsupported
}

func (Engine) Close() error {
	return nil
}

type reader struct {
	zr    *sevenzip.Reader
	in    engine.InStream
	items []item
}

type item struct {
	f *sevenzip.File
}

var _ engine.Reader = (*reader)(nil)

func (r *reader) Open(in engine.InStream, maxCheckStartPosition int64, cb engine.OpenCallback) error {
	size, err := in.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("open archive error: %w", err)
	}
	_ = maxCheckStartPosition // the library always locates the signature itself.

	ra := &readerAt{s: in}

	var zr *sevenzip.Reader
	if pw, ok := cb.(engine.OptionalPasswordProvider); ok && pw.HasPassword() {
		zr, err = openWithPassword(ra, size, pw)
	} else if pw, ok := cb.(engine.PasswordProvider); ok {
		zr, err = openWithPassword(ra, size, pw)
	} else {
		zr, err = sevenzip.NewReader(ra, size)
	}
	if err != nil {
		return fmt.Errorf("open archive error: %w", err)
	}

	r.zr = zr
	r.in = in
	r.items = r.items[:0]
	for _, f := range zr.File {
		r.items = append(r.items, item{f: f})
	}
	return nil
}

func openWithPassword(ra io.ReaderAt, size int64, pw engine.PasswordProvider) (*sevenzip.Reader, error) {
	password, err := pw.Password()
	if err != nil {
		return nil, err
	}
	return sevenzip.NewReaderWithPassword(ra, size, password)
}

func (r *reader) Close() error {
	r.zr, r.items = nil, nil
	if c, ok := r.in.(io.Closer); ok {
		r.in = nil
		return c.Close()
	}
	r.in = nil
	return nil
}

func (r *reader) NumberOfItems() (uint32, error) {
	if r.zr == nil {
		return 0, errors.New("archive is not open")
	}
	return uint32(len(r.items)), nil
}

func (r *reader) ItemProperty(index uint32, id props.ID) (propvar.Variant, error) {
	if int(index) >= len(r.items) {
		return propvar.Variant{}, fmt.Errorf("item index %d out of range", index)
	}

	fh := &r.items[index].f.FileHeader
	switch id {
	case props.Directory, props.Name:
		return propvar.NewString(propvar.NewHostString(fh.Name)), nil
	case props.IsFolder:
		return propvar.NewBool(r.items[index].f.FileInfo().IsDir()), nil
	case props.Size:
		return propvar.NewUInt64(fh.UncompressedSize), nil
	case props.Attributes:
		return propvar.NewUInt32(fh.Attributes), nil
	case props.CRC:
		return propvar.NewUInt32(fh.CRC32), nil
	case props.CreationTime:
		if fh.Created.IsZero() {
			return propvar.Variant{}, nil
		}
		return propvar.NewFileTime(fh.Created), nil
	case props.LastAccessTime:
		if fh.Accessed.IsZero() {
			return propvar.Variant{}, nil
		}
		return propvar.NewFileTime(fh.Accessed), nil
	case props.LastWriteTime:
		if fh.Modified.IsZero() {
			return propvar.Variant{}, nil
		}
		return propvar.NewFileTime(fh.Modified), nil
	default:
		// properties the library does not surface are answered as Empty, same as the native engine.
		return propvar.Variant{}, nil
	}
}

func (r *reader) ArchiveProperty(id props.ID) (propvar.Variant, error) {
	switch id {
	case props.Type:
		return propvar.NewString(propvar.NewHostString("7z")), nil
	default:
		return propvar.Variant{}, nil
	}
}

func (r *reader) Extract(indexes []uint32, testMode bool, cb engine.ExtractCallback) error {
	if r.zr == nil {
		return errors.New("archive is not open")
	}

	if indexes == nil {
		indexes = make([]uint32, len(r.items))
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
		if int(i) >= len(r.items) {
			return fmt.Errorf("item index %d out of range", i)
		}
		total += r.items[i].f.UncompressedSize
	}
	if err := cb.SetTotal(total); err != nil {
		return fmt.Errorf("extract error: %w", err)
	}

	var completed uint64
	for _, i := range indexes {
		n, err := r.extractOne(i, mode, completed, cb)
		if err != nil {
			return fmt.Errorf("extract error: %w", err)
		}

		completed += n
		if err = cb.SetCompleted(completed); err != nil {
			return fmt.Errorf("extract error: %w", err)
		}
	}
	return nil
}

// extractOne runs one item through the prepare/stream/result sequence. An error return aborts the whole operation;
// per-item data problems are reported through SetOperationResult instead and do not abort.
func (r *reader) extractOne(index uint32, mode engine.AskMode, completed uint64, cb engine.ExtractCallback) (uint64, error) {
	f := r.items[index].f

	if err := cb.PrepareOperation(mode); err != nil {
		return 0, err
	}

	sink, err := cb.Stream(index, mode)
	if errors.Is(err, engine.ErrSkip) {
		sink = nil
	} else if err != nil {
		return 0, err
	}

	if f.FileInfo().IsDir() {
		return 0, cb.SetOperationResult(engine.OpOK)
	}

	// a nil sink during a real extract downgrades the item to skip; test mode always drains to verify.
	if sink == nil {
		if mode != engine.AskTest {
			return 0, cb.SetOperationResult(engine.OpOK)
		}
		sink = io.Discard
	}

	n, opErr := r.copyItem(f, sink, completed, cb)
	if errors.Is(opErr, engine.ErrAbort) {
		return n, opErr
	}
	if err = cb.SetOperationResult(classify(opErr)); err != nil {
		return n, err
	}
	return n, nil
}

func (r *reader) copyItem(f *sevenzip.File, sink io.Writer, completed uint64, cb engine.ExtractCallback) (uint64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}

	var written uint64
	buf := make([]byte, 32*1024)
	for {
		nr, rerr := rc.Read(buf)
		if nr > 0 {
			p := buf[:nr]
			for len(p) > 0 {
				nw, werr := sink.Write(p)
				if werr != nil {
					_ = rc.Close()
					return written, werr
				}
				if nw == 0 {
					_ = rc.Close()
					return written, io.ErrShortWrite
				}
				p = p[nw:]
			}

			written += uint64(nr)
			if err = cb.SetCompleted(completed + written); err != nil {
				_ = rc.Close()
				return written, err
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = rc.Close()
			return written, rerr
		}
	}

	// the checksum verdict surfaces when the item reader is closed.
	return written, rc.Close()
}

// classify maps a library error onto the engine's per-item result codes.
func classify(err error) engine.OpResult {
	switch msg := errMessage(err); {
	case err == nil:
		return engine.OpOK
	case strings.Contains(msg, "checksum"), strings.Contains(msg, "crc"):
		return engine.OpCRCError
	case strings.Contains(msg, "unsupported"):
		return engine.OpUnsupportedMethod
	default:
		return engine.OpDataError
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return strings.ToLower(err.Error())
}

// readerAt adapts the engine's seekable stream to the random-access reads the library wants.
//
// Operations are single-threaded by contract, so seek-then-read needs no locking.
type readerAt struct {
	s engine.InStream
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.s.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	n, err := io.ReadFull(r.s, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}
