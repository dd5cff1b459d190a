package zbridge

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nguyengg/zbridge/engine"
	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/propvar"
	"github.com/nguyengg/zbridge/stream"
	"github.com/nguyengg/zbridge/volume"
)

// OpenOptions customises Archive.Open.
type OpenOptions struct {
	// MaxCheckStartPosition caps how far the engine may scan for the archive signature. Negative means no limit.
	MaxCheckStartPosition int64

	// Volumes resolves additional volume streams of multi-volume archives. Nil means single-volume only.
	Volumes volume.Source

	// VolumeContext is passed to Volumes.Open. Defaults to context.Background.
	VolumeContext context.Context

	// ArchiveProperty answers archive-level property queries the engine makes while opening.
	//
	// Nil, or returning an Empty variant, means "no answer".
	ArchiveProperty func(id props.ID) (propvar.Variant, error)

	password    func() (string, error)
	hasPassword func() bool
}

// WithVolumes resolves multi-volume archives through src.
func WithVolumes(src volume.Source) func(*OpenOptions) {
	return func(opts *OpenOptions) {
		opts.Volumes = src
	}
}

// WithVolumeContext attaches ctx to every volume resolution the open makes.
func WithVolumeContext(ctx context.Context) func(*OpenOptions) {
	return func(opts *OpenOptions) {
		opts.VolumeContext = ctx
	}
}

// WithPassword supplies a fixed password, reporting it as defined through the two-phase password exchange.
func WithPassword(password string) func(*OpenOptions) {
	return func(opts *OpenOptions) {
		opts.password = func() (string, error) { return password, nil }
		opts.hasPassword = func() bool { return true }
	}
}

// WithPasswordFunc supplies passwords on demand; hasPassword lets the engine skip prompting when none is defined.
//
// A nil hasPassword makes the provider single-phase.
func WithPasswordFunc(password func() (string, error), hasPassword func() bool) func(*OpenOptions) {
	return func(opts *OpenOptions) {
		opts.password = password
		opts.hasPassword = hasPassword
	}
}

// Archive is one archive handle: a single operation instance over an engine reader.
//
// Its lifecycle is StateNotStarted → StateOpened → StateFinished or StateFailed. An Archive must not be shared
// between concurrent operations.
type Archive struct {
	r     engine.Reader
	state State

	in      io.Closer // the stream handed to Open, disposed on Close and on the abort path
	volumes []io.Closer
}

// New wraps an engine reader into an unopened Archive.
func New(r engine.Reader) *Archive {
	return &Archive{r: r, state: StateNotStarted}
}

// State returns the operation's current lifecycle state.
func (a *Archive) State() State {
	return a.state
}

// Open reads the archive headers from in.
//
// The Archive takes ownership of in: it is closed by Archive.Close, or right here if opening fails (the abort path
// leaves no stream dangling). A failed Open moves the Archive to StateFailed; no per-item calls will have happened.
func (a *Archive) Open(in engine.InStream, optFns ...func(*OpenOptions)) error {
	if a.state != StateNotStarted {
		return fmt.Errorf("open error: operation is %s", a.state)
	}

	opts := &OpenOptions{MaxCheckStartPosition: -1, VolumeContext: context.Background()}
	for _, fn := range optFns {
		fn(opts)
	}

	cb := newOpenCallback(a, opts)
	if err := a.r.Open(in, opts.MaxCheckStartPosition, cb); err != nil {
		a.state = StateFailed
		a.disposeStreams(in)
		return fmt.Errorf("open archive error: %w", err)
	}

	if c, ok := in.(io.Closer); ok {
		a.in = c
	}
	a.state = StateOpened
	return nil
}

// Items returns the number of items in the archive.
func (a *Archive) Items() (uint32, error) {
	if a.state != StateOpened && a.state != StateFinished {
		return 0, fmt.Errorf("get item count error: operation is %s", a.state)
	}
	return a.r.NumberOfItems()
}

// ItemProperty returns one item-level property. Callers must Clear the variant when done with it.
func (a *Archive) ItemProperty(index uint32, id props.ID) (propvar.Variant, error) {
	if a.state != StateOpened && a.state != StateFinished {
		return propvar.Variant{}, fmt.Errorf("get item property error: operation is %s", a.state)
	}
	return a.r.ItemProperty(index, id)
}

// ArchiveProperty returns one archive-level property. Callers must Clear the variant when done with it.
func (a *Archive) ArchiveProperty(id props.ID) (propvar.Variant, error) {
	if a.state != StateOpened && a.state != StateFinished {
		return propvar.Variant{}, fmt.Errorf("get archive property error: operation is %s", a.state)
	}
	return a.r.ArchiveProperty(id)
}

// Close closes the engine handle and disposes every stream the operation still holds, in every state.
func (a *Archive) Close() error {
	var err error
	if a.r != nil && a.state != StateNotStarted {
		err = a.r.Close()
	}

	a.disposeStreams(nil)
	if a.in != nil {
		if cerr := a.in.Close(); err == nil {
			err = cerr
		}
		a.in = nil
	}
	return err
}

// disposeStreams closes all volume streams plus the optional extra stream, keeping the first error out of the way;
// disposal must happen on abort paths too, so errors here are deliberately not propagated.
func (a *Archive) disposeStreams(extra any) {
	for _, c := range a.volumes {
		_ = c.Close()
	}
	a.volumes = nil

	if c, ok := extra.(io.Closer); ok {
		_ = c.Close()
	}
}

// openCallback answers the engine's open-phase queries. Password capabilities are layered on via wrapper types so the
// engine's capability probing sees exactly what the host configured.
type openCallback struct {
	a    *Archive
	opts *OpenOptions
}

var _ engine.OpenCallback = (*openCallback)(nil)

func newOpenCallback(a *Archive, opts *OpenOptions) engine.OpenCallback {
	cb := &openCallback{a: a, opts: opts}
	switch {
	case opts.password == nil:
		return cb
	case opts.hasPassword == nil:
		return &passwordOpenCallback{openCallback: cb}
	default:
		return &twoPhasePasswordOpenCallback{passwordOpenCallback{openCallback: cb}}
	}
}

func (cb *openCallback) ArchiveProperty(id props.ID) (propvar.Variant, error) {
	if cb.opts.ArchiveProperty == nil {
		return propvar.Variant{}, nil
	}

	v, err := cb.opts.ArchiveProperty(id)
	if err != nil {
		return propvar.Variant{}, err
	}

	// catch schema mismatches before the value crosses the boundary.
	if want := props.KindOf(id); want != propvar.Empty && !v.IsEmpty() && v.Kind() != want {
		got := v.Kind()
		_ = v.Clear()
		return propvar.Variant{}, fmt.Errorf("archive property %s: got kind %s, want %s", id, got, want)
	}
	return v, nil
}

func (cb *openCallback) VolumeStream(name string) (engine.InStream, error) {
	if cb.opts.Volumes == nil {
		return nil, nil
	}

	src, err := cb.opts.Volumes.Open(cb.opts.VolumeContext, name)
	if errors.Is(err, volume.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf(`resolve volume "%s" error: %w`, name, err)
	}

	// the volume stays with the operation; Archive.Close disposes it.
	adapter := stream.NewIn(src)
	cb.a.volumes = append(cb.a.volumes, adapter)
	return adapter, nil
}

type passwordOpenCallback struct {
	*openCallback
}

var _ engine.PasswordProvider = (*passwordOpenCallback)(nil)

func (cb *passwordOpenCallback) Password() (string, error) {
	return cb.opts.password()
}

type twoPhasePasswordOpenCallback struct {
	passwordOpenCallback
}

var _ engine.OptionalPasswordProvider = (*twoPhasePasswordOpenCallback)(nil)

func (cb *twoPhasePasswordOpenCallback) HasPassword() bool {
	return cb.opts.hasPassword()
}
