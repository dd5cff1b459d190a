package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zbridge"
	"github.com/nguyengg/zbridge/engine"
	"github.com/nguyengg/zbridge/internal/bufwrite"
	"github.com/nguyengg/zbridge/internal/engines"
	"github.com/nguyengg/zbridge/internal/logging"
	"github.com/nguyengg/zbridge/internal/volumes"
	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/stream"
)

type Command struct {
	Test     bool           `short:"t" long:"test" description:"verify item integrity without writing any output"`
	Output   flags.Filename `short:"o" long:"output" description:"directory to extract into; defaults to a directory named after the archive"`
	Password string         `long:"password" description:"password for encrypted archives" default-mask:"-"`
	Volumes  string         `long:"volumes" description:"where additional volumes of multi-volume archives live: a directory or an s3://bucket/prefix URI; defaults to the archive's own directory"`
	Args     struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the archives to extract" required:"yes"`
	} `positional-args:"yes"`

	logger *log.Logger
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	eng, err := engines.Default()
	if err != nil {
		return err
	}
	defer eng.Close()

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		c.logger = logging.NewLogger(i, n, file)

		if err = c.extract(ctx, eng, string(file)); err == nil {
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		c.logger.Printf("extract error: %v", err)
	}

	log.Printf("successfully processed %d/%d archives", success, n)
	return nil
}

func (c *Command) extract(ctx context.Context, eng engine.Engine, name string) error {
	format, err := engines.FormatOf(name)
	if err != nil {
		return err
	}

	r, err := eng.NewReader(format)
	if err != nil {
		return err
	}

	f, err := os.Open(name)
	if err != nil {
		return err
	}

	a := zbridge.New(r)
	defer a.Close()

	src, err := volumes.Parse(ctx, c.Volumes, filepath.Dir(name))
	if err != nil {
		return err
	}

	opts := []func(*zbridge.OpenOptions){
		zbridge.WithVolumes(src),
		zbridge.WithVolumeContext(ctx),
	}
	if c.Password != "" {
		opts = append(opts, zbridge.WithPassword(c.Password))
	}

	if err = a.Open(stream.NewIn(f), opts...); err != nil {
		return err
	}

	hooks := zbridge.ExtractHooks{
		OnResult: func(index uint32, result engine.OpResult) {
			if result != engine.OpOK {
				c.logger.Printf("item %d: %s", index, result)
			}
		},
	}
	hooks.Bind(zbridge.NewProgressBarReporter(nil, filepath.Base(name)))

	if c.Test {
		summary, err := a.Test(nil, hooks)
		if err != nil {
			return err
		}
		c.logger.Printf("tested %d items: %d ok, %d failed",
			len(summary.Items), summary.OK, len(summary.Items)-summary.OK)
		return nil
	}

	output := string(c.Output)
	if output == "" {
		output = stem(name)
	}
	if err = os.MkdirAll(output, 0755); err != nil {
		return err
	}

	hooks.Stream = func(index uint32, _ engine.AskMode) (engine.SequentialOutStream, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return c.openSink(a, index, output)
	}

	summary, err := a.Extract(nil, hooks)
	if err != nil {
		return err
	}

	c.logger.Printf(`extracted %d items to "%s": %d ok, %d data errors, %d crc errors, %d unsupported`,
		len(summary.Items), output, summary.OK, summary.DataErrors, summary.CRCErrors, summary.UnsupportedMethod)
	return nil
}

// openSink creates the output file of one item, or (nil, nil) for items that produce no bytes.
func (c *Command) openSink(a *zbridge.Archive, index uint32, output string) (engine.SequentialOutStream, error) {
	name, err := c.itemName(a, index)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = fmt.Sprintf("item-%d", index)
	}

	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf(`item %d has unsafe path "%s"`, index, name)
	}
	path := filepath.Join(output, rel)

	if c.itemIsDir(a, index) {
		return nil, os.MkdirAll(path, 0755)
	}
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	w, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	// the adapter stamps the archived modification time after the buffered file is flushed and closed.
	var outOpts []func(*stream.Options)
	if mtime, ok := c.itemModTime(a, index); ok {
		outOpts = append(outOpts, stream.WithTimestamps(path, mtime))
	}
	return stream.NewOut(bufwrite.New(w), outOpts...), nil
}

func (c *Command) itemName(a *zbridge.Archive, index uint32) (string, error) {
	v, err := a.ItemProperty(index, props.Name)
	if err != nil {
		return "", err
	}
	defer func() { _ = v.Clear() }()

	if v.IsEmpty() {
		return "", nil
	}

	ref, err := v.Str()
	if err != nil {
		return "", err
	}
	return ref.Value(), nil
}

func (c *Command) itemIsDir(a *zbridge.Archive, index uint32) bool {
	v, err := a.ItemProperty(index, props.IsFolder)
	if err != nil {
		return false
	}
	defer func() { _ = v.Clear() }()

	dir, _ := v.Bool()
	return dir
}

func (c *Command) itemModTime(a *zbridge.Archive, index uint32) (time.Time, bool) {
	v, err := a.ItemProperty(index, props.LastWriteTime)
	if err != nil {
		return time.Time{}, false
	}
	defer func() { _ = v.Clear() }()

	t, err := v.FileTime()
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// stem strips the directory and extension from an archive path.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
