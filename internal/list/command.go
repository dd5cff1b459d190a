package list

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zbridge"
	"github.com/nguyengg/zbridge/engine"
	"github.com/nguyengg/zbridge/internal/engines"
	"github.com/nguyengg/zbridge/internal/logging"
	"github.com/nguyengg/zbridge/internal/volumes"
	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/stream"
)

type Command struct {
	Password string `long:"password" description:"password for encrypted archives" default-mask:"-"`
	Volumes  string `long:"volumes" description:"where additional volumes of multi-volume archives live: a directory or an s3://bucket/prefix URI; defaults to the archive's own directory"`
	Args     struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the archives to list" required:"yes"`
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

	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		c.logger = logging.NewLogger(i, n, file)

		if err = c.list(ctx, eng, string(file)); err != nil {
			c.logger.Printf("list error: %v", err)
		}
	}
	return nil
}

func (c *Command) list(ctx context.Context, eng engine.Engine, name string) error {
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

	count, err := a.Items()
	if err != nil {
		return err
	}

	var total uint64
	for i := uint32(0); i < count; i++ {
		size := c.itemSize(a, i)
		total += size

		marker := " "
		if c.itemIsDir(a, i) {
			marker = "d"
		}

		fmt.Printf("%s %10s  %s\n", marker, humanize.IBytes(size), c.itemName(a, i))
	}

	c.logger.Printf("%d items, %s total", count, humanize.IBytes(total))
	return nil
}

func (c *Command) itemName(a *zbridge.Archive, index uint32) string {
	v, err := a.ItemProperty(index, props.Name)
	if err != nil {
		return ""
	}
	defer func() { _ = v.Clear() }()

	if ref, err := v.Str(); err == nil {
		return ref.Value()
	}
	return ""
}

func (c *Command) itemSize(a *zbridge.Archive, index uint32) uint64 {
	v, err := a.ItemProperty(index, props.Size)
	if err != nil {
		return 0
	}
	defer func() { _ = v.Clear() }()

	size, _ := v.Uint64()
	return size
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
