// Package update implements the command that creates or rewrites archives from local files.
package update

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zbridge"
	"github.com/nguyengg/zbridge/engine"
	"github.com/nguyengg/zbridge/internal/engines"
	"github.com/nguyengg/zbridge/internal/logging"
	"github.com/nguyengg/zbridge/props"
	"github.com/nguyengg/zbridge/propvar"
	"github.com/nguyengg/zbridge/stream"
)

type Command struct {
	Args struct {
		Archive flags.Filename   `positional-arg-name:"archive" description:"the archive to create" required:"yes"`
		Files   []flags.Filename `positional-arg-name:"file" description:"the files or directories to add" required:"yes"`
	} `positional-args:"yes"`

	logger *log.Logger
}

// entry is one file or directory queued for the archive.
type entry struct {
	// path is the local path the bytes come from.
	path string
	// name is the slash-separated name the entry gets inside the archive.
	name string
	info fs.FileInfo
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	c.logger = logging.NewLogger(0, 1, c.Args.Archive)

	eng, err := engines.Default()
	if err != nil {
		return err
	}
	defer eng.Close()

	format, err := engines.FormatOf(string(c.Args.Archive))
	if err != nil {
		return err
	}

	w, err := eng.NewWriter(format)
	if err != nil {
		return fmt.Errorf("create %s writer error: %w", format, err)
	}

	entries, err := c.collect(ctx)
	if err != nil {
		return err
	}

	items := make([]zbridge.UpdateItem, len(entries))
	for i, e := range entries {
		items[i] = c.item(e)
	}

	f, err := os.Create(string(c.Args.Archive))
	if err != nil {
		return err
	}

	// the writer seeks while finalizing headers, so the output is the raw file, not a buffered wrapper.
	out := stream.NewOut(f)

	hooks := zbridge.UpdateHooks{
		OnResult: func(index uint32, result engine.OpResult) {
			if result != engine.OpOK {
				c.logger.Printf(`item %s: %s`, itemLabel(entries, index), result)
			}
		},
	}
	hooks.Bind(zbridge.NewLogReporter(c.logger, 5*time.Second))

	summary, err := zbridge.Update(w, out, items, hooks)

	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(string(c.Args.Archive))
		return err
	}

	c.logger.Printf("archived %d items: %d ok", len(summary.Items), summary.OK)
	return nil
}

// itemLabel names an entry for log lines. The index comes from the engine, so it is not trusted to be in range.
func itemLabel(entries []entry, index uint32) string {
	if int64(index) >= int64(len(entries)) {
		return fmt.Sprintf("#%d", index)
	}
	return fmt.Sprintf("%q", entries[index].name)
}

// collect walks the positional files and directories into archive entries with slash-separated names.
func (c *Command) collect(ctx context.Context) ([]entry, error) {
	var entries []entry
	for _, file := range c.Args.Files {
		root := filepath.Clean(string(file))
		base := filepath.Base(root)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err = ctx.Err(); err != nil {
				return err
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}

			name := base
			if rel != "." {
				name = base + "/" + filepath.ToSlash(rel)
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			entries = append(entries, entry{path: path, name: name, info: info})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// item maps one entry onto the update protocol: new data and new metadata, no existing archive slot.
func (c *Command) item(e entry) zbridge.UpdateItem {
	return zbridge.UpdateItem{
		IndexInArchive: -1,
		NewData:        !e.info.IsDir(),
		NewProperties:  true,
		Property: func(id props.ID) (propvar.Variant, error) {
			switch id {
			case props.Name, props.Directory:
				return propvar.NewString(propvar.NewHostString(e.name)), nil
			case props.IsFolder:
				return propvar.NewBool(e.info.IsDir()), nil
			case props.Size:
				if e.info.IsDir() {
					return propvar.NewUInt64(0), nil
				}
				return propvar.NewUInt64(uint64(e.info.Size())), nil
			case props.LastWriteTime:
				return propvar.NewFileTime(e.info.ModTime()), nil
			default:
				return propvar.Variant{}, nil
			}
		},
		Source: func() (engine.SequentialInStream, error) {
			f, err := os.Open(e.path)
			if err != nil {
				return nil, err
			}
			return stream.NewIn(f), nil
		},
	}
}
