package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zbridge/internal/engines"
	"github.com/nguyengg/zbridge/internal/extract"
	"github.com/nguyengg/zbridge/internal/list"
	"github.com/nguyengg/zbridge/internal/update"
)

var opts struct {
	Library flags.Filename  `short:"l" long:"library" description:"path to the native engine library (e.g. 7z.dll); without it the pure-Go engine is used"`
	List    list.Command    `command:"list" alias:"ls" description:"list the contents of archives"`
	Extract extract.Command `command:"extract" alias:"x" description:"extract archives, or verify them with --test"`
	Add     update.Command  `command:"add" alias:"a" description:"create an archive from files and directories"`
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		engines.SetLibraryPath(string(opts.Library))
		return command.Execute(args)
	}

	if _, err := p.Parse(); err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
