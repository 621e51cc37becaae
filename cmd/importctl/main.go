// Command importctl runs the import pipeline on a local file without touching a database.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&detectCmd{}, "")
	commander.Register(&previewCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
