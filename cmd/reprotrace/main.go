// Command reprotrace is a demonstration driver for the syscall-dispatch
// engine: it launches a target program under ptrace, wires a Dispatch
// Engine and a logging-only Event Sink, and prints the resulting trace.
// The real database Event Sink named in SPEC_FULL.md section 6 is out of
// scope for this binary; it exists to exercise pkg/dispatch end to end
// against a real tracee.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/google/reprotrace/pkg/config"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&traceCommand{}, "")

	conf := config.RegisterFlags(flag.CommandLine, config.Default())
	flag.Parse()

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx, conf)))
}
