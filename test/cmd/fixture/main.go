// Binary fixture is a small multi-command test target, adapted from
// gvisor's test_app swiss-knife binary: instead of exercising gvisor's
// sandboxed syscall surface, each subcommand here drives exactly one
// syscall family this tracer's handlers recognise (open/creat/access,
// mkdir, symlink, chdir, execve, fork), so the ptrace integration test in
// cmd/reprotrace can launch a real, predictable tracee.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(openFile), "")
	subcommands.Register(new(fsTree), "")
	subcommands.Register(new(chdirOpen), "")
	subcommands.Register(new(forkExec), "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// openFile opens (and optionally creates) a single path, then exits. It
// exercises FileOpening directly.
type openFile struct {
	create bool
}

func (*openFile) Name() string     { return "open" }
func (*openFile) Synopsis() string { return "open, or creat, a single path" }
func (*openFile) Usage() string    { return "open [-create] <path>\n" }
func (c *openFile) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.create, "create", false, "use creat(2) instead of open(2)")
}
func (c *openFile) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)
	var file *os.File
	var err error
	if c.create {
		file, err = os.Create(path)
	} else {
		file, err = os.Open(path)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	file.Close()
	return subcommands.ExitSuccess
}

// fsTree creates a small directory tree: one subdirectory, one plain file,
// and one symlink pointing at it. Exercises Mkdir and Symlink.
type fsTree struct{}

func (*fsTree) Name() string     { return "fstree" }
func (*fsTree) Synopsis() string { return "create a directory, a file, and a symlink under it" }
func (*fsTree) Usage() string    { return "fstree <target-dir>\n" }
func (*fsTree) SetFlags(*flag.FlagSet) {}
func (*fsTree) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	dir := f.Arg(0)
	if err := os.Mkdir(dir, 0777); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	file := filepath.Join(dir, "payload")
	if err := os.WriteFile(file, []byte("fixture"), 0666); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := os.Symlink(file, filepath.Join(dir, "link")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// chdirOpen chdirs into dir, then opens name using a path relative to the
// new working directory. Exercises Chdir followed by a relative
// FileOpening.
type chdirOpen struct{}

func (*chdirOpen) Name() string     { return "chdir-open" }
func (*chdirOpen) Synopsis() string { return "chdir into a directory, then open a relative path" }
func (*chdirOpen) Usage() string    { return "chdir-open <dir> <relative-path>\n" }
func (*chdirOpen) SetFlags(*flag.FlagSet) {}
func (*chdirOpen) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return subcommands.ExitUsageError
	}
	if err := os.Chdir(f.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	file, err := os.Open(f.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	file.Close()
	return subcommands.ExitSuccess
}

// forkExec forks, and the child execs into /bin/true (or into the binary
// named by the subcommand's one argument, if given). Exercises Forking followed by the execve entry/exit pair on a
// thread-group leader that differs from whichever task actually called
// execve only in the pathological multi-threaded case; a single-threaded
// fork+exec still walks the same code paths on the simple side of that
// branch.
type forkExec struct{}

func (*forkExec) Name() string     { return "forkexec" }
func (*forkExec) Synopsis() string { return "fork, and exec a child binary" }
func (*forkExec) Usage() string    { return "forkexec [binary]\n" }
func (*forkExec) SetFlags(*flag.FlagSet) {}
func (*forkExec) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	binary := "/bin/true"
	if f.NArg() == 1 {
		binary = f.Arg(0)
	}
	cmd := exec.Command(binary)
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := cmd.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
