// Package sink defines the boundary between the tracer and its two
// external collaborators: the database Event Sink that persists every
// recorded event, and the /proc scraper that enumerates a process's open
// files right after a successful execve. Both are implemented outside this
// module; this package only names the interfaces the dispatch engine and
// syscall handlers call through.
package sink

import "context"

// Identifier is the opaque, sink-vended id used as the foreign key for
// every event about a given task. The tracer never interprets its value.
type Identifier uint64

// EventSink is the external database layer. Every method corresponds to
// one operation named in the specification (section 6); mode_bits is the
// bitwise union of abi.ModeBits.
type EventSink interface {
	// AddProcess registers a new task and returns its identifier. parent
	// is nil for the very first traced process.
	AddProcess(ctx context.Context, parent *Identifier, wd string) (Identifier, error)
	// AddFileOpen records that the task denoted by id touched path with
	// the given access mode.
	AddFileOpen(ctx context.Context, id Identifier, path string, mode uint32, isDir bool) error
	// AddExec records a successful execve by the task denoted by id.
	AddExec(ctx context.Context, id Identifier, binary string, argv, envp []string, wd string) error
	// AddExit records that the task denoted by id has terminated.
	AddExit(ctx context.Context, id Identifier, exitCode int) error
}

// ProcScraper enumerates the file descriptor table and shared-library
// dependencies of a process immediately after a successful execve.
type ProcScraper interface {
	AddFilesFromProc(ctx context.Context, id Identifier, tid int, binaryHint string) error
}
