package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/handlers"
	"github.com/google/reprotrace/pkg/memory"
	"github.com/google/reprotrace/pkg/process"
	"github.com/google/reprotrace/pkg/sink"
	"github.com/google/reprotrace/pkg/tracelog"
)

type nopSink struct{ nextID uint64 }

func (s *nopSink) AddProcess(ctx context.Context, parent *sink.Identifier, wd string) (sink.Identifier, error) {
	s.nextID++
	return sink.Identifier(s.nextID), nil
}
func (s *nopSink) AddFileOpen(ctx context.Context, id sink.Identifier, path string, mode uint32, isDir bool) error {
	return nil
}
func (s *nopSink) AddExec(ctx context.Context, id sink.Identifier, binary string, argv, envp []string, wd string) error {
	return nil
}
func (s *nopSink) AddExit(ctx context.Context, id sink.Identifier, exitCode int) error { return nil }
func (s *nopSink) AddFilesFromProc(ctx context.Context, id sink.Identifier, tid int, binaryHint string) error {
	return nil
}

var (
	_ sink.EventSink   = (*nopSink)(nil)
	_ sink.ProcScraper = (*nopSink)(nil)
)

// alwaysGoneMemory fails every read, modelling a tracee that has already
// exited by the time the handler tries to dereference its arguments.
type alwaysGoneMemory struct{}

func (alwaysGoneMemory) ReadBytes(tid int, addr uint64, buf []byte) error { return memory.ErrTraceeGone }
func (alwaysGoneMemory) ReadCString(tid int, addr uint64) (string, error) {
	return "", memory.ErrTraceeGone
}

func newTestEngine(t *testing.T) (*Engine, *process.Registry) {
	t.Helper()
	reg := process.NewRegistry()
	h := handlers.New(alwaysGoneMemory{}, reg, &nopSink{}, &nopSink{}, tracelog.New(tracelog.Silent), 0)
	tables := Build(h)
	return &Engine{Tables: tables, Registry: reg, Log: tracelog.New(tracelog.Silent)}, reg
}

func TestHandleSyscallRangeCheck(t *testing.T) {
	e, reg := newTestEngine(t)
	task := &process.Task{TID: 1, TGID: 1, Status: process.Attached, ModeVal: abi.X86_64}
	reg.Alloc(task)

	task.CurrentSyscall = -1
	if err := e.HandleSyscall(context.Background(), task); err != nil {
		t.Fatalf("HandleSyscall(-1): %v", err)
	}
	if !task.InSyscall {
		t.Errorf("out-of-range syscall should still flip InSyscall via finishDispatch")
	}

	task.InSyscall = false
	task.CurrentSyscall = abi.MaxSyscallNumber
	if err := e.HandleSyscall(context.Background(), task); err != nil {
		t.Fatalf("HandleSyscall(MaxSyscallNumber): %v", err)
	}
}

func TestHandleSyscallABISelection(t *testing.T) {
	e, reg := newTestEngine(t)

	i386Task := &process.Task{TID: 2, TGID: 2, Status: process.Attached, ModeVal: abi.I386}
	reg.Alloc(i386Task)
	if got := selectABI(i386Task, 5); got != abi.ABII386 {
		t.Errorf("selectABI(i386 task) = %s, want i386", got)
	}

	x64Task := &process.Task{TID: 3, TGID: 3, Status: process.Attached, ModeVal: abi.X86_64}
	reg.Alloc(x64Task)
	if got := selectABI(x64Task, 2); got != abi.ABIX86_64 {
		t.Errorf("selectABI(x86_64 task, plain nr) = %s, want x86_64", got)
	}
	if got := selectABI(x64Task, abi.X32SyscallBit|520); got != abi.ABIX86_64X32 {
		t.Errorf("selectABI(x86_64 task, x32-tagged nr) = %s, want x86_64_x32", got)
	}
}

func TestOpenatDispatchesThroughAtDispatch(t *testing.T) {
	e, _ := newTestEngine(t)

	atEntry, ok := e.Tables.X86_64.Lookup(257) // openat
	if !ok || atEntry.Exit == nil {
		t.Fatalf("openat entry missing from the x86-64 table")
	}
	openEntry, ok := e.Tables.X86_64.Lookup(2) // open
	if !ok || openEntry.Exit == nil {
		t.Fatalf("open entry missing from the x86-64 table")
	}
	if openEntry.Disc != uint32(handlers.OpeningOpen) {
		t.Fatalf("open entry disc = %d, want OpeningOpen", openEntry.Disc)
	}
	// openat's own table slot carries no discriminator: AtDispatch's
	// closure looks realSyscall back up in the same table at call time and
	// reuses open's discriminator, rather than duplicating it here.
	if atEntry.Disc != 0 {
		t.Errorf("openat entry disc = %d, want 0 (discriminator lives on the re-dispatched open entry)", atEntry.Disc)
	}
}

func TestSocketcallOnlyWiredOnI386(t *testing.T) {
	e, _ := newTestEngine(t)

	// x86-64 has no socketcall multiplexer; connect/accept are their own
	// syscalls there.
	if _, ok := e.Tables.X86_64.Lookup(102); ok {
		t.Errorf("x86-64 table should not have a socketcall entry at slot 102")
	}

	i386Entry, ok := e.Tables.I386.Lookup(102)
	if !ok || i386Entry.Exit == nil {
		t.Fatalf("i386 socketcall entry missing")
	}
}

func TestResolveEntry5911WorkaroundNoOpSelfMatch(t *testing.T) {
	e, reg := newTestEngine(t)
	task := &process.Task{
		TID: 5, TGID: 5, Status: process.Attached, ModeVal: abi.X86_64,
		InSyscall: true, CurrentSyscall: 59,
		SyscallInfo: &process.ExecveScratch{Binary: "/bin/true"},
	}
	reg.Alloc(task)

	entry, ok := e.resolveEntry(task, abi.ABIX86_64, 59)
	if !ok || entry.Name != "execve" {
		t.Fatalf("resolveEntry(59) = %+v, %v, want the x86-64 execve entry", entry, ok)
	}
}

func TestResolveEntry5911WorkaroundCrossTaskModeFlip(t *testing.T) {
	e, reg := newTestEngine(t)
	// The caller entered execve as a 64-bit task and is still recorded
	// in-syscall on 59, but the task object dispatch now sees has already
	// flipped to I386 (a 64-bit-to-32-bit execve transition).
	caller := &process.Task{
		TID: 6, TGID: 6, Status: process.Attached, ModeVal: abi.X86_64,
		InSyscall: true, CurrentSyscall: 59,
		SyscallInfo: &process.ExecveScratch{Binary: "/lib/ld-linux.so.2"},
	}
	reg.Alloc(caller)

	flipped := &process.Task{TID: 6, TGID: 6, Status: process.Attached, ModeVal: abi.I386, InSyscall: true}

	entry, ok := e.resolveEntry(flipped, abi.ABII386, 59)
	if !ok || entry.Name != "execve" {
		t.Fatalf("resolveEntry(59) across a mode flip = %+v, %v, want the x86-64 execve entry pinned", entry, ok)
	}
}

func TestHandleSyscallRecoversFromTraceeGone(t *testing.T) {
	e, reg := newTestEngine(t)
	task := &process.Task{TID: 7, TGID: 7, Status: process.Attached, ModeVal: abi.X86_64}
	task.Params[0] = process.Register(0xdeadbeef)
	reg.Alloc(task)

	task.CurrentSyscall = 2 // open, entry side does nothing (FileOpening has no Entry handler)
	if err := e.HandleSyscall(context.Background(), task); err != nil {
		t.Fatalf("entry dispatch: %v", err)
	}

	if err := e.HandleSyscall(context.Background(), task); err != nil {
		t.Fatalf("exit dispatch should recover ErrTraceeGone, got error: %v", err)
	}
	if reg.Get(7) != nil {
		t.Errorf("task should have been freed from the registry after ErrTraceeGone")
	}
}

func TestHandleSyscallPropagatesOtherErrors(t *testing.T) {
	e, reg := newTestEngine(t)
	// execve's exit handler returns handlers.ErrExecveScratchMissing
	// (wrapped) when no task in the thread group has matching scratch: a
	// genuine invariant violation, which HandleSyscall must wrap in
	// ErrInvariant rather than treat as ErrTraceeGone.
	task := &process.Task{TID: 8, TGID: 8, Status: process.Attached, ModeVal: abi.X86_64, InSyscall: true, CurrentSyscall: 59}
	reg.Alloc(task)

	err := e.HandleSyscall(context.Background(), task)
	if err == nil {
		t.Fatalf("expected an error for an execve exit with no recorded entry scratch")
	}
	if errors.Is(err, memory.ErrTraceeGone) {
		t.Errorf("this error should not be classified as ErrTraceeGone: %v", err)
	}
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected err to wrap ErrInvariant, got: %v", err)
	}
	if !errors.Is(err, handlers.ErrExecveScratchMissing) {
		t.Errorf("expected err to wrap handlers.ErrExecveScratchMissing, got: %v", err)
	}
}
