//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/google/subcommands"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/config"
	"github.com/google/reprotrace/pkg/dispatch"
	"github.com/google/reprotrace/pkg/handlers"
	"github.com/google/reprotrace/pkg/memory"
	"github.com/google/reprotrace/pkg/process"
	"github.com/google/reprotrace/pkg/tracelog"
)

// ptraceOptions enables the stops the wait loop below relies on:
// TRACESYSGOOD disambiguates a syscall-stop from a signal-delivery-stop
// (bit 0x80 set on the reported signal); TRACEFORK/VFORK/CLONE/EXEC makes
// every descendant of the root tracee automatically ptrace-attached.
const ptraceOptions = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC

// traceCommand implements subcommands.Command, modelled on runsc/cmd/wait.go's
// shape: Name/Synopsis/Usage/SetFlags/Execute, with the global *config.Config
// arriving through Execute's args, exactly as runsc's wait.go receives
// *config.Config.
type traceCommand struct{}

func (*traceCommand) Name() string     { return "trace" }
func (*traceCommand) Synopsis() string { return "launch a program under ptrace and log its traced syscalls" }
func (*traceCommand) Usage() string {
	return "trace -- <program> [args...]\n"
}
func (*traceCommand) SetFlags(*flag.FlagSet) {}

func (c *traceCommand) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf, _ := args[0].(*config.Config)
	if conf == nil {
		def := config.Default()
		conf = &def
	}

	log := tracelog.New(conf.Verbosity)

	if err := run(ctx, log, conf, f.Args()); err != nil {
		log.Errorf(0, "trace failed: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// run launches argv[0] under ptrace and drives the wait loop to
// completion. It must execute on a locked OS thread: ptrace's tracer
// identity is the calling thread, not the calling process.
func run(ctx context.Context, log *tracelog.Logger, conf *config.Config, argv []string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.SysProcAttr = &unix.SysProcAttr{Ptrace: true}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cmd: determine working directory: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cmd: start target: %w", err)
	}
	rootTID := cmd.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(rootTID, &ws, 0, nil); err != nil {
		return fmt.Errorf("cmd: initial wait on target: %w", err)
	}
	if err := unix.PtraceSetOptions(rootTID, ptraceOptions); err != nil {
		return fmt.Errorf("cmd: PTRACE_SETOPTIONS: %w", err)
	}

	reg := process.NewRegistry()
	sink := newLogSink(log)
	h := handlers.New(memory.NewPtraceReader(), reg, sink, sink, log, conf.UnhandledWarnRate)
	h.Resume = func(tid int) error { return unix.PtraceSyscall(tid, 0) }

	var mode abi.Mode
	if conf.Arch == "auto" {
		mode, err = detectMode(rootTID)
	} else {
		mode, err = conf.ResolveMode()
	}
	if err != nil {
		return fmt.Errorf("cmd: determine root tracee address width: %w", err)
	}

	root := &process.Task{TID: rootTID, TGID: rootTID, WD: wd, ModeVal: mode, Status: process.Attached}
	id, err := sink.AddProcess(ctx, nil, wd)
	if err != nil {
		return fmt.Errorf("cmd: register root process: %w", err)
	}
	root.HasIdentifier, root.Identifier = true, id
	reg.Alloc(root)

	tables := dispatch.Build(h)
	engine := &dispatch.Engine{Tables: tables, Registry: reg, Log: log, Resume: h.Resume}

	sigCtx, stopForwarding := context.WithCancel(ctx)
	defer stopForwarding()
	group, gctx := errgroup.WithContext(sigCtx)
	group.Go(func() error { return forwardSignals(gctx, rootTID) })

	if err := unix.PtraceSyscall(rootTID, 0); err != nil {
		return fmt.Errorf("cmd: initial PTRACE_SYSCALL: %w", err)
	}

	if err := waitLoop(ctx, log, reg, engine, h); err != nil {
		return err
	}
	stopForwarding()
	return group.Wait()
}

// forwardSignals relays signals the tracer process itself receives (e.g. an
// operator's Ctrl-C) to the root tracee, so killing reprotrace also kills
// whatever it launched.
func forwardSignals(ctx context.Context, pid int) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	defer signal.Stop(ch)
	select {
	case <-ctx.Done():
		return nil
	case sig := <-ch:
		return unix.Kill(pid, sig.(unix.Signal))
	}
}

// waitLoop blocks in waitpid for any traced task to stop, classifies the
// stop, and dispatches or resumes accordingly, until no tasks remain.
func waitLoop(ctx context.Context, log *tracelog.Logger, reg *process.Registry, engine *dispatch.Engine, h *handlers.Handlers) error {
	for {
		total, _ := reg.Count()
		if total == 0 {
			return nil
		}

		var ws unix.WaitStatus
		tid, err := unix.Wait4(-1, &ws, 0, nil)
		if err != nil {
			if err == unix.ECHILD {
				return nil
			}
			return fmt.Errorf("cmd: wait4: %w", err)
		}

		switch {
		case ws.Exited() || ws.Signaled():
			t := reg.Get(tid)
			if t != nil && t.HasIdentifier {
				code := ws.ExitStatus()
				if err := h.Sink.AddExit(ctx, t.Identifier, code); err != nil {
					return err
				}
			}
			reg.Free(tid)

		case ws.Stopped() && isSyscallStop(ws):
			t := reg.Get(tid)
			if t == nil {
				// A syscall-stop on an unregistered tid cannot be
				// dispatched meaningfully; resume it bare so it doesn't
				// wedge.
				unix.PtraceSyscall(tid, 0)
				continue
			}
			if err := populateRegisters(t); err != nil {
				log.Warnf(tid, "reading registers: %v", err)
				unix.PtraceSyscall(tid, 0)
				continue
			}
			if err := engine.HandleSyscall(ctx, t); err != nil {
				return err
			}

		case ws.Stopped() && ws.TrapCause() >= 0 && isEventStop(ws):
			// A fork/vfork/clone/exec event-stop: the new tid (or the
			// exec'd task's own identity) is reconciled by the
			// corresponding syscall-exit dispatch above, not here. An exec
			// event-stop first re-detects the task's address width, since
			// the new image may differ from the old one; then resume.
			if ws.TrapCause() == unix.PTRACE_EVENT_EXEC {
				if t := reg.Get(tid); t != nil {
					if mode, err := detectMode(tid); err == nil {
						t.ModeVal = mode
					} else {
						log.Warnf(tid, "re-detecting address width after exec: %v", err)
					}
				}
			}
			unix.PtraceSyscall(tid, 0)

		case ws.Stopped():
			t := reg.Get(tid)
			switch {
			case t == nil:
				// The new child's own stop arrived before its parent's
				// fork-exit dispatch: register it as seen-but-incomplete
				// and hold it here without resuming.
				reg.Alloc(&process.Task{TID: tid, Status: process.Unknown})
			case t.Status == process.Allocated:
				// The parent's fork-exit dispatch already ran: promote
				// and resume now.
				t.Status = process.Attached
				if err := unix.PtraceSyscall(tid, 0); err != nil {
					return fmt.Errorf("cmd: resume newly attached tid=%d: %w", tid, err)
				}
			default:
				sig := 0
				if s := ws.StopSignal(); s != unix.SIGTRAP && s != unix.SIGSTOP {
					sig = int(s)
				}
				unix.PtraceSyscall(tid, sig)
			}
		}
	}
}

// isSyscallStop reports whether ws is a syscall-entry/exit stop, marked by
// PTRACE_O_TRACESYSGOOD as SIGTRAP|0x80 rather than plain SIGTRAP.
func isSyscallStop(ws unix.WaitStatus) bool {
	return ws.StopSignal() == unix.SIGTRAP|0x80
}

// isEventStop reports whether ws is a PTRACE_EVENT_* stop (fork, vfork,
// clone, exec), encoded in the status word's high byte.
func isEventStop(ws unix.WaitStatus) bool {
	return ws.StopSignal() == unix.SIGTRAP && ws.TrapCause() != 0
}
