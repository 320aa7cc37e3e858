// Package dispatch assembles the per-ABI syscall tables (Build) and drives
// the entry/exit dispatch loop against a stopped tracee (Engine). It is the
// one package that imports both pkg/syscalltable and pkg/handlers, so that
// neither of those needs to depend on the other.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/handlers"
	"github.com/google/reprotrace/pkg/memory"
	"github.com/google/reprotrace/pkg/process"
	"github.com/google/reprotrace/pkg/syscalltable"
	"github.com/google/reprotrace/pkg/tracelog"
)

// Engine drives a single stopped tracee through one entry or exit dispatch.
// It holds no per-task state of its own; everything it needs to decide
// what to do next lives on the *process.Task passed to HandleSyscall.
type Engine struct {
	Tables   *syscalltable.Tables
	Registry *process.Registry
	Log      *tracelog.Logger

	// Resume is called once dispatch has finished updating task's
	// bookkeeping, to issue the next PTRACE_SYSCALL. nil skips resuming,
	// which test code relies on to inspect task state post-dispatch.
	Resume func(tid int) error
}

// supports64 reports whether this Engine was built against a 64-bit-capable
// tracer (Tables.X86_64 populated). A pure 32-bit host build only ever
// populates Tables.I386, and the 59/11 ABI-transition workaround below,
// which only makes sense when both tables exist, is skipped entirely.
func (e *Engine) supports64() bool { return e.Tables != nil && e.Tables.X86_64 != nil }

// selectABI picks which of the three ABI tables a raw syscall number
// should be looked up against: I386 if the tracee's address space is
// 32-bit, X86_64X32 if the x32 high bit is set on a 64-bit tracee, else
// plain X86_64. Mirrors specification section 4.4 step 1.
func selectABI(task *process.Task, rawSyscall int) abi.ABI {
	if task.ModeVal == abi.I386 {
		return abi.ABII386
	}
	if rawSyscall&abi.X32SyscallBit != 0 {
		return abi.ABIX86_64X32
	}
	return abi.ABIX86_64
}

func (e *Engine) tableFor(a abi.ABI) *syscalltable.Table {
	switch a {
	case abi.ABII386:
		return e.Tables.I386
	case abi.ABIX86_64:
		return e.Tables.X86_64
	case abi.ABIX86_64X32:
		return e.Tables.X86_64X32
	default:
		return nil
	}
}

// resolveEntry looks up the table slot for idx, applying the 59/11
// cross-ABI execve-transition workaround ahead of the normal, mode-based
// table selection (specification section 4.4 step 4; SPEC_FULL.md section
// 9 on why this is preserved unconditionally rather than gated on
// detecting an actual transition). A 64-bit-to-32-bit execve leaves the
// task's mode flipped to I386 by the time the exit stop is dispatched, so
// a syscall number of 59 (x86_64 execve) would otherwise be looked up in
// the I386 table, where slot 59 is not execve at all; pinning 59 and 11 to
// their respective architectures' execve entries sidesteps that entirely.
func (e *Engine) resolveEntry(task *process.Task, selectedABI abi.ABI, idx int) (syscalltable.Entry, bool) {
	if e.supports64() && task.InSyscall {
		switch idx {
		case 59:
			if e.Registry.GetByTGIDInSyscall(task.TGID, 59) != nil {
				return e.Tables.X86_64.Lookup(59)
			}
		case 11:
			if e.Registry.GetByTGIDInSyscall(task.TGID, 11) != nil {
				return e.Tables.I386.Lookup(11)
			}
		}
	}
	tbl := e.tableFor(selectedABI)
	if tbl == nil {
		return syscalltable.Entry{}, false
	}
	return tbl.Lookup(idx)
}

// HandleSyscall dispatches one syscall-entry or syscall-exit stop for
// task, implementing specification section 4.4 in full: ABI selection,
// range check, the 59/11 execve-transition workaround, entry/exit
// dispatch, and the post-dispatch InSyscall flip. It does not itself wait
// on or resume the tracee beyond calling e.Resume, which the caller (the
// outer wait loop) supplies.
//
// A handler error wrapping memory.ErrTraceeGone is recoverable: the task
// is marked Free and HandleSyscall returns nil, matching the contract in
// specification section 4.1 that ownership of a vanished tracee's
// lifecycle belongs to the dispatcher, not to the handler that happened to
// notice. Any other handler error propagates and the caller is expected to
// terminate the trace.
func (e *Engine) HandleSyscall(ctx context.Context, task *process.Task) error {
	raw := task.CurrentSyscall
	idx := raw &^ abi.X32SyscallBit
	selectedABI := selectABI(task, raw)

	e.Log.Tracef(task.TID, "syscall %d (%s, in_syscall=%v)", idx, selectedABI, task.InSyscall)

	if idx < 0 || idx >= abi.MaxSyscallNumber {
		e.Log.Errorf(task.TID, "syscall number %d out of range, not dispatching", idx)
		return e.finishDispatch(task)
	}

	entry, ok := e.resolveEntry(task, selectedABI, idx)
	if ok {
		var fn syscalltable.HandlerFunc
		if !task.InSyscall {
			fn = entry.Entry
		} else {
			fn = entry.Exit
		}
		if fn != nil {
			if err := fn(ctx, entry.Name, task, entry.Disc); err != nil {
				if errors.Is(err, memory.ErrTraceeGone) {
					e.Log.Warnf(task.TID, "tracee vanished mid-syscall: %v", err)
					e.Registry.Free(task.TID)
					return nil
				}
				if errors.Is(err, handlers.ErrExecveScratchMissing) {
					e.Log.Criticalf(task.TID, "%v", err)
					return fmt.Errorf("%w: %w", ErrInvariant, err)
				}
				return err
			}
		}
	}
	return e.finishDispatch(task)
}

// finishDispatch flips task.InSyscall, clearing the syscall-scoped fields
// on the entry->exit transition's far side, then resumes the tracee.
func (e *Engine) finishDispatch(task *process.Task) error {
	if task.InSyscall {
		task.InSyscall = false
		task.CurrentSyscall = -1
		task.SyscallInfo = nil
	} else {
		task.InSyscall = true
	}
	if e.Resume == nil {
		return nil
	}
	return e.Resume(task.TID)
}
