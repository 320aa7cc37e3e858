package handlers

import (
	"context"
	"fmt"

	"github.com/google/reprotrace/pkg/memory"
	"github.com/google/reprotrace/pkg/process"
)

// ExecveEntry deep-copies the binary path, argv, and envp out of the
// tracee and stashes them in task.SyscallInfo for ExecveExit to pick up.
// This is the only handler whose entry side does real work, per
// SPEC_FULL.md section 4.3.7.
func (h *Handlers) ExecveEntry(ctx context.Context, name string, task *process.Task, disc uint32) error {
	binary, err := h.absPathArg(task, 0)
	if err != nil {
		return err
	}
	argv, err := memory.ReadStrArray(h.Mem, task.ModeVal, task.TID, task.Params[1].Ptr())
	if err != nil {
		return err
	}
	envp, err := memory.ReadStrArray(h.Mem, task.ModeVal, task.TID, task.Params[2].Ptr())
	if err != nil {
		return err
	}
	if h.Log.Verbosity() >= 3 {
		h.Log.Debugf(task.TID, "execve called: binary=%s argv=%v (envp: %d entries)", binary, argv, len(envp))
	}
	task.SyscallInfo = &process.ExecveScratch{Binary: binary, Argv: argv, Envp: envp}
	return nil
}

// ExecveExit is the subtlest operation in the specification (section
// 4.3.7): because a successful execve makes the kernel report the exit on
// the thread-group leader regardless of which thread called it, this may
// run on a different *process.Task than ExecveEntry did. disc carries the
// raw execve syscall number, needed to find the original caller among
// task's siblings when task itself has no scratch.
func (h *Handlers) ExecveExit(ctx context.Context, name string, task *process.Task, disc uint32) error {
	execTask := task
	scratch := task.SyscallInfo
	if scratch == nil {
		// On Linux, execve resets the returning thread's tid to the
		// thread-group id no matter which thread called it, so the task
		// that just stopped may not be the one that entered execve.
		// Find the sibling that did.
		caller := h.Registry.GetByTGIDInSyscall(task.TGID, int(disc))
		if caller == nil {
			return fmt.Errorf("handlers: execve exit on tid=%d (tgid=%d) but no sibling has matching scratch: %w", task.TID, task.TGID, ErrExecveScratchMissing)
		}
		// Deep-copy the scratch: ownership is moving from caller (about
		// to be freed) to the surviving leader task, and the two must
		// not end up aliasing the same argv/envp backing arrays.
		scratch = cloneExecveScratch(caller.SyscallInfo)

		// The thread that actually called execve disappears without a
		// trace of its own; the thread-group leader survives as the new
		// image.
		if err := h.Sink.AddExit(ctx, caller.Identifier, 0); err != nil {
			return err
		}
		h.Registry.Free(caller.TID)
		execTask = caller
	}

	if task.RetValue >= 0 {
		if err := h.Sink.AddExec(ctx, task.Identifier, scratch.Binary, scratch.Argv, scratch.Envp, task.WD); err != nil {
			return err
		}
		h.Log.Infof(execTask.TID, "successfully exec'd %s", scratch.Binary)
		// The kernel delivers PTRACE_EVENT_EXEC to the survivor; its
		// initial open file descriptor table and shared-library
		// dependencies are enumerated by the external /proc scraper.
		if err := h.Scraper.AddFilesFromProc(ctx, task.Identifier, task.TID, scratch.Binary); err != nil {
			return err
		}
	}

	execTask.SyscallInfo = nil
	return nil
}
