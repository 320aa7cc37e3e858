package handlers

import (
	"context"
	"fmt"

	"github.com/google/reprotrace/pkg/process"
)

// Discriminators for Forking, distinguishing fork/vfork/clone, which all
// share one handler.
const (
	ForkFork uint32 = iota + 1
	ForkVfork
	ForkClone
)

// cloneThreadFlag is CLONE_THREAD, the clone(2) flag indicating the new
// task shares its thread group with the caller instead of starting a new
// one.
const cloneThreadFlag = 0x00010000

// Forking handles fork(2), vfork(2), and clone(2). Because Linux may
// deliver the new child's first stop on an arbitrary scheduling order
// relative to this syscall's own exit, the registry may already know
// about new_tid (status Unknown, promoted here to Attached) or may not
// (a fresh task is allocated here with status Allocated, to be promoted
// when the child's own stop later arrives). See SPEC_FULL.md section
// 4.3.8.
func (h *Handlers) Forking(ctx context.Context, name string, task *process.Task, disc uint32) error {
	if task.RetValue <= 0 {
		return nil
	}
	newTID := int(task.RetValue)
	isThread := disc == ForkClone && task.Params[0].Uint()&cloneThreadFlag != 0

	h.Log.Infof(newTID, "process created by %d via %s (thread: %v) (wd: %s)", task.TID, name, isThread, task.WD)

	newTask := h.Registry.Get(newTID)
	if newTask != nil {
		if newTask.Status != process.Unknown {
			return fmt.Errorf("handlers: new tid %d already has status %s", newTID, newTask.Status)
		}
		newTask.Status = process.Attached
		// The child is held in SIGSTOP until we resume it here, so its
		// add_process event is guaranteed to precede any syscall it
		// could otherwise have started.
		if h.Resume != nil {
			if err := h.Resume(newTID); err != nil {
				return err
			}
		}
		if h.Log.Verbosity() >= 2 {
			total, unattached := h.Registry.Count()
			h.Log.Infof(0, "%d processes (inc. %d unattached)", total, unattached)
		}
	} else {
		newTask = &process.Task{TID: newTID, Status: process.Allocated, InSyscall: false}
		h.Registry.Alloc(newTask)
	}

	if isThread {
		newTask.TGID = task.TGID
	} else {
		newTask.TGID = newTID
	}
	newTask.WD = task.WD
	newTask.ModeVal = task.ModeVal

	parent := &task.Identifier
	id, err := h.Sink.AddProcess(ctx, parent, task.WD)
	if err != nil {
		return err
	}
	newTask.HasIdentifier = true
	newTask.Identifier = id
	return nil
}
