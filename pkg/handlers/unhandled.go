package handlers

import (
	"context"

	"github.com/google/reprotrace/pkg/process"
)

// warnRateLimited applies the unhandledLimiter, if configured, returning
// false (meaning: skip logging) once the limiter is exhausted. It tallies
// suppressed warnings so a summary can be logged later.
func (h *Handlers) warnRateLimited() bool {
	if h.unhandledLimiter == nil {
		return true
	}
	if h.unhandledLimiter.Allow() {
		return true
	}
	h.suppressed++
	return false
}

// Suppressed reports how many unhandled-syscall warnings have been
// dropped by rate limiting since startup.
func (h *Handlers) Suppressed() int { return h.suppressed }

// UnhandledPath1 logs a warning naming the syscall and its resolved first
// path argument, for syscalls this tracer recognises but deliberately does
// not record structured events for (rename, rmdir, link, truncate,
// unlink, chmod, chown, utime(s), mq_open, mq_unlink, ...). Only fires on
// a successful exit. See SPEC_FULL.md section 4.3.11.
func (h *Handlers) UnhandledPath1(ctx context.Context, name string, task *process.Task, disc uint32) error {
	if task.RetValue < 0 || name == "" {
		return nil
	}
	pathname, err := h.absPathArg(task, 0)
	if err != nil {
		return err
	}
	if h.warnRateLimited() {
		h.Log.Warnf(task.TID, "process used unhandled system call %s(%q)", name, pathname)
	}
	return nil
}

// UnhandledOther logs a warning naming just the syscall, for syscalls that
// take an open descriptor rather than a path (linkat, renameat, unlinkat,
// fchmodat, fchownat, ptrace, name_to_handle_at, ...), and for *at calls
// whose directory-fd was not AT_FDCWD. Only fires on a successful exit.
func (h *Handlers) UnhandledOther(ctx context.Context, name string, task *process.Task, disc uint32) error {
	if task.RetValue < 0 || name == "" {
		return nil
	}
	if h.warnRateLimited() {
		h.Log.Warnf(task.TID, "process used unhandled system call %s", name)
	}
	return nil
}
