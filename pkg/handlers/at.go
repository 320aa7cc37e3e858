package handlers

import (
	"context"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/process"
	"github.com/google/reprotrace/pkg/syscalltable"
)

// AtDispatch builds the handler for one *at() syscall (openat, mkdirat,
// faccessat, readlinkat, newfstatat/fstatat64): if the directory-fd
// argument (params[0]) is the AT_FDCWD sentinel, it re-dispatches to the
// matching non-at handler of the same ABI table — named by realSyscall —
// with a synthesised argument view whose params are shifted left by one so
// the path occupies params[0]. The canonical task.Params is never mutated;
// the inner handler instead runs against a shallow copy of *task, which is
// the "cleaner re-architecture" SPEC_FULL.md section 9 calls for in place
// of the original's shift-and-restore-in-place approach. If the
// directory-fd is not AT_FDCWD, this emits an unhandled-syscall warning
// instead (see SPEC_FULL.md section 4.3.10).
func (h *Handlers) AtDispatch(tbl *syscalltable.Table, realSyscall int) syscalltable.HandlerFunc {
	return func(ctx context.Context, name string, task *process.Task, disc uint32) error {
		if task.Params[0].Int() != abi.AtFDCWD {
			return h.UnhandledOther(ctx, name, task, 0)
		}
		entry, ok := tbl.Lookup(realSyscall)
		if !ok || entry.Exit == nil {
			return h.UnhandledOther(ctx, name, task, 0)
		}
		shifted := *task
		for i := 0; i < process.NumParams-1; i++ {
			shifted.Params[i] = task.Params[i+1]
		}
		shifted.Params[process.NumParams-1] = 0
		return entry.Exit(ctx, entry.Name, &shifted, entry.Disc)
	}
}
