package handlers

import (
	"context"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/process"
)

// FileStat handles stat(2)/lstat(2) (and stat64/lstat64/oldstat/oldlstat
// on i386): one file_open(FILE_STAT) event per successful call. See
// SPEC_FULL.md section 4.3.2.
func (h *Handlers) FileStat(ctx context.Context, name string, task *process.Task, disc uint32) error {
	pathname, err := h.absPathArg(task, 0)
	if err != nil {
		return err
	}
	h.Log.Debugf(task.TID, "%s(%q) = %d", name, pathname, task.RetValue)
	if task.RetValue < 0 {
		return nil
	}
	return h.Sink.AddFileOpen(ctx, task.Identifier, pathname, uint32(abi.FileStat), isDir(pathname))
}

// Readlink handles readlink(2): a file_open(FILE_STAT, is_dir=false)
// event, since a symlink is never itself a directory. See SPEC_FULL.md
// section 4.3.3.
func (h *Handlers) Readlink(ctx context.Context, name string, task *process.Task, disc uint32) error {
	pathname, err := h.absPathArg(task, 0)
	if err != nil {
		return err
	}
	h.Log.Debugf(task.TID, "%s(%q) = %d", name, pathname, task.RetValue)
	if task.RetValue < 0 {
		return nil
	}
	return h.Sink.AddFileOpen(ctx, task.Identifier, pathname, uint32(abi.FileStat), false)
}

// Mkdir handles mkdir(2): a file_open(FILE_WRITE, is_dir=true) event. See
// SPEC_FULL.md section 4.3.4.
func (h *Handlers) Mkdir(ctx context.Context, name string, task *process.Task, disc uint32) error {
	pathname, err := h.absPathArg(task, 0)
	if err != nil {
		return err
	}
	h.Log.Debugf(task.TID, "%s(%q) = %d", name, pathname, task.RetValue)
	if task.RetValue < 0 {
		return nil
	}
	return h.Sink.AddFileOpen(ctx, task.Identifier, pathname, uint32(abi.FileWrite), true)
}

// Symlink handles symlink(2) and, when dispatched with disc=1,
// symlinkat(2). symlinkat is only handled when its directory-fd argument
// (params[1]) is the AT_FDCWD sentinel; otherwise this logs an unhandled
// warning instead of emitting, per SPEC_FULL.md section 4.3.5.
func (h *Handlers) Symlink(ctx context.Context, name string, task *process.Task, disc uint32) error {
	isSymlinkat := disc == 1
	if isSymlinkat && task.Params[1].Int() != abi.AtFDCWD {
		return h.UnhandledOther(ctx, name, task, 0)
	}
	pathArg := 1
	if isSymlinkat {
		pathArg = 2
	}
	pathname, err := h.absPathArg(task, pathArg)
	if err != nil {
		return err
	}
	h.Log.Debugf(task.TID, "%s(target=%q) = %d", name, pathname, task.RetValue)
	if task.RetValue < 0 {
		return nil
	}
	return h.Sink.AddFileOpen(ctx, task.Identifier, pathname, uint32(abi.FileWrite), true)
}

// Chdir handles chdir(2): on success it replaces task.WD with the
// resolved argument before emitting, so every subsequent relative path on
// this task resolves against the new directory. See SPEC_FULL.md section
// 4.3.6.
func (h *Handlers) Chdir(ctx context.Context, name string, task *process.Task, disc uint32) error {
	pathname, err := h.absPathArg(task, 0)
	if err != nil {
		return err
	}
	h.Log.Debugf(task.TID, "%s(%q) = %d", name, pathname, task.RetValue)
	if task.RetValue < 0 {
		return nil
	}
	task.WD = pathname
	return h.Sink.AddFileOpen(ctx, task.Identifier, pathname, uint32(abi.FileWdir), true)
}
