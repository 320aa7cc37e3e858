package handlers

import (
	"context"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/process"
)

// Discriminators for FileOpening, distinguishing open/creat/access, which
// all share one handler.
const (
	OpeningOpen uint32 = iota + 1
	OpeningAccess
	OpeningCreat
)

// FileOpening handles open(2), creat(2), and access(2) (and, via the *at
// dispatcher, their openat/faccessat cousins): one file_open event per
// successful call. See SPEC_FULL.md section 4.3.1.
func (h *Handlers) FileOpening(ctx context.Context, name string, task *process.Task, disc uint32) error {
	pathname, err := h.absPathArg(task, 0)
	if err != nil {
		return err
	}

	var mode abi.ModeBits
	switch disc {
	case OpeningAccess:
		mode = abi.FileStat
	case OpeningCreat:
		mode = abi.FlagsToMode(task.Params[1].Uint() | abi.OCreat | abi.OWrOnly | abi.OTrunc)
	default: // OpeningOpen
		mode = abi.FlagsToMode(task.Params[1].Uint())
	}

	h.Log.Debugf(task.TID, "%s(%q) mode=%s = %d", name, pathname, mode, task.RetValue)

	if task.RetValue < 0 {
		return nil
	}
	return h.Sink.AddFileOpen(ctx, task.Identifier, pathname, uint32(mode), isDir(pathname))
}
