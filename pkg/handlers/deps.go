// Package handlers implements one function per syscall semantic family:
// file-opening, stat, readlink, mkdir, symlink, chdir, execve
// entry/exit, forking, socket accept/connect, the socketcall
// multiplexer, the *at dispatcher, and the two "unhandled" loggers. Each
// handler consumes a stopped tracee's register-derived argument vector
// (task.Params) and emits zero or more events to the Event Sink.
//
// An entry handler's only permitted side effect is populating
// task.SyscallInfo. An exit handler is responsible for all event emission
// and must not emit anything unless task.RetValue >= 0 (kernel success).
package handlers

import (
	"os"

	"github.com/mohae/deepcopy"
	"golang.org/x/time/rate"

	"github.com/google/reprotrace/pkg/memory"
	"github.com/google/reprotrace/pkg/pathresolve"
	"github.com/google/reprotrace/pkg/process"
	"github.com/google/reprotrace/pkg/sink"
	"github.com/google/reprotrace/pkg/tracelog"
)

// Handlers bundles every dependency the syscall-family functions need:
// tracee memory access, the registry (for execve's sibling search and
// forking's new-task bookkeeping), the event sink, the /proc scraper, and
// the logger. Building one Table entry per syscall is then just taking a
// method value off a *Handlers.
type Handlers struct {
	Mem      memory.Reader
	Registry *process.Registry
	Sink     sink.EventSink
	Scraper  sink.ProcScraper
	Log      *tracelog.Logger

	// Resume immediately resumes a task that the wait loop has stopped
	// outside of a syscall-entry/exit dispatch (the newly forked child's
	// initial SIGSTOP). nil (the default in tests) makes Forking skip the
	// resume, which is harmless when nothing is actually attached to
	// new_tid.
	Resume func(tid int) error

	// unhandledLimiter throttles the volume of "unhandled syscall"
	// warnings under a write-heavy workload; see SPEC_FULL.md section
	// 4.3. nil disables throttling (every warning is logged).
	unhandledLimiter *rate.Limiter
	suppressed       int
}

// New builds a Handlers bundle. warnRate<=0 disables rate limiting of
// unhandled-syscall warnings.
func New(mem memory.Reader, reg *process.Registry, evSink sink.EventSink, scraper sink.ProcScraper, log *tracelog.Logger, warnRate float64) *Handlers {
	h := &Handlers{Mem: mem, Registry: reg, Sink: evSink, Scraper: scraper, Log: log}
	if warnRate > 0 {
		h.unhandledLimiter = rate.NewLimiter(rate.Limit(warnRate), 1)
	}
	return h
}

// absPathArg reads a NUL-terminated path out of arg and resolves it
// against task.WD if relative.
func (h *Handlers) absPathArg(task *process.Task, arg int) (string, error) {
	raw, err := h.Mem.ReadCString(task.TID, task.Params[arg].Ptr())
	if err != nil {
		return "", err
	}
	return pathresolve.Resolve(task.WD, raw), nil
}

// isDir stats path from the tracer's point of view (the tracee shares the
// tracer's mount namespace in every supported use case; a containerized
// tracee with a distinct namespace is out of scope, matching the
// specification's non-goals). Errors are treated as "not a directory",
// matching the original tracer's path_is_dir, which only exists to
// annotate events and must never itself fail the trace.
func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// cloneExecveScratch deep-copies an ExecveScratch so a handler never holds
// a reference into memory another goroutine (there are none in this
// single-threaded tracer, but the scratch's ownership does move between
// Task values across execve) might mutate out from under it.
func cloneExecveScratch(s *process.ExecveScratch) *process.ExecveScratch {
	return deepcopy.Copy(s).(*process.ExecveScratch)
}
