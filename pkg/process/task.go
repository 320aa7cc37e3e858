// Package process implements the Process Registry and Task state machine:
// the bookkeeping that pairs syscall-entry with syscall-exit across
// fork/clone/execve, including the race between seeing a new child from
// its parent's fork return and seeing that child's own attach stop.
package process

import (
	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/sink"
)

// Status is a Task's position in its lifecycle.
type Status int

const (
	// Unknown is the zero value. The wait loop records a new child with
	// this status when the child's own stop arrives before its parent's
	// fork/clone exit has been dispatched.
	Unknown Status = iota
	// Allocated means the parent's fork/clone exit was dispatched before
	// the child's own stop arrived; the wait loop promotes the task to
	// Attached when that stop arrives.
	Allocated
	// Attached means the task is a live, fully known tracee: either the
	// parent's fork/clone exit promoted an Unknown task, or a pending
	// Allocated task was promoted once its own stop arrived.
	Attached
	// Free terminates the task's slot. A freed tid may later be reused by
	// the kernel and thus by a new Task.
	Free
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case Allocated:
		return "ALLOCATED"
	case Attached:
		return "ATTACHED"
	case Free:
		return "FREE"
	default:
		return "INVALID"
	}
}

// Register is one syscall-argument register snapshot, readable either as a
// signed integer, an unsigned integer, or a remote pointer value — the
// three interpretations spec.md's `params[]` needs, without a C-style
// union.
type Register uint64

func (r Register) Int() int64   { return int64(r) }
func (r Register) Uint() uint64 { return uint64(r) }
func (r Register) Ptr() uint64  { return uint64(r) }

// NumParams is the number of syscall-argument registers snapshotted per
// dispatch (six, matching the x86-64 and i386 syscall ABIs).
const NumParams = 6

// ExecveScratch is the per-call scratch held between an execve entry and
// its matching exit: a deep copy of the binary path, argv, and envp read
// out of the tracee at entry. It is deliberately free of any pointer back
// to the owning Task, because ownership of this value can move to a
// different Task at exit (see Task.SyscallInfo).
type ExecveScratch struct {
	Binary string
	Argv   []string
	Envp   []string
}

// Task represents one schedulable entity: an OS thread. A task whose TID
// equals its TGID is its thread group's leader, i.e. a process.
type Task struct {
	TID  int
	TGID int
	// WD is the absolute current working directory; non-empty for every
	// non-Free task.
	WD string
	// ModeVal is the tracee's address-space width, fixed at attach and
	// re-evaluated on successful execve.
	ModeVal abi.Mode
	Status  Status

	// InSyscall flips on every entry/exit dispatch for this task.
	InSyscall bool
	// CurrentSyscall is the last-seen syscall number, including the x32
	// high bit if set. Valid only while InSyscall is true.
	CurrentSyscall int
	// Params is the entry-time snapshot of the six syscall-argument
	// registers.
	Params [NumParams]Register
	// RetValue is the integer return value, valid only on exit.
	RetValue int64

	// HasIdentifier reports whether Identifier has been assigned by the
	// Event Sink yet (AddProcess has not necessarily run for an
	// Allocated task still waiting on its parent's fork-exit handler).
	HasIdentifier bool
	Identifier    sink.Identifier

	// SyscallInfo is scratch valid only between an entry and its matching
	// exit; currently used only by execve. Invariant: non-nil implies
	// InSyscall && this task's CurrentSyscall identifies execve.
	SyscallInfo *ExecveScratch
}

// IsLeader reports whether t is its thread group's leader.
func (t *Task) IsLeader() bool { return t.TID == t.TGID }
