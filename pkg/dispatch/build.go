package dispatch

import (
	"github.com/google/reprotrace/pkg/handlers"
	"github.com/google/reprotrace/pkg/syscalltable"
)

// tableSpec is one raw table-row from the original syscall number listing:
// syscall number, name, and which Handlers method(s) serve it.
type tableSpec struct {
	n    int
	name string
	// entry and exit build the HandlerFunc lazily, against h and (for the
	// *at family) the table being built, since a *at entry dispatches
	// back into its own table.
	entry func(h *handlers.Handlers, tbl *syscalltable.Table) syscalltable.HandlerFunc
	exit  func(h *handlers.Handlers, tbl *syscalltable.Table) syscalltable.HandlerFunc
	disc  uint32
}

func exitOnly(fn func(h *handlers.Handlers) syscalltable.HandlerFunc) func(*handlers.Handlers, *syscalltable.Table) syscalltable.HandlerFunc {
	return func(h *handlers.Handlers, _ *syscalltable.Table) syscalltable.HandlerFunc { return fn(h) }
}

func buildTable(length int, specs []tableSpec, h *handlers.Handlers) *syscalltable.Table {
	tbl := syscalltable.NewTable(length)
	for _, s := range specs {
		e := syscalltable.Entry{Name: s.name, Disc: s.disc}
		if s.entry != nil {
			e.Entry = s.entry(h, tbl)
		}
		if s.exit != nil {
			e.Exit = s.exit(h, tbl)
		}
		tbl.Set(s.n, e)
	}
	return tbl
}

// atSpec builds the entry+exit pair for one *at() syscall: realSyscall is
// the non-at syscall number it falls back to, in the same table, when the
// directory-fd argument is AT_FDCWD.
func atSpec(n int, name string, realSyscall int) tableSpec {
	return tableSpec{
		n:    n,
		name: name,
		exit: func(h *handlers.Handlers, tbl *syscalltable.Table) syscalltable.HandlerFunc {
			return h.AtDispatch(tbl, realSyscall)
		},
	}
}

func pathSpec(n int, name string) tableSpec {
	return tableSpec{n: n, name: name, exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.UnhandledPath1 })}
}

func otherSpec(n int, name string) tableSpec {
	return tableSpec{n: n, name: name, exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.UnhandledOther })}
}

func openingSpec(n int, name string, disc uint32) tableSpec {
	return tableSpec{n: n, name: name, disc: disc, exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileOpening })}
}

func forkSpec(n int, name string, disc uint32) tableSpec {
	return tableSpec{n: n, name: name, disc: disc, exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Forking })}
}

func execSpec(n int, name string, disc uint32) tableSpec {
	return tableSpec{
		n: n, name: name, disc: disc,
		entry: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.ExecveEntry }),
		exit:  exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.ExecveExit }),
	}
}

// i386SyscallSpecs is the i386 syscall table, transcribed from the
// original tracer's syscall_build_table (SYSCALL_I386 branch).
func i386SyscallSpecs() []tableSpec {
	return []tableSpec{
		openingSpec(5, "open", handlers.OpeningOpen),
		openingSpec(8, "creat", handlers.OpeningCreat),
		openingSpec(33, "access", handlers.OpeningAccess),

		{n: 106, name: "stat", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileStat })},
		{n: 107, name: "lstat", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileStat })},
		{n: 195, name: "stat64", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileStat })},
		{n: 18, name: "oldstat", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileStat })},
		{n: 196, name: "lstat64", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileStat })},
		{n: 84, name: "oldlstat", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileStat })},

		{n: 85, name: "readlink", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Readlink })},

		{n: 39, name: "mkdir", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Mkdir })},

		{n: 83, name: "symlink", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Symlink })},
		{n: 304, name: "symlinkat", disc: 1, exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Symlink })},

		{n: 12, name: "chdir", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Chdir })},

		execSpec(11, "execve", 11),

		forkSpec(2, "fork", handlers.ForkFork),
		forkSpec(190, "vfork", handlers.ForkVfork),
		forkSpec(120, "clone", handlers.ForkClone),

		{n: 102, name: "socketcall", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Socketcall })},

		atSpec(296, "mkdirat", 39),
		atSpec(295, "openat", 5),
		atSpec(307, "faccessat", 33),
		atSpec(305, "readlinkat", 85),
		atSpec(300, "fstatat64", 195),

		pathSpec(38, "rename"),
		pathSpec(40, "rmdir"),
		pathSpec(9, "link"),
		pathSpec(92, "truncate"),
		pathSpec(193, "truncate64"),
		pathSpec(10, "unlink"),
		pathSpec(15, "chmod"),
		pathSpec(182, "chown"),
		pathSpec(212, "chown32"),
		pathSpec(16, "lchown"),
		pathSpec(198, "lchown32"),
		pathSpec(30, "utime"),
		pathSpec(271, "utimes"),
		pathSpec(277, "mq_open"),
		pathSpec(278, "mq_unlink"),

		otherSpec(303, "linkat"),
		otherSpec(302, "renameat"),
		otherSpec(301, "unlinkat"),
		otherSpec(306, "fchmodat"),
		otherSpec(298, "fchownat"),

		otherSpec(26, "ptrace"),
		otherSpec(341, "name_to_handle_at"),
	}
}

// amd64SyscallSpecs is the x86-64 syscall table (SYSCALL_X86_64 branch).
func amd64SyscallSpecs() []tableSpec {
	return []tableSpec{
		openingSpec(2, "open", handlers.OpeningOpen),
		openingSpec(85, "creat", handlers.OpeningCreat),
		openingSpec(21, "access", handlers.OpeningAccess),

		{n: 4, name: "stat", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileStat })},
		{n: 6, name: "lstat", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.FileStat })},

		{n: 89, name: "readlink", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Readlink })},

		{n: 83, name: "mkdir", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Mkdir })},

		{n: 88, name: "symlink", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Symlink })},
		{n: 266, name: "symlinkat", disc: 1, exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Symlink })},

		{n: 80, name: "chdir", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Chdir })},

		execSpec(59, "execve", 59),

		forkSpec(57, "fork", handlers.ForkFork),
		forkSpec(58, "vfork", handlers.ForkVfork),
		forkSpec(56, "clone", handlers.ForkClone),

		{n: 43, name: "accept", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Accept })},
		{n: 288, name: "accept4", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Accept })},
		{n: 42, name: "connect", exit: exitOnly(func(h *handlers.Handlers) syscalltable.HandlerFunc { return h.Connect })},

		atSpec(258, "mkdirat", 83),
		atSpec(257, "openat", 2),
		atSpec(269, "faccessat", 21),
		atSpec(267, "readlinkat", 89),
		atSpec(262, "newfstatat", 4),

		pathSpec(82, "rename"),
		pathSpec(84, "rmdir"),
		pathSpec(86, "link"),
		pathSpec(76, "truncate"),
		pathSpec(87, "unlink"),
		pathSpec(90, "chmod"),
		pathSpec(92, "chown"),
		pathSpec(94, "lchown"),
		pathSpec(132, "utime"),
		pathSpec(235, "utimes"),
		pathSpec(240, "mq_open"),
		pathSpec(241, "mq_unlink"),

		otherSpec(265, "linkat"),
		otherSpec(264, "renameat"),
		otherSpec(263, "unlinkat"),
		otherSpec(268, "fchmodat"),
		otherSpec(260, "fchownat"),

		otherSpec(101, "ptrace"),
		otherSpec(303, "name_to_handle_at"),
	}
}

// x32SyscallSpecs is the x32 sub-ABI table (SYSCALL_X86_64_x32 branch).
// Identical to amd64SyscallSpecs except for execve's number, which x32
// marks with the X32SyscallBit.
func x32SyscallSpecs() []tableSpec {
	specs := amd64SyscallSpecs()
	for i, s := range specs {
		if s.name == "execve" {
			specs[i] = execSpec(520, "execve", 0x40000000+520)
		}
	}
	return specs
}

// tableLength returns one past the highest syscall number named in specs,
// matching process_table's "measure required table" pass.
func tableLength(specs []tableSpec) int {
	max := 0
	for _, s := range specs {
		if s.n+1 > max {
			max = s.n + 1
		}
	}
	return max
}

// Build assembles the three per-ABI syscall tables, wiring each slot's
// entry/exit handlers against h. This replaces the original's
// syscall_build_table: rather than a package-level, lazily-initialized
// global, Build returns a value the caller threads explicitly into an
// Engine (see SPEC_FULL.md section 9, "global syscall-tables singleton").
func Build(h *handlers.Handlers) *syscalltable.Tables {
	i386Specs := i386SyscallSpecs()
	amd64Specs := amd64SyscallSpecs()
	x32Specs := x32SyscallSpecs()

	return &syscalltable.Tables{
		I386:      buildTable(tableLength(i386Specs), i386Specs, h),
		X86_64:    buildTable(tableLength(amd64Specs), amd64Specs, h),
		X86_64X32: buildTable(tableLength(x32Specs), x32Specs, h),
	}
}
