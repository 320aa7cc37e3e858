//go:build linux

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/process"
)

// detectMode sniffs the EI_CLASS byte (offset 4) of a tracee's executable
// to decide whether it is running in a 32-bit (i386, or 32-bit compat on a
// 64-bit kernel) or 64-bit (x86_64) address space. Re-run after every
// successful execve, since exec can change a task's width.
func detectMode(tid int) (abi.Mode, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/exe", tid))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var ident [16]byte
	if _, err := f.Read(ident[:]); err != nil {
		return 0, err
	}
	const elfClass64 = 2
	if ident[4] == elfClass64 {
		return abi.X86_64, nil
	}
	return abi.I386, nil
}

// populateRegisters reads the stopped tracee's current registers into
// task's syscall-entry snapshot, following the 64-bit or 32-bit (compat)
// register-to-argument mapping depending on task.ModeVal. A 32-bit tracee
// under a 64-bit kernel still reports through PTRACE_GETREGS's 64-bit
// user_regs_struct, but its syscall arguments occupy a different set of
// fields (ebx/ecx/edx/esi/edi/ebp, not the x86-64 calling convention's
// rdi/rsi/rdx/r10/r8/r9) — this is the well-known ptrace ABI wrinkle every
// x86 tracer has to account for.
func populateRegisters(task *process.Task) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(task.TID, &regs); err != nil {
		return fmt.Errorf("cmd: PTRACE_GETREGS tid=%d: %w", task.TID, err)
	}

	task.CurrentSyscall = int(int64(regs.Orig_rax))
	task.RetValue = int64(regs.Rax)

	if task.ModeVal == abi.I386 {
		task.Params = [process.NumParams]process.Register{
			process.Register(regs.Rbx),
			process.Register(regs.Rcx),
			process.Register(regs.Rdx),
			process.Register(regs.Rsi),
			process.Register(regs.Rdi),
			process.Register(regs.Rbp),
		}
		return nil
	}

	task.Params = [process.NumParams]process.Register{
		process.Register(regs.Rdi),
		process.Register(regs.Rsi),
		process.Register(regs.Rdx),
		process.Register(regs.R10),
		process.Register(regs.R8),
		process.Register(regs.R9),
	}
	return nil
}
