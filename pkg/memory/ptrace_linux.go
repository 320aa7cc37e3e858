//go:build linux

package memory

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// PtraceReader reads a stopped tracee's address space via
// process_vm_readv(2), falling back to PTRACE_PEEKDATA when the former is
// denied (ptrace-scope hardening, seccomp, or an unprivileged tracer).
// Grounded on DataDog's pkg/security/ptracer: processVMReadv/readString use
// the same ProcessVMReadv + page-batched scan; PeekString is the
// PTRACE_PEEKDATA fallback for environments where that's unavailable.
type PtraceReader struct {
	pageSize int
}

// NewPtraceReader constructs a PtraceReader sized to the host page size.
func NewPtraceReader() *PtraceReader {
	return &PtraceReader{pageSize: os.Getpagesize()}
}

var _ Reader = (*PtraceReader)(nil)

// ReadBytes implements Reader.
func (p *PtraceReader) ReadBytes(tid int, addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := processVMReadv(tid, addr, buf)
	if err == nil && n == len(buf) {
		return nil
	}
	// process_vm_readv unavailable or partially denied: fall back to
	// PTRACE_PEEKDATA, one machine word at a time.
	return p.peekBytes(tid, addr, buf)
}

func processVMReadv(tid int, addr uint64, buf []byte) (int, error) {
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	return unix.ProcessVMReadv(tid, local, remote, 0)
}

func (p *PtraceReader) peekBytes(tid int, addr uint64, buf []byte) error {
	const wordSize = 8
	word := make([]byte, wordSize)
	for off := 0; off < len(buf); off += wordSize {
		n, err := unix.PtracePeekData(tid, uintptr(addr)+uintptr(off), word)
		if err != nil || n == 0 {
			return fmt.Errorf("memory: PEEKDATA tid=%d addr=%#x: %w: %w", tid, addr+uint64(off), err, ErrTraceeGone)
		}
		copy(buf[off:], word[:min(n, len(buf)-off)])
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ReadCString implements Reader. It batches reads a page at a time, in the
// manner of DataDog's ptracer.readString: the first read runs from addr to
// the end of its page, and each further read (made only if no NUL was
// found) extends one page further, up to MaxCStringLen bytes. Most paths
// fit comfortably in the first read.
func (p *PtraceReader) ReadCString(tid int, addr uint64) (string, error) {
	pageSize := uint64(p.pageSize)
	pageAddr := addr & ^(pageSize - 1)
	sizeToEndOfPage := pageAddr + pageSize - addr

	for readSize := sizeToEndOfPage; readSize <= MaxCStringLen; readSize += pageSize {
		data := make([]byte, readSize)
		n, err := processVMReadv(tid, addr, data)
		if err != nil || n != len(data) {
			return readCStringFromBytesReader(p, tid, addr, 8)
		}
		if i := bytes.IndexByte(data, 0); i >= 0 {
			return string(data[:i]), nil
		}
	}
	return "", fmt.Errorf("memory: string at %#x exceeds %d bytes: %w", addr, MaxCStringLen, ErrTraceeGone)
}
