// Package memory reads bytes, words, pointers, NUL-terminated strings, and
// NUL-terminated pointer arrays out of a stopped tracee, parameterised by
// the tracee's word size. This is the Tracee Memory Reader component.
package memory

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/reprotrace/pkg/abi"
)

// ErrTraceeGone is a recoverable error: the tracee died or its address
// space could not be read (ESRCH/EFAULT) mid-call. Callers free the task's
// slot and continue the fleet loop rather than propagating this upward.
var ErrTraceeGone = errors.New("memory: tracee vanished or address unreadable")

// Reader reads a stopped tracee's memory. It is an interface so the
// syscall handlers and dispatcher can be tested against a fake backend
// without a live, root-attached tracee.
type Reader interface {
	// ReadBytes reads exactly len(buf) bytes from the tracee tid starting
	// at the remote address addr.
	ReadBytes(tid int, addr uint64, buf []byte) error
	// ReadCString reads bytes from the tracee until a NUL terminator,
	// returning the string without the terminator.
	ReadCString(tid int, addr uint64) (string, error)
}

// MaxCStringLen bounds how far ReadCString will walk before giving up,
// guarding against a corrupt or hostile tracee that never NUL-terminates.
const MaxCStringLen = 1 << 20

// ReadWord reads a single word-sized, zero-extended value at addr. Word
// size is 4 bytes under abi.I386, 8 bytes under abi.X86_64.
func ReadWord(r Reader, mode abi.Mode, tid int, addr uint64) (uint64, error) {
	buf := make([]byte, mode.WordSize())
	if err := r.ReadBytes(tid, addr, buf); err != nil {
		return 0, err
	}
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, nil
}

// ReadPtr reads a single word-sized pointer value at addr. Identical to
// ReadWord; kept distinct because the specification names them separately
// (one returns an integer, the other a remote address used for a further
// read).
func ReadPtr(r Reader, mode abi.Mode, tid int, addr uint64) (uint64, error) {
	return ReadWord(r, mode, tid, addr)
}

// ReadStrArray reads a NUL-terminated array of word-sized pointers
// starting at addr, then dereferences each as a C string, stopping at the
// first null pointer. Used for argv/envp.
func ReadStrArray(r Reader, mode abi.Mode, tid int, addr uint64) ([]string, error) {
	var out []string
	wordSize := uint64(mode.WordSize())
	for i := uint64(0); ; i++ {
		ptr, err := ReadPtr(r, mode, tid, addr+i*wordSize)
		if err != nil {
			return out, err
		}
		if ptr == 0 {
			return out, nil
		}
		s, err := r.ReadCString(tid, ptr)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}

// readCStringFromBytesReader is shared by backends that can only read
// fixed-size chunks (e.g. PTRACE_PEEKDATA, which always returns a machine
// word): it re-implements the NUL scan on top of a raw ReadBytes.
func readCStringFromBytesReader(r Reader, tid int, addr uint64, chunk int) (string, error) {
	var result bytes.Buffer
	buf := make([]byte, chunk)
	for off := uint64(0); uint64(result.Len()) < MaxCStringLen; off += uint64(chunk) {
		if err := r.ReadBytes(tid, addr+off, buf); err != nil {
			return "", err
		}
		if n := bytes.IndexByte(buf, 0); n >= 0 {
			result.Write(buf[:n])
			return result.String(), nil
		}
		result.Write(buf)
	}
	return "", fmt.Errorf("memory: string at %#x exceeds %d bytes: %w", addr, MaxCStringLen, ErrTraceeGone)
}
