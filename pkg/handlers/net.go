package handlers

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/reprotrace/pkg/abi"
	"github.com/google/reprotrace/pkg/memory"
	"github.com/google/reprotrace/pkg/process"
)

// sockaddr family constants, from <sys/socket.h>.
const (
	afInet  = 2
	afInet6 = 10
)

// describeSockaddr reads addrlen bytes of a sockaddr struct and renders it
// as "ipv4:port", "[ipv6]:port", or a placeholder naming the unrecognised
// family. Mirrors the original tracer's print_sockaddr.
func describeSockaddr(data []byte) string {
	if len(data) < 2 {
		return "<truncated sockaddr>"
	}
	family := binary.NativeEndian.Uint16(data)
	switch family {
	case afInet:
		if len(data) < 8 {
			return "<truncated sockaddr_in>"
		}
		port := binary.BigEndian.Uint16(data[2:4])
		ip := net.IP(data[4:8])
		return fmt.Sprintf("%s:%d", ip.String(), port)
	case afInet6:
		if len(data) < 28 {
			return "<truncated sockaddr_in6>"
		}
		port := binary.BigEndian.Uint16(data[2:4])
		ip := net.IP(data[8:24])
		return fmt.Sprintf("[%s]:%d", ip.String(), port)
	default:
		return fmt.Sprintf("<unknown sa_family=%d>", family)
	}
}

func (h *Handlers) warnEndpoint(task *process.Task, verb string, tid int, addrPtr uint64, addrLen uint64) error {
	if addrLen < 2 {
		return nil
	}
	buf := make([]byte, addrLen)
	if err := h.Mem.ReadBytes(tid, addrPtr, buf); err != nil {
		return err
	}
	h.Log.Warnf(task.TID, "process %s %s", verb, describeSockaddr(buf))
	return nil
}

// Connect handles connect(2): a single human-readable warning naming the
// remote endpoint. See SPEC_FULL.md section 4.3.9.
func (h *Handlers) Connect(ctx context.Context, name string, task *process.Task, disc uint32) error {
	return h.warnEndpoint(task, "connected to", task.TID, task.Params[1].Ptr(), task.Params[2].Uint())
}

// Accept handles accept(2)/accept4(2): a single human-readable warning
// naming the remote endpoint.
func (h *Handlers) Accept(ctx context.Context, name string, task *process.Task, disc uint32) error {
	addrLen, err := memory.ReadWord(h.Mem, task.ModeVal, task.TID, task.Params[2].Ptr())
	if err != nil {
		return err
	}
	return h.warnEndpoint(task, "accepted a connection from", task.TID, task.Params[1].Ptr(), addrLen)
}

// Socketcall handles the 32-bit-only socketcall(2) multiplexer: argument 0
// is the sub-call number, argument 1 a tracee-side pointer to an array of
// word-sized arguments that must be re-fetched. Only SYS_CONNECT and
// SYS_ACCEPT are of interest; anything else is silently ignored. See
// SPEC_FULL.md section 4.3.9.
func (h *Handlers) Socketcall(ctx context.Context, name string, task *process.Task, disc uint32) error {
	subcall := task.Params[0].Uint()
	args := task.Params[1].Uint()
	wordSize := uint64(task.ModeVal.WordSize())

	switch subcall {
	case abi.SysConnect:
		addrPtr, err := memory.ReadPtr(h.Mem, task.ModeVal, task.TID, args+1*wordSize)
		if err != nil {
			return err
		}
		addrLen, err := memory.ReadWord(h.Mem, task.ModeVal, task.TID, args+2*wordSize)
		if err != nil {
			return err
		}
		return h.warnEndpoint(task, "connected to", task.TID, addrPtr, addrLen)
	case abi.SysAccept:
		addrPtr, err := memory.ReadPtr(h.Mem, task.ModeVal, task.TID, args+1*wordSize)
		if err != nil {
			return err
		}
		addrLenPtr, err := memory.ReadPtr(h.Mem, task.ModeVal, task.TID, args+2*wordSize)
		if err != nil {
			return err
		}
		addrLen, err := memory.ReadWord(h.Mem, task.ModeVal, task.TID, addrLenPtr)
		if err != nil {
			return err
		}
		return h.warnEndpoint(task, "accepted a connection from", task.TID, addrPtr, addrLen)
	default:
		return nil
	}
}
