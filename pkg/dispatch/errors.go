package dispatch

import "errors"

// ErrInvariant marks an internal bookkeeping violation that the Dispatch
// Engine cannot safely continue past — e.g. an exit-side execve handler
// that could not find the entry-side scratch it needs. Distinct from a
// handler returning a wrapped memory.ErrTraceeGone, which is recoverable.
var ErrInvariant = errors.New("dispatch: internal invariant violated")

// ErrUnsupportedABI is reserved for a tracee ABI this build was not
// compiled to recognise (e.g. a 32-bit tracer encountering an x32 tracee).
// Nothing in the current syscall tables returns it; it exists so a future
// ABI addition has a named error to return rather than inventing one.
var ErrUnsupportedABI = errors.New("dispatch: unsupported tracee ABI")
