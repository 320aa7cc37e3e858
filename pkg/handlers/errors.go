package handlers

import "errors"

// ErrExecveScratchMissing signals the internal-invariant-violation kind of
// error (specification section 7): an execve exit was observed but no
// task — neither the one that stopped nor any sibling in its thread group
// — holds the matching entry-side scratch. The dispatch engine wraps this
// in dispatch.ErrInvariant, logs it at critical level, and terminates the
// trace.
var ErrExecveScratchMissing = errors.New("handlers: execve() completed but its entry call was never recorded")
