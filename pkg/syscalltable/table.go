// Package syscalltable defines the per-ABI sparse syscall dispatch table:
// a dense array indexed by syscall number, each slot naming the syscall
// and holding an optional entry-handler, an optional exit-handler, and an
// opaque discriminator that lets several syscall numbers share one
// handler function (e.g. open/creat/access all route through the same
// file-opening handler, distinguished by discriminator).
//
// This package only defines the table shape. Building a table (wiring
// concrete handler closures into it) lives in package dispatch, which is
// the one package that needs to depend on both this package and the
// handler implementations — keeping this package free of any dependency
// on the handlers themselves, so the *at-family dispatcher (which needs
// to look entries up in a Table) can depend on this package without
// creating an import cycle.
package syscalltable

import (
	"context"

	"github.com/google/reprotrace/pkg/process"
)

// HandlerFunc is the signature shared by every syscall handler: it
// consumes the stopped tracee's register-derived argument vector (via
// task.Params) and emits zero or more events to the Event Sink, returning
// an error only for a sink failure or an internal invariant violation —
// never for a merely-unhandled syscall, which is not an error.
type HandlerFunc func(ctx context.Context, name string, task *process.Task, disc uint32) error

// Entry is one syscall table slot.
type Entry struct {
	Name  string
	Entry HandlerFunc // runs on syscall entry; nil if this syscall has no entry-side work
	Exit  HandlerFunc // runs on syscall exit; nil if this syscall has no exit-side work
	Disc  uint32       // opaque discriminator, interpreted only by Entry/Exit
}

// Table is one ABI's dense array of Entry, indexed by syscall number.
type Table struct {
	entries []Entry
}

// NewTable builds a Table of the given length with every slot empty.
func NewTable(length int) *Table {
	return &Table{entries: make([]Entry, length)}
}

// Set installs entry at syscall number n, growing the table if necessary.
func (t *Table) Set(n int, entry Entry) {
	if n >= len(t.entries) {
		grown := make([]Entry, n+1)
		copy(grown, t.entries)
		t.entries = grown
	}
	t.entries[n] = entry
}

// Len reports the table's length (one past the highest syscall number
// that has a slot, whether or not that slot is populated).
func (t *Table) Len() int { return len(t.entries) }

// Lookup returns the entry at syscall number n and whether n was in range
// and named (Name != ""). An out-of-range or unnamed slot reports ok=false
// so callers can tell "nothing is registered here" from "this is slot
// zero, which happens to be populated."
func (t *Table) Lookup(n int) (Entry, bool) {
	if n < 0 || n >= len(t.entries) || t.entries[n].Name == "" {
		return Entry{}, false
	}
	return t.entries[n], true
}

// Tables holds the three ABI tables a 64-bit tracer recognises (a 32-bit
// host only ever populates I386). Built once by dispatch.Build and passed
// by reference into dispatch.Engine — never stored as a package-level
// global, so there is no initialization-order hazard and tests can build
// as many independent Tables as they like.
type Tables struct {
	I386       *Table
	X86_64     *Table
	X86_64X32  *Table
}
