package process

import "github.com/google/btree"

// btreeDegree matches the degree gvisor and other Go codebases commonly
// pick for an in-memory google/btree index of a few thousand items at
// most: small enough to keep node scans cache-friendly, large enough to
// keep the tree shallow.
const btreeDegree = 32

// tidItem orders the registry's tid index. The btree only ever needs to
// answer "iterate tids in order"; the Task values themselves live in the
// plain map below, which is the lookup fast path.
type tidItem int

func (a tidItem) Less(than btree.Item) bool { return a < than.(tidItem) }

// Registry is the set of all known tasks. Per the concurrency model
// (specification section 5), the tracer is single-threaded and
// cooperative, so Registry carries no locks: there is no concurrent
// access to synchronize against.
type Registry struct {
	byTID map[int]*Task
	order *btree.BTree
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byTID: make(map[int]*Task),
		order: btree.New(btreeDegree),
	}
}

// Get looks up a task by tid, returning nil if it is not known (including
// if it was previously Free'd and purged).
func (r *Registry) Get(tid int) *Task {
	return r.byTID[tid]
}

// GetByTGIDInSyscall returns the first Attached task sharing tgid that is
// currently mid-syscall in the given syscall number with non-nil scratch.
// This is the sibling search the execve-exit handler (specification
// section 4.3.7) and the dispatcher's ABI-transition workaround
// (specification section 4.4 step 4) both perform.
func (r *Registry) GetByTGIDInSyscall(tgid, syscallNr int) *Task {
	for _, t := range r.byTID {
		if t.Status == Attached && t.TGID == tgid && t.InSyscall &&
			t.CurrentSyscall == syscallNr && t.SyscallInfo != nil {
			return t
		}
	}
	return nil
}

// Alloc inserts a brand-new task into the registry (replacing any
// previously Free'd entry at the same tid, which is safe: the kernel does
// not reuse a live tid).
func (r *Registry) Alloc(t *Task) {
	r.byTID[t.TID] = t
	r.order.ReplaceOrInsert(tidItem(t.TID))
}

// Free marks t's slot terminated and removes it from the registry so the
// tid may be reused by a later Alloc.
func (r *Registry) Free(tid int) {
	if t, ok := r.byTID[tid]; ok {
		t.Status = Free
	}
	delete(r.byTID, tid)
	r.order.Delete(tidItem(tid))
}

// Count returns the number of live tasks and, among those, how many are
// still Allocated (registered by a fork/clone exit, with the child's own
// stop not yet seen) — the pair the original tracer logs at verbosity>=2 after
// every fork/clone ("%d processes (inc. %d unattached)").
func (r *Registry) Count() (total, unattached int) {
	r.order.Ascend(func(item btree.Item) bool {
		t := r.byTID[int(item.(tidItem))]
		if t == nil {
			return true
		}
		total++
		if t.Status == Allocated {
			unattached++
		}
		return true
	})
	return total, unattached
}

// All returns every live task in ascending tid order. Used by teardown to
// report an exit code for each still-live task.
func (r *Registry) All() []*Task {
	out := make([]*Task, 0, len(r.byTID))
	r.order.Ascend(func(item btree.Item) bool {
		if t := r.byTID[int(item.(tidItem))]; t != nil {
			out = append(out, t)
		}
		return true
	})
	return out
}
