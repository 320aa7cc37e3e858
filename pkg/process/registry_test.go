package process

import "testing"

func TestRegistryAllocGetFree(t *testing.T) {
	r := NewRegistry()
	if r.Get(100) != nil {
		t.Fatalf("Get on empty registry returned non-nil")
	}

	r.Alloc(&Task{TID: 100, TGID: 100, Status: Attached})
	if got := r.Get(100); got == nil || got.TID != 100 {
		t.Fatalf("Get(100) = %v, want a Task with TID 100", got)
	}

	r.Free(100)
	if r.Get(100) != nil {
		t.Fatalf("Get(100) after Free = non-nil, want nil")
	}
}

func TestRegistryCount(t *testing.T) {
	r := NewRegistry()
	r.Alloc(&Task{TID: 1, Status: Attached})
	r.Alloc(&Task{TID: 2, Status: Allocated})
	r.Alloc(&Task{TID: 3, Status: Attached})

	total, unattached := r.Count()
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if unattached != 1 {
		t.Errorf("unattached = %d, want 1", unattached)
	}
}

func TestRegistryAllOrdered(t *testing.T) {
	r := NewRegistry()
	r.Alloc(&Task{TID: 30, Status: Attached})
	r.Alloc(&Task{TID: 10, Status: Attached})
	r.Alloc(&Task{TID: 20, Status: Attached})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d tasks, want 3", len(all))
	}
	want := []int{10, 20, 30}
	for i, t2 := range all {
		if t2.TID != want[i] {
			t.Errorf("All()[%d].TID = %d, want %d", i, t2.TID, want[i])
		}
	}
}

func TestGetByTGIDInSyscall(t *testing.T) {
	r := NewRegistry()
	caller := &Task{
		TID: 100, TGID: 100, Status: Attached,
		InSyscall: true, CurrentSyscall: 59,
		SyscallInfo: &ExecveScratch{Binary: "/bin/sh"},
	}
	r.Alloc(caller)
	r.Alloc(&Task{TID: 101, TGID: 100, Status: Attached, InSyscall: false})

	got := r.GetByTGIDInSyscall(100, 59)
	if got == nil || got.TID != 100 {
		t.Fatalf("GetByTGIDInSyscall = %v, want task 100", got)
	}

	if got := r.GetByTGIDInSyscall(100, 11); got != nil {
		t.Errorf("GetByTGIDInSyscall for wrong syscall number = %v, want nil", got)
	}
	if got := r.GetByTGIDInSyscall(999, 59); got != nil {
		t.Errorf("GetByTGIDInSyscall for wrong tgid = %v, want nil", got)
	}
}

func TestTaskIsLeader(t *testing.T) {
	leader := &Task{TID: 5, TGID: 5}
	if !leader.IsLeader() {
		t.Error("IsLeader() = false for TID==TGID, want true")
	}
	thread := &Task{TID: 6, TGID: 5}
	if thread.IsLeader() {
		t.Error("IsLeader() = true for TID!=TGID, want false")
	}
}
