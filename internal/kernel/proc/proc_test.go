package proc

import (
	"errors"
	"testing"

	"github.com/orizon-lang/orizon-kernel/internal/kernel/clock"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/sched"
)

func newTestTable(t *testing.T, maxProcs int) (*sched.Scheduler, *Table) {
	t.Helper()
	s, err := sched.New(sched.Config{Clock: clock.NewManual(), NumCPUs: 1, Priorities: 8})
	if err != nil {
		t.Fatalf("sched.New: %v", err)
	}
	return s, NewTable(s, nil, maxProcs)
}

// drain dispatches cpu 0 until the scheduler goes idle twice in a row.
func drain(s *sched.Scheduler) {
	idle := 0
	for idle < 2 {
		if s.Dispatch(0) {
			idle = 0
		} else {
			idle++
		}
	}
}

// startProc creates a process under ppid with one thread running entry and
// makes it runnable. The PCB travels as the thread argument.
func startProc(t *testing.T, s *sched.Scheduler, tb *Table, ppid sched.PID, prio int, entry sched.Entry) *Process {
	t.Helper()
	p, err := tb.Create(ppid)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	th, err := s.NewThread(0, prio, 0, entry, p)
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	tb.AttachThread(p, th)
	s.Enqueue(th)
	return p
}

func TestCreateUnderRoot(t *testing.T) {
	_, tb := newTestTable(t, 0)

	p, err := tb.Create(RootPID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ParentPID() != RootPID {
		t.Fatalf("parent = %d, want %d", p.ParentPID(), RootPID)
	}
	if _, ok := tb.Lookup(p.PID()); !ok {
		t.Fatal("created process not in table")
	}
	if _, err := tb.Create(sched.PID(9999)); !errors.Is(err, sched.ErrNoSuchTarget) {
		t.Fatalf("Create under missing parent = %v, want ErrNoSuchTarget", err)
	}
}

func TestCreateRespectsMaxProcs(t *testing.T) {
	_, tb := newTestTable(t, 2) // root + 1

	if _, err := tb.Create(RootPID); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tb.Create(RootPID); !errors.Is(err, sched.ErrAllocFailed) {
		t.Fatalf("Create beyond max = %v, want ErrAllocFailed", err)
	}
}

func TestForkReturnsTwice(t *testing.T) {
	s, tb := newTestTable(t, 0)

	var (
		childRAX   = uint64(1 << 63) // sentinel, overwritten by the child
		parentRAX  uint64
		forkedPID  sched.PID
		waitStatus int
		waitCause  sched.Cause
		waitErr    error
	)
	entry := func(th *sched.Thread, arg any) int {
		p := arg.(*Process)
		if th.ForkChild() {
			childRAX = th.Context().RAX
			return 30 + int(p.PID())
		}
		pid, err := tb.Fork(th, p, func(child *Process) any { return child })
		if err != nil {
			t.Errorf("Fork: %v", err)
			return 1
		}
		forkedPID = pid
		parentRAX = th.Context().RAX
		waitStatus, waitCause, waitErr = tb.Wait(th, p, pid)
		return 0
	}
	startProc(t, s, tb, RootPID, 1, entry)
	drain(s)

	if forkedPID == 0 {
		t.Fatal("fork did not produce a child pid")
	}
	if childRAX != 0 {
		t.Fatalf("child return register = %d, want 0", childRAX)
	}
	if parentRAX != uint64(forkedPID) {
		t.Fatalf("parent return register = %d, want child pid %d", parentRAX, forkedPID)
	}
	if waitErr != nil {
		t.Fatalf("Wait: %v", waitErr)
	}
	if want := 30 + int(forkedPID); waitStatus != want {
		t.Fatalf("wait status = %d, want %d", waitStatus, want)
	}
	if waitCause != sched.CauseExit {
		t.Fatalf("wait cause = %v, want exit", waitCause)
	}
	if _, ok := tb.Lookup(forkedPID); ok {
		t.Fatal("reaped child still in the table")
	}
}

func TestWaitOnAlreadyExitedChild(t *testing.T) {
	s, tb := newTestTable(t, 0)

	var childPID sched.PID
	var status int
	var werr error
	entry := func(th *sched.Thread, arg any) int {
		p := arg.(*Process)
		if th.ForkChild() {
			return 5
		}
		pid, err := tb.Fork(th, p, func(child *Process) any { return child })
		if err != nil {
			t.Errorf("Fork: %v", err)
			return 1
		}
		childPID = pid
		// Let the child run to completion before waiting.
		th.Yield()
		th.Yield()
		status, _, werr = tb.Wait(th, p, pid)
		return 0
	}
	startProc(t, s, tb, RootPID, 1, entry)
	drain(s)

	if werr != nil {
		t.Fatalf("Wait: %v", werr)
	}
	if status != 5 {
		t.Fatalf("status = %d, want 5", status)
	}
	if _, ok := tb.Lookup(childPID); ok {
		t.Fatal("reaped child still in the table")
	}
}

func TestWaitRejectsNonChildren(t *testing.T) {
	s, tb := newTestTable(t, 0)

	other, err := tb.Create(RootPID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var missingErr, strangerErr error
	entry := func(th *sched.Thread, arg any) int {
		p := arg.(*Process)
		_, _, missingErr = tb.Wait(th, p, sched.PID(4242))
		_, _, strangerErr = tb.Wait(th, p, other.PID())
		return 0
	}
	startProc(t, s, tb, RootPID, 1, entry)
	drain(s)

	if !errors.Is(missingErr, sched.ErrNoSuchTarget) {
		t.Fatalf("wait on missing pid = %v, want ErrNoSuchTarget", missingErr)
	}
	if !errors.Is(strangerErr, sched.ErrNoSuchTarget) {
		t.Fatalf("wait on non-child = %v, want ErrNoSuchTarget", strangerErr)
	}
}

func TestOrphanReparentedToRoot(t *testing.T) {
	s, tb := newTestTable(t, 0)

	var grandchild sched.PID
	entry := func(th *sched.Thread, arg any) int {
		p := arg.(*Process)
		if th.ForkChild() {
			// Child lingers so it outlives its parent.
			th.Yield()
			th.Yield()
			th.Yield()
			return 0
		}
		pid, err := tb.Fork(th, p, func(child *Process) any { return child })
		if err != nil {
			t.Errorf("Fork: %v", err)
			return 1
		}
		grandchild = pid
		return 0 // exit without waiting
	}
	parent := startProc(t, s, tb, RootPID, 1, entry)

	// Run until the parent has exited but the child is still alive.
	for i := 0; i < 3; i++ {
		s.Dispatch(0)
	}
	child, ok := tb.Lookup(grandchild)
	if !ok {
		t.Fatal("orphan vanished before its parent exit was processed")
	}
	if child.ParentPID() != RootPID {
		t.Fatalf("orphan parent = %d, want root %d", child.ParentPID(), RootPID)
	}
	if _, ok := tb.Lookup(parent.PID()); ok {
		t.Fatal("exited orphan parent was not discarded")
	}

	// When the reparented orphan exits, the root discards it immediately.
	drain(s)
	if _, ok := tb.Lookup(grandchild); ok {
		t.Fatal("exited orphan lingered under the root")
	}
}

func TestTerminatedProcessThreadReleased(t *testing.T) {
	s, tb := newTestTable(t, 0)

	var tid sched.TID
	startProc(t, s, tb, RootPID, 1, func(th *sched.Thread, arg any) int {
		tid = th.ID()
		return 0
	})
	drain(s)

	if _, ok := s.Lookup(tid); ok {
		t.Fatal("terminated process thread still in the thread table")
	}
	if got := s.ReadStats().Threads; got != 0 {
		t.Fatalf("thread table size = %d, want 0", got)
	}
}

func TestForkWaitCycleDoesNotAccumulateThreads(t *testing.T) {
	s, tb := newTestTable(t, 0)

	entry := func(th *sched.Thread, arg any) int {
		p := arg.(*Process)
		if th.ForkChild() {
			return 0
		}
		for i := 0; i < 5; i++ {
			pid, err := tb.Fork(th, p, func(child *Process) any { return child })
			if err != nil {
				t.Errorf("Fork: %v", err)
				return 1
			}
			if _, _, err := tb.Wait(th, p, pid); err != nil {
				t.Errorf("Wait: %v", err)
				return 1
			}
		}
		return 0
	}
	startProc(t, s, tb, RootPID, 1, entry)
	drain(s)

	if got := s.ReadStats().Threads; got != 0 {
		t.Fatalf("thread table size after fork/wait cycles = %d, want 0", got)
	}
}

func TestSnapshotListsProcesses(t *testing.T) {
	s, tb := newTestTable(t, 0)

	p := startProc(t, s, tb, RootPID, 1, func(th *sched.Thread, arg any) int {
		th.Yield()
		return 0
	})

	infos := tb.Snapshot()
	var found bool
	for _, info := range infos {
		if info.PID == p.PID() {
			found = true
			if info.Parent != RootPID {
				t.Fatalf("parent = %d, want %d", info.Parent, RootPID)
			}
			if len(info.Threads) != 1 {
				t.Fatalf("threads = %v, want one", info.Threads)
			}
		}
	}
	if !found {
		t.Fatal("snapshot missing the started process")
	}
	drain(s)
}
