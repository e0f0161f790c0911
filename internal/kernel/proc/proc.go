// Package proc implements the process table: PCB lifecycle, fork's
// calling-thread duplication, and the wait/reap path. Relationships between
// processes are stored as ids resolved through the table, never as owning
// references.
package proc

import (
	"fmt"
	"sync/atomic"

	"github.com/orizon-lang/orizon-kernel/internal/kernel/ksync"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/sched"
)

// RootPID is the root process every orphan is reparented to.
const RootPID sched.PID = 1

// AddressSpace is the opaque memory-management handle owned by the memory
// subsystem. Fork clones it (copy-on-write marking happens behind Clone).
type AddressSpace interface {
	Clone() (AddressSpace, error)
	Release()
}

// NopAddressSpace is the trivial address space used when no memory
// subsystem is attached.
type NopAddressSpace struct{}

func (NopAddressSpace) Clone() (AddressSpace, error) { return NopAddressSpace{}, nil }
func (NopAddressSpace) Release()                     {}

// Process is the process control block.
type Process struct {
	pid  sched.PID
	ppid sched.PID

	children []sched.PID
	threads  []sched.TID

	addr AddressSpace

	// Exit state: set once when the last thread terminates, immutable
	// afterward, consumed exactly once by a successful wait.
	exited     bool
	exitStatus int
	exitCause  sched.Cause

	// waiter is the parent thread blocked in wait_process, if any.
	waiter *sched.Thread
}

// PID returns the process id.
func (p *Process) PID() sched.PID { return p.pid }

// ParentPID returns the parent process id.
func (p *Process) ParentPID() sched.PID { return p.ppid }

// Table is the system-wide process table. All mutation happens under its
// spinlock; the scheduler's termination hook feeds exit bookkeeping.
type Table struct {
	lock  ksync.SpinLock
	procs map[sched.PID]*Process

	nextPID atomic.Uint32

	sched    *sched.Scheduler
	newSpace func() (AddressSpace, error)
	maxProcs int
}

// NewTable creates the process table with the root process (pid 1)
// installed, and hooks thread termination on s. maxProcs bounds the table;
// zero means unbounded.
func NewTable(s *sched.Scheduler, newSpace func() (AddressSpace, error), maxProcs int) *Table {
	if newSpace == nil {
		newSpace = func() (AddressSpace, error) { return NopAddressSpace{}, nil }
	}
	tb := &Table{
		procs:    make(map[sched.PID]*Process),
		sched:    s,
		newSpace: newSpace,
		maxProcs: maxProcs,
	}
	tb.nextPID.Store(uint32(RootPID))
	tb.procs[RootPID] = &Process{pid: RootPID, ppid: RootPID, addr: NopAddressSpace{}}
	s.OnThreadExit(tb.noteThreadExit)
	return tb
}

func (tb *Table) allocPID() sched.PID {
	return sched.PID(tb.nextPID.Add(1))
}

// Lookup resolves a process id.
func (tb *Table) Lookup(pid sched.PID) (*Process, bool) {
	tb.lock.Acquire()
	defer tb.lock.Release()
	p, ok := tb.procs[pid]
	return p, ok
}

// Create allocates a PCB as a child of ppid with a fresh address space.
func (tb *Table) Create(ppid sched.PID) (*Process, error) {
	space, err := tb.newSpace()
	if err != nil {
		return nil, fmt.Errorf("create process: %w", sched.ErrAllocFailed)
	}

	tb.lock.Acquire()
	defer tb.lock.Release()

	parent, ok := tb.procs[ppid]
	if !ok {
		space.Release()
		return nil, fmt.Errorf("create process under %d: %w", ppid, sched.ErrNoSuchTarget)
	}
	if tb.maxProcs > 0 && len(tb.procs) >= tb.maxProcs {
		space.Release()
		return nil, fmt.Errorf("create process: table full (%d): %w", tb.maxProcs, sched.ErrAllocFailed)
	}
	p := &Process{
		pid:  tb.allocPID(),
		ppid: parent.pid,
		addr: space,
	}
	parent.children = append(parent.children, p.pid)
	tb.procs[p.pid] = p
	return p, nil
}

// AttachThread records th as owned by p and binds the TCB's process id.
func (tb *Table) AttachThread(p *Process, th *sched.Thread) {
	th.BindProcess(p.pid)
	tb.lock.Acquire()
	p.threads = append(p.threads, th.ID())
	tb.lock.Release()
}

// Fork duplicates parent's address space and exactly the calling thread
// into a new PCB/TCB pair. The child's saved context is the caller's with
// the return register cleared, so the call returns 0 in the child and the
// child's pid in the parent. childArg builds the child thread's entry
// argument from the new PCB.
func (tb *Table) Fork(caller *sched.Thread, parent *Process, childArg func(child *Process) any) (sched.PID, error) {
	space, err := parent.addr.Clone()
	if err != nil {
		return 0, fmt.Errorf("fork %d: address space: %w", parent.pid, sched.ErrAllocFailed)
	}

	tb.lock.Acquire()
	if tb.maxProcs > 0 && len(tb.procs) >= tb.maxProcs {
		tb.lock.Release()
		space.Release()
		return 0, fmt.Errorf("fork %d: table full (%d): %w", parent.pid, tb.maxProcs, sched.ErrAllocFailed)
	}
	child := &Process{
		pid:  tb.allocPID(),
		ppid: parent.pid,
		addr: space,
	}
	parent.children = append(parent.children, child.pid)
	tb.procs[child.pid] = child
	tb.lock.Release()

	childCtx := caller.Context().Clone()
	childCtx.RAX = 0

	th, err := tb.sched.NewForkedThread(caller, childArg(child), childCtx)
	if err != nil {
		tb.lock.Acquire()
		delete(tb.procs, child.pid)
		parent.children = removePID(parent.children, child.pid)
		tb.lock.Release()
		space.Release()
		return 0, fmt.Errorf("fork %d: %w", parent.pid, err)
	}
	// Attach before enqueue so the exit hook always finds the thread on its
	// process, even if the child runs to completion immediately.
	tb.AttachThread(child, th)

	// The parent's frame carries the child pid back through the syscall
	// return register.
	caller.Context().RAX = uint64(child.pid)

	tb.sched.Enqueue(th)
	return child.pid, nil
}

// Wait blocks caller until the child process pid terminates, then consumes
// its exit state and releases the PCB. A pid that does not exist or is not
// a child of parent fails immediately with ErrNoSuchTarget.
func (tb *Table) Wait(caller *sched.Thread, parent *Process, pid sched.PID) (status int, cause sched.Cause, err error) {
	tb.lock.Acquire()
	child, ok := tb.procs[pid]
	if !ok || child.ppid != parent.pid || child.waiter != nil {
		tb.lock.Release()
		return 0, 0, fmt.Errorf("wait %d: %w", pid, sched.ErrNoSuchTarget)
	}
	if child.exited {
		tb.reapLocked(parent, child)
		tb.lock.Release()
		return child.exitStatus, child.exitCause, nil
	}
	// Declare the caller WAITING before publishing it as the waiter so the
	// child's exit path always observes a wakeable thread.
	tb.sched.BeginWait(caller)
	child.waiter = caller
	tb.lock.Release()

	tb.sched.Park(caller)

	tb.lock.Acquire()
	tb.reapLocked(parent, child)
	tb.lock.Release()
	return child.exitStatus, child.exitCause, nil
}

// reapLocked removes a terminated child from the table and its parent's
// child list, releasing the address space. Caller holds tb.lock.
func (tb *Table) reapLocked(parent, child *Process) {
	delete(tb.procs, child.pid)
	parent.children = removePID(parent.children, child.pid)
	child.addr.Release()
}

// noteThreadExit is the scheduler's termination hook. When the last thread
// of a process terminates, the process exit state is set once, the waiting
// parent is woken, and any children are reparented to the root process.
// Orphans whose parent is the root are discarded immediately; the root
// never waits.
func (tb *Table) noteThreadExit(th *sched.Thread, status int, cause sched.Cause) {
	pid := th.ProcessID()
	if pid == 0 {
		return
	}
	// A process thread's exit result is consumed through wait_process, never
	// by a thread join, so the TCB is released now unless a joiner already
	// claimed it.
	tb.sched.Release(th)

	tb.lock.Acquire()
	p, ok := tb.procs[pid]
	if !ok {
		tb.lock.Release()
		return
	}
	p.threads = removeTID(p.threads, th.ID())
	if len(p.threads) > 0 || p.exited {
		tb.lock.Release()
		return
	}
	p.exited = true
	p.exitStatus = status
	p.exitCause = cause

	// Reparent surviving children; discard already-exited ones, since the
	// root never consumes exit states.
	root := tb.procs[RootPID]
	for _, cpid := range p.children {
		c, ok := tb.procs[cpid]
		if !ok {
			continue
		}
		if c.exited {
			delete(tb.procs, cpid)
			c.addr.Release()
			continue
		}
		c.ppid = RootPID
		root.children = append(root.children, cpid)
	}
	p.children = nil

	waiter := p.waiter
	if waiter == nil && p.ppid == RootPID {
		// Orphan with no waiter: the root discards it.
		delete(tb.procs, pid)
		if root != nil {
			root.children = removePID(root.children, pid)
		}
		p.addr.Release()
	}
	tb.lock.Release()

	if waiter != nil {
		tb.sched.Wake(waiter)
	}
}

// Info describes one process for diagnostics.
type Info struct {
	PID      sched.PID   `json:"pid"`
	Parent   sched.PID   `json:"parent"`
	Children []sched.PID `json:"children,omitempty"`
	Threads  []sched.TID `json:"threads,omitempty"`
	Exited   bool        `json:"exited"`
}

// Snapshot returns the process table for diagnostics.
func (tb *Table) Snapshot() []Info {
	tb.lock.Acquire()
	defer tb.lock.Release()
	out := make([]Info, 0, len(tb.procs))
	for _, p := range tb.procs {
		out = append(out, Info{
			PID:      p.pid,
			Parent:   p.ppid,
			Children: append([]sched.PID(nil), p.children...),
			Threads:  append([]sched.TID(nil), p.threads...),
			Exited:   p.exited,
		})
	}
	return out
}

func removePID(ids []sched.PID, pid sched.PID) []sched.PID {
	for i, id := range ids {
		if id == pid {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func removeTID(ids []sched.TID, tid sched.TID) []sched.TID {
	for i, id := range ids {
		if id == tid {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
