package sched

import (
	"sync/atomic"
	"time"

	"github.com/orizon-lang/orizon-kernel/internal/kernel/cpu"
)

// TID identifies a thread. Ids are weak references resolved through the
// scheduler's thread table and never imply ownership.
type TID uint32

// PID identifies a process in the process table.
type PID uint32

// State is the thread lifecycle state. Transitions follow
// READY → RUNNING → {READY, SLEEPING, WAITING, TERMINATED}; SLEEPING and
// WAITING return to READY on wake; TERMINATED is absorbing.
type State int32

const (
	StateReady State = iota
	StateRunning
	StateSleeping
	StateWaiting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateWaiting:
		return "waiting"
	case StateTerminated:
		return "terminated"
	default:
		return "invalid"
	}
}

// Cause records why a thread terminated.
type Cause int32

const (
	// CauseExit means the thread ended by returning from its entry routine
	// or by calling Exit.
	CauseExit Cause = iota
	// CauseFault means the thread was torn down after an unrecovered fault
	// in its entry routine.
	CauseFault
)

func (c Cause) String() string {
	switch c {
	case CauseExit:
		return "exit"
	case CauseFault:
		return "fault"
	default:
		return "invalid"
	}
}

// Entry is a thread body. Its return value becomes the exit status; a thread
// whose entry returns is terminated automatically.
type Entry func(t *Thread, arg any) int

// Thread is the thread control block. State transitions happen only under
// the owning CPU's ready-queue lock with interrupts masked, so no transition
// is observed half-applied by another CPU or an interrupt handler.
type Thread struct {
	id       TID
	pid      atomic.Uint32
	priority int

	state    atomic.Int32
	lastCPU  atomic.Int32
	runTicks atomic.Uint64

	sliceLeft atomic.Int32

	// wakeAt is the absolute uptime deadline; valid only while SLEEPING.
	wakeAt time.Duration

	// joiner is the thread allowed to consume this thread's exit result.
	// Guarded by the scheduler's thread-table lock.
	joiner *Thread

	exitStatus int
	exitCause  Cause

	entry Entry
	arg   any

	ctx       *cpu.Context
	stack     []byte
	forkChild bool

	// Execution gates for the simulated context-switch boundary. The CPU
	// loop signals gate to hand the CPU to the thread; the thread signals
	// parked when it leaves the CPU.
	gate     chan struct{}
	parked   chan struct{}
	started  bool
	finished bool

	idle bool

	sched *Scheduler
}

// ID returns the thread id.
func (t *Thread) ID() TID { return t.id }

// ProcessID returns the owning process id, or zero for bare kernel threads.
func (t *Thread) ProcessID() PID { return PID(t.pid.Load()) }

// BindProcess records the owning process id on the TCB.
func (t *Thread) BindProcess(pid PID) { t.pid.Store(uint32(pid)) }

// Priority returns the thread priority; lower values are higher priority.
func (t *Thread) Priority() int { return t.priority }

// State returns the current lifecycle state.
func (t *Thread) State() State { return State(t.state.Load()) }

func (t *Thread) setState(s State) { t.state.Store(int32(s)) }

// CPU returns the CPU the thread is running on or last ran on.
func (t *Thread) CPU() int { return int(t.lastCPU.Load()) }

// RunTicks returns the accumulated timer ticks the thread has spent running.
func (t *Thread) RunTicks() uint64 { return t.runTicks.Load() }

// ForkChild reports whether this thread was created by Fork duplicating its
// parent's calling thread.
func (t *Thread) ForkChild() bool { return t.forkChild }

// Context returns the thread's saved register state. The context is owned
// exclusively by the thread and swapped by the context-switch boundary.
func (t *Thread) Context() *cpu.Context { return t.ctx }

// park hands the CPU back to the dispatch loop and blocks until the thread
// is dispatched again. Called only by the thread's own goroutine.
func (t *Thread) park() {
	t.parked <- struct{}{}
	<-t.gate
}

// Yield moves the running thread back to READY at the tail of its priority
// queue and hands the CPU to the scheduler.
func (t *Thread) Yield() {
	t.sched.yield(t)
}

// CheckPreempt is a preemption point: when the scheduler has raised the
// reschedule interrupt for this thread's CPU (time-slice expiry or a newly
// READY higher-priority thread), the thread yields. Long-running thread
// bodies call this the way kernel code polls for pending reschedules.
func (t *Thread) CheckPreempt() {
	if t.sched.takeResched(t.CPU()) {
		t.sched.yield(t)
	}
}

// Sleep blocks the thread for at least d. The thread does not become READY
// before its deadline; it resumes at the first tick at or after it, so the
// elapsed time is always >= d.
func (t *Thread) Sleep(d time.Duration) {
	t.sched.sleep(t, d)
}

// Join blocks until the target thread terminates, then consumes its exit
// status and cause and releases the TCB. A missing or non-joinable target
// fails immediately with ErrNoSuchTarget instead of blocking.
func (t *Thread) Join(target TID) (status int, cause Cause, err error) {
	return t.sched.join(t, target)
}

// Exit terminates the calling thread with the given status. It never
// returns: the thread's goroutine is torn down after control is handed back
// to the scheduler.
func (t *Thread) Exit(status int) {
	t.sched.exitThread(t, status)
}
