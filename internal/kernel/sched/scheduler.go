// Package sched implements the per-CPU priority scheduler: ready queues,
// strict-priority round-robin selection, tick-driven preemption, the sleep
// queue, and the thread lifecycle operations every other subsystem builds
// on.
package sched

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/orizon-lang/orizon-kernel/internal/kernel/clock"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/cpu"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/ksync"
)

// Recoverable scheduler errors, returned as values to the caller.
var (
	ErrInvalidPriority = errors.New("sched: priority outside configured range")
	ErrNoSuchTarget    = errors.New("sched: join target does not exist or is not joinable")
	ErrAllocFailed     = errors.New("sched: stack allocation failed")
	ErrInvalidCPU      = errors.New("sched: cpu id outside configured range")
	ErrNullEntry       = errors.New("sched: nil thread entry")
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultPriorities = 64
	DefaultTimeSlice  = 10
	DefaultMaxStack   = 1 << 20
	DefaultStackSize  = 16 << 10
)

// Config carries the scheduler construction parameters and its external
// collaborators.
type Config struct {
	// Clock is the monotonic uptime source for sleep deadlines. Required.
	Clock clock.Clock

	// NumCPUs is the number of virtual CPUs, capped at cpu.MaxCPUs.
	NumCPUs int

	// Priorities is the number of priority levels; valid priorities are
	// 0..Priorities-1, lower value meaning higher priority.
	Priorities int

	// TimeSlice is the number of ticks a thread runs before the scheduler
	// raises a reschedule.
	TimeSlice int

	// MaxStack bounds per-thread stack allocation.
	MaxStack int

	// AllocStack is the stack allocator collaborator. Nil uses make.
	AllocStack func(size int) ([]byte, error)

	// Raise raises the software scheduler interrupt for a CPU. The kernel
	// routes it through the interrupt registry; nil marks the CPU directly.
	Raise func(cpuID int)

	// Panic is the invariant-violation collaborator. It must not return.
	// Nil falls back to a runtime panic.
	Panic func(cause string)

	// PinHostCPUs pins each virtual CPU loop to a host CPU.
	PinHostCPUs bool
}

// percpu is the scheduler state owned by one virtual CPU: its ready queues,
// current thread, and idle thread.
type percpu struct {
	cpu  *cpu.CPU
	lock ksync.SpinLock

	// queues[p] holds READY threads at priority p in FIFO order.
	queues  [][]*Thread
	current *Thread
	idle    *Thread

	queued         atomic.Int32
	needResched    atomic.Uint32
	idleDispatches atomic.Uint64
	idleTicks      atomic.Uint64

	// wake is signalled when work is enqueued on an idle CPU.
	wake chan struct{}
}

// Scheduler owns the per-CPU contexts, the global thread table, and the
// sleep queue.
type Scheduler struct {
	clk  clock.Clock
	cpus []*percpu

	priorities int
	timeSlice  atomic.Int32
	maxStack   int
	alloc      func(size int) ([]byte, error)
	raise      func(cpuID int)
	panicFn    func(cause string)
	pinHost    bool

	threadsLock ksync.SpinLock
	threads     map[TID]*Thread
	nextTID     atomic.Uint32

	sleepLock ksync.SpinLock
	sleepers  sleepQueue

	// onThreadExit lets the process layer observe terminations.
	onThreadExit func(t *Thread, status int, cause Cause)

	ctxSwitches atomic.Uint64
	preemptions atomic.Uint64
	migrations  atomic.Uint64
	wakeups     atomic.Uint64
}

// New creates a scheduler with cfg. Zero fields take the package defaults.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("sched: nil clock")
	}
	if cfg.NumCPUs <= 0 {
		cfg.NumCPUs = 1
	}
	if cfg.NumCPUs > cpu.MaxCPUs {
		return nil, fmt.Errorf("sched: %d cpus exceeds cap %d: %w", cfg.NumCPUs, cpu.MaxCPUs, ErrInvalidCPU)
	}
	if cfg.Priorities <= 0 {
		cfg.Priorities = DefaultPriorities
	}
	if cfg.TimeSlice <= 0 {
		cfg.TimeSlice = DefaultTimeSlice
	}
	if cfg.MaxStack <= 0 {
		cfg.MaxStack = DefaultMaxStack
	}

	s := &Scheduler{
		clk:        cfg.Clock,
		priorities: cfg.Priorities,
		maxStack:   cfg.MaxStack,
		alloc:      cfg.AllocStack,
		raise:      cfg.Raise,
		panicFn:    cfg.Panic,
		pinHost:    cfg.PinHostCPUs,
		threads:    make(map[TID]*Thread),
	}
	s.timeSlice.Store(int32(cfg.TimeSlice))
	if s.alloc == nil {
		s.alloc = func(size int) ([]byte, error) { return make([]byte, size), nil }
	}
	if s.raise == nil {
		s.raise = s.MarkResched
	}
	if s.panicFn == nil {
		s.panicFn = func(cause string) { panic("sched: " + cause) }
	}

	for i := 0; i < cfg.NumCPUs; i++ {
		c := &percpu{
			cpu:    cpu.New(i),
			queues: make([][]*Thread, cfg.Priorities),
			wake:   make(chan struct{}, 1),
		}
		c.idle = &Thread{
			id:       s.allocTID(),
			priority: cfg.Priorities,
			idle:     true,
			sched:    s,
		}
		c.idle.lastCPU.Store(int32(i))
		c.idle.setState(StateReady)
		c.current = c.idle
		s.cpus = append(s.cpus, c)
	}
	return s, nil
}

func (s *Scheduler) allocTID() TID {
	return TID(s.nextTID.Add(1))
}

// NumCPUs returns the configured virtual CPU count.
func (s *Scheduler) NumCPUs() int { return len(s.cpus) }

// Priorities returns the number of configured priority levels.
func (s *Scheduler) Priorities() int { return s.priorities }

// SetTimeSlice applies a new time slice in ticks. Runtime tunable; affects
// threads dispatched after the change.
func (s *Scheduler) SetTimeSlice(ticks int) {
	if ticks > 0 {
		s.timeSlice.Store(int32(ticks))
	}
}

// TimeSlice returns the current time slice in ticks.
func (s *Scheduler) TimeSlice() int { return int(s.timeSlice.Load()) }

// OnThreadExit installs the termination observer used by the process layer.
func (s *Scheduler) OnThreadExit(fn func(t *Thread, status int, cause Cause)) {
	s.onThreadExit = fn
}

// CreateThread allocates a TCB and stack, initializes the saved context to
// begin at entry(arg), and enqueues the thread READY on CPU 0.
func (s *Scheduler) CreateThread(priority, stackSize int, entry Entry, arg any) (*Thread, error) {
	return s.CreateThreadOn(0, priority, stackSize, entry, arg)
}

// CreateThreadOn is CreateThread with an explicit CPU placement, used by
// affinity-sensitive callers and by fork to keep the child on the parent's
// CPU.
func (s *Scheduler) CreateThreadOn(cpuID, priority, stackSize int, entry Entry, arg any) (*Thread, error) {
	t, err := s.spawn(cpuID, priority, stackSize, entry, arg)
	if err != nil {
		return nil, err
	}
	s.enqueue(cpuID, t)
	return t, nil
}

// NewThread allocates a TCB without making it runnable. The caller finishes
// its bookkeeping (process binding) and then calls Enqueue. CreateThread is
// the one-step form.
func (s *Scheduler) NewThread(cpuID, priority, stackSize int, entry Entry, arg any) (*Thread, error) {
	return s.spawn(cpuID, priority, stackSize, entry, arg)
}

// NewForkedThread duplicates the calling thread into a new TCB for fork:
// same priority, stack size, and entry, with the cloned saved context
// supplied by the process layer. The thread is not yet runnable; the caller
// attaches it to its process and then calls Enqueue, after which the child
// participates in the same ready queues and priority rules as any other
// thread.
func (s *Scheduler) NewForkedThread(caller *Thread, childArg any, childCtx *cpu.Context) (*Thread, error) {
	t, err := s.spawn(caller.CPU(), caller.priority, len(caller.stack), caller.entry, childArg)
	if err != nil {
		return nil, err
	}
	t.ctx = childCtx
	t.forkChild = true
	return t, nil
}

// Enqueue makes a prepared thread READY on its assigned CPU.
func (s *Scheduler) Enqueue(t *Thread) {
	s.enqueue(t.CPU(), t)
}

func (s *Scheduler) spawn(cpuID, priority, stackSize int, entry Entry, arg any) (*Thread, error) {
	if cpuID < 0 || cpuID >= len(s.cpus) {
		return nil, fmt.Errorf("spawn on cpu %d: %w", cpuID, ErrInvalidCPU)
	}
	if priority < 0 || priority >= s.priorities {
		return nil, fmt.Errorf("spawn priority %d: %w", priority, ErrInvalidPriority)
	}
	if entry == nil {
		return nil, fmt.Errorf("spawn: %w", ErrNullEntry)
	}
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	if stackSize > s.maxStack {
		return nil, fmt.Errorf("spawn stack %d exceeds max %d: %w", stackSize, s.maxStack, ErrAllocFailed)
	}
	stack, err := s.alloc(stackSize)
	if err != nil {
		return nil, fmt.Errorf("spawn stack %d: %w", stackSize, ErrAllocFailed)
	}

	t := &Thread{
		id:       s.allocTID(),
		priority: priority,
		entry:    entry,
		arg:      arg,
		stack:    stack,
		gate:     make(chan struct{}),
		parked:   make(chan struct{}),
		sched:    s,
	}
	t.lastCPU.Store(int32(cpuID))
	t.ctx = &cpu.Context{
		RIP:    0x400000 + uint64(t.id)<<8,
		RSP:    uint64(len(stack)),
		RFLAGS: 0x202,
		CS:     0x08,
		SS:     0x10,
	}
	t.setState(StateReady)

	s.threadsLock.Acquire()
	s.threads[t.id] = t
	s.threadsLock.Release()
	return t, nil
}

// Lookup resolves a thread id through the thread table.
func (s *Scheduler) Lookup(id TID) (*Thread, bool) {
	s.threadsLock.Acquire()
	defer s.threadsLock.Release()
	t, ok := s.threads[id]
	return t, ok
}

// Release drops a terminated thread from the thread table. Process threads
// have their exit state consumed at the process level rather than by a
// thread join, so the process layer calls this from its exit hook; a thread
// with a registered joiner is left for the join path to release.
func (s *Scheduler) Release(t *Thread) {
	s.threadsLock.Acquire()
	if t.State() == StateTerminated && t.joiner == nil {
		delete(s.threads, t.id)
	}
	s.threadsLock.Release()
}

// enqueue appends t READY at the tail of its priority queue on cpuID and
// wakes the CPU if it is idling.
func (s *Scheduler) enqueue(cpuID int, t *Thread) {
	c := s.cpus[cpuID]
	c.lock.Acquire()
	t.setState(StateReady)
	t.lastCPU.Store(int32(cpuID))
	c.queues[t.priority] = append(c.queues[t.priority], t)
	c.queued.Add(1)
	c.lock.Release()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pickNextLocked scans priority levels from highest (0) downward and pops
// the head of the first non-empty queue. Caller holds c.lock. Returns nil
// when every queue is empty, selecting the idle thread.
func (s *Scheduler) pickNextLocked(c *percpu) *Thread {
	for p := 0; p < s.priorities; p++ {
		q := c.queues[p]
		if len(q) == 0 {
			continue
		}
		t := q[0]
		copy(q, q[1:])
		q[len(q)-1] = nil
		c.queues[p] = q[:len(q)-1]
		c.queued.Add(-1)
		if t == nil || t.State() != StateReady {
			s.panicFn(fmt.Sprintf("corrupted ready queue on cpu %d priority %d", c.cpu.ID(), p))
			return nil
		}
		return t
	}
	return nil
}

// Dispatch performs one scheduling decision on cpuID: it picks the next
// READY thread, applies it to the CPU's current-thread pointer under the
// ready-queue lock, releases the lock, and then performs the context switch.
// It returns false when the idle thread was selected.
func (s *Scheduler) Dispatch(cpuID int) bool {
	c := s.cpus[cpuID]

	cs := c.cpu.EnterCritical()
	c.lock.Acquire()
	t := s.pickNextLocked(c)
	if t == nil {
		if c.current != c.idle {
			c.current = c.idle
			c.idle.setState(StateRunning)
		}
		c.idleDispatches.Add(1)
		c.lock.Release()
		cs.Leave()
		return false
	}
	t.setState(StateRunning)
	t.lastCPU.Store(int32(cpuID))
	t.sliceLeft.Store(s.timeSlice.Load())
	c.idle.setState(StateReady)
	c.current = t
	c.needResched.Store(0)
	c.lock.Release()
	cs.Leave()

	s.ctxSwitches.Add(1)
	s.run(t)
	return true
}

// run is the simulated context-switch boundary: it hands the CPU to the
// thread's goroutine and blocks until the thread leaves the CPU.
func (s *Scheduler) run(t *Thread) {
	if !t.started {
		t.started = true
		go s.threadMain(t)
	}
	t.gate <- struct{}{}
	<-t.parked
}

// threadMain executes the thread body. A normal return terminates the
// thread with its return value; an unrecovered panic in the body terminates
// it with CauseFault instead of taking down the kernel.
func (s *Scheduler) threadMain(t *Thread) {
	<-t.gate
	defer func() {
		if t.finished {
			return
		}
		if r := recover(); r != nil {
			s.finish(t, -1, CauseFault)
		}
	}()
	status := t.entry(t, t.arg)
	s.finish(t, status, CauseExit)
}

// RunCPU drives one virtual CPU until ctx is cancelled.
func (s *Scheduler) RunCPU(ctx context.Context, cpuID int) error {
	if cpuID < 0 || cpuID >= len(s.cpus) {
		return fmt.Errorf("run cpu %d: %w", cpuID, ErrInvalidCPU)
	}
	if s.pinHost {
		if err := cpu.PinHost(cpuID); err != nil {
			return fmt.Errorf("pin cpu %d: %w", cpuID, err)
		}
	}
	c := s.cpus[cpuID]
	idleWait := time.NewTimer(time.Millisecond)
	defer idleWait.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if s.Dispatch(cpuID) {
			continue
		}
		if !idleWait.Stop() {
			select {
			case <-idleWait.C:
			default:
			}
		}
		idleWait.Reset(time.Millisecond)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		case <-idleWait.C:
		}
	}
}

// yield implements Thread.Yield: RUNNING → READY at the tail of the
// thread's queue, then hand the CPU back.
func (s *Scheduler) yield(t *Thread) {
	c := s.cpus[t.CPU()]

	cs := c.cpu.EnterCritical()
	c.lock.Acquire()
	t.setState(StateReady)
	c.queues[t.priority] = append(c.queues[t.priority], t)
	c.queued.Add(1)
	if c.current == t {
		c.current = nil
	}
	c.lock.Release()
	cs.Leave()

	t.park()
}

// sleep implements Thread.Sleep: RUNNING → SLEEPING with an absolute wake
// deadline, then hand the CPU back.
func (s *Scheduler) sleep(t *Thread, d time.Duration) {
	if d < 0 {
		d = 0
	}
	deadline := s.clk.Now() + d

	c := s.cpus[t.CPU()]
	cs := c.cpu.EnterCritical()
	c.lock.Acquire()
	t.setState(StateSleeping)
	t.wakeAt = deadline
	if c.current == t {
		c.current = nil
	}
	c.lock.Release()
	cs.Leave()

	s.sleepLock.Acquire()
	heap.Push(&s.sleepers, t)
	s.sleepLock.Release()

	t.park()
}

// parkWaiting vacates the CPU for a thread already marked WAITING and
// parks it. The WAITING state is set by the caller before the wake source
// can observe the thread, which closes the lost-wakeup window: a Wake that
// fires before the park still lands, because the dispatch handoff
// serializes on the thread's gates.
func (s *Scheduler) parkWaiting(t *Thread) {
	c := s.cpus[t.CPU()]
	cs := c.cpu.EnterCritical()
	c.lock.Acquire()
	if c.current == t {
		c.current = nil
	}
	c.lock.Release()
	cs.Leave()

	t.park()
}

// BeginWait marks t WAITING. Callers publish t as a waiter after this and
// then call Park; a Wake arriving between the two still lands because the
// dispatch handoff serializes on the thread's gates.
func (s *Scheduler) BeginWait(t *Thread) {
	t.setState(StateWaiting)
}

// Park hands the CPU back for a thread previously marked by BeginWait and
// blocks it until Wake.
func (s *Scheduler) Park(t *Thread) {
	s.parkWaiting(t)
}

// Wake transitions a WAITING thread back to READY and enqueues it using the
// sleep-wake placement policy.
func (s *Scheduler) Wake(t *Thread) {
	if t.State() != StateWaiting {
		return
	}
	s.wakeups.Add(1)
	s.enqueue(s.placeCPU(t), t)
}

// placeCPU picks the CPU a woken thread lands on: the CPU it last ran on to
// preserve cache locality, falling back to the least-loaded CPU when the
// last-run id is no longer valid.
func (s *Scheduler) placeCPU(t *Thread) int {
	last := t.CPU()
	if last >= 0 && last < len(s.cpus) {
		return last
	}
	best, bestLoad := 0, int32(1<<30)
	for i, c := range s.cpus {
		if load := c.queued.Load(); load < bestLoad {
			best, bestLoad = i, load
		}
	}
	s.migrations.Add(1)
	return best
}

// join implements Thread.Join.
func (s *Scheduler) join(caller *Thread, target TID) (int, Cause, error) {
	s.threadsLock.Acquire()
	t, ok := s.threads[target]
	if !ok || t.idle || t == caller || (t.joiner != nil && t.joiner != caller) {
		s.threadsLock.Release()
		return 0, 0, fmt.Errorf("join %d: %w", target, ErrNoSuchTarget)
	}
	if t.State() == StateTerminated {
		delete(s.threads, target)
		s.threadsLock.Release()
		return t.exitStatus, t.exitCause, nil
	}
	// Declare the caller WAITING before publishing it as the joiner, so the
	// target's termination path always observes a wakeable thread.
	caller.setState(StateWaiting)
	t.joiner = caller
	s.threadsLock.Release()

	s.parkWaiting(caller)

	s.threadsLock.Acquire()
	delete(s.threads, target)
	s.threadsLock.Release()
	return t.exitStatus, t.exitCause, nil
}

// exitThread implements Thread.Exit. It performs termination bookkeeping,
// hands the CPU back, and tears down the goroutine; it never returns.
func (s *Scheduler) exitThread(t *Thread, status int) {
	s.finish(t, status, CauseExit)
	runtime.Goexit()
}

// finish applies RUNNING → TERMINATED, records the exit result, wakes the
// joiner if any, and vacates the CPU. The TCB stays in the thread table
// until a joiner consumes the result.
func (s *Scheduler) finish(t *Thread, status int, cause Cause) {
	s.threadsLock.Acquire()
	t.exitStatus = status
	t.exitCause = cause
	t.setState(StateTerminated)
	joiner := t.joiner
	s.threadsLock.Release()

	if s.onThreadExit != nil {
		s.onThreadExit(t, status, cause)
	}
	if joiner != nil {
		s.Wake(joiner)
	}

	c := s.cpus[t.CPU()]
	cs := c.cpu.EnterCritical()
	c.lock.Acquire()
	if c.current == t {
		c.current = nil
	}
	c.lock.Release()
	cs.Leave()

	t.finished = true
	t.parked <- struct{}{}
}

// MarkResched flags cpuID for a reschedule at the next preemption point.
func (s *Scheduler) MarkResched(cpuID int) {
	if cpuID >= 0 && cpuID < len(s.cpus) {
		s.cpus[cpuID].needResched.Store(1)
	}
}

// takeResched consumes a pending reschedule flag for cpuID.
func (s *Scheduler) takeResched(cpuID int) bool {
	if cpuID < 0 || cpuID >= len(s.cpus) {
		return false
	}
	return s.cpus[cpuID].needResched.Swap(0) == 1
}

// Tick is the timer interrupt body: it wakes sleeping threads whose
// deadline has elapsed, charges the running thread's time slice, and raises
// the software scheduler interrupt on CPUs whose slice expired or whose
// ready queues hold a strictly higher-priority thread, so the switch
// happens from interrupt context. Sleepers are woken before the per-CPU
// pass, so a higher-priority sleeper whose deadline lands on this tick
// preempts on the same tick boundary.
func (s *Scheduler) Tick() {
	now := s.clk.Now()

	var woken []*Thread
	s.sleepLock.Acquire()
	for len(s.sleepers) > 0 && s.sleepers[0].wakeAt <= now {
		woken = append(woken, heap.Pop(&s.sleepers).(*Thread))
	}
	s.sleepLock.Release()
	for _, t := range woken {
		s.wakeups.Add(1)
		s.enqueue(s.placeCPU(t), t)
	}

	for _, c := range s.cpus {
		c.lock.Acquire()
		cur := c.current
		higherReady := false
		if cur != nil && !cur.idle {
			for p := 0; p < cur.priority; p++ {
				if len(c.queues[p]) > 0 {
					higherReady = true
					break
				}
			}
		}
		c.lock.Release()
		if cur == nil || cur.idle {
			c.idleTicks.Add(1)
			continue
		}
		cur.runTicks.Add(1)
		expired := cur.sliceLeft.Add(-1) <= 0
		if expired || higherReady {
			s.preemptions.Add(1)
			s.raise(c.cpu.ID())
		}
	}
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	ContextSwitches uint64 `json:"contextSwitches"`
	Preemptions     uint64 `json:"preemptions"`
	Migrations      uint64 `json:"migrations"`
	Wakeups         uint64 `json:"wakeups"`
	Sleepers        int    `json:"sleepers"`
	Threads         int    `json:"threads"`
}

// ReadStats returns the current counter values.
func (s *Scheduler) ReadStats() Stats {
	s.sleepLock.Acquire()
	sleepers := len(s.sleepers)
	s.sleepLock.Release()
	s.threadsLock.Acquire()
	threads := len(s.threads)
	s.threadsLock.Release()
	return Stats{
		ContextSwitches: s.ctxSwitches.Load(),
		Preemptions:     s.preemptions.Load(),
		Migrations:      s.migrations.Load(),
		Wakeups:         s.wakeups.Load(),
		Sleepers:        sleepers,
		Threads:         threads,
	}
}

// CPUInfo describes one virtual CPU for diagnostics.
type CPUInfo struct {
	ID             int    `json:"id"`
	CurrentThread  TID    `json:"currentThread"`
	Queued         int    `json:"queued"`
	IdleDispatches uint64 `json:"idleDispatches"`
	IdleTicks      uint64 `json:"idleTicks"`
}

// ThreadInfo describes one thread for diagnostics.
type ThreadInfo struct {
	ID       TID    `json:"id"`
	Process  PID    `json:"process"`
	Priority int    `json:"priority"`
	State    string `json:"state"`
	CPU      int    `json:"cpu"`
	RunTicks uint64 `json:"runTicks"`
}

// SnapshotCPUs returns per-CPU diagnostic state.
func (s *Scheduler) SnapshotCPUs() []CPUInfo {
	out := make([]CPUInfo, 0, len(s.cpus))
	for _, c := range s.cpus {
		c.lock.Acquire()
		var cur TID
		if c.current != nil {
			cur = c.current.id
		}
		queued := int(c.queued.Load())
		c.lock.Release()
		out = append(out, CPUInfo{
			ID:             c.cpu.ID(),
			CurrentThread:  cur,
			Queued:         queued,
			IdleDispatches: c.idleDispatches.Load(),
			IdleTicks:      c.idleTicks.Load(),
		})
	}
	return out
}

// SnapshotThreads returns the thread table for diagnostics.
func (s *Scheduler) SnapshotThreads() []ThreadInfo {
	s.threadsLock.Acquire()
	defer s.threadsLock.Release()
	out := make([]ThreadInfo, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, ThreadInfo{
			ID:       t.id,
			Process:  t.ProcessID(),
			Priority: t.priority,
			State:    t.State().String(),
			CPU:      t.CPU(),
			RunTicks: t.RunTicks(),
		})
	}
	return out
}

// IdleDispatches returns the idle-thread dispatch count for cpuID.
func (s *Scheduler) IdleDispatches(cpuID int) uint64 {
	return s.cpus[cpuID].idleDispatches.Load()
}
