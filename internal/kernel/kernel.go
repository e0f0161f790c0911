// Package kernel wires the scheduling core together: configuration, the
// interrupt registry, the per-CPU dispatch loops, the timer device, the
// process table, and the syscall surface exposed to workloads.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/orizon-kernel/internal/config"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/clock"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/cpu"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/interrupt"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/proc"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/sched"
)

// causeInvariant is the panic cause reported for scheduler invariant
// violations. It sits outside the vector space so reports cannot be
// mistaken for an unhandled trap.
const causeInvariant = uint64(interrupt.NumLines)

// Collaborators are the external interfaces the core consumes. Zero fields
// take host-simulation defaults.
type Collaborators struct {
	// Clock is the monotonic uptime source.
	Clock clock.Clock

	// Panic is the non-returning panic renderer.
	Panic interrupt.PanicFunc

	// Ack acknowledges unhandled hardware interrupts at the controller.
	Ack interrupt.AckFunc

	// NewAddressSpace builds address spaces for new processes.
	NewAddressSpace func() (proc.AddressSpace, error)

	// AllocStack is the thread stack allocator.
	AllocStack func(size int) ([]byte, error)
}

// Kernel is one booted instance of the scheduling core.
type Kernel struct {
	cfg config.Config

	clk      clock.Clock
	registry *interrupt.Registry
	sched    *sched.Scheduler
	procs    *proc.Table
	panicFn  interrupt.PanicFunc

	tickPeriod time.Duration
	ticks      atomic.Uint64

	started atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New builds a kernel from cfg and collaborators. The configuration must
// already validate.
func New(cfg config.Config, ext Collaborators) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kernel config: %w", err)
	}

	k := &Kernel{
		cfg:        cfg,
		tickPeriod: time.Duration(cfg.TickPeriodMs) * time.Millisecond,
	}

	k.clk = ext.Clock
	if k.clk == nil {
		k.clk = clock.NewMonotonic()
	}
	k.panicFn = ext.Panic
	if k.panicFn == nil {
		k.panicFn = defaultPanic
	}

	k.registry = interrupt.NewRegistry(k.panicFn, ext.Ack)

	s, err := sched.New(sched.Config{
		Clock:       k.clk,
		NumCPUs:     cfg.CPUs,
		Priorities:  cfg.PriorityLevels,
		TimeSlice:   cfg.TimeSliceTicks,
		MaxStack:    cfg.MaxStackBytes,
		AllocStack:  ext.AllocStack,
		Raise:       k.raiseResched,
		Panic:       k.invariantPanic,
		PinHostCPUs: cfg.PinHostCPUs,
	})
	if err != nil {
		return nil, err
	}
	k.sched = s
	k.procs = proc.NewTable(s, ext.NewAddressSpace, cfg.MaxProcesses)

	// The tick handler goes through the generic registration path like any
	// other device handler; the reschedule line is reserved and bound
	// directly.
	if err := k.registry.Register(interrupt.LineTimer, k.timerInterrupt); err != nil {
		return nil, err
	}
	if err := k.registry.BindReserved(interrupt.LineScheduler, k.schedulerInterrupt); err != nil {
		return nil, err
	}
	return k, nil
}

// timerInterrupt services the periodic timer line.
func (k *Kernel) timerInterrupt(_ *cpu.Context) {
	k.ticks.Add(1)
	k.sched.Tick()
}

// schedulerInterrupt services the reserved software reschedule line. The
// target CPU id travels in the frame's RDI register.
func (k *Kernel) schedulerInterrupt(ctx *cpu.Context) {
	k.sched.MarkResched(int(ctx.RDI))
}

// raiseResched raises the software scheduler interrupt for cpuID through
// the registry, so the reschedule request flows through the same dispatch
// path as every other trap.
func (k *Kernel) raiseResched(cpuID int) {
	frame := &cpu.Context{RDI: uint64(cpuID), Vector: interrupt.LineScheduler}
	k.registry.Dispatch(interrupt.LineScheduler, frame)
}

// invariantPanic escalates a scheduler invariant violation to the panic
// collaborator.
func (k *Kernel) invariantPanic(cause string) {
	k.panicFn(causeInvariant, cause, nil)
}

// defaultPanic reports the trap and halts. It never returns.
func defaultPanic(cause uint64, at string, ctx *cpu.Context) {
	fmt.Fprintf(os.Stderr, "kernel panic: cause=%d at %s\n", cause, at)
	if ctx != nil {
		fmt.Fprintf(os.Stderr, "  RIP=%#x RSP=%#x RFLAGS=%#x ERR=%#x\n", ctx.RIP, ctx.RSP, ctx.RFLAGS, ctx.ErrorCode)
		fmt.Fprintf(os.Stderr, "  RAX=%#x RBX=%#x RCX=%#x RDX=%#x\n", ctx.RAX, ctx.RBX, ctx.RCX, ctx.RDX)
		fmt.Fprintf(os.Stderr, "  RSI=%#x RDI=%#x RBP=%#x\n", ctx.RSI, ctx.RDI, ctx.RBP)
	}
	panic(fmt.Sprintf("kernel panic: cause=%d at %s", cause, at))
}

// Start launches the virtual CPU dispatch loops and the timer device.
func (k *Kernel) Start(ctx context.Context) error {
	if !k.started.CompareAndSwap(false, true) {
		return errors.New("kernel: already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	k.group = g
	for i := 0; i < k.sched.NumCPUs(); i++ {
		cpuID := i
		g.Go(func() error { return k.sched.RunCPU(gctx, cpuID) })
	}
	g.Go(func() error { return k.timerLoop(gctx) })
	return nil
}

// timerLoop is the host timer device: it raises the timer line through the
// registry once per tick period.
func (k *Kernel) timerLoop(ctx context.Context) error {
	ticker := time.NewTicker(k.tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			k.Inject(interrupt.LineTimer, &cpu.Context{Vector: interrupt.LineTimer})
		}
	}
}

// Stop cancels the dispatch loops and waits for them to drain.
func (k *Kernel) Stop() {
	if !k.started.Load() || k.cancel == nil {
		return
	}
	k.cancel()
	err := k.group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "kernel: shutdown: %v\n", err)
	}
	k.started.Store(false)
}

// Inject simulates the low-level trap entry: it routes a trap with its
// saved context through the registry with interrupts treated as disabled.
func (k *Kernel) Inject(line int, ctx *cpu.Context) {
	k.registry.Dispatch(line, ctx)
}

// ApplyTunables applies the hot-reloadable subset of a new configuration:
// the scheduler time slice.
func (k *Kernel) ApplyTunables(cfg config.Config) {
	if cfg.TimeSliceTicks > 0 {
		k.sched.SetTimeSlice(cfg.TimeSliceTicks)
	}
}

// Scheduler exposes the scheduler core.
func (k *Kernel) Scheduler() *sched.Scheduler { return k.sched }

// Registry exposes the interrupt registry for device handler registration.
func (k *Kernel) Registry() *interrupt.Registry { return k.registry }

// Processes exposes the process table.
func (k *Kernel) Processes() *proc.Table { return k.procs }

// Uptime returns the monotonic uptime.
func (k *Kernel) Uptime() time.Duration { return k.clk.Now() }

// Ticks returns the number of timer interrupts delivered.
func (k *Kernel) Ticks() uint64 { return k.ticks.Load() }

// Snapshot is the full diagnostic state served by the debug endpoints.
type Snapshot struct {
	Uptime    time.Duration      `json:"uptimeNs"`
	Ticks     uint64             `json:"ticks"`
	Stats     sched.Stats        `json:"stats"`
	CPUs      []sched.CPUInfo    `json:"cpus"`
	Threads   []sched.ThreadInfo `json:"threads"`
	Processes []proc.Info        `json:"processes"`
}

// Snapshot captures the current diagnostic state.
func (k *Kernel) Snapshot() Snapshot {
	return Snapshot{
		Uptime:    k.Uptime(),
		Ticks:     k.Ticks(),
		Stats:     k.sched.ReadStats(),
		CPUs:      k.sched.SnapshotCPUs(),
		Threads:   k.sched.SnapshotThreads(),
		Processes: k.procs.Snapshot(),
	}
}
