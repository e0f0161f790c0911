package kernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orizon-lang/orizon-kernel/internal/config"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/cpu"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/interrupt"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/sched"
)

func newTestKernel(t *testing.T, mutate func(*config.Config)) *Kernel {
	t.Helper()
	cfg := config.Default()
	cfg.CPUs = 2
	if mutate != nil {
		mutate(&cfg)
	}
	k, err := New(cfg, Collaborators{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.CPUs = 0
	if _, err := New(cfg, Collaborators{}); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("New with 0 cpus = %v, want ErrInvalid", err)
	}
}

func TestWellKnownLinesWired(t *testing.T) {
	k := newTestKernel(t, nil)

	// The timer line is taken by the kernel's own handler.
	if err := k.Registry().Register(interrupt.LineTimer, func(*cpu.Context) {}); !errors.Is(err, interrupt.ErrAlreadyRegistered) {
		t.Fatalf("Register timer line = %v, want ErrAlreadyRegistered", err)
	}
	// The reserved scheduler line is refused by the generic path outright.
	if err := k.Registry().Register(interrupt.LineScheduler, func(*cpu.Context) {}); !errors.Is(err, interrupt.ErrUnauthorizedLine) {
		t.Fatalf("Register scheduler line = %v, want ErrUnauthorizedLine", err)
	}
}

func TestTimerInjectionCountsTicks(t *testing.T) {
	k := newTestKernel(t, nil)

	for i := 0; i < 3; i++ {
		k.Inject(interrupt.LineTimer, &cpu.Context{Vector: interrupt.LineTimer})
	}
	if got := k.Ticks(); got != 3 {
		t.Fatalf("ticks = %d, want 3", got)
	}
}

func TestExceptionHandlerRedirectsResume(t *testing.T) {
	panicked := false
	cfg := config.Default()
	k, err := New(cfg, Collaborators{
		Panic: func(cause uint64, at string, ctx *cpu.Context) { panicked = true },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	calls := 0
	if err := k.Registry().Register(interrupt.ExceptionDivideByZero, func(ctx *cpu.Context) {
		calls++
		ctx.RIP += 2 // skip the faulting instruction
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	frame := &cpu.Context{RIP: 0x401000, Vector: interrupt.ExceptionDivideByZero}
	k.Inject(interrupt.ExceptionDivideByZero, frame)

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if frame.RIP != 0x401002 {
		t.Fatalf("RIP = %#x, want %#x", frame.RIP, 0x401002)
	}
	if panicked {
		t.Fatal("handled exception reached the panic path")
	}
}

func TestUnhandledExceptionEscalates(t *testing.T) {
	var cause uint64
	seen := false
	cfg := config.Default()
	k, err := New(cfg, Collaborators{
		Panic: func(c uint64, at string, ctx *cpu.Context) {
			seen = true
			cause = c
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	k.Inject(interrupt.ExceptionPageFault, &cpu.Context{Vector: interrupt.ExceptionPageFault})

	if !seen {
		t.Fatal("unhandled exception did not reach the panic collaborator")
	}
	if cause != interrupt.ExceptionPageFault {
		t.Fatalf("cause = %d, want %d", cause, interrupt.ExceptionPageFault)
	}
}

func TestApplyTunables(t *testing.T) {
	k := newTestKernel(t, nil)

	cfg := k.cfg
	cfg.TimeSliceTicks = 33
	k.ApplyTunables(cfg)
	if got := k.Scheduler().TimeSlice(); got != 33 {
		t.Fatalf("time slice = %d, want 33", got)
	}
}

func TestForkWaitRoundTrip(t *testing.T) {
	k := newTestKernel(t, nil)

	type result struct {
		pid, wpid sched.PID
		status    int
		cause     sched.Cause
		err       error
	}
	done := make(chan result, 1)

	image := func(task *Task) int {
		if task.ForkChild() {
			task.Sleep(2 * time.Millisecond)
			return 11
		}
		pid, err := task.Fork()
		if err != nil {
			done <- result{err: err}
			return 1
		}
		wpid, status, cause, err := task.WaitPid(pid)
		done <- result{pid: pid, wpid: wpid, status: status, cause: cause, err: err}
		return 0
	}

	if err := k.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop()

	if _, err := k.StartProcess(image, 4, 0); err != nil {
		t.Fatalf("StartProcess: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("workload: %v", r.err)
		}
		if r.wpid != r.pid {
			t.Fatalf("waited pid = %d, want %d", r.wpid, r.pid)
		}
		if r.status != 11 || r.cause != sched.CauseExit {
			t.Fatalf("wait = (%d, %v), want (11, exit)", r.status, r.cause)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("workload did not finish")
	}
}

func TestPreemptionUnderTimer(t *testing.T) {
	k := newTestKernel(t, func(cfg *config.Config) {
		cfg.CPUs = 1
		cfg.TimeSliceTicks = 1
	})

	done := make(chan struct{})
	image := func(task *Task) int {
		deadline := time.Now().Add(2 * time.Second)
		for k.Scheduler().ReadStats().Preemptions == 0 && time.Now().Before(deadline) {
			task.Thread().CheckPreempt()
		}
		close(done)
		return 0
	}

	if err := k.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop()

	if _, err := k.StartProcess(image, 0, 0); err != nil {
		t.Fatalf("StartProcess: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workload did not finish")
	}
	if got := k.Scheduler().ReadStats().Preemptions; got == 0 {
		t.Fatal("timer ticks never expired the time slice")
	}
	if k.Ticks() == 0 {
		t.Fatal("timer device raised no ticks")
	}
}

func TestSnapshotIncludesRootProcess(t *testing.T) {
	k := newTestKernel(t, nil)

	snap := k.Snapshot()
	found := false
	for _, p := range snap.Processes {
		if p.PID == 1 {
			found = true
		}
	}
	if !found {
		t.Fatal("snapshot missing the root process")
	}
	if len(snap.CPUs) != 2 {
		t.Fatalf("snapshot cpus = %d, want 2", len(snap.CPUs))
	}
}
