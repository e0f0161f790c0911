package kernel

import (
	"time"

	"github.com/orizon-lang/orizon-kernel/internal/kernel/proc"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/sched"
)

// Image is a process body. Its return value becomes the process exit
// status. A forked child re-enters the image with ForkChild reporting true
// and the frame's return register cleared; images that fork branch on that
// before reaching the fork call.
type Image func(t *Task) int

// Task is the syscall surface handed to a process image: the calling
// thread, its process, and the lifecycle calls that operate on them.
type Task struct {
	k     *Kernel
	th    *sched.Thread
	p     *proc.Process
	image Image
}

// taskEntry adapts a process image to a scheduler thread entry.
func taskEntry(th *sched.Thread, arg any) int {
	t := arg.(*Task)
	t.th = th
	return t.image(t)
}

// StartProcess creates a process under the root process and its first
// thread running image, enqueued READY on CPU 0.
func (k *Kernel) StartProcess(image Image, priority, stackSize int) (*proc.Process, error) {
	return k.StartProcessOn(0, image, priority, stackSize)
}

// StartProcessOn is StartProcess with explicit CPU placement.
func (k *Kernel) StartProcessOn(cpuID int, image Image, priority, stackSize int) (*proc.Process, error) {
	p, err := k.procs.Create(proc.RootPID)
	if err != nil {
		return nil, err
	}
	t := &Task{k: k, p: p, image: image}
	th, err := k.sched.NewThread(cpuID, priority, stackSize, taskEntry, t)
	if err != nil {
		return nil, err
	}
	k.procs.AttachThread(p, th)
	k.sched.Enqueue(th)
	return p, nil
}

// Thread returns the calling thread's TCB.
func (t *Task) Thread() *sched.Thread { return t.th }

// Process returns the owning PCB.
func (t *Task) Process() *proc.Process { return t.p }

// PID returns the owning process id.
func (t *Task) PID() sched.PID { return t.p.PID() }

// ForkChild reports whether this task is the child side of a fork.
func (t *Task) ForkChild() bool { return t.th.ForkChild() }

// Fork duplicates the process's address space and exactly the calling
// thread into a new process. It returns the child pid in the parent; the
// child re-enters the image with ForkChild true and 0 in the frame's
// return register.
func (t *Task) Fork() (sched.PID, error) {
	return t.k.procs.Fork(t.th, t.p, func(child *proc.Process) any {
		return &Task{k: t.k, p: child, image: t.image}
	})
}

// WaitPid blocks until the child process pid terminates and consumes its
// exit state. It returns the waited pid on success; a pid that does not
// exist or is not a child fails immediately with ErrNoSuchTarget.
func (t *Task) WaitPid(pid sched.PID) (sched.PID, int, sched.Cause, error) {
	status, cause, err := t.k.procs.Wait(t.th, t.p, pid)
	if err != nil {
		return 0, 0, 0, err
	}
	return pid, status, cause, nil
}

// Exit terminates the calling thread with status. It never returns.
func (t *Task) Exit(status int) {
	t.th.Exit(status)
}

// Yield hands the CPU back, keeping the thread READY.
func (t *Task) Yield() { t.th.Yield() }

// Sleep blocks the calling thread for at least d.
func (t *Task) Sleep(d time.Duration) { t.th.Sleep(d) }

// Join waits for another thread and consumes its exit state.
func (t *Task) Join(target sched.TID) (int, sched.Cause, error) {
	return t.th.Join(target)
}
