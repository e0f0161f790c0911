// Package ksync provides the busy-wait synchronization primitives shared by
// every kernel subsystem. Spinlocks guard short critical sections only
// (ready-queue and registry mutation) and must never be held across a
// blocking or sleeping operation.
package ksync

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a busy-wait mutual exclusion gate shared across CPUs. The lock
// implies no ownership of the protected data. Acquiring it recursively on
// the same CPU deadlocks.
type SpinLock struct {
	state uint32
}

// Acquire busy-waits until the lock is taken, yielding the processor between
// attempts to reduce cross-CPU contention.
func (l *SpinLock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		runtime.Gosched()
	}
}

// TryAcquire attempts to take the lock once and reports whether it succeeded.
func (l *SpinLock) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release clears the lock with a single atomic store. Releasing a free lock
// has no effect.
func (l *SpinLock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
