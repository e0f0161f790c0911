// Package interrupt implements the validated mapping from interrupt and
// exception line numbers to handlers, and the dispatch path that routes
// traps to them or to the panic collaborator.
package interrupt

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/orizon-lang/orizon-kernel/internal/kernel/cpu"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/ksync"
)

// Registration and removal failures. All are recoverable and returned to the
// caller; they are never escalated to a panic.
var (
	ErrUnauthorizedLine  = errors.New("interrupt: line outside legal range")
	ErrAlreadyRegistered = errors.New("interrupt: line already has a handler")
	ErrNotRegistered     = errors.New("interrupt: no handler installed on line")
	ErrNullHandler       = errors.New("interrupt: nil handler")
)

// Handler services one trap. It runs synchronously on the dispatching CPU
// with interrupts disabled and may mutate the saved context, including the
// resume instruction pointer.
type Handler func(ctx *cpu.Context)

// PanicFunc is the non-returning panic collaborator. It receives the numeric
// cause, the source location of the trap, and the saved register state.
type PanicFunc func(cause uint64, at string, ctx *cpu.Context)

// AckFunc acknowledges a hardware interrupt at the controller (PIC/APIC),
// an external collaborator.
type AckFunc func(line int)

// Registry maps line numbers to at most one handler each. All mutation and
// dispatch lookups happen under a spinlock; entries are never multi-valued.
type Registry struct {
	lock     ksync.SpinLock
	handlers [NumLines]Handler

	panicFn PanicFunc
	ack     AckFunc

	spurious  atomic.Uint64
	unhandled atomic.Uint64
	delivered atomic.Uint64
}

// NewRegistry creates a registry. panicFn must not be nil; ack may be nil
// when no interrupt controller is attached.
func NewRegistry(panicFn PanicFunc, ack AckFunc) *Registry {
	if panicFn == nil {
		panicFn = func(cause uint64, at string, ctx *cpu.Context) {
			panic(fmt.Sprintf("unhandled trap %d at %s", cause, at))
		}
	}
	return &Registry{panicFn: panicFn, ack: ack}
}

// Register installs handler on line. It fails with ErrUnauthorizedLine for
// lines outside the vector space or on the reserved scheduler/spurious
// lines, ErrNullHandler for a nil handler, and ErrAlreadyRegistered when the
// line already has a handler. An existing handler is never silently
// overwritten.
func (r *Registry) Register(line int, handler Handler) error {
	if !ValidLine(line) || IsReserved(line) {
		return fmt.Errorf("register line %d: %w", line, ErrUnauthorizedLine)
	}
	if handler == nil {
		return fmt.Errorf("register line %d: %w", line, ErrNullHandler)
	}

	r.lock.Acquire()
	defer r.lock.Release()

	if r.handlers[line] != nil {
		return fmt.Errorf("register line %d: %w", line, ErrAlreadyRegistered)
	}
	r.handlers[line] = handler
	return nil
}

// Remove clears the handler on line. Removing an unregistered line is
// reported with ErrNotRegistered, not silently accepted.
func (r *Registry) Remove(line int) error {
	if !ValidLine(line) || IsReserved(line) {
		return fmt.Errorf("remove line %d: %w", line, ErrUnauthorizedLine)
	}

	r.lock.Acquire()
	defer r.lock.Release()

	if r.handlers[line] == nil {
		return fmt.Errorf("remove line %d: %w", line, ErrNotRegistered)
	}
	r.handlers[line] = nil
	return nil
}

// BindReserved installs a handler on one of the reserved lines. Only the
// kernel wiring layer calls this; the generic Register path refuses these
// lines. Binding twice is rejected like any other line.
func (r *Registry) BindReserved(line int, handler Handler) error {
	if !IsReserved(line) {
		return fmt.Errorf("bind line %d: %w", line, ErrUnauthorizedLine)
	}
	if handler == nil {
		return fmt.Errorf("bind line %d: %w", line, ErrNullHandler)
	}

	r.lock.Acquire()
	defer r.lock.Release()

	if r.handlers[line] != nil {
		return fmt.Errorf("bind line %d: %w", line, ErrAlreadyRegistered)
	}
	r.handlers[line] = handler
	return nil
}

// Dispatch routes one trap. It is invoked from the trap entry with
// interrupts disabled on the dispatching CPU. A registered handler runs
// synchronously with the saved context. An unhandled exception escalates to
// the panic collaborator; an unhandled interrupt is acknowledged and
// dropped.
func (r *Registry) Dispatch(line int, ctx *cpu.Context) {
	if !ValidLine(line) {
		r.panicFn(uint64(line), callerLocation(), ctx)
		return
	}

	if line == LineSpurious {
		r.spurious.Add(1)
		return
	}

	r.lock.Acquire()
	handler := r.handlers[line]
	r.lock.Release()

	if handler != nil {
		r.delivered.Add(1)
		handler(ctx)
		return
	}

	if IsException(line) {
		r.panicFn(uint64(line), callerLocation(), ctx)
		return
	}

	r.unhandled.Add(1)
	if r.ack != nil {
		r.ack(line)
	}
}

// Registered reports whether line currently has a handler.
func (r *Registry) Registered(line int) bool {
	if !ValidLine(line) {
		return false
	}
	r.lock.Acquire()
	defer r.lock.Release()
	return r.handlers[line] != nil
}

// Stats returns delivered, unhandled-interrupt, and spurious counts.
func (r *Registry) Stats() (delivered, unhandled, spurious uint64) {
	return r.delivered.Load(), r.unhandled.Load(), r.spurious.Load()
}

// callerLocation names the trap entry location two frames up, for the panic
// report.
func callerLocation() string {
	if _, file, line, ok := runtime.Caller(2); ok {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return "unknown"
}
