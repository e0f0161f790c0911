// Package cpu models the per-CPU execution state of the kernel core: the
// saved trap context, the interrupt-enable flag, and critical sections that
// mask interrupt delivery on one virtual CPU.
package cpu

import "sync/atomic"

// MaxCPUs is the hard upper bound on virtual CPUs.
const MaxCPUs = 64

// CPU is one virtual processor. Each CPU runs an independent dispatch loop
// and keeps its own interrupt-enable state.
type CPU struct {
	id int

	// 0 = interrupts enabled, 1 = disabled.
	intDisabled uint32
}

// New creates a virtual CPU with interrupts enabled.
func New(id int) *CPU {
	return &CPU{id: id}
}

// ID returns the CPU index.
func (c *CPU) ID() int {
	return c.id
}

// InterruptsEnabled reports whether interrupt delivery is currently enabled
// on this CPU.
func (c *CPU) InterruptsEnabled() bool {
	return atomic.LoadUint32(&c.intDisabled) == 0
}

// DisableInterrupts masks interrupt delivery and returns the prior
// enabled state so the caller can restore it exactly.
func (c *CPU) DisableInterrupts() bool {
	return atomic.SwapUint32(&c.intDisabled, 1) == 0
}

// RestoreInterrupts restores the interrupt-enable state returned by a
// previous DisableInterrupts call. It restores the recorded state rather
// than unconditionally enabling, so nested critical sections compose.
func (c *CPU) RestoreInterrupts(wasEnabled bool) {
	if wasEnabled {
		atomic.StoreUint32(&c.intDisabled, 0)
	} else {
		atomic.StoreUint32(&c.intDisabled, 1)
	}
}

// Critical is a scoped interrupt-masked region on one CPU. Leave must run on
// every exit path; the usual form is
//
//	cs := c.EnterCritical()
//	defer cs.Leave()
type Critical struct {
	cpu        *CPU
	wasEnabled bool
}

// EnterCritical disables interrupt delivery on the CPU and records the prior
// enable state.
func (c *CPU) EnterCritical() Critical {
	return Critical{cpu: c, wasEnabled: c.DisableInterrupts()}
}

// Leave restores the interrupt-enable state recorded at EnterCritical.
func (cs Critical) Leave() {
	cs.cpu.RestoreInterrupts(cs.wasEnabled)
}
