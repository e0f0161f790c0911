package cpu

// Context is the saved register and stack state captured at a trap boundary.
// The dispatch path hands it to interrupt handlers, which may mutate it (for
// example RIP, to skip a faulting instruction) before execution resumes.
type Context struct {
	// General purpose registers.
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP, RSP uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64

	// Segment registers.
	CS, SS uint16

	// Control state.
	RIP, RFLAGS uint64

	// Error code pushed by the CPU for some exception vectors.
	ErrorCode uint64

	// Vector is the line number that produced this context.
	Vector uint8
}

// Clone returns a copy of the context. Fork uses it to duplicate the calling
// thread's saved state into the child.
func (c *Context) Clone() *Context {
	dup := *c
	return &dup
}
