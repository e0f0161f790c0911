package interrupt

// Line numbering is a stable numeric contract shared with every other kernel
// subsystem. Exception lines are the CPU-defined fault range; interrupt
// lines cover remapped IRQs plus the two reserved software lines at the top.
const (
	// NumLines is the size of the vector space.
	NumLines = 256

	// ExceptionMin and ExceptionMax bound the CPU exception range.
	ExceptionMin = 0
	ExceptionMax = 31

	// IRQBase is the first remapped hardware interrupt line.
	IRQBase = 32

	// LineTimer is the periodic timer device line.
	LineTimer = IRQBase + 0

	// LineScheduler is the software interrupt the scheduler raises to force
	// a context switch from interrupt context. Reserved.
	LineScheduler = 254

	// LineSpurious is the spurious/panic line at the top of the range.
	// Reserved.
	LineSpurious = 255
)

// Well-known exception vectors.
const (
	ExceptionDivideByZero  = 0
	ExceptionDebug         = 1
	ExceptionBreakpoint    = 3
	ExceptionInvalidOpcode = 6
	ExceptionDoubleFault   = 8
	ExceptionGPF           = 13
	ExceptionPageFault     = 14
)

// IsException reports whether line falls in the CPU exception range.
func IsException(line int) bool {
	return line >= ExceptionMin && line <= ExceptionMax
}

// IsReserved reports whether line is one of the reserved software lines that
// the generic registration API refuses.
func IsReserved(line int) bool {
	return line == LineScheduler || line == LineSpurious
}

// ValidLine reports whether line falls inside the vector space.
func ValidLine(line int) bool {
	return line >= 0 && line < NumLines
}
