//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinHost binds the calling goroutine's OS thread to the given host CPU.
// Virtual CPU loops call this when host pinning is enabled so each dispatch
// loop keeps cache locality with one physical core.
func PinHost(hostCPU int) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(hostCPU % runtime.NumCPU())

	return unix.SchedSetaffinity(0, &set)
}
