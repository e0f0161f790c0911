//go:build !linux

package cpu

import "runtime"

// PinHost locks the calling goroutine to its OS thread. CPU-set affinity is
// only available on linux; other hosts keep the lock without a set.
func PinHost(hostCPU int) error {
	runtime.LockOSThread()
	return nil
}
