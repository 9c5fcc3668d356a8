//go:build linux

package dbufpf

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCPU pins the calling goroutine's OS thread to the given CPU core.
// Failures are ignored: affinity is a performance hint, not a correctness
// requirement.
func pinToCPU(core int) {
	if core < 0 {
		return
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	_ = unix.SchedSetaffinity(0, &set)
}
