//go:build !linux

package dbufpf

// pinToCPU is a no-op on platforms without a CPU-affinity syscall reachable
// from golang.org/x/sys/unix.
func pinToCPU(core int) {}
