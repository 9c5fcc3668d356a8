//go:build darwin

package region

import (
	"os"

	"golang.org/x/sys/unix"
)

// Darwin has no MAP_HUGETLB/MAP_POPULATE equivalent reachable from
// golang.org/x/sys/unix, so huge pages are never active here and the
// caller's preference is silently downgraded to base pages.

func mmapWithHugePageAttempt(file *os.File, size uint64, _ bool) ([]byte, bool, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, false, err
	}
	return mem, false, nil
}

func mmapReadOnlyWithHugePageAttempt(file *os.File, size uint64, _ bool) ([]byte, bool, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, false, err
	}
	return mem, false, nil
}
