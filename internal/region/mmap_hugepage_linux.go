//go:build linux

package region

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapWithHugePageAttempt maps the file read-write, trying MAP_HUGETLB
// first when tryHuge is set. On any huge-page failure it falls back to a
// plain MAP_POPULATE mapping so that page tables are still pre-populated at
// map time.
func mmapWithHugePageAttempt(file *os.File, size uint64, tryHuge bool) ([]byte, bool, error) {
	fd := int(file.Fd())
	prot := unix.PROT_READ | unix.PROT_WRITE

	if tryHuge {
		mem, err := unix.Mmap(fd, 0, int(size), prot, unix.MAP_SHARED|unix.MAP_POPULATE|unix.MAP_HUGETLB)
		if err == nil {
			return mem, true, nil
		}
	}

	mem, err := unix.Mmap(fd, 0, int(size), prot, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, false, err
	}
	return mem, false, nil
}

// mmapReadOnlyWithHugePageAttempt mirrors mmapWithHugePageAttempt for the
// reader's read-only mapping.
func mmapReadOnlyWithHugePageAttempt(file *os.File, size uint64, tryHuge bool) ([]byte, bool, error) {
	fd := int(file.Fd())

	if tryHuge {
		mem, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED|unix.MAP_POPULATE|unix.MAP_HUGETLB)
		if err == nil {
			return mem, true, nil
		}
	}

	mem, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, false, err
	}
	return mem, false, nil
}
