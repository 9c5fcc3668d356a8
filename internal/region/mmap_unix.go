//go:build linux || darwin

package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/vela-ipc/lwshm/errs"
)

// Create creates or replaces the named region, truncates it to size,
// attempts a huge-page mapping when preferHuge is set and size is large
// enough, falls back to base pages on any huge-page failure, pre-populates
// page tables, locks the pages resident and advises the kernel of a
// sequential, will-need access pattern.
func Create(name string, size uint64, preferHuge bool) (reg *Region, err error) {
	if verr := ValidateName(name); verr != nil {
		return nil, verr
	}
	if verr := validateSize(size); verr != nil {
		return nil, verr
	}
	p := path(name)

	file, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, classifyOpenError("create region", p, err)
	}

	rollback := func() {
		file.Close()
		os.Remove(p)
	}

	if err := file.Truncate(int64(size)); err != nil {
		rollback()
		return nil, fmt.Errorf("truncate region %s: %w", p, errs.ErrResourceExhausted)
	}

	mem, hugeActive, err := mmapWithHugePageAttempt(file, size, shouldTryHugePages(preferHuge, size))
	if err != nil {
		rollback()
		return nil, fmt.Errorf("mmap region %s: %w", p, err)
	}

	adviseAndLock(mem)

	return &Region{
		File:            file,
		Mem:             mem,
		Path:            p,
		HugePagesActive: hugeActive,
		owner:           true,
	}, nil
}

// OpenRO opens an existing region read-only, sizing the mapping from the
// file's current length and attempting the same huge-page mapping the
// writer used before falling back to base pages.
func OpenRO(name string, preferHuge bool) (*Region, error) {
	if verr := ValidateName(name); verr != nil {
		return nil, verr
	}
	p := path(name)

	file, err := os.OpenFile(p, os.O_RDONLY, 0)
	if err != nil {
		return nil, classifyOpenError("open region", p, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat region %s: %w", p, err)
	}
	size := uint64(info.Size())

	mem, hugeActive, err := mmapReadOnlyWithHugePageAttempt(file, size, shouldTryHugePages(preferHuge, size))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap region %s: %w", p, err)
	}

	adviseAndLock(mem)

	return &Region{
		File:            file,
		Mem:             mem,
		Path:            p,
		HugePagesActive: hugeActive,
		owner:           false,
	}, nil
}

// OpenRW opens an existing region read-write without truncating or
// removing it on Destroy; the caller does not own the name. This backs the
// RING-BROADCAST producer's view into a consumer-owned ring region and a
// consumer's own view into the shared registry region.
func OpenRW(name string, preferHuge bool) (*Region, error) {
	if verr := ValidateName(name); verr != nil {
		return nil, verr
	}
	p := path(name)

	file, err := os.OpenFile(p, os.O_RDWR, 0)
	if err != nil {
		return nil, classifyOpenError("open region", p, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat region %s: %w", p, err)
	}
	size := uint64(info.Size())

	mem, hugeActive, err := mmapWithHugePageAttempt(file, size, shouldTryHugePages(preferHuge, size))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap region %s: %w", p, err)
	}

	adviseAndLock(mem)

	return &Region{
		File:            file,
		Mem:             mem,
		Path:            p,
		HugePagesActive: hugeActive,
		owner:           false,
	}, nil
}

func adviseAndLock(mem []byte) {
	if len(mem) == 0 {
		return
	}
	_ = unix.Madvise(mem, unix.MADV_SEQUENTIAL)
	_ = unix.Madvise(mem, unix.MADV_WILLNEED)
	_ = unix.Mlock(mem)
}

func unmapMemory(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munlock(mem); err != nil {
		// Best-effort: the region is still unmapped even if the unlock
		// failed (e.g. RLIMIT_MEMLOCK was tight to begin with).
		_ = err
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
