// Package region implements the region acquirer: creating, opening and
// destroying the named, mapped, resident byte regions that back every
// channel. It prefers huge pages when the caller asks for them and the
// requested size warrants it, always falling back to base pages on any
// huge-page failure.
package region

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vela-ipc/lwshm/errs"
	"github.com/vela-ipc/lwshm/internal/topology"
)

// namePrefix disambiguates this library's regions from other shared-memory
// users of /dev/shm or the temp directory.
const namePrefix = "lwshm_"

// Region is a mapped, resident byte region backing one channel or registry.
type Region struct {
	File            *os.File
	Mem             []byte
	Path            string
	HugePagesActive bool
	owner           bool
}

// path resolves a channel name to a filesystem path, preferring /dev/shm
// and falling back to the OS temp directory when it is unavailable.
func path(name string) string {
	fname := namePrefix + sanitize(name)
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", fname)
	}
	return filepath.Join(os.TempDir(), fname)
}

func sanitize(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// ValidateName enforces the leading-'/' and 63-byte limits of §6.
func ValidateName(name string) error {
	if len(name) == 0 || name[0] != '/' {
		return fmt.Errorf("lwshm: channel name must begin with '/': %q", name)
	}
	if len(name) > 63 {
		return fmt.Errorf("lwshm: channel name exceeds 63 bytes: %q", name)
	}
	return nil
}

// Destroy unmaps the region and, for regions this process created, removes
// the backing name. Errors from either step are combined; the first is
// returned.
func (r *Region) Destroy() error {
	var firstErr error
	if r.Mem != nil {
		if err := unmapMemory(r.Mem); err != nil && firstErr == nil {
			firstErr = err
		}
		r.Mem = nil
	}
	if r.File != nil {
		if err := r.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.File = nil
	}
	if r.owner && r.Path != "" {
		if err := os.Remove(r.Path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// classifyOpenError maps OS-level open/create failures to the taxonomy of
// §7. Anything unrecognized is passed through wrapped.
func classifyOpenError(op, path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%s %s: %w", op, path, errs.ErrNotFound)
	case os.IsExist(err):
		return fmt.Errorf("%s %s: %w", op, path, errs.ErrNameInUse)
	case os.IsPermission(err):
		return fmt.Errorf("%s %s: %w", op, path, errs.ErrPermissionDenied)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}

// shouldTryHugePages combines the caller's preference with the topology
// probe's assessment of whether huge pages are worth attempting for size.
func shouldTryHugePages(preferHuge bool, size uint64) bool {
	return preferHuge && topology.ShouldUseHugePages(size)
}

// maxRegionSize bounds a requested region size to what fits in the signed
// 64-bit length os.File.Truncate takes; anything past this can never be a
// legitimate channel size and is rejected before any file is created.
const maxRegionSize = 1 << 46 // 64 TiB

// validateSize rejects a requested region size that cannot be a legitimate
// channel or registry size, before any file or mapping is attempted.
func validateSize(size uint64) error {
	if size == 0 || size > maxRegionSize {
		return fmt.Errorf("region size %d: %w", size, errs.ErrTooLarge)
	}
	return nil
}
