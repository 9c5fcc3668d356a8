// Package topology detects the CPU cache hierarchy, huge-page availability
// and NUMA topology of the host, and derives the configuration defaults the
// region acquirer and publish protocols use to size prefetch distances and
// decide whether to attempt huge-page backed regions.
//
// The probe is pure: it only reads OS topology exposures under /sys and
// /proc, never mutates state, and its result may be cached for the lifetime
// of the process.
package topology

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

// Default cache sizes used when sysfs does not expose real values.
const (
	DefaultL1Size   = 32 * 1024
	DefaultL2Size   = 256 * 1024
	DefaultL3Size   = 8 * 1024 * 1024
	DefaultLineSize = 64

	// HugePageSize is the huge-page granularity assumed throughout the
	// package; Go's runtime offers no portable way to query alternate
	// huge-page sizes, and 2 MiB is what /proc/meminfo reports on every
	// x86_64 and arm64 host this library targets.
	HugePageSize = 2 * 1024 * 1024

	// minPrefetchDistance is the lower bound applied to the derived
	// prefetch distance regardless of detected L2 size.
	minPrefetchDistance = 64 * 1024

	// hugePageThreshold is the minimum region size for which huge pages
	// are considered worthwhile.
	hugePageThreshold = 1024 * 1024
)

// CacheInfo describes the detected CPU cache hierarchy.
type CacheInfo struct {
	L1DSize   int
	L1ISize   int
	L2Size    int
	L3Size    int
	LineSize  int
	NumCores  int
	HasSSE2   bool
	HasAVX2   bool
}

// OptimalPrefetchDistance derives a prefetch distance from the detected L2
// size, floored at minPrefetchDistance.
func (c CacheInfo) OptimalPrefetchDistance() int {
	d := c.L2Size / 4
	if d < minPrefetchDistance {
		d = minPrefetchDistance
	}
	return d
}

// HugePagesInfo describes the host's huge-page pool.
type HugePagesInfo struct {
	Available bool
	Usable    bool
	Total     int
	Free      int
	PageSize  int
}

// NumaInfo describes the host's NUMA topology.
type NumaInfo struct {
	Available    bool
	NumNodes     int
	CurrentNode  int
}

// Info bundles a full topology snapshot.
type Info struct {
	Cache      CacheInfo
	HugePages  HugePagesInfo
	Numa       NumaInfo
}

var (
	once     sync.Once
	cached   Info
)

// Probe returns the host's topology, detecting it once per process and
// memoizing the result. The probe never fails: any datum it cannot read
// falls back to its documented default.
func Probe() Info {
	once.Do(func() {
		cached = Info{
			Cache:     detectCacheInfo(),
			HugePages: detectHugePages(),
			Numa:      detectNuma(),
		}
	})
	return cached
}

// ShouldUseHugePages reports whether a region of the given size should
// attempt huge-page backing: it must be at least 1 MiB and the host must
// have enough free huge pages to satisfy it.
func ShouldUseHugePages(size uint64) bool {
	if size < hugePageThreshold {
		return false
	}
	hp := Probe().HugePages
	if !hp.Usable {
		return false
	}
	pageSize := uint64(hp.PageSize)
	if pageSize == 0 {
		pageSize = HugePageSize
	}
	needed := (size + pageSize - 1) / pageSize
	return needed <= uint64(hp.Free)
}

func detectCacheInfo() CacheInfo {
	info := CacheInfo{
		L1DSize:  DefaultL1Size,
		L1ISize:  DefaultL1Size,
		L2Size:   DefaultL2Size,
		L3Size:   DefaultL3Size,
		LineSize: DefaultLineSize,
		NumCores: runtime.NumCPU(),
		HasSSE2:  cpu.X86.HasSSE2,
		HasAVX2:  cpu.X86.HasAVX2,
	}

	base := "/sys/devices/system/cpu/cpu0/cache"
	entries, err := os.ReadDir(base)
	if err != nil {
		return info
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "index") {
			continue
		}
		dir := filepath.Join(base, e.Name())
		typ := readFirstToken(filepath.Join(dir, "type"))
		if typ == "" {
			continue
		}
		level, _ := strconv.Atoi(readFirstToken(filepath.Join(dir, "level")))
		size := parseSize(readFirstToken(filepath.Join(dir, "size")))
		if line, err := strconv.Atoi(readFirstToken(filepath.Join(dir, "coherency_line_size"))); err == nil && line > 0 {
			info.LineSize = line
		}
		switch {
		case level == 1 && typ == "Data":
			info.L1DSize = size
		case level == 1 && typ == "Instruction":
			info.L1ISize = size
		case level == 2:
			info.L2Size = size
		case level == 3:
			info.L3Size = size
		}
	}
	return info
}

func readFirstToken(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 256), 256)
	if sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

func parseSize(s string) int {
	if s == "" {
		return 0
	}
	mult := 1
	suffix := s[len(s)-1]
	numPart := s
	switch suffix {
	case 'K', 'k':
		mult = 1024
		numPart = s[:len(s)-1]
	case 'M', 'm':
		mult = 1024 * 1024
		numPart = s[:len(s)-1]
	case 'G', 'g':
		mult = 1024 * 1024 * 1024
		numPart = s[:len(s)-1]
	}
	v, err := strconv.Atoi(numPart)
	if err != nil {
		return 0
	}
	return v * mult
}

func detectHugePages() HugePagesInfo {
	info := HugePagesInfo{PageSize: HugePageSize}

	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return info
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "HugePages_Total:"):
			info.Total = parseMeminfoInt(line)
		case strings.HasPrefix(line, "HugePages_Free:"):
			info.Free = parseMeminfoInt(line)
		case strings.HasPrefix(line, "Hugepagesize:"):
			if kb := parseMeminfoInt(line); kb > 0 {
				info.PageSize = kb * 1024
			}
		}
	}
	info.Available = info.Total > 0
	info.Usable = info.Free > 0
	return info
}

func parseMeminfoInt(line string) int {
	fields := strings.Fields(line)
	for _, f := range fields {
		if v, err := strconv.Atoi(f); err == nil {
			return v
		}
	}
	return 0
}

func detectNuma() NumaInfo {
	info := NumaInfo{NumNodes: 1, CurrentNode: 0}

	entries, err := os.ReadDir("/sys/devices/system/node")
	if err != nil {
		return info
	}
	count := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "node") {
			count++
		}
	}
	if count > 1 {
		info.Available = true
		info.NumNodes = count
	}
	return info
}
