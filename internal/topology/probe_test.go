package topology

import "testing"

func TestProbeNeverFails(t *testing.T) {
	info := Probe()
	if info.Cache.L1DSize <= 0 || info.Cache.L2Size <= 0 || info.Cache.L3Size <= 0 {
		t.Fatalf("cache sizes must fall back to positive defaults, got %+v", info.Cache)
	}
	if info.Cache.LineSize <= 0 {
		t.Fatalf("line size must fall back to a positive default, got %d", info.Cache.LineSize)
	}
	if info.Numa.NumNodes < 1 {
		t.Fatalf("NumNodes must be at least 1, got %d", info.Numa.NumNodes)
	}
}

func TestProbeMemoized(t *testing.T) {
	a := Probe()
	b := Probe()
	if a != b {
		t.Fatalf("Probe() is not memoized: %+v != %+v", a, b)
	}
}

func TestOptimalPrefetchDistanceFloor(t *testing.T) {
	c := CacheInfo{L2Size: 1024}
	if got := c.OptimalPrefetchDistance(); got != minPrefetchDistance {
		t.Fatalf("small L2 should floor at %d, got %d", minPrefetchDistance, got)
	}
	c = CacheInfo{L2Size: 1024 * 1024}
	if got, want := c.OptimalPrefetchDistance(), 256*1024; got != want {
		t.Fatalf("OptimalPrefetchDistance = %d, want %d", got, want)
	}
}

func TestShouldUseHugePagesBelowThreshold(t *testing.T) {
	if ShouldUseHugePages(1024) {
		t.Fatalf("sizes under 1 MiB must never request huge pages")
	}
}

func TestConfigPresets(t *testing.T) {
	portable := Portable()
	if portable.UseHugePages || portable.NumaAware || portable.CPUAffinity != -1 {
		t.Fatalf("Portable() must disable every host-specific optimization: %+v", portable)
	}
	if portable.PrefetchDistance != minPrefetchDistance {
		t.Fatalf("Portable() prefetch distance = %d, want %d", portable.PrefetchDistance, minPrefetchDistance)
	}

	maxPerf := MaxPerformance()
	if !maxPerf.UseHugePages || !maxPerf.EnablePrefetch || maxPerf.CPUAffinity != 0 {
		t.Fatalf("MaxPerformance() must enable every optimization and pin core 0: %+v", maxPerf)
	}

	auto := AutoDetect()
	if auto.CPUAffinity != -1 {
		t.Fatalf("AutoDetect() must not pin a CPU by default: %+v", auto)
	}
}

func TestResolvedPrefetchDistance(t *testing.T) {
	cfg := Config{PrefetchDistance: 128}
	if got := cfg.ResolvedPrefetchDistance(); got != 128 {
		t.Fatalf("ResolvedPrefetchDistance = %d, want 128", got)
	}
	cfg = Config{PrefetchDistance: 0}
	if got := cfg.ResolvedPrefetchDistance(); got <= 0 {
		t.Fatalf("auto-resolved prefetch distance must be positive, got %d", got)
	}
}
