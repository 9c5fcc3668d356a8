package wire

import (
	"testing"
	"unsafe"
)

func lineOf(offset uintptr) uintptr { return offset / CacheLine }

// spansOneLine reports whether [offset, offset+size) stays within a single
// 64-byte cache line.
func spansOneLine(offset, size uintptr) bool {
	return lineOf(offset) == lineOf(offset+size-1)
}

func TestDBUFNTHeaderSize(t *testing.T) {
	if got := unsafe.Sizeof(DBUFNTHeader{}); got != DBUFNTHeaderSize {
		t.Fatalf("DBUFNTHeader size = %d, want %d", got, DBUFNTHeaderSize)
	}
}

func TestDBUFNTHeaderCacheLineDistinctness(t *testing.T) {
	var h DBUFNTHeader
	publishLine := lineOf(unsafe.Offsetof(h.publishIndex))
	slot0Line := lineOf(unsafe.Offsetof(h.seq0))
	slot1Line := lineOf(unsafe.Offsetof(h.seq1))
	statsLine := lineOf(unsafe.Offsetof(h.heartbeatNs))

	lines := map[string]uintptr{
		"publishIndex": publishLine,
		"slot0":        slot0Line,
		"slot1":        slot1Line,
		"stats":        statsLine,
	}
	seen := map[uintptr]string{}
	for name, line := range lines {
		if other, ok := seen[line]; ok {
			t.Fatalf("%s and %s share cache line %d", name, other, line)
		}
		seen[line] = name
	}

	if !spansOneLine(unsafe.Offsetof(h.seq0), unsafe.Sizeof(h.seq0)+unsafe.Sizeof(h.ts0)+unsafe.Sizeof(h.len0)) {
		t.Fatalf("slot0 metadata triple crosses a cache line boundary")
	}
	if !spansOneLine(unsafe.Offsetof(h.seq1), unsafe.Sizeof(h.seq1)+unsafe.Sizeof(h.ts1)+unsafe.Sizeof(h.len1)) {
		t.Fatalf("slot1 metadata triple crosses a cache line boundary")
	}
}

func TestDBUFPFHeaderSize(t *testing.T) {
	if got := unsafe.Sizeof(DBUFPFHeader{}); got != DBUFPFHeaderSize {
		t.Fatalf("DBUFPFHeader size = %d, want %d", got, DBUFPFHeaderSize)
	}
}

func TestDBUFPFHeaderCacheLineDistinctness(t *testing.T) {
	var h DBUFPFHeader
	lines := []uintptr{
		lineOf(unsafe.Offsetof(h.publishIndex)),
		lineOf(unsafe.Offsetof(h.seq0)),
		lineOf(unsafe.Offsetof(h.seq1)),
		lineOf(unsafe.Offsetof(h.heartbeatNs)),
		lineOf(unsafe.Offsetof(h.checksumEnabled)),
	}
	seen := map[uintptr]bool{}
	for _, l := range lines {
		if seen[l] {
			t.Fatalf("cache line %d reused across writer-mutated fields", l)
		}
		seen[l] = true
	}
}

func TestDBUFSimpleHeaderSize(t *testing.T) {
	if got := unsafe.Sizeof(DBUFSimpleHeader{}); got != DBUFSimpleHeaderSize {
		t.Fatalf("DBUFSimpleHeader size = %d, want %d", got, DBUFSimpleHeaderSize)
	}
}

func TestRingHeaderSize(t *testing.T) {
	if got := unsafe.Sizeof(RingHeader{}); got != RingHeaderSize {
		t.Fatalf("RingHeader size = %d, want %d", got, RingHeaderSize)
	}
}

func TestRingSlotHeaderSize(t *testing.T) {
	if got := unsafe.Sizeof(RingSlotHeader{}); got != RingSlotHeaderSize {
		t.Fatalf("RingSlotHeader size = %d, want %d", got, RingSlotHeaderSize)
	}
}

func TestRegistryHeaderSize(t *testing.T) {
	if got := unsafe.Sizeof(RegistryHeader{}); got != RegistryHeaderSize {
		t.Fatalf("RegistryHeader size = %d, want %d", got, RegistryHeaderSize)
	}
}

func TestRegistryEntrySize(t *testing.T) {
	if got := unsafe.Sizeof(RegistryEntry{}); got != RegistryEntrySize {
		t.Fatalf("RegistryEntry size = %d, want %d", got, RegistryEntrySize)
	}
}

func TestRegistryEntrySetName(t *testing.T) {
	var e RegistryEntry
	if err := e.SetName("/short_name"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if got := e.Name(); got != "/short_name" {
		t.Fatalf("Name() = %q, want /short_name", got)
	}

	over := make([]byte, RegistryEntryNameLen)
	for i := range over {
		over[i] = 'a'
	}
	if err := e.SetName(string(over)); err == nil {
		t.Fatalf("expected error for name of length %d", len(over))
	}
	// A rejected SetName must not have modified the entry.
	if got := e.Name(); got != "/short_name" {
		t.Fatalf("Name() after rejected SetName = %q, want unchanged /short_name", got)
	}
}

func TestAlignTo64(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 1: 64, 64: 64, 65: 128, 1024: 1024, 1025: 1088}
	for in, want := range cases {
		if got := AlignTo64(in); got != want {
			t.Errorf("AlignTo64(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestSlotStrideNeverShared(t *testing.T) {
	stride := SlotStride(32)
	if stride < RingSlotHeaderSize+32 {
		t.Fatalf("slot stride %d too small for header+payload", stride)
	}
	if stride%CacheLine != 0 {
		t.Fatalf("slot stride %d is not 64-byte aligned", stride)
	}
}
