package wire

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/vela-ipc/lwshm/errs"
)

// Registry constants (spec §6). The registry region is a single shared
// segment the producer creates and every consumer opens read-write, since
// joining and leaving both require claiming or clearing an entry.
const (
	MagicRegistry uint32 = 0xD1EC7002
	// VersionRegistry is the literal wire version the registry header
	// carries (original_source/src/sahm.cpp: header_->version = 2), unlike
	// the other variants' packed major.minor version constants.
	VersionRegistry uint32 = 2

	// MaxRegistryEntries bounds the number of concurrently attached
	// consumers a single RING-BROADCAST channel supports.
	MaxRegistryEntries = 16

	// RegistryEntryNameLen is the fixed capacity for a consumer's ring
	// region name, stored so a producer restart (or a janitor) can rebuild
	// the region path without an external directory. Matches SHM_NAME_LEN
	// (64) from the original implementation.
	RegistryEntryNameLen = 64

	RegistryHeaderSize = 2 * CacheLine
	// RegistryEntrySize spans two cache lines: the 64-byte name buffer
	// alone fills the first, leaving active/ringSize and their padding on
	// the second.
	RegistryEntrySize = 2 * CacheLine
)

// RegistryHeader sits at offset 0 of the registry region.
type RegistryHeader struct {
	// CL0: static metadata, written once by the producer at creation.
	magic           uint32
	version         uint32
	maxSlotSize     uint32
	defaultRingSize uint32
	_               [CacheLine - 16]byte

	// CL1: mutated by both the producer (heartbeat) and consumers
	// (numReaders, via claim/release), each field owning its own line
	// would be wasteful for two rarely-contended counters, so they share
	// one line; neither is on any fast path.
	numReaders        atomic.Uint32
	writerHeartbeatNs atomic.Int64
	_                 [CacheLine - 12]byte
}

func init() {
	assertSize("RegistryHeader", unsafe.Sizeof(RegistryHeader{}), RegistryHeaderSize)
}

func (h *RegistryHeader) Magic() uint32       { return atomic.LoadUint32(&h.magic) }
func (h *RegistryHeader) SetMagic(v uint32)   { atomic.StoreUint32(&h.magic, v) }
func (h *RegistryHeader) Version() uint32     { return atomic.LoadUint32(&h.version) }
func (h *RegistryHeader) SetVersion(v uint32) { atomic.StoreUint32(&h.version, v) }
func (h *RegistryHeader) MaxSlotSize() uint32 { return atomic.LoadUint32(&h.maxSlotSize) }
func (h *RegistryHeader) SetMaxSlotSize(v uint32) {
	atomic.StoreUint32(&h.maxSlotSize, v)
}
func (h *RegistryHeader) DefaultRingSize() uint32 { return atomic.LoadUint32(&h.defaultRingSize) }
func (h *RegistryHeader) SetDefaultRingSize(v uint32) {
	atomic.StoreUint32(&h.defaultRingSize, v)
}

func (h *RegistryHeader) NumReaders() uint32     { return h.numReaders.Load() }
func (h *RegistryHeader) IncNumReaders() uint32  { return h.numReaders.Add(1) }
func (h *RegistryHeader) DecNumReaders() uint32  { return h.numReaders.Add(^uint32(0)) }

func (h *RegistryHeader) WriterHeartbeatNs() int64     { return h.writerHeartbeatNs.Load() }
func (h *RegistryHeader) SetWriterHeartbeatNs(v int64) { h.writerHeartbeatNs.Store(v) }

// RegistryHeaderAt reinterprets base as a RegistryHeader.
func RegistryHeaderAt(base unsafe.Pointer) *RegistryHeader {
	return (*RegistryHeader)(base)
}

// RegistryEntry is one consumer's claim slot, cache-line-aligned so two
// consumers claiming adjacent entries never write the same line.
type RegistryEntry struct {
	name     [RegistryEntryNameLen]byte
	active   atomic.Uint32
	ringSize uint32
	_        [CacheLine - 8]byte
}

func init() {
	assertSize("RegistryEntry", unsafe.Sizeof(RegistryEntry{}), RegistryEntrySize)
}

func (e *RegistryEntry) Name() string {
	n := 0
	for n < len(e.name) && e.name[n] != 0 {
		n++
	}
	return string(e.name[:n])
}

// SetName copies name into the entry's fixed-size buffer, reserving one
// byte for the implicit NUL terminator used by Name's scan. It fails
// rather than silently truncating, since a truncated name can no longer
// resolve to the region the caller actually created.
func (e *RegistryEntry) SetName(name string) error {
	if len(name) > RegistryEntryNameLen-1 {
		return fmt.Errorf("wire: registry entry name %q exceeds %d bytes: %w", name, RegistryEntryNameLen-1, errs.ErrTooLarge)
	}
	var buf [RegistryEntryNameLen]byte
	copy(buf[:], name)
	e.name = buf
	return nil
}

func (e *RegistryEntry) Active() bool     { return e.active.Load() != 0 }
func (e *RegistryEntry) SetActive(v bool) {
	if v {
		e.active.Store(1)
		return
	}
	e.active.Store(0)
}

// TryClaim atomically transitions the entry from inactive to active,
// reporting whether this call won the race. Concurrent consumers racing
// to attach must use this rather than a load-then-store.
func (e *RegistryEntry) TryClaim() bool {
	return e.active.CompareAndSwap(0, 1)
}

// TryRelease atomically transitions the entry from active to inactive,
// reporting whether this call performed the transition. A consumer whose
// entry a janitor already reclaimed must not also decrement num_readers;
// using CompareAndSwap instead of a plain store makes releasing an
// already-inactive entry a no-op rather than a double count.
func (e *RegistryEntry) TryRelease() bool {
	return e.active.CompareAndSwap(1, 0)
}

func (e *RegistryEntry) RingSize() uint32     { return atomic.LoadUint32(&e.ringSize) }
func (e *RegistryEntry) SetRingSize(v uint32) { atomic.StoreUint32(&e.ringSize, v) }

// RegistryEntryAt returns the entry at the given index, given the base
// pointer of the registry region (offset 0, before the header).
func RegistryEntryAt(regionBase unsafe.Pointer, index int) *RegistryEntry {
	offset := uintptr(RegistryHeaderSize) + uintptr(index)*uintptr(RegistryEntrySize)
	return (*RegistryEntry)(unsafe.Add(regionBase, offset))
}

// RegistryTotalSize is the fixed total size of a registry region.
func RegistryTotalSize() uint64 {
	return uint64(RegistryHeaderSize) + uint64(MaxRegistryEntries)*uint64(RegistryEntrySize)
}
