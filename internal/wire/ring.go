package wire

import (
	"sync/atomic"
	"unsafe"
)

// RING-BROADCAST constants (spec §6).
const (
	MagicRing   uint32 = 0xD1EC7002
	VersionRing uint32 = 0x00010000

	// DefaultRingSize is the number of history slots a consumer's private
	// ring carries when none is requested explicitly.
	DefaultRingSize = 30

	// RingHeaderSize is 3 cache lines: static metadata, the write cursor
	// (the producer's hottest field), and running stats.
	RingHeaderSize = 3 * CacheLine

	// RingSlotHeaderSize is the fixed portion of every slot record, before
	// its variable-length payload.
	RingSlotHeaderSize = 24
)

// RingHeader sits at offset 0 of every consumer's private ring region. A
// single producer owns write_idx and total_writes; the consumer that owns
// the region only ever reads them.
type RingHeader struct {
	// CL0: static metadata, written once at creation.
	magic        uint32
	version      uint32
	ringSize     uint32
	slotDataSize uint32
	slotStride   uint64
	_            [CacheLine - 20]byte

	// CL1: producer's write cursor, the hottest field on the fast path.
	writeIdx atomic.Uint32
	_        [CacheLine - 4]byte

	// CL2: running stats, updated alongside writeIdx but not required for
	// correctness of a read.
	totalWrites atomic.Uint64
	totalBytes  atomic.Uint64
	_           [CacheLine - 16]byte
}

func init() {
	assertSize("RingHeader", unsafe.Sizeof(RingHeader{}), RingHeaderSize)
}

func (h *RingHeader) Magic() uint32       { return atomic.LoadUint32(&h.magic) }
func (h *RingHeader) SetMagic(v uint32)   { atomic.StoreUint32(&h.magic, v) }
func (h *RingHeader) Version() uint32     { return atomic.LoadUint32(&h.version) }
func (h *RingHeader) SetVersion(v uint32) { atomic.StoreUint32(&h.version, v) }
func (h *RingHeader) RingSize() uint32    { return atomic.LoadUint32(&h.ringSize) }
func (h *RingHeader) SetRingSize(v uint32) {
	atomic.StoreUint32(&h.ringSize, v)
}
func (h *RingHeader) SlotDataSize() uint32 { return atomic.LoadUint32(&h.slotDataSize) }
func (h *RingHeader) SetSlotDataSize(v uint32) {
	atomic.StoreUint32(&h.slotDataSize, v)
}
func (h *RingHeader) SlotStride() uint64     { return atomic.LoadUint64(&h.slotStride) }
func (h *RingHeader) SetSlotStride(v uint64) { atomic.StoreUint64(&h.slotStride, v) }

// WriteIdx is the producer's linearization point for the ring: an
// acquire load names the highest committed slot index (mod ring_size).
func (h *RingHeader) WriteIdx() uint32       { return h.writeIdx.Load() }
func (h *RingHeader) SetWriteIdxRelease(v uint32) { h.writeIdx.Store(v) }

func (h *RingHeader) TotalWrites() uint64    { return h.totalWrites.Load() }
func (h *RingHeader) IncTotalWrites()        { h.totalWrites.Add(1) }
func (h *RingHeader) TotalBytes() uint64     { return h.totalBytes.Load() }
func (h *RingHeader) AddTotalBytes(n uint64) { h.totalBytes.Add(n) }

// RingHeaderAt reinterprets base as a RingHeader.
func RingHeaderAt(base unsafe.Pointer) *RingHeader {
	return (*RingHeader)(base)
}

// SlotStride returns the per-slot stride (header plus payload, rounded up
// to a 64-byte boundary so adjacent slots never share a cache line).
func SlotStride(slotDataSize uint32) uint64 {
	return AlignTo64(uint64(RingSlotHeaderSize) + uint64(slotDataSize))
}

// RingSlotHeader is the fixed prefix of every ring slot record. The
// payload bytes (slotDataSize, per the owning RingHeader) follow
// immediately after this struct in memory.
//
// Commit order is: write payload bytes, then dataSize and timestampNs,
// then release-store sequence. A reader must acquire-load sequence before
// trusting dataSize, timestampNs or the payload, and must re-check
// sequence after copying the payload out to detect a producer that lapped
// the slot mid-read.
type RingSlotHeader struct {
	sequence    atomic.Uint64
	timestampNs int64
	dataSize    uint64
}

func init() {
	assertSize("RingSlotHeader", unsafe.Sizeof(RingSlotHeader{}), RingSlotHeaderSize)
}

func (s *RingSlotHeader) Sequence() uint64        { return s.sequence.Load() }
func (s *RingSlotHeader) SetSequenceRelease(v uint64) { s.sequence.Store(v) }

func (s *RingSlotHeader) TimestampNs() int64     { return atomic.LoadInt64(&s.timestampNs) }
func (s *RingSlotHeader) SetTimestampNs(v int64) { atomic.StoreInt64(&s.timestampNs, v) }
func (s *RingSlotHeader) DataSize() uint64       { return atomic.LoadUint64(&s.dataSize) }
func (s *RingSlotHeader) SetDataSize(v uint64)   { atomic.StoreUint64(&s.dataSize, v) }

// RingSlotHeaderAt reinterprets the byte at ringBase+offset as a
// RingSlotHeader.
func RingSlotHeaderAt(ringBase unsafe.Pointer, offset uintptr) *RingSlotHeader {
	return (*RingSlotHeader)(unsafe.Add(ringBase, offset))
}

// RingSlotPayload returns a slice over a slot's payload bytes given the
// region's underlying byte slice, the slot's byte offset and its data
// capacity.
func RingSlotPayload(region []byte, slotOffset uint64, dataCap uint32) []byte {
	start := slotOffset + RingSlotHeaderSize
	return region[start : start+uint64(dataCap)]
}
