package wire

import (
	"sync/atomic"
	"unsafe"
)

// DBUF-NT constants (spec §6).
const (
	MagicDBUFNT   uint32 = 0x53484D32 // "SHM2"
	VersionDBUFNT uint32 = 0x00020000

	// DBUFNTHeaderSize is 5 cache lines, matching the spec's CL0..CL4.
	DBUFNTHeaderSize = 5 * CacheLine
)

// DBUFNTHeader is the fixed header for the DBUF-NT variant. Field order
// mirrors the spec's cache-line table exactly; each cache line is padded to
// 64 bytes with an explicit byte array rather than relying on struct tags,
// since Go has no alignas.
type DBUFNTHeader struct {
	// CL0: static metadata.
	magic         uint32
	version       uint32
	capacity      uint64
	bufferOffset  uint64
	flags         uint32
	reserved      uint32
	_             [CacheLine - 32]byte

	// CL1: publish index, the writer's hottest field.
	publishIndex atomic.Uint32
	_            [CacheLine - 4]byte

	// CL2: slot 0 metadata.
	seq0 atomic.Uint64
	ts0  atomic.Int64
	len0 atomic.Uint64
	_    [CacheLine - 24]byte

	// CL3: slot 1 metadata.
	seq1 atomic.Uint64
	ts1  atomic.Int64
	len1 atomic.Uint64
	_    [CacheLine - 24]byte

	// CL4: writer liveness and running stats.
	heartbeatNs  atomic.Int64
	totalWrites  atomic.Uint64
	totalBytes   atomic.Uint64
	_            [CacheLine - 24]byte
}

func init() {
	assertSize("DBUFNTHeader", unsafe.Sizeof(DBUFNTHeader{}), DBUFNTHeaderSize)
}

// FlagHugePages is bit 0 of the common flags field: huge pages in use.
const FlagHugePages uint32 = 1 << 0

func (h *DBUFNTHeader) Magic() uint32        { return atomic.LoadUint32(&h.magic) }
func (h *DBUFNTHeader) SetMagic(v uint32)    { atomic.StoreUint32(&h.magic, v) }
func (h *DBUFNTHeader) Version() uint32      { return atomic.LoadUint32(&h.version) }
func (h *DBUFNTHeader) SetVersion(v uint32)  { atomic.StoreUint32(&h.version, v) }
func (h *DBUFNTHeader) Capacity() uint64     { return atomic.LoadUint64(&h.capacity) }
func (h *DBUFNTHeader) SetCapacity(v uint64) { atomic.StoreUint64(&h.capacity, v) }
func (h *DBUFNTHeader) BufferOffset() uint64 { return atomic.LoadUint64(&h.bufferOffset) }
func (h *DBUFNTHeader) SetBufferOffset(v uint64) {
	atomic.StoreUint64(&h.bufferOffset, v)
}
func (h *DBUFNTHeader) Flags() uint32     { return atomic.LoadUint32(&h.flags) }
func (h *DBUFNTHeader) SetFlags(v uint32) { atomic.StoreUint32(&h.flags, v) }
func (h *DBUFNTHeader) HugePagesActive() bool {
	return h.Flags()&FlagHugePages != 0
}

// PublishIndex is the writer's linearization point: an acquire load names
// the front slot; consumers must acquire-load it before reading slot
// metadata, and the writer must release-store it only after all payload and
// metadata stores for the new frame are visible (I2).
func (h *DBUFNTHeader) PublishIndex() uint32     { return h.publishIndex.Load() }
func (h *DBUFNTHeader) PublishRelease(v uint32)  { h.publishIndex.Store(v) }

func (h *DBUFNTHeader) Seq0() uint64      { return h.seq0.Load() }
func (h *DBUFNTHeader) SetSeq0(v uint64)  { h.seq0.Store(v) }
func (h *DBUFNTHeader) Ts0() int64        { return h.ts0.Load() }
func (h *DBUFNTHeader) SetTs0(v int64)    { h.ts0.Store(v) }
func (h *DBUFNTHeader) Len0() uint64      { return h.len0.Load() }
func (h *DBUFNTHeader) SetLen0(v uint64)  { h.len0.Store(v) }

func (h *DBUFNTHeader) Seq1() uint64      { return h.seq1.Load() }
func (h *DBUFNTHeader) SetSeq1(v uint64)  { h.seq1.Store(v) }
func (h *DBUFNTHeader) Ts1() int64        { return h.ts1.Load() }
func (h *DBUFNTHeader) SetTs1(v int64)    { h.ts1.Store(v) }
func (h *DBUFNTHeader) Len1() uint64      { return h.len1.Load() }
func (h *DBUFNTHeader) SetLen1(v uint64)  { h.len1.Store(v) }

// Seq, Ts and Len read a slot's metadata triple by index (0 or 1).
func (h *DBUFNTHeader) Seq(slot uint32) uint64 {
	if slot == 0 {
		return h.Seq0()
	}
	return h.Seq1()
}

func (h *DBUFNTHeader) Ts(slot uint32) int64 {
	if slot == 0 {
		return h.Ts0()
	}
	return h.Ts1()
}

func (h *DBUFNTHeader) Len(slot uint32) uint64 {
	if slot == 0 {
		return h.Len0()
	}
	return h.Len1()
}

// SetSlotMeta stores the seq/ts/len triple for the given slot with relaxed
// ordering, per the publish protocol's step 3.
func (h *DBUFNTHeader) SetSlotMeta(slot uint32, seq uint64, ts int64, length uint64) {
	if slot == 0 {
		h.SetSeq0(seq)
		h.SetTs0(ts)
		h.SetLen0(length)
		return
	}
	h.SetSeq1(seq)
	h.SetTs1(ts)
	h.SetLen1(length)
}

func (h *DBUFNTHeader) HeartbeatNs() int64     { return h.heartbeatNs.Load() }
func (h *DBUFNTHeader) SetHeartbeatNs(v int64) { h.heartbeatNs.Store(v) }
func (h *DBUFNTHeader) TotalWrites() uint64    { return h.totalWrites.Load() }
func (h *DBUFNTHeader) IncTotalWrites()        { h.totalWrites.Add(1) }
func (h *DBUFNTHeader) TotalBytes() uint64     { return h.totalBytes.Load() }
func (h *DBUFNTHeader) AddTotalBytes(n uint64) { h.totalBytes.Add(n) }

// HeaderAt reinterprets base (the mapped region's first byte) as a
// DBUFNTHeader. The caller must guarantee base points at a region of at
// least DBUFNTHeaderSize bytes.
func DBUFNTHeaderAt(base unsafe.Pointer) *DBUFNTHeader {
	return (*DBUFNTHeader)(base)
}
