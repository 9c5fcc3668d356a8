package wire

import (
	"sync/atomic"
	"unsafe"
)

// DBUF-PF constants (spec §6).
const (
	MagicDBUFPF   uint32 = 0x43415352 // "CASR"
	VersionDBUFPF uint32 = 0x00010000

	// DBUFPFHeaderSize is 6 cache lines: DBUF-NT's 5 plus a stats line.
	DBUFPFHeaderSize = 6 * CacheLine
)

// DBUFPFHeader carries the same CL0..CL4 layout as DBUF-NT plus a stats
// line (CL5) holding the unused checksum_enabled flag and a prefetch hit
// counter kept for diagnostics only; per design note (c), no writer-side
// checksum is ever computed, so ChecksumValid always reports true when the
// flag is set.
type DBUFPFHeader struct {
	magic        uint32
	version      uint32
	capacity     uint64
	bufferOffset uint64
	flags        uint32
	reserved     uint32
	_            [CacheLine - 32]byte

	publishIndex atomic.Uint32
	_            [CacheLine - 4]byte

	seq0 atomic.Uint64
	ts0  atomic.Int64
	len0 atomic.Uint64
	_    [CacheLine - 24]byte

	seq1 atomic.Uint64
	ts1  atomic.Int64
	len1 atomic.Uint64
	_    [CacheLine - 24]byte

	heartbeatNs atomic.Int64
	totalWrites atomic.Uint64
	totalBytes  atomic.Uint64
	_           [CacheLine - 24]byte

	// CL5: diagnostics, never on the writer's linearization path.
	checksumEnabled atomic.Uint32
	prefetchHits    atomic.Uint64
	_               [CacheLine - 12]byte
}

func init() {
	assertSize("DBUFPFHeader", unsafe.Sizeof(DBUFPFHeader{}), DBUFPFHeaderSize)
}

func (h *DBUFPFHeader) Magic() uint32        { return atomic.LoadUint32(&h.magic) }
func (h *DBUFPFHeader) SetMagic(v uint32)    { atomic.StoreUint32(&h.magic, v) }
func (h *DBUFPFHeader) Version() uint32      { return atomic.LoadUint32(&h.version) }
func (h *DBUFPFHeader) SetVersion(v uint32)  { atomic.StoreUint32(&h.version, v) }
func (h *DBUFPFHeader) Capacity() uint64     { return atomic.LoadUint64(&h.capacity) }
func (h *DBUFPFHeader) SetCapacity(v uint64) { atomic.StoreUint64(&h.capacity, v) }
func (h *DBUFPFHeader) BufferOffset() uint64 { return atomic.LoadUint64(&h.bufferOffset) }
func (h *DBUFPFHeader) SetBufferOffset(v uint64) {
	atomic.StoreUint64(&h.bufferOffset, v)
}
func (h *DBUFPFHeader) Flags() uint32     { return atomic.LoadUint32(&h.flags) }
func (h *DBUFPFHeader) SetFlags(v uint32) { atomic.StoreUint32(&h.flags, v) }
func (h *DBUFPFHeader) HugePagesActive() bool {
	return h.Flags()&FlagHugePages != 0
}

func (h *DBUFPFHeader) PublishIndex() uint32    { return h.publishIndex.Load() }
func (h *DBUFPFHeader) PublishRelease(v uint32) { h.publishIndex.Store(v) }

func (h *DBUFPFHeader) Seq0() uint64     { return h.seq0.Load() }
func (h *DBUFPFHeader) SetSeq0(v uint64) { h.seq0.Store(v) }
func (h *DBUFPFHeader) Ts0() int64       { return h.ts0.Load() }
func (h *DBUFPFHeader) SetTs0(v int64)   { h.ts0.Store(v) }
func (h *DBUFPFHeader) Len0() uint64     { return h.len0.Load() }
func (h *DBUFPFHeader) SetLen0(v uint64) { h.len0.Store(v) }

func (h *DBUFPFHeader) Seq1() uint64     { return h.seq1.Load() }
func (h *DBUFPFHeader) SetSeq1(v uint64) { h.seq1.Store(v) }
func (h *DBUFPFHeader) Ts1() int64       { return h.ts1.Load() }
func (h *DBUFPFHeader) SetTs1(v int64)   { h.ts1.Store(v) }
func (h *DBUFPFHeader) Len1() uint64     { return h.len1.Load() }
func (h *DBUFPFHeader) SetLen1(v uint64) { h.len1.Store(v) }

func (h *DBUFPFHeader) Seq(slot uint32) uint64 {
	if slot == 0 {
		return h.Seq0()
	}
	return h.Seq1()
}

func (h *DBUFPFHeader) Ts(slot uint32) int64 {
	if slot == 0 {
		return h.Ts0()
	}
	return h.Ts1()
}

func (h *DBUFPFHeader) Len(slot uint32) uint64 {
	if slot == 0 {
		return h.Len0()
	}
	return h.Len1()
}

func (h *DBUFPFHeader) SetSlotMeta(slot uint32, seq uint64, ts int64, length uint64) {
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

func (h *DBUFPFHeader) HeartbeatNs() int64     { return h.heartbeatNs.Load() }
func (h *DBUFPFHeader) SetHeartbeatNs(v int64) { h.heartbeatNs.Store(v) }
func (h *DBUFPFHeader) TotalWrites() uint64    { return h.totalWrites.Load() }
func (h *DBUFPFHeader) IncTotalWrites()        { h.totalWrites.Add(1) }
func (h *DBUFPFHeader) TotalBytes() uint64     { return h.totalBytes.Load() }
func (h *DBUFPFHeader) AddTotalBytes(n uint64) { h.totalBytes.Add(n) }

func (h *DBUFPFHeader) ChecksumEnabled() bool      { return h.checksumEnabled.Load() != 0 }
func (h *DBUFPFHeader) SetChecksumEnabled(v bool) {
	if v {
		h.checksumEnabled.Store(1)
		return
	}
	h.checksumEnabled.Store(0)
}

// ChecksumValid always reports true: no writer-side checksum is ever
// computed (design note (b)); the flag exists in the wire format for
// forward compatibility only.
func (h *DBUFPFHeader) ChecksumValid() bool { return true }

func (h *DBUFPFHeader) IncPrefetchHits()      { h.prefetchHits.Add(1) }
func (h *DBUFPFHeader) PrefetchHits() uint64  { return h.prefetchHits.Load() }

// DBUFPFHeaderAt reinterprets base as a DBUFPFHeader.
func DBUFPFHeaderAt(base unsafe.Pointer) *DBUFPFHeader {
	return (*DBUFPFHeader)(base)
}
