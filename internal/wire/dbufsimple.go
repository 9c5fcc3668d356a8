package wire

import (
	"sync/atomic"
	"unsafe"
)

// DBUF-SIMPLE has no assigned magic in the spec's binary layout table; it
// reuses the DBUF-NT wire constants with a distinct version tag so a
// misdirected open is still caught by version validation.
const (
	MagicDBUFSimple   uint32 = 0x53484D31 // "SHM1": one generation behind DBUF-NT
	VersionDBUFSimple uint32 = 0x00010000

	// DBUFSimpleHeaderSize is 4 cache lines: only the fields §6 lists —
	// magic, version, capacity, publish_index and the two per-slot
	// metadata lines. There is no heartbeat line; liveness is derived
	// from slot timestamp freshness instead (see DESIGN.md).
	DBUFSimpleHeaderSize = 4 * CacheLine
)

// DBUFSimpleHeader is the minimal double-buffer header: no buffer_offset,
// no writer stats, no heartbeat.
type DBUFSimpleHeader struct {
	magic    uint32
	version  uint32
	capacity uint64
	flags    uint32
	_        [CacheLine - 20]byte

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
}

func init() {
	assertSize("DBUFSimpleHeader", unsafe.Sizeof(DBUFSimpleHeader{}), DBUFSimpleHeaderSize)
}

func (h *DBUFSimpleHeader) Magic() uint32       { return atomic.LoadUint32(&h.magic) }
func (h *DBUFSimpleHeader) SetMagic(v uint32)   { atomic.StoreUint32(&h.magic, v) }
func (h *DBUFSimpleHeader) Version() uint32     { return atomic.LoadUint32(&h.version) }
func (h *DBUFSimpleHeader) SetVersion(v uint32) { atomic.StoreUint32(&h.version, v) }
func (h *DBUFSimpleHeader) Capacity() uint64    { return atomic.LoadUint64(&h.capacity) }
func (h *DBUFSimpleHeader) SetCapacity(v uint64) {
	atomic.StoreUint64(&h.capacity, v)
}
func (h *DBUFSimpleHeader) Flags() uint32     { return atomic.LoadUint32(&h.flags) }
func (h *DBUFSimpleHeader) SetFlags(v uint32) { atomic.StoreUint32(&h.flags, v) }
func (h *DBUFSimpleHeader) HugePagesActive() bool {
	return h.Flags()&FlagHugePages != 0
}

func (h *DBUFSimpleHeader) PublishIndex() uint32    { return h.publishIndex.Load() }
func (h *DBUFSimpleHeader) PublishRelease(v uint32) { h.publishIndex.Store(v) }

func (h *DBUFSimpleHeader) Seq0() uint64     { return h.seq0.Load() }
func (h *DBUFSimpleHeader) SetSeq0(v uint64) { h.seq0.Store(v) }
func (h *DBUFSimpleHeader) Ts0() int64       { return h.ts0.Load() }
func (h *DBUFSimpleHeader) SetTs0(v int64)   { h.ts0.Store(v) }
func (h *DBUFSimpleHeader) Len0() uint64     { return h.len0.Load() }
func (h *DBUFSimpleHeader) SetLen0(v uint64) { h.len0.Store(v) }

func (h *DBUFSimpleHeader) Seq1() uint64     { return h.seq1.Load() }
func (h *DBUFSimpleHeader) SetSeq1(v uint64) { h.seq1.Store(v) }
func (h *DBUFSimpleHeader) Ts1() int64       { return h.ts1.Load() }
func (h *DBUFSimpleHeader) SetTs1(v int64)   { h.ts1.Store(v) }
func (h *DBUFSimpleHeader) Len1() uint64     { return h.len1.Load() }
func (h *DBUFSimpleHeader) SetLen1(v uint64) { h.len1.Store(v) }

func (h *DBUFSimpleHeader) Seq(slot uint32) uint64 {
	if slot == 0 {
		return h.Seq0()
	}
	return h.Seq1()
}

func (h *DBUFSimpleHeader) Ts(slot uint32) int64 {
	if slot == 0 {
		return h.Ts0()
	}
	return h.Ts1()
}

func (h *DBUFSimpleHeader) Len(slot uint32) uint64 {
	if slot == 0 {
		return h.Len0()
	}
	return h.Len1()
}

func (h *DBUFSimpleHeader) SetSlotMeta(slot uint32, seq uint64, ts int64, length uint64) {
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

// LatestTimestampNs returns the newer of the two slots' timestamps,
// standing in for a heartbeat: DBUF-SIMPLE carries no separate liveness
// field, so freshness of the last published frame is the liveness signal.
func (h *DBUFSimpleHeader) LatestTimestampNs() int64 {
	t0, t1 := h.Ts0(), h.Ts1()
	if t0 > t1 {
		return t0
	}
	return t1
}

// DBUFSimpleHeaderAt reinterprets base as a DBUFSimpleHeader.
func DBUFSimpleHeaderAt(base unsafe.Pointer) *DBUFSimpleHeader {
	return (*DBUFSimpleHeader)(base)
}
