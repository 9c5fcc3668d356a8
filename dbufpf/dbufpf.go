// Package dbufpf implements the DBUF-PF variant: the same publish protocol
// as DBUF-NT with ordinary temporal stores, software prefetch of the back
// slot ahead of the write and of the soon-to-be-front slot before return,
// and full wiring to the huge-page / CPU-affinity configuration surface.
package dbufpf

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/vela-ipc/lwshm/errs"
	"github.com/vela-ipc/lwshm/internal/clock"
	"github.com/vela-ipc/lwshm/internal/region"
	"github.com/vela-ipc/lwshm/internal/topology"
	"github.com/vela-ipc/lwshm/internal/wire"
)

// Frame is one observed publication, borrowed from the channel's front slot
// until the next call to Latest.
type Frame struct {
	Seq         uint64
	TimestampNs int64
	Data        []byte
	Checksum    bool
}

// Writer publishes frames onto a DBUF-PF channel, applying the
// caller-supplied topology.Config for prefetch distance and CPU affinity.
type Writer struct {
	reg          *region.Region
	hdr          *wire.DBUFPFHeader
	payloadBase  unsafe.Pointer
	capacity     uint64
	slotStride   uint64
	frameCounter uint64
	pendingBack  uint32
	haveBuffer   bool
	cfg          topology.Config
	closed       bool
}

// NewWriter creates the named channel region and initializes its header.
// If cfg.CPUAffinity is non-negative, the calling OS thread is pinned to
// that core for the lifetime of the process (best-effort; failures are not
// fatal, since affinity is a performance hint).
func NewWriter(name string, capacity uint64, cfg topology.Config) (*Writer, error) {
	slotStride := wire.AlignTo64(capacity)
	size := uint64(wire.DBUFPFHeaderSize) + 2*slotStride

	reg, err := region.Create(name, size, cfg.UseHugePages)
	if err != nil {
		return nil, fmt.Errorf("dbufpf: create %s: %w", name, err)
	}

	hdr := wire.DBUFPFHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	hdr.SetMagic(wire.MagicDBUFPF)
	hdr.SetVersion(wire.VersionDBUFPF)
	hdr.SetCapacity(capacity)
	hdr.SetBufferOffset(uint64(wire.DBUFPFHeaderSize))
	flags := uint32(0)
	if reg.HugePagesActive {
		flags |= wire.FlagHugePages
	}
	hdr.SetFlags(flags)
	hdr.SetSlotMeta(0, 0, 0, 0)
	hdr.SetSlotMeta(1, 0, 0, 0)
	hdr.SetHeartbeatNs(clock.NowNs())
	// No writer-side checksum is ever computed (design note b); the flag
	// is carried for forward compatibility only and left disabled.
	hdr.SetChecksumEnabled(false)
	hdr.PublishRelease(0)

	if cfg.CPUAffinity >= 0 {
		pinToCPU(cfg.CPUAffinity)
	}

	return &Writer{
		reg:         reg,
		hdr:         hdr,
		payloadBase: unsafe.Pointer(&reg.Mem[wire.DBUFPFHeaderSize]),
		capacity:    capacity,
		slotStride:  slotStride,
		cfg:         cfg,
	}, nil
}

func (w *Writer) slot(index uint32) []byte {
	start := uint64(index) * w.slotStride
	return unsafe.Slice((*byte)(unsafe.Add(w.payloadBase, start)), w.capacity)
}

// GetWriteBuffer returns the back slot's payload region, prefetching it
// first when the writer's config enables prefetch.
func (w *Writer) GetWriteBuffer() ([]byte, error) {
	if w.closed {
		return nil, errs.ErrNotInitialized
	}
	front := w.hdr.PublishIndex()
	back := 1 - front
	w.pendingBack = back
	w.haveBuffer = true
	buf := w.slot(back)
	if w.cfg.EnablePrefetch {
		prefetchRange(buf, w.cfg.ResolvedPrefetchDistance())
	}
	return buf, nil
}

// Commit publishes the n bytes already written into the buffer returned by
// GetWriteBuffer, then prefetches the slot that will become the front slot
// for the next writer so its cache lines are warm before the caller
// returns.
func (w *Writer) Commit(n uint64) error {
	if w.closed {
		return errs.ErrNotInitialized
	}
	if n > w.capacity {
		return errs.ErrSizeExceeded
	}
	if !w.haveBuffer {
		return fmt.Errorf("dbufpf: commit without get_write_buffer: %w", errs.ErrNotInitialized)
	}
	w.haveBuffer = false

	now := clock.NowNs()
	w.frameCounter++
	w.hdr.IncPrefetchHits()
	w.hdr.SetSlotMeta(w.pendingBack, w.frameCounter, now, n)
	w.hdr.SetHeartbeatNs(now)
	w.hdr.IncTotalWrites()
	w.hdr.AddTotalBytes(n)
	w.hdr.PublishRelease(w.pendingBack)

	if w.cfg.EnablePrefetch {
		nextBack := 1 - w.pendingBack
		prefetchRange(w.slot(nextBack), w.cfg.ResolvedPrefetchDistance())
	}
	return nil
}

// Write copies p into the back slot and publishes it.
func (w *Writer) Write(p []byte) error {
	n := uint64(len(p))
	if n > w.capacity {
		return errs.ErrSizeExceeded
	}
	buf, err := w.GetWriteBuffer()
	if err != nil {
		return err
	}
	copy(buf, p)
	return w.Commit(n)
}

// Destroy unmaps and unlinks the channel region.
func (w *Writer) Destroy() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.reg.Destroy()
}

// Reader observes the most recently published frame of a DBUF-PF channel.
type Reader struct {
	reg         *region.Region
	hdr         *wire.DBUFPFHeader
	payloadBase unsafe.Pointer
	capacity    uint64
	slotStride  uint64
	lastSeq     uint64
	dropped     uint64
	closed      bool
}

// NewReader opens an existing DBUF-PF channel read-only.
func NewReader(name string, preferHuge bool) (*Reader, error) {
	reg, err := region.OpenRO(name, preferHuge)
	if err != nil {
		return nil, fmt.Errorf("dbufpf: open %s: %w", name, err)
	}
	if uint64(len(reg.Mem)) < uint64(wire.DBUFPFHeaderSize) {
		reg.Destroy()
		return nil, fmt.Errorf("dbufpf: %s: region smaller than header: %w", name, errs.ErrCorrupt)
	}
	hdr := wire.DBUFPFHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	if hdr.Magic() != wire.MagicDBUFPF || hdr.Version() != wire.VersionDBUFPF {
		reg.Destroy()
		return nil, fmt.Errorf("dbufpf: %s: %w", name, errs.ErrCorrupt)
	}

	capacity := hdr.Capacity()
	slotStride := wire.AlignTo64(capacity)
	return &Reader{
		reg:         reg,
		hdr:         hdr,
		payloadBase: unsafe.Add(unsafe.Pointer(&reg.Mem[0]), uint64(wire.DBUFPFHeaderSize)),
		capacity:    capacity,
		slotStride:  slotStride,
	}, nil
}

func (r *Reader) slot(index uint32) []byte {
	start := uint64(index) * r.slotStride
	return unsafe.Slice((*byte)(unsafe.Add(r.payloadBase, start)), r.capacity)
}

// Latest returns the front slot's frame if newer than the last observed.
func (r *Reader) Latest() (Frame, bool, error) {
	if r.closed {
		return Frame{}, false, errs.ErrNotInitialized
	}
	front := r.hdr.PublishIndex()
	seq := r.hdr.Seq(front)
	if seq == r.lastSeq {
		return Frame{}, false, nil
	}
	length := r.hdr.Len(front)
	ts := r.hdr.Ts(front)

	if r.lastSeq > 0 && seq > r.lastSeq+1 {
		r.dropped += seq - r.lastSeq - 1
	}
	r.lastSeq = seq

	data := r.slot(front)[:length]
	return Frame{Seq: seq, TimestampNs: ts, Data: data, Checksum: r.hdr.ChecksumValid()}, true, nil
}

// ReadWithTimeout polls Latest until it returns new data or timeoutMs
// elapses.
func (r *Reader) ReadWithTimeout(timeoutMs int64) (Frame, bool, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		f, ok, err := r.Latest()
		if err != nil || ok {
			return f, ok, err
		}
		if time.Now().After(deadline) {
			return Frame{}, false, nil
		}
		time.Sleep(time.Millisecond)
	}
}

// Dropped returns the cumulative count of frames this reader never
// observed.
func (r *Reader) Dropped() uint64 { return r.dropped }

// IsWriterAlive reports whether the writer's heartbeat is fresh.
func (r *Reader) IsWriterAlive(timeoutMs int64) bool {
	age := clock.NowNs() - r.hdr.HeartbeatNs()
	return age < timeoutMs*int64(time.Millisecond)
}

// TotalWrites returns the writer's running publish count, for diagnostics.
func (r *Reader) TotalWrites() uint64 { return r.hdr.TotalWrites() }

// Close unmaps the reader's view of the channel.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.reg.Destroy()
}
