// Package dbufnt implements the DBUF-NT variant: a two-slot double buffer
// where the writer prefers cache-bypassing streaming stores for large
// payloads and disturbs the reader's cache lines as little as possible.
package dbufnt

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/vela-ipc/lwshm/errs"
	"github.com/vela-ipc/lwshm/internal/clock"
	"github.com/vela-ipc/lwshm/internal/region"
	"github.com/vela-ipc/lwshm/internal/topology"
	"github.com/vela-ipc/lwshm/internal/wire"
)

// nonTemporalThreshold is the payload size at which the writer prefers
// cache-bypassing streaming stores over an ordinary copy (spec design note
// on non-temporal stores).
const nonTemporalThreshold = 4096

// Frame is one observed publication: a sequence number, its timestamp and a
// borrowed view into the channel's front slot. Data is valid only until the
// next call to Latest on the same reader.
type Frame struct {
	Seq         uint64
	TimestampNs int64
	Data        []byte
}

// Writer publishes frames onto a DBUF-NT channel. A Writer is not safe for
// concurrent use from more than one goroutine; the protocol assumes a
// single producer.
type Writer struct {
	reg          *region.Region
	hdr          *wire.DBUFNTHeader
	payloadBase  unsafe.Pointer
	capacity     uint64
	slotStride   uint64
	frameCounter uint64
	pendingBack  uint32
	haveBuffer   bool
	closed       bool
}

// NewWriter creates the named channel region, sized for two capacity-byte
// slots, and initializes its header. On any failure after the region is
// created, the region is destroyed before returning.
func NewWriter(name string, capacity uint64, cfg topology.Config) (*Writer, error) {
	slotStride := wire.AlignTo64(capacity)
	size := uint64(wire.DBUFNTHeaderSize) + 2*slotStride

	reg, err := region.Create(name, size, cfg.UseHugePages)
	if err != nil {
		return nil, fmt.Errorf("dbufnt: create %s: %w", name, err)
	}

	hdr := wire.DBUFNTHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	hdr.SetMagic(wire.MagicDBUFNT)
	hdr.SetVersion(wire.VersionDBUFNT)
	hdr.SetCapacity(capacity)
	hdr.SetBufferOffset(uint64(wire.DBUFNTHeaderSize))
	flags := uint32(0)
	if reg.HugePagesActive {
		flags |= wire.FlagHugePages
	}
	hdr.SetFlags(flags)
	hdr.SetSlotMeta(0, 0, 0, 0)
	hdr.SetSlotMeta(1, 0, 0, 0)
	hdr.SetHeartbeatNs(clock.NowNs())
	hdr.PublishRelease(0)

	return &Writer{
		reg:         reg,
		hdr:         hdr,
		payloadBase: unsafe.Pointer(&reg.Mem[wire.DBUFNTHeaderSize]),
		capacity:    capacity,
		slotStride:  slotStride,
	}, nil
}

func (w *Writer) slot(index uint32) []byte {
	start := uint64(index) * w.slotStride
	return unsafe.Slice((*byte)(unsafe.Add(w.payloadBase, start)), w.capacity)
}

// GetWriteBuffer returns the back slot's payload region for a zero-copy
// publish. The caller must not retain the returned slice past Commit.
func (w *Writer) GetWriteBuffer() ([]byte, error) {
	if w.closed {
		return nil, errs.ErrNotInitialized
	}
	front := w.hdr.PublishIndex()
	back := 1 - front
	w.pendingBack = back
	w.haveBuffer = true
	return w.slot(back), nil
}

// Commit publishes the n bytes already written into the buffer returned by
// GetWriteBuffer.
func (w *Writer) Commit(n uint64) error {
	if w.closed {
		return errs.ErrNotInitialized
	}
	if n > w.capacity {
		return errs.ErrSizeExceeded
	}
	if !w.haveBuffer {
		return fmt.Errorf("dbufnt: commit without get_write_buffer: %w", errs.ErrNotInitialized)
	}
	w.haveBuffer = false

	now := clock.NowNs()
	w.frameCounter++
	w.hdr.SetSlotMeta(w.pendingBack, w.frameCounter, now, n)
	w.hdr.SetHeartbeatNs(now)
	w.hdr.PublishRelease(w.pendingBack)
	return nil
}

// Write copies p into the back slot and publishes it. Payloads at or above
// the non-temporal threshold use a streaming copy path.
func (w *Writer) Write(p []byte) error {
	n := uint64(len(p))
	if n > w.capacity {
		return errs.ErrSizeExceeded
	}
	buf, err := w.GetWriteBuffer()
	if err != nil {
		return err
	}
	if n >= nonTemporalThreshold && cpu.X86.HasSSE2 {
		streamingCopy(buf, p)
	} else {
		copy(buf, p)
	}
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

// Reader observes the most recently published frame of a DBUF-NT channel.
type Reader struct {
	reg         *region.Region
	hdr         *wire.DBUFNTHeader
	payloadBase unsafe.Pointer
	capacity    uint64
	slotStride  uint64
	lastSeq     uint64
	dropped     uint64
	closed      bool
}

// NewReader opens an existing DBUF-NT channel read-only, validating its
// magic and version.
func NewReader(name string, preferHuge bool) (*Reader, error) {
	reg, err := region.OpenRO(name, preferHuge)
	if err != nil {
		return nil, fmt.Errorf("dbufnt: open %s: %w", name, err)
	}
	if uint64(len(reg.Mem)) < uint64(wire.DBUFNTHeaderSize) {
		reg.Destroy()
		return nil, fmt.Errorf("dbufnt: %s: region smaller than header: %w", name, errs.ErrCorrupt)
	}
	hdr := wire.DBUFNTHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	if hdr.Magic() != wire.MagicDBUFNT || hdr.Version() != wire.VersionDBUFNT {
		reg.Destroy()
		return nil, fmt.Errorf("dbufnt: %s: %w", name, errs.ErrCorrupt)
	}

	capacity := hdr.Capacity()
	slotStride := wire.AlignTo64(capacity)
	return &Reader{
		reg:         reg,
		hdr:         hdr,
		payloadBase: unsafe.Add(unsafe.Pointer(&reg.Mem[0]), uint64(wire.DBUFNTHeaderSize)),
		capacity:    capacity,
		slotStride:  slotStride,
	}, nil
}

func (r *Reader) slot(index uint32) []byte {
	start := uint64(index) * r.slotStride
	return unsafe.Slice((*byte)(unsafe.Add(r.payloadBase, start)), r.capacity)
}

// Latest returns the front slot's frame if it is newer than the last one
// observed by this reader. The second return value is false when there is
// no new data since the last call.
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
	return Frame{Seq: seq, TimestampNs: ts, Data: data}, true, nil
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
// observed, inferred from sequence gaps.
func (r *Reader) Dropped() uint64 { return r.dropped }

// IsWriterAlive reports whether the writer's heartbeat was updated within
// the last timeoutMs milliseconds. It is a hint, not a guarantee.
func (r *Reader) IsWriterAlive(timeoutMs int64) bool {
	age := clock.NowNs() - r.hdr.HeartbeatNs()
	return age < timeoutMs*int64(time.Millisecond)
}

// HugePagesActive reports whether the mapped region is huge-page backed.
func (r *Reader) HugePagesActive() bool { return r.hdr.HugePagesActive() }

// Close unmaps the reader's view of the channel.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.reg.Destroy()
}
