// Package dbufsimple implements DBUF-SIMPLE, the minimal double-buffer
// variant: no non-temporal stores, no prefetch, no running stats. It exists
// as the baseline against which the tuned variants are measured.
package dbufsimple

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/vela-ipc/lwshm/errs"
	"github.com/vela-ipc/lwshm/internal/clock"
	"github.com/vela-ipc/lwshm/internal/region"
	"github.com/vela-ipc/lwshm/internal/wire"
)

// Frame is one observed publication, borrowed until the next call to
// Latest.
type Frame struct {
	Seq         uint64
	TimestampNs int64
	Data        []byte
}

// Writer publishes frames onto a DBUF-SIMPLE channel.
type Writer struct {
	reg          *region.Region
	hdr          *wire.DBUFSimpleHeader
	payloadBase  unsafe.Pointer
	capacity     uint64
	slotStride   uint64
	frameCounter uint64
	pendingBack  uint32
	haveBuffer   bool
	closed       bool
}

// NewWriter creates the named channel region and initializes its header.
// DBUF-SIMPLE ignores huge-page and prefetch preferences; it is the
// portable baseline.
func NewWriter(name string, capacity uint64) (*Writer, error) {
	slotStride := wire.AlignTo64(capacity)
	size := uint64(wire.DBUFSimpleHeaderSize) + 2*slotStride

	reg, err := region.Create(name, size, false)
	if err != nil {
		return nil, fmt.Errorf("dbufsimple: create %s: %w", name, err)
	}

	hdr := wire.DBUFSimpleHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	hdr.SetMagic(wire.MagicDBUFSimple)
	hdr.SetVersion(wire.VersionDBUFSimple)
	hdr.SetCapacity(capacity)
	hdr.SetFlags(0)
	hdr.SetSlotMeta(0, 0, 0, 0)
	hdr.SetSlotMeta(1, 0, 0, 0)
	hdr.PublishRelease(0)

	return &Writer{
		reg:         reg,
		hdr:         hdr,
		payloadBase: unsafe.Pointer(&reg.Mem[wire.DBUFSimpleHeaderSize]),
		capacity:    capacity,
		slotStride:  slotStride,
	}, nil
}

func (w *Writer) slot(index uint32) []byte {
	start := uint64(index) * w.slotStride
	return unsafe.Slice((*byte)(unsafe.Add(w.payloadBase, start)), w.capacity)
}

// GetWriteBuffer returns the back slot's payload region.
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
		return fmt.Errorf("dbufsimple: commit without get_write_buffer: %w", errs.ErrNotInitialized)
	}
	w.haveBuffer = false

	now := clock.NowNs()
	w.frameCounter++
	w.hdr.SetSlotMeta(w.pendingBack, w.frameCounter, now, n)
	w.hdr.PublishRelease(w.pendingBack)
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

// Reader observes the most recently published frame of a DBUF-SIMPLE
// channel.
type Reader struct {
	reg         *region.Region
	hdr         *wire.DBUFSimpleHeader
	payloadBase unsafe.Pointer
	capacity    uint64
	slotStride  uint64
	lastSeq     uint64
	dropped     uint64
	closed      bool
}

// NewReader opens an existing DBUF-SIMPLE channel read-only.
func NewReader(name string) (*Reader, error) {
	reg, err := region.OpenRO(name, false)
	if err != nil {
		return nil, fmt.Errorf("dbufsimple: open %s: %w", name, err)
	}
	if uint64(len(reg.Mem)) < uint64(wire.DBUFSimpleHeaderSize) {
		reg.Destroy()
		return nil, fmt.Errorf("dbufsimple: %s: region smaller than header: %w", name, errs.ErrCorrupt)
	}
	hdr := wire.DBUFSimpleHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	if hdr.Magic() != wire.MagicDBUFSimple || hdr.Version() != wire.VersionDBUFSimple {
		reg.Destroy()
		return nil, fmt.Errorf("dbufsimple: %s: %w", name, errs.ErrCorrupt)
	}

	capacity := hdr.Capacity()
	slotStride := wire.AlignTo64(capacity)
	return &Reader{
		reg:         reg,
		hdr:         hdr,
		payloadBase: unsafe.Add(unsafe.Pointer(&reg.Mem[0]), uint64(wire.DBUFSimpleHeaderSize)),
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
// observed.
func (r *Reader) Dropped() uint64 { return r.dropped }

// IsWriterAlive reports liveness using the freshness of the last published
// frame's timestamp, since DBUF-SIMPLE carries no dedicated heartbeat
// field (see DESIGN.md).
func (r *Reader) IsWriterAlive(timeoutMs int64) bool {
	age := clock.NowNs() - r.hdr.LatestTimestampNs()
	return age < timeoutMs*int64(time.Millisecond)
}

// Close unmaps the reader's view of the channel.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.reg.Destroy()
}
