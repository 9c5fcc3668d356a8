package ringbroadcast

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/vela-ipc/lwshm/errs"
	"github.com/vela-ipc/lwshm/internal/clock"
	"github.com/vela-ipc/lwshm/internal/region"
	"github.com/vela-ipc/lwshm/internal/wire"
)

// Frame is one addressable ring slot's contents, borrowed from the
// consumer's own ring region.
type Frame struct {
	Seq         uint64
	TimestampNs int64
	Data        []byte
}

// Consumer owns a private ring region fanned into by a single producer,
// and its own claimed entry in the producer's registry.
type Consumer struct {
	registryReg  *region.Region
	registryHdr  *wire.RegistryHeader
	entryIndex   int
	ring         *region.Region
	hdr          *wire.RingHeader
	ringBase     unsafe.Pointer
	ringSize     uint32
	slotDataSize uint32
	slotStride   uint64
	closed       bool
}

// NewConsumer opens channel's registry, creates this consumer's private
// ring region and claims a registry entry. ringSize of 0 uses the
// registry's default.
func NewConsumer(channel string, ringSize uint32) (*Consumer, error) {
	registryReg, registryHdr, err := openRegistry(channel, region.OpenRW)
	if err != nil {
		return nil, fmt.Errorf("ringbroadcast: %w", err)
	}

	if ringSize == 0 {
		ringSize = registryHdr.DefaultRingSize()
	}
	slotDataSize := registryHdr.MaxSlotSize()
	slotStride := wire.SlotStride(slotDataSize)

	// Claim a registry entry first so its index is available as part of
	// the ring name; pid alone (the original implementation's scheme)
	// does not disambiguate two consumers from the same process.
	entryIndex := -1
	for i := 0; i < wire.MaxRegistryEntries; i++ {
		if registryEntry(registryReg, i).TryClaim() {
			entryIndex = i
			break
		}
	}
	if entryIndex < 0 {
		registryReg.Destroy()
		return nil, fmt.Errorf("ringbroadcast: %s: %w", channel, errs.ErrRegistryFull)
	}

	ringName := fmt.Sprintf("%s_reader_%d_%d", channel, os.Getpid(), entryIndex)

	ringSizeBytes := uint64(wire.RingHeaderSize) + uint64(ringSize)*slotStride
	ring, err := region.Create(ringName, ringSizeBytes, false)
	if err != nil {
		registryEntry(registryReg, entryIndex).TryRelease()
		registryReg.Destroy()
		return nil, fmt.Errorf("ringbroadcast: create ring %s: %w", ringName, err)
	}

	hdr := wire.RingHeaderAt(unsafe.Pointer(&ring.Mem[0]))
	hdr.SetMagic(wire.MagicRing)
	hdr.SetVersion(wire.VersionRing)
	hdr.SetRingSize(ringSize)
	hdr.SetSlotDataSize(slotDataSize)
	hdr.SetSlotStride(slotStride)
	hdr.SetWriteIdxRelease(0)
	// Slot sequences start at 0 ("never written") for free: Create's
	// backing file is freshly truncated, so every byte is already zero.

	entry := registryEntry(registryReg, entryIndex)
	if err := entry.SetName(ringName); err != nil {
		entry.TryRelease()
		ring.Destroy()
		registryReg.Destroy()
		return nil, fmt.Errorf("ringbroadcast: %w", err)
	}
	entry.SetRingSize(ringSize)
	registryHdr.IncNumReaders()

	return &Consumer{
		registryReg:  registryReg,
		registryHdr:  registryHdr,
		entryIndex:   entryIndex,
		ring:         ring,
		hdr:          hdr,
		ringBase:     unsafe.Pointer(&ring.Mem[0]),
		ringSize:     ringSize,
		slotDataSize: slotDataSize,
		slotStride:   slotStride,
	}, nil
}

func (c *Consumer) slotOffset(index uint32) uintptr {
	return uintptr(wire.RingHeaderSize) + uintptr(index)*uintptr(c.slotStride)
}

// Latest returns the most recently written slot, or false if the ring has
// never been written to.
func (c *Consumer) Latest() (Frame, bool, error) {
	if c.closed {
		return Frame{}, false, errs.ErrNotInitialized
	}
	if c.hdr.TotalWrites() == 0 {
		return Frame{}, false, nil
	}
	writeIdx := c.hdr.WriteIdx()
	latestIdx := (writeIdx + c.ringSize - 1) % c.ringSize
	return c.readSlot(latestIdx)
}

// Slot returns the payload written at ring index i, or false if that slot
// has never been written (sequence == 0).
func (c *Consumer) Slot(i uint32) (Frame, bool, error) {
	if c.closed {
		return Frame{}, false, errs.ErrNotInitialized
	}
	if i >= c.ringSize {
		return Frame{}, false, fmt.Errorf("ringbroadcast: slot index %d out of range [0,%d)", i, c.ringSize)
	}
	return c.readSlot(i)
}

func (c *Consumer) readSlot(idx uint32) (Frame, bool, error) {
	offset := c.slotOffset(idx)
	sh := wire.RingSlotHeaderAt(c.ringBase, offset)
	seq := sh.Sequence()
	if seq == 0 {
		return Frame{}, false, nil
	}
	size := sh.DataSize()
	ts := sh.TimestampNs()
	payload := wire.RingSlotPayload(c.ring.Mem, uint64(offset), c.slotDataSize)[:size]
	return Frame{Seq: seq, TimestampNs: ts, Data: payload}, true, nil
}

// ReadWithTimeout polls Latest until it returns new data or timeoutMs
// elapses.
func (c *Consumer) ReadWithTimeout(timeoutMs int64) (Frame, bool, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		f, ok, err := c.Latest()
		if err != nil || ok {
			return f, ok, err
		}
		if time.Now().After(deadline) {
			return Frame{}, false, nil
		}
		time.Sleep(time.Millisecond)
	}
}

// TotalWrites returns the number of frames this consumer's ring has
// received.
func (c *Consumer) TotalWrites() uint64 { return c.hdr.TotalWrites() }

// IsWriterAlive reports whether the producer's registry heartbeat is
// fresh.
func (c *Consumer) IsWriterAlive(timeoutMs int64) bool {
	age := clock.NowNs() - c.registryHdr.WriterHeartbeatNs()
	return age < timeoutMs*int64(time.Millisecond)
}

// Destroy clears this consumer's registry entry, decrements num_readers,
// and removes its ring region.
func (c *Consumer) Destroy() error {
	if c.closed {
		return nil
	}
	c.closed = true
	entry := registryEntry(c.registryReg, c.entryIndex)
	if entry.TryRelease() {
		c.registryHdr.DecNumReaders()
	}

	var firstErr error
	if err := c.ring.Destroy(); err != nil {
		firstErr = err
	}
	if err := c.registryReg.Destroy(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
