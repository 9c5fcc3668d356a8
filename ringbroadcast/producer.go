package ringbroadcast

import (
	"fmt"
	"unsafe"

	"github.com/vela-ipc/lwshm/errs"
	"github.com/vela-ipc/lwshm/internal/clock"
	"github.com/vela-ipc/lwshm/internal/region"
	"github.com/vela-ipc/lwshm/internal/wire"
)

// consumerView is the producer's mapped view into one active consumer's
// ring region.
type consumerView struct {
	reg          *region.Region
	hdr          *wire.RingHeader
	ringBase     unsafe.Pointer
	slotDataSize uint32
	slotStride   uint64
}

// Producer fans a stream of frames out to every consumer currently active
// in the registry.
type Producer struct {
	channel     string
	reg         *region.Region
	hdr         *wire.RegistryHeader
	maxSlotSize uint32
	mapped      [wire.MaxRegistryEntries]*consumerView
	closed      bool
}

// NewProducer creates the named registry region. maxSlotSize bounds every
// consumer's per-slot payload capacity; defaultRingSize is handed to
// consumers that do not request a specific ring size at registration.
func NewProducer(channel string, maxSlotSize uint32, defaultRingSize uint32) (*Producer, error) {
	if defaultRingSize == 0 {
		defaultRingSize = wire.DefaultRingSize
	}
	reg, err := region.Create(channel, wire.RegistryTotalSize(), false)
	if err != nil {
		return nil, fmt.Errorf("ringbroadcast: create registry %s: %w", channel, err)
	}

	hdr := wire.RegistryHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	hdr.SetMagic(wire.MagicRegistry)
	hdr.SetVersion(wire.VersionRegistry)
	hdr.SetMaxSlotSize(maxSlotSize)
	hdr.SetDefaultRingSize(defaultRingSize)
	hdr.SetWriterHeartbeatNs(clock.NowNs())

	return &Producer{
		channel:     channel,
		reg:         reg,
		hdr:         hdr,
		maxSlotSize: maxSlotSize,
	}, nil
}

// refresh maps newly active consumers and unmaps ones that went inactive.
func (p *Producer) refresh() {
	for i := 0; i < wire.MaxRegistryEntries; i++ {
		entry := registryEntry(p.reg, i)
		active := entry.Active()
		if active && p.mapped[i] == nil {
			cv, err := p.mapConsumer(entry)
			if err == nil {
				p.mapped[i] = cv
			}
			continue
		}
		if !active && p.mapped[i] != nil {
			p.mapped[i].reg.Destroy()
			p.mapped[i] = nil
		}
	}
}

func (p *Producer) mapConsumer(entry *wire.RegistryEntry) (*consumerView, error) {
	name := entry.Name()
	if name == "" {
		return nil, fmt.Errorf("ringbroadcast: claimed entry has no name")
	}
	reg, err := region.OpenRW(name, false)
	if err != nil {
		return nil, err
	}
	if uint64(len(reg.Mem)) < uint64(wire.RingHeaderSize) {
		reg.Destroy()
		return nil, fmt.Errorf("ringbroadcast: %s: %w", name, errs.ErrCorrupt)
	}
	hdr := wire.RingHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	if hdr.Magic() != wire.MagicRing || hdr.Version() != wire.VersionRing {
		reg.Destroy()
		return nil, fmt.Errorf("ringbroadcast: %s: %w", name, errs.ErrCorrupt)
	}
	return &consumerView{
		reg:          reg,
		hdr:          hdr,
		ringBase:     unsafe.Pointer(&reg.Mem[0]),
		slotDataSize: hdr.SlotDataSize(),
		slotStride:   hdr.SlotStride(),
	}, nil
}

// Publish copies data into the current write slot of every active
// consumer's ring and advances each independently, then updates the
// registry heartbeat.
func (p *Producer) Publish(data []byte) error {
	if p.closed {
		return errs.ErrNotInitialized
	}
	p.refresh()

	now := clock.NowNs()
	for _, cv := range p.mapped {
		if cv == nil {
			continue
		}
		if uint32(len(data)) > cv.slotDataSize {
			continue
		}
		ringSize := cv.hdr.RingSize()
		idx := cv.hdr.WriteIdx()
		offset := uintptr(wire.RingHeaderSize) + uintptr(idx)*uintptr(cv.slotStride)
		sh := wire.RingSlotHeaderAt(cv.ringBase, offset)
		payload := wire.RingSlotPayload(cv.reg.Mem, uint64(offset), cv.slotDataSize)
		copy(payload, data)
		sh.SetDataSize(uint64(len(data)))
		sh.SetTimestampNs(now)
		sh.SetSequenceRelease(cv.hdr.TotalWrites() + 1)

		nextIdx := (idx + 1) % ringSize
		cv.hdr.SetWriteIdxRelease(nextIdx)
		cv.hdr.IncTotalWrites()
		cv.hdr.AddTotalBytes(uint64(len(data)))
	}

	p.hdr.SetWriterHeartbeatNs(now)
	return nil
}

// NumReaders returns the registry's current active-consumer count.
func (p *Producer) NumReaders() uint32 { return p.hdr.NumReaders() }

// Destroy unmaps every consumer view still held and removes the registry
// region.
func (p *Producer) Destroy() error {
	if p.closed {
		return nil
	}
	p.closed = true
	for i, cv := range p.mapped {
		if cv != nil {
			cv.reg.Destroy()
			p.mapped[i] = nil
		}
	}
	return p.reg.Destroy()
}
