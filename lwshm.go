// Package lwshm provides a single Writer/Reader surface over the four
// shared-memory broadcast variants: DBUF-NT, DBUF-PF, DBUF-SIMPLE and
// RING-BROADCAST. Each variant's own package (dbufnt, dbufpf, dbufsimple,
// ringbroadcast) remains usable directly when a caller wants its
// variant-specific extras (zero-copy GetWriteBuffer/Commit, RING's Slot
// history lookup, DBUF-PF's checksum flag); this package exists for code
// that picks its variant at runtime or wants to depend on one interface.
package lwshm

import (
	"fmt"

	"github.com/vela-ipc/lwshm/dbufnt"
	"github.com/vela-ipc/lwshm/dbufpf"
	"github.com/vela-ipc/lwshm/dbufsimple"
	"github.com/vela-ipc/lwshm/internal/topology"
	"github.com/vela-ipc/lwshm/ringbroadcast"
)

// Variant selects which transport a Writer or Reader is backed by.
type Variant int

const (
	DBUFNT Variant = iota
	DBUFPF
	DBUFSimple
	RingBroadcast
)

func (v Variant) String() string {
	switch v {
	case DBUFNT:
		return "dbuf-nt"
	case DBUFPF:
		return "dbuf-pf"
	case DBUFSimple:
		return "dbuf-simple"
	case RingBroadcast:
		return "ring-broadcast"
	default:
		return "unknown"
	}
}

// Frame is one observed publication: a monotonic sequence number, its
// timestamp, and a payload borrowed from the transport's mapped memory.
// Data is valid only until the reader's next read call.
type Frame struct {
	Seq         uint64
	TimestampNs int64
	Data        []byte
}

// Writer is the surface every variant's writer satisfies.
type Writer interface {
	Write(p []byte) error
	Destroy() error
}

// Reader is the surface every variant's reader satisfies.
type Reader interface {
	Latest() (Frame, bool, error)
	ReadWithTimeout(timeoutMs int64) (Frame, bool, error)
	IsWriterAlive(timeoutMs int64) bool
	Close() error
}

// NewWriter creates a channel of the given variant. capacity is the
// per-slot payload capacity for DBUF variants, or the per-consumer max
// slot size for RING-BROADCAST. cfg is ignored by DBUF-SIMPLE and
// RING-BROADCAST, neither of which exposes huge-page or prefetch tuning.
func NewWriter(variant Variant, name string, capacity uint64, cfg topology.Config) (Writer, error) {
	switch variant {
	case DBUFNT:
		return dbufnt.NewWriter(name, capacity, cfg)
	case DBUFPF:
		return dbufpf.NewWriter(name, capacity, cfg)
	case DBUFSimple:
		return dbufsimple.NewWriter(name, capacity)
	case RingBroadcast:
		p, err := ringbroadcast.NewProducer(name, uint32(capacity), 0)
		if err != nil {
			return nil, err
		}
		return &ringWriter{p: p}, nil
	default:
		return nil, fmt.Errorf("lwshm: unknown variant %v", variant)
	}
}

// NewReader opens a channel of the given variant. ringSize is only
// consulted for RING-BROADCAST; passing none uses the registry's default.
func NewReader(variant Variant, name string, preferHuge bool, ringSize ...uint32) (Reader, error) {
	switch variant {
	case DBUFNT:
		r, err := dbufnt.NewReader(name, preferHuge)
		if err != nil {
			return nil, err
		}
		return dbufntReader{r}, nil
	case DBUFPF:
		r, err := dbufpf.NewReader(name, preferHuge)
		if err != nil {
			return nil, err
		}
		return dbufpfReader{r}, nil
	case DBUFSimple:
		r, err := dbufsimple.NewReader(name)
		if err != nil {
			return nil, err
		}
		return dbufsimpleReader{r}, nil
	case RingBroadcast:
		var rs uint32
		if len(ringSize) > 0 {
			rs = ringSize[0]
		}
		c, err := ringbroadcast.NewConsumer(name, rs)
		if err != nil {
			return nil, err
		}
		return &ringReader{c: c}, nil
	default:
		return nil, fmt.Errorf("lwshm: unknown variant %v", variant)
	}
}
