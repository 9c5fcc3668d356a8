package ringbroadcast

import (
	"fmt"
	"time"

	"github.com/eapache/queue"

	"github.com/vela-ipc/lwshm/internal/clock"
	"github.com/vela-ipc/lwshm/internal/region"
	"github.com/vela-ipc/lwshm/internal/wire"
)

// Janitor implements the best-effort producer-crash recovery left as an
// open question by the design: when a producer dies without clearing its
// registry entries or unlinking its consumers' ring regions, a Janitor
// run against the same registry from any process reclaims stale entries so
// a restarted producer sees an accurate num_readers count.
//
// A registry entry is considered orphaned only once the producer's own
// heartbeat has gone stale; the janitor never reclaims entries while a
// live producer might still be relying on them.
type Janitor struct {
	reg            *region.Region
	hdr            *wire.RegistryHeader
	staleTimeoutMs int64
	pending        *queue.Queue
	closed         bool
}

// NewJanitor opens channel's registry for orphan sweeping.
func NewJanitor(channel string, staleTimeoutMs int64) (*Janitor, error) {
	reg, hdr, err := openRegistry(channel, region.OpenRW)
	if err != nil {
		return nil, fmt.Errorf("ringbroadcast: %w", err)
	}
	return &Janitor{
		reg:            reg,
		hdr:            hdr,
		staleTimeoutMs: staleTimeoutMs,
		pending:        queue.New(),
	}, nil
}

// Sweep reclaims every active registry entry if, and only if, the
// producer's heartbeat is stale. It returns the number of entries
// reclaimed. Candidates are queued before any are cleared so a Sweep
// observes a single consistent snapshot of the registry even though
// clearing one entry takes a moment.
func (j *Janitor) Sweep() int {
	if j.closed {
		return 0
	}
	age := clock.NowNs() - j.hdr.WriterHeartbeatNs()
	if age < j.staleTimeoutMs*int64(time.Millisecond) {
		return 0
	}

	for i := 0; i < wire.MaxRegistryEntries; i++ {
		if registryEntry(j.reg, i).Active() {
			j.pending.Add(i)
		}
	}

	reclaimed := 0
	for j.pending.Length() > 0 {
		idx := j.pending.Remove().(int)
		entry := registryEntry(j.reg, idx)
		if entry.TryRelease() {
			j.hdr.DecNumReaders()
			reclaimed++
		}
	}
	return reclaimed
}

// Close unmaps the janitor's view of the registry.
func (j *Janitor) Close() error {
	if j.closed {
		return nil
	}
	j.closed = true
	return j.reg.Destroy()
}
