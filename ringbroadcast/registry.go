// Package ringbroadcast implements RING-BROADCAST: a producer-owned
// registry of active consumers, each fanned out to via its own private
// ring region so every consumer keeps a bounded, independent history of
// recent frames instead of only the latest one.
package ringbroadcast

import (
	"fmt"
	"unsafe"

	"github.com/vela-ipc/lwshm/errs"
	"github.com/vela-ipc/lwshm/internal/region"
	"github.com/vela-ipc/lwshm/internal/wire"
)

func openRegistry(name string, mode func(string, bool) (*region.Region, error)) (*region.Region, *wire.RegistryHeader, error) {
	reg, err := mode(name, false)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(reg.Mem)) < wire.RegistryTotalSize() {
		reg.Destroy()
		return nil, nil, fmt.Errorf("ringbroadcast: %s: region smaller than registry: %w", name, errs.ErrCorrupt)
	}
	hdr := wire.RegistryHeaderAt(unsafe.Pointer(&reg.Mem[0]))
	if hdr.Magic() != wire.MagicRegistry || hdr.Version() != wire.VersionRegistry {
		reg.Destroy()
		return nil, nil, fmt.Errorf("ringbroadcast: %s: %w", name, errs.ErrCorrupt)
	}
	return reg, hdr, nil
}

func registryEntry(reg *region.Region, index int) *wire.RegistryEntry {
	return wire.RegistryEntryAt(unsafe.Pointer(&reg.Mem[0]), index)
}
