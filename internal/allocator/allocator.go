// ============================================================================
// zwalfs Zone Allocator
// ============================================================================
//
// Package: internal/allocator
// File: allocator.go
// Purpose: Hands out zones to ZoneFiles, honoring lifetime hints and keeping
// separate pools for WAL zones (subject to zone-append and OnceLog sharing)
// and plain IO zones (sequential Append only).
//
// AllocateWALZone(prev) returns the first free WAL zone in pool order and
// attaches prev's OnceLog to it so one OnceLog spans both; it does not look
// for a zone adjacent to prev. OpenWALZone(prev) attaches a handle to an
// already-populated zone during recovery instead of allocating a fresh one.
// ============================================================================

package allocator

import (
	"sync"

	"github.com/zoneio/zwalfs/internal/oncelog"
	"github.com/zoneio/zwalfs/internal/zbd"
	"github.com/zoneio/zwalfs/internal/zerrors"
	"github.com/zoneio/zwalfs/internal/zone"
)

// LifetimeHint mirrors the write-lifetime classification a caller may
// attach to a file; the allocator does not act on it beyond bookkeeping
// (zone-level lifetime placement is a backend/device concern this repo
// does not model further, per the distilled spec's scope).
type LifetimeHint int

const (
	LifetimeNotSet LifetimeHint = iota
	LifetimeShort
	LifetimeMedium
	LifetimeLong
	LifetimeExtreme
)

// Allocator owns the zone arena and the WAL-handle-per-zone-set bookkeeping.
type Allocator struct {
	backend   zbd.Backend
	blockSize uint32

	mu       sync.Mutex
	ioZones  *zone.Set
	walZones *zone.Set
	logs     map[*zone.Zone]*oncelog.OnceLog // zone -> its OnceLog, shared across a WAL zone chain
}

// New builds an allocator with empty IO and WAL pools; callers register
// the zones the backend reports via AddIOZone/AddWALZone, which decides
// each zone's class.
func New(backend zbd.Backend) *Allocator {
	return &Allocator{
		backend:  backend,
		ioZones:  zone.NewSet(),
		walZones: zone.NewSet(),
		logs:     make(map[*zone.Zone]*oncelog.OnceLog),
	}
}

// AddIOZone registers a zone (from ListZones) as available for the IO pool,
// starting from the write pointer the device reported.
func (a *Allocator) AddIOZone(info zbd.ZoneInfo) *zone.Zone {
	z := zone.New(a.backend, info.Start, info.Length, info.Capacity, zone.ClassIO)
	if info.WritePointer > info.Start {
		_ = z.AdvanceForZoneAppend(info.WritePointer - info.Start)
	}
	a.ioZones.Add(z)
	return z
}

// AddWALZone registers a zone as available for the WAL pool, starting from
// the write pointer the device reported.
func (a *Allocator) AddWALZone(info zbd.ZoneInfo) *zone.Zone {
	z := zone.New(a.backend, info.Start, info.Length, info.Capacity, zone.ClassWAL)
	if info.WritePointer > info.Start {
		_ = z.AdvanceForZoneAppend(info.WritePointer - info.Start)
	}
	a.walZones.Add(z)
	return z
}

// AllocateIOZone picks and acquires a free, non-full IO zone.
func (a *Allocator) AllocateIOZone(hint LifetimeHint) (*zone.Zone, error) {
	for _, z := range a.ioZones.All() {
		if z.IsFull() || z.Finished() {
			continue
		}
		if z.Acquire() {
			return z, nil
		}
	}
	return nil, &zerrors.IOError{Op: "allocate io zone", Cause: zerrors.ErrNoSpace}
}

// AllocateWALZone returns a fresh WAL zone, lazily extending prev's OnceLog
// (if prev is non-nil and shares a log) to span the new zone so that a
// single handle covers the whole WAL file's backing zones.
func (a *Allocator) AllocateWALZone(prev *zone.Zone) (*zone.Zone, *oncelog.OnceLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var chosen *zone.Zone
	for _, z := range a.walZones.All() {
		if z.IsFull() || z.Finished() {
			continue
		}
		if z.Acquire() {
			chosen = z
			break
		}
	}
	if chosen == nil {
		return nil, nil, &zerrors.IOError{Op: "allocate wal zone", Cause: zerrors.ErrNoSpace}
	}

	log, ok := a.logs[prev]
	if !ok {
		log = oncelog.New(a.backend, a.backend.NewLog(), a.blockSizeOrDefault())
	}
	a.logs[chosen] = log
	return chosen, log, nil
}

// OpenWALZone opens a handle over an already-populated zone during
// recovery, reusing prev's handle when the chain already has one so the
// resulting OnceLog's head/tail reflect the whole recovered span.
func (a *Allocator) OpenWALZone(prev *zone.Zone, z *zone.Zone) *oncelog.OnceLog {
	a.mu.Lock()
	defer a.mu.Unlock()

	if log, ok := a.logs[prev]; ok {
		a.logs[z] = log
		return log
	}
	log := oncelog.New(a.backend, a.backend.NewLog(), a.blockSizeOrDefault())
	a.logs[z] = log
	return log
}

// GetWAL returns the OnceLog whose zone set contains lba, or nil.
func (a *Allocator) GetWAL(lba uint64) *oncelog.OnceLog {
	z := a.GetWALZone(lba)
	if z == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logs[z]
}

// GetWALZone returns the WAL-pool zone containing lba, or nil.
func (a *Allocator) GetWALZone(lba uint64) *zone.Zone {
	return a.walZones.Find(lba)
}

// GetIOZone returns the IO-pool zone containing lba, or nil.
func (a *Allocator) GetIOZone(lba uint64) *zone.Zone {
	return a.ioZones.Find(lba)
}

// ReleaseUnusedWALZones resets and returns to the pool every WAL zone with
// zero used capacity, making them available for reallocation.
func (a *Allocator) ReleaseUnusedWALZones() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, z := range a.walZones.All() {
		if z.UsedCapacity() != 0 {
			continue
		}
		if err := z.Reset(); err != nil {
			return err
		}
		delete(a.logs, z)
		z.Release()
	}
	return nil
}

func (a *Allocator) blockSizeOrDefault() uint32 {
	if bs := a.backend.BlockSize(); bs != 0 {
		return bs
	}
	return 4096
}
