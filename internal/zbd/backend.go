// ============================================================================
// zwalfs Device Backend
// ============================================================================
//
// Package: internal/zbd
// File: backend.go
// Purpose: Thin adapter over a host-managed zoned block device (ZBD).
//
// Backend contract (spec.md §6):
//   Open(readonly, exclusive, &max_active, &max_open)
//   ListZones()
//   Reset(start, &offline, &max_capacity)
//   Finish(start)
//   Close(start)
//   Read(buf, size, pos, direct) -> bytes
//   Write(data, size, pos) -> bytes
//   Append(data, size, log) -> bytes   (queues async; returns on submit)
//   AppendSync(log)                    (flush to durability)
//   InvalidateCache(pos, size)         (advisory)
//
// Two implementations exist: the real backend (zbd_linux.go, linux build
// tag, talks to /dev/<device> via ioctl) and an in-memory backend (mem.go)
// used by every test in this repo and by the CLI's demo mode.
// ============================================================================

package zbd

import "github.com/zoneio/zwalfs/internal/zerrors"

// ZoneInfo is a snapshot of one zone's on-device state, as reported by
// ListZones.
type ZoneInfo struct {
	Start        uint64
	Length       uint64
	Capacity     uint64
	WritePointer uint64
	Full         bool
	Offline      bool
}

// LogHandle identifies an open OnceLog to the backend across Append /
// AppendSync calls.
type LogHandle struct {
	id uintptr
}

// Handle returns the opaque identifier the backend uses to track this log.
func (h *LogHandle) Handle() uintptr { return h.id }

// Backend is the device surface consumed by internal/zone, internal/oncelog
// and internal/allocator.
type Backend interface {
	// Open prepares the device for use and reports zone-activation limits.
	Open(readonly, exclusive bool) (maxActiveZones, maxOpenZones uint32, err error)
	Close() error

	ListZones() ([]ZoneInfo, error)
	Reset(start uint64) (offline bool, maxCapacity uint64, err error)
	Finish(start uint64) error
	CloseZone(start uint64) error

	Read(buf []byte, pos uint64, direct bool) (int, error)
	Write(data []byte, pos uint64) (int, error)

	// Append issues a zone-append targeting the zone starting at zoneStart:
	// the device picks the landing LBA within that zone and the call
	// returns once the write is submitted, not once it completes. NewLog
	// must have been called for this log first.
	Append(data []byte, zoneStart uint64, log *LogHandle) (lba uint64, n int, err error)
	// AppendSync flushes every outstanding Append against log to durability.
	AppendSync(log *LogHandle) error

	// NewLog allocates a backend-side tracking handle for a OnceLog.
	NewLog() *LogHandle

	InvalidateCache(pos, size uint64)

	BlockSize() uint32
	ZoneSize() uint64
}

// checkAligned validates that pos and len(buf) are multiples of blockSize,
// the alignment constraint the backend contract imposes on direct I/O.
func checkAligned(blockSize uint32, pos uint64, size int) error {
	if pos%uint64(blockSize) != 0 || uint64(size)%uint64(blockSize) != 0 {
		return &zerrors.IOError{Op: "alignment check", Cause: zerrors.ErrInvalidArgument}
	}
	return nil
}
