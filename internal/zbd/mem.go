// ============================================================================
// zwalfs Device Backend - In-Memory Implementation
// ============================================================================
//
// Package: internal/zbd
// File: mem.go
// Purpose: An in-memory stand-in for a host-managed ZBD, used by every test
// in this repo and by the CLI's demo mode (no real device required).
//
// Async zone-append completion is modeled honestly: Append() only queues
// the write; AppendSync() is what actually lands the bytes in the backing
// buffer. Between submit and sync, a ReorderPolicy may permute same-zone
// pending writes before they are physically placed, which is how this
// backend reproduces the "device completes appends out of submission
// order" behavior a real ZBD can exhibit under zone append. This replaces
// the original implementation's compile-time REORDER_WAL_TEST switch with
// a pluggable trait, per the design's open question on that path.
// ============================================================================

package zbd

import (
	"sync"

	"github.com/zoneio/zwalfs/internal/zerrors"
)

// ReorderPolicy permutes a run of pending same-zone append payloads before
// they are physically written, simulating out-of-order zone-append
// completion. The identity policy (nil) preserves submission order.
type ReorderPolicy func(pending [][]byte) [][]byte

type pendingRecord struct {
	zoneIdx int
	data    []byte
}

type memZone struct {
	start    uint64
	wp       uint64
	finished bool
	offline  bool
}

// MemBackend is an in-memory ZBD simulator.
type MemBackend struct {
	blockSize    uint32
	zoneSize     uint64
	zoneCapacity uint64

	mu      sync.Mutex
	storage []byte
	zones   []memZone

	reorder   ReorderPolicy
	nextLogID uintptr
	pending   map[*LogHandle][]pendingRecord
}

// NewMemBackend creates an in-memory device of numZones zones, each
// zoneSize bytes with zoneCapacity usable bytes, using blockSize-aligned
// I/O (512 or 4096).
func NewMemBackend(numZones int, zoneSize, zoneCapacity uint64, blockSize uint32) *MemBackend {
	b := &MemBackend{
		blockSize:    blockSize,
		zoneSize:     zoneSize,
		zoneCapacity: zoneCapacity,
		storage:      make([]byte, uint64(numZones)*zoneSize),
		zones:        make([]memZone, numZones),
		pending:      make(map[*LogHandle][]pendingRecord),
	}
	for i := range b.zones {
		b.zones[i] = memZone{start: uint64(i) * zoneSize, wp: uint64(i) * zoneSize}
	}
	return b
}

// SetReorderPolicy installs a fault injector used by tests to exercise the
// WAL's sequence-sorted recovery against out-of-order append completion.
func (b *MemBackend) SetReorderPolicy(p ReorderPolicy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reorder = p
}

func (b *MemBackend) Open(readonly, exclusive bool) (uint32, uint32, error) {
	return uint32(len(b.zones)), uint32(len(b.zones)), nil
}

func (b *MemBackend) Close() error { return nil }

func (b *MemBackend) zoneIndex(start uint64) int {
	for i, z := range b.zones {
		if z.start == start {
			return i
		}
	}
	return -1
}

func (b *MemBackend) ListZones() ([]ZoneInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ZoneInfo, len(b.zones))
	for i, z := range b.zones {
		out[i] = ZoneInfo{
			Start:        z.start,
			Length:       b.zoneSize,
			Capacity:     b.zoneCapacity,
			WritePointer: z.wp,
			Full:         z.wp >= z.start+b.zoneCapacity,
			Offline:      z.offline,
		}
	}
	return out, nil
}

func (b *MemBackend) Reset(start uint64) (bool, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.zoneIndex(start)
	if idx < 0 {
		return false, 0, &zerrors.IOError{Op: "reset", Cause: zerrors.ErrInvalidArgument}
	}
	z := &b.zones[idx]
	if z.offline {
		return true, 0, nil
	}
	z.wp = z.start
	z.finished = false
	clear(b.storage[z.start : z.start+b.zoneSize])
	return false, b.zoneCapacity, nil
}

func (b *MemBackend) Finish(start uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.zoneIndex(start)
	if idx < 0 {
		return &zerrors.IOError{Op: "finish", Cause: zerrors.ErrInvalidArgument}
	}
	z := &b.zones[idx]
	z.wp = z.start + b.zoneCapacity
	z.finished = true
	return nil
}

func (b *MemBackend) CloseZone(start uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.zoneIndex(start)
	if idx < 0 {
		return &zerrors.IOError{Op: "close zone", Cause: zerrors.ErrInvalidArgument}
	}
	b.zones[idx].finished = true
	return nil
}

func (b *MemBackend) Read(buf []byte, pos uint64, direct bool) (int, error) {
	if direct {
		if err := checkAligned(b.blockSize, pos, len(buf)); err != nil {
			return 0, err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos+uint64(len(buf)) > uint64(len(b.storage)) {
		return 0, &zerrors.IOError{Op: "read", Cause: zerrors.ErrInvalidArgument}
	}
	n := copy(buf, b.storage[pos:pos+uint64(len(buf))])
	return n, nil
}

func (b *MemBackend) Write(data []byte, pos uint64) (int, error) {
	if err := checkAligned(b.blockSize, pos, len(data)); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos+uint64(len(data)) > uint64(len(b.storage)) {
		return 0, &zerrors.IOError{Op: "write", Cause: zerrors.ErrNoSpace}
	}
	n := copy(b.storage[pos:pos+uint64(len(data))], data)
	return n, nil
}

// Append queues data against the zone starting at zoneStart; the write is
// only staged here, and only lands in storage once AppendSync is called,
// which is what makes out-of-order completion observable.
func (b *MemBackend) Append(data []byte, zoneStart uint64, log *LogHandle) (uint64, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.zoneIndex(zoneStart)
	if idx < 0 {
		return 0, 0, &zerrors.IOError{Op: "zone append", Cause: zerrors.ErrInvalidArgument}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.pending[log] = append(b.pending[log], pendingRecord{zoneIdx: idx, data: cp})
	return 0, len(data), nil
}

func (b *MemBackend) AppendSync(log *LogHandle) error {
	b.mu.Lock()
	recs := b.pending[log]
	delete(b.pending, log)
	reorder := b.reorder
	b.mu.Unlock()

	// Group consecutive records by target zone (a WAL only crosses a zone
	// boundary in submission order, so runs are already contiguous), then
	// permute the payload order within each run before physically writing
	// it — this is where "out-of-order completion" becomes observable.
	i := 0
	for i < len(recs) {
		j := i + 1
		for j < len(recs) && recs[j].zoneIdx == recs[i].zoneIdx {
			j++
		}
		run := recs[i:j]
		payloads := make([][]byte, len(run))
		for k, r := range run {
			payloads[k] = r.data
		}
		if reorder != nil {
			payloads = reorder(payloads)
		}

		b.mu.Lock()
		z := &b.zones[run[0].zoneIdx]
		for _, p := range payloads {
			if z.wp+uint64(len(p)) > uint64(len(b.storage)) {
				b.mu.Unlock()
				return &zerrors.IOError{Op: "append sync", Cause: zerrors.ErrNoSpace}
			}
			copy(b.storage[z.wp:z.wp+uint64(len(p))], p)
			z.wp += uint64(len(p))
		}
		b.mu.Unlock()

		i = j
	}
	return nil
}

func (b *MemBackend) NewLog() *LogHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextLogID++
	return &LogHandle{id: b.nextLogID}
}

func (b *MemBackend) InvalidateCache(pos, size uint64) {}

func (b *MemBackend) BlockSize() uint32 { return b.blockSize }
func (b *MemBackend) ZoneSize() uint64  { return b.zoneSize }
