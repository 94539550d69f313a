// ============================================================================
// zwalfs Once-Log Handle
// ============================================================================
//
// Package: internal/oncelog
// File: oncelog.go
// Purpose: Append-only log abstraction spanning one or more zones, with
// monotonic head/tail pointers expressed in blocks.
//
// A OnceLog is "once" in the sense that it is written strictly forward:
// AsyncAppend submits writes that land wherever the device chooses (via
// zone append) and only advances the head; Sync is the sole happens-before
// relative to later reads. Multiple ZoneFiles may share the zones backing
// one handle, but each WAL file owns exactly one handle.
//
// Invariant: write_tail <= write_head; head - tail is the live data extent
// in blocks.
// ============================================================================

package oncelog

import (
	"sync"

	"github.com/zoneio/zwalfs/internal/zbd"
	"github.com/zoneio/zwalfs/internal/zerrors"
)

// pendingToken is a completion token for one AsyncAppend call; Sync awaits
// every outstanding token before calling the backend's AppendSync, with one
// buffered channel per token carrying that submission's error.
type pendingToken struct {
	done chan error
}

// OnceLog is the append-only log over a span of zones.
type OnceLog struct {
	backend    zbd.Backend
	blockShift uint // 9 for 512B blocks, 12 for 4KiB blocks
	handle     *zbd.LogHandle

	mu          sync.Mutex
	writeHead   uint64 // next write position, in blocks
	writeTail   uint64 // oldest valid position, in blocks
	outstanding []*pendingToken
}

// New creates a OnceLog over an empty span. blockSize must be 512 or 4096.
func New(backend zbd.Backend, handle *zbd.LogHandle, blockSize uint32) *OnceLog {
	shift := uint(12)
	if blockSize == 512 {
		shift = 9
	}
	return &OnceLog{
		backend:    backend,
		blockShift: shift,
		handle:     handle,
	}
}

// BlockShift exposes the log's block-size shift (9 or 12).
func (l *OnceLog) BlockShift() uint {
	return l.blockShift
}

// WriteHead returns the next write position in blocks.
func (l *OnceLog) WriteHead() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeHead
}

// WriteTail returns the oldest valid position in blocks.
func (l *OnceLog) WriteTail() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeTail
}

// AsyncAppend submits a non-blocking append against the zone starting at
// zoneStart and returns once the write is queued, not once it completes.
// The caller (ZoneFile, passing its current active zone's start) supplies
// zoneStart since a WAL file's log outlives any single zone: rolling to a
// fresh zone mid-file changes the target without changing the handle.
// The device may complete several in-flight appends in any order; only
// Sync establishes ordering.
func (l *OnceLog) AsyncAppend(data []byte, zoneStart uint64) error {
	l.mu.Lock()
	blocks := (uint64(len(data)) + (1 << l.blockShift) - 1) >> l.blockShift
	l.writeHead += blocks
	tok := &pendingToken{done: make(chan error, 1)}
	l.outstanding = append(l.outstanding, tok)
	l.mu.Unlock()

	_, _, err := l.backend.Append(data, zoneStart, l.handle)
	tok.done <- err
	close(tok.done)
	return err
}

// Sync awaits every outstanding AsyncAppend completion and then flushes the
// backend to durability. This is the sole happens-before relationship
// between writers and later readers of the log.
func (l *OnceLog) Sync() error {
	l.mu.Lock()
	tokens := l.outstanding
	l.outstanding = nil
	l.mu.Unlock()

	var firstErr error
	for _, tok := range tokens {
		if err := <-tok.done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return &zerrors.IOError{Op: "oncelog sync", Cause: firstErr}
	}

	if err := l.backend.AppendSync(l.handle); err != nil {
		return &zerrors.IOError{Op: "oncelog sync", Cause: err}
	}
	return nil
}

// Read reads len(buf) bytes starting at the given block index.
func (l *OnceLog) Read(blockIdx uint64, buf []byte, direct bool) (int, error) {
	pos := blockIdx << l.blockShift
	n, err := l.backend.Read(buf, pos, direct)
	if err != nil {
		return n, &zerrors.IOError{Op: "oncelog read", Cause: err}
	}
	return n, nil
}

// ResetAll reclaims the entire log: head and tail both return to zero, and
// the next append restarts sequencing from whatever sequence counter the
// owning file already holds (the log itself carries no sequence state).
func (l *OnceLog) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeHead = 0
	l.writeTail = 0
	l.outstanding = nil
}

// AdvanceTail moves the tail forward, typically once a barrier's data has
// been fully consumed by every reader and its zones are eligible for reset.
func (l *OnceLog) AdvanceTail(blocks uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeTail += blocks
	if l.writeTail > l.writeHead {
		l.writeTail = l.writeHead
	}
}
