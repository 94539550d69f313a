// ============================================================================
// zwalfs Zone File - THE CORE
// ============================================================================
//
// Package: internal/zonefile
// File: zonefile.go
// Purpose: The file object over a zoned block device: extent list, active
// zone, WAL sequence counter, barrier bookkeeping, reader chunk cache.
// Implements sparse-append, dense append, WAL read, chunked WAL recovery,
// metadata codec, and partial-tail recovery.
//
// On-media layout:
//   Dense extent:            payload (no header)
//   Sparse extent, non-WAL:  length:u64 LE || payload, padded to block
//   Sparse extent, WAL:      length:u64 LE || seq:u64 LE || payload, padded to block
//
// Concurrency: a writer/reader discipline backed by sync.RWMutex (native
// RW-lock per the redesign guidance, replacing the source's mutex + counter
// + busy-wait). open_for_wr is a separate exclusive gate held for the
// lifetime of a writer view.
// ============================================================================

package zonefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoneio/zwalfs/internal/allocator"
	"github.com/zoneio/zwalfs/internal/config"
	"github.com/zoneio/zwalfs/internal/oncelog"
	"github.com/zoneio/zwalfs/internal/zerrors"
	"github.com/zoneio/zwalfs/internal/zone"
)

const (
	// SparseHeaderSize is the length-prefix header for non-WAL sparse extents.
	SparseHeaderSize = 8
	// WALHeaderSize is the length+sequence header for WAL sparse extents.
	WALHeaderSize = 16
	// NoExtent marks extent_start_lba as "no active, partially-written extent".
	NoExtent = ^uint64(0)
)

// Extent is one contiguous run of a file's bytes lying in one zone.
// start_lba is the payload's device LBA, never its header's.
type Extent struct {
	StartLBA uint64
	Length   uint64
	Zone     *zone.Zone
}

// chunkEntry is one sequence-sorted WAL record resident in the read cache.
type chunkEntry struct {
	Seq   uint64
	Bytes []byte
}

// loadedChunk is the WAL reader's resident, sequence-sorted chunk of records.
type loadedChunk struct {
	start   uint64 // file-offset where this chunk's data begins
	end     uint64 // file-offset just past this chunk's data
	jump    uint64 // count of entries materialized by prior chunks
	entries []chunkEntry
}

// ZoneFile is the file object: an ordered extent list plus, for WAL files,
// sequence-numbered append/recover state.
type ZoneFile struct {
	cfg   *config.Config
	alloc *allocator.Allocator

	FileID      uint64
	LinkFiles   []string // hard-link names; primary is LinkFiles[0]
	IsSparse    bool
	IsWAL       bool
	IsDeleted   bool
	ModTime     time.Time
	LifetimeHint allocator.LifetimeHint

	mu              sync.RWMutex // writer excludes readers; readers share
	extents         []Extent
	activeZone      *zone.Zone
	extentStartLBA  uint64 // NO_EXTENT when cleanly closed
	extentFilePos   uint64
	fileSize        uint64
	nrSyncedExtents int
	padSz           uint64 // accumulated block-alignment padding, reported via Stat

	// WAL-only state.
	walSeq                  uint64 // atomic: next sequence to assign
	walHandle               *oncelog.OnceLog
	appendBytesSinceBarrier uint64
	chunk                   loadedChunk
	chunkID                 uint64
	readerOffset            uint64
	readerExtentIndex       int

	openForWrMu sync.Mutex
	openForWr   bool
}

// New creates an empty ZoneFile. primaryLink ending in ".log" together with
// isWAL=true is the contract the spec ties io_type==WAL to.
func New(cfg *config.Config, alloc *allocator.Allocator, fileID uint64, primaryLink string, isWAL, isSparse bool) *ZoneFile {
	return &ZoneFile{
		cfg:            cfg,
		alloc:          alloc,
		FileID:         fileID,
		LinkFiles:      []string{primaryLink},
		IsSparse:       isSparse,
		IsWAL:          isWAL,
		ModTime:        time.Now(),
		extentStartLBA: NoExtent,
	}
}

// OpenForWrite acquires the exclusive writer gate for the lifetime of a
// writer view; returns false if another writer already holds it.
func (f *ZoneFile) OpenForWrite() bool {
	f.openForWrMu.Lock()
	defer f.openForWrMu.Unlock()
	if f.openForWr {
		return false
	}
	f.openForWr = true
	return true
}

// CloseForWrite releases the exclusive writer gate.
func (f *ZoneFile) CloseForWrite() {
	f.openForWrMu.Lock()
	defer f.openForWrMu.Unlock()
	f.openForWr = false
}

func headerSize(isWAL bool) int {
	if isWAL {
		return WALHeaderSize
	}
	return SparseHeaderSize
}

// ensureActiveZone allocates a zone for this file's class if it has none.
func (f *ZoneFile) ensureActiveZone() error {
	if f.activeZone != nil {
		return nil
	}
	if f.IsWAL {
		z, log, err := f.alloc.AllocateWALZone(nil)
		if err != nil {
			return err
		}
		f.activeZone = z
		f.walHandle = log
		return nil
	}
	z, err := f.alloc.AllocateIOZone(f.LifetimeHint)
	if err != nil {
		return err
	}
	f.activeZone = z
	return nil
}

// closeActiveZone finishes the current zone and clears it so the next
// write allocates a fresh one. A finished zone has no partial tail left
// to recover, so extent_start_lba resets to NoExtent until the next
// active zone records a new checkpoint.
func (f *ZoneFile) closeActiveZone() error {
	if f.activeZone == nil {
		return nil
	}
	if err := f.activeZone.Close(); err != nil {
		return err
	}
	f.activeZone.Release()
	prev := f.activeZone
	f.activeZone = nil
	f.extentStartLBA = NoExtent
	if f.IsWAL {
		z, log, err := f.alloc.AllocateWALZone(prev)
		if err != nil {
			return err
		}
		f.activeZone = z
		f.walHandle = log
		return nil
	}
	z, err := f.alloc.AllocateIOZone(f.LifetimeHint)
	if err != nil {
		return err
	}
	f.activeZone = z
	return nil
}

func alignUp(n, block uint64) uint64 {
	if block == 0 {
		return n
	}
	rem := n % block
	if rem == 0 {
		return n
	}
	return n + (block - rem)
}

// SparseAppend is the write hot-path for WAL and sparse non-WAL files. buf
// must have headerSize reserved bytes at its start, followed by dataSize
// payload bytes; buf's capacity must include one block_size of spare tail
// for block-alignment padding. Per-iteration algorithm: §4.1.
//
// buf carries exactly one reserved header slot, at its front. When a
// clamp (barrier budget or zone capacity) forces more than one frame out
// of a single call, step 8 slides the not-yet-submitted payload back
// into that same slot before writing each subsequent frame's header,
// rather than writing the header over live payload bytes.
func (f *ZoneFile) SparseAppend(buf []byte, dataSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dataSize == 0 {
		return nil
	}

	hSize := headerSize(f.IsWAL)
	blockSize := uint64(f.cfg.Device.BlockSize)
	remaining := dataSize
	srcOffset := hSize // buf offset of the next not-yet-submitted payload byte

	for remaining > 0 {
		if err := f.ensureActiveZone(); err != nil {
			return err
		}

		if f.IsWAL && f.appendBytesSinceBarrier >= f.cfg.WAL.BarrierSize {
			if err := f.walSync(); err != nil {
				return err
			}
			f.appendBytesSinceBarrier = 0
		}

		capRemaining := f.activeZone.CapacityRemaining()
		wrSize := uint64(remaining + hSize)
		if capRemaining < wrSize {
			wrSize = capRemaining
		}
		if f.IsWAL {
			budget := f.cfg.WAL.BarrierSize - f.appendBytesSinceBarrier
			if budget < wrSize {
				wrSize = budget
			}
		}
		if wrSize < uint64(hSize) {
			return &zerrors.IOError{Op: "sparse append", Cause: zerrors.ErrNoSpace}
		}

		payload := int(wrSize) - hSize
		if payload > remaining {
			payload = remaining
		}

		if srcOffset != hSize {
			copy(buf[hSize:hSize+remaining], buf[srcOffset:srcOffset+remaining])
			srcOffset = hSize
		}

		frame := buf[0 : hSize+payload]
		padded := alignUp(uint64(len(frame)), blockSize)
		padLen := padded - uint64(len(frame))
		if padLen > 0 {
			frame = buf[0 : hSize+payload+int(padLen)]
			for i := hSize + payload; i < len(frame); i++ {
				frame[i] = 0
			}
		}
		f.padSz += padLen

		binary.LittleEndian.PutUint64(frame[0:8], uint64(payload))
		var seq uint64
		if f.IsWAL {
			seq = atomic.AddUint64(&f.walSeq, 1) - 1
			binary.LittleEndian.PutUint64(frame[8:16], seq)
		}

		var submitErr error
		if f.IsWAL {
			if submitErr = f.walHandle.AsyncAppend(frame, f.activeZone.Start); submitErr == nil {
				submitErr = f.activeZone.AdvanceForZoneAppend(uint64(len(frame)))
			}
			if submitErr == nil {
				f.appendBytesSinceBarrier += uint64(len(frame))
			}
		} else {
			submitErr = f.activeZone.Append(frame)
		}
		if submitErr != nil {
			return submitErr
		}

		extentStart := f.activeZone.WritePointer() - uint64(len(frame)) + uint64(hSize)
		f.extents = append(f.extents, Extent{StartLBA: extentStart, Length: uint64(payload), Zone: f.activeZone})
		f.activeZone.AddUsedCapacity(int64(payload))
		f.fileSize += uint64(payload)
		f.extentStartLBA = f.activeZone.WritePointer()

		srcOffset += payload
		remaining -= payload

		if f.activeZone.CapacityRemaining() == 0 {
			if err := f.closeActiveZone(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Append is the sequential-only dense write path: no header, uses
// Zone.Append, and on zone-full emits one extent before reallocating.
// Each write is zero-padded on media to the block size; the extent
// records the unpadded length.
func (f *ZoneFile) Append(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	blockSize := uint64(f.cfg.Device.BlockSize)
	remaining := data
	for len(remaining) > 0 {
		if err := f.ensureActiveZone(); err != nil {
			return err
		}
		capRemaining := f.activeZone.CapacityRemaining()
		n := uint64(len(remaining))
		if n > capRemaining {
			n = capRemaining
		}
		chunk := remaining[:n]
		if padded := alignUp(n, blockSize); padded != n {
			chunk = make([]byte, padded)
			copy(chunk, remaining[:n])
		}
		start := f.activeZone.WritePointer()
		if err := f.activeZone.Append(chunk); err != nil {
			return err
		}
		f.extents = append(f.extents, Extent{StartLBA: start, Length: n, Zone: f.activeZone})
		f.activeZone.AddUsedCapacity(int64(n))
		f.fileSize += n
		f.extentStartLBA = f.activeZone.WritePointer()
		remaining = remaining[n:]

		if f.activeZone.CapacityRemaining() == 0 {
			if err := f.closeActiveZone(); err != nil {
				return err
			}
		}
	}
	return nil
}

// walSync flushes the WAL handle to durability: AppendSync then Sync, per
// §4.2. Called on DataSync, on Close, and at each barrier boundary.
func (f *ZoneFile) walSync() error {
	if f.walHandle == nil {
		return nil
	}
	if err := f.walHandle.Sync(); err != nil {
		return fmt.Errorf("WAL sync error: %w", zerrors.ErrWALSyncFailed)
	}
	return nil
}

// DataSync forces a WAL barrier sync outside the normal append path
// (called by the writable-file view's Sync/RangeSync).
func (f *ZoneFile) DataSync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.IsWAL {
		return nil
	}
	return f.walSync()
}

// FileSize returns the current file size (bytes across all extents).
func (f *ZoneFile) FileSize() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fileSize
}

// WALSeq returns the next sequence number that will be assigned.
func (f *ZoneFile) WALSeq() uint64 {
	return atomic.LoadUint64(&f.walSeq)
}

// PositionedRead serves a non-WAL read directly from the extent list; no
// chunk cache involved since dense/sparse-non-WAL reads are positioned
// straight against on-media layout.
func (f *ZoneFile) PositionedRead(offset uint64, n int) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if offset >= f.fileSize {
		return nil, nil
	}
	remaining := n
	if uint64(remaining) > f.fileSize-offset {
		remaining = int(f.fileSize - offset)
	}
	out := make([]byte, 0, remaining)

	pos := uint64(0)
	for _, ext := range f.extents {
		if remaining == 0 {
			break
		}
		if pos+ext.Length <= offset {
			pos += ext.Length
			continue
		}
		skip := uint64(0)
		if offset > pos {
			skip = offset - pos
		}
		want := ext.Length - skip
		if uint64(remaining) < want {
			want = uint64(remaining)
		}
		buf := make([]byte, want)
		if _, err := ext.Zone.ReadAt(buf, ext.StartLBA+skip); err != nil {
			return nil, &zerrors.IOError{Op: "positioned read", Cause: err}
		}
		out = append(out, buf...)
		remaining -= int(want)
		pos += ext.Length
	}
	return out, nil
}

// WALPositionedRead implements §4.3: ensures the chunk covering offset is
// resident via TryRecoverWAL, then serves bytes out of the sorted
// in-memory chunk buffer.
func (f *ZoneFile) WALPositionedRead(offset uint64, n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if offset >= f.fileSize {
		return nil, nil
	}

	rSize := uint64(n)
	if rSize > f.fileSize-offset {
		rSize = f.fileSize - offset
	}

	out := make([]byte, 0, rSize)
	readOffset := offset
	for uint64(len(out)) < rSize {
		if err := f.tryRecoverWALLocked(readOffset); err != nil {
			return nil, err
		}
		if f.chunk.end <= readOffset {
			break
		}
		idx, devOffset, err := f.getWALEntry(readOffset)
		if err != nil {
			return nil, err
		}
		entry := f.chunk.entries[idx-f.chunk.jump]
		avail := uint64(len(entry.Bytes)) - devOffset
		want := rSize - uint64(len(out))
		if want > avail {
			want = avail
		}
		out = append(out, entry.Bytes[devOffset:devOffset+want]...)
		readOffset += want
		f.readerExtentIndex = idx
		f.readerOffset = devOffset + want
		if f.readerOffset >= uint64(len(entry.Bytes)) {
			f.readerExtentIndex++
			f.readerOffset = 0
		}
	}
	return out, nil
}

// getWALEntry resolves the chunk entry index and in-entry byte offset
// covering file-offset off by a linear search from the first entry of the
// resident chunk. The reader cursor saved by WALPositionedRead is not
// used as a starting point.
func (f *ZoneFile) getWALEntry(off uint64) (int, uint64, error) {
	if len(f.chunk.entries) == 0 {
		return 0, 0, &zerrors.CorruptionError{Reason: "no resident WAL chunk", Offset: -1}
	}
	pos := f.chunk.start
	for i, e := range f.chunk.entries {
		end := pos + uint64(len(e.Bytes))
		if off < end {
			return f.chunk.jump + i, off - pos, nil
		}
		pos = end
	}
	return 0, 0, &zerrors.CorruptionError{Reason: "WAL offset past resident chunk", Offset: int64(off)}
}

// TryRecoverWAL guarantees that after return, the resident chunk either
// covers offset or offset is past the end of the log. §4.5.
func (f *ZoneFile) TryRecoverWAL(offset uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tryRecoverWALLocked(offset)
}

func (f *ZoneFile) tryRecoverWALLocked(offset uint64) error {
	if offset > f.fileSize {
		offset = f.fileSize
	}

	for {
		if len(f.chunk.entries) > 0 && f.chunk.end > offset {
			return nil
		}

		if f.walHandle == nil {
			if len(f.extents) == 0 {
				return nil
			}
			f.walHandle = f.alloc.OpenWALZone(nil, f.extents[0].Zone)
		}

		blockShift := f.walHandle.BlockShift()
		barrier := f.cfg.WAL.BarrierSize
		tail := f.walHandle.WriteTail() << blockShift
		head := f.walHandle.WriteHead() << blockShift

		lbaIn := tail + f.chunkID*barrier
		lbaOut := lbaIn + barrier
		if lbaIn < tail {
			lbaIn = tail
		}
		if lbaOut > head {
			lbaOut = head
		}
		if lbaIn >= lbaOut {
			return nil
		}

		entries, err := f.recoverWALChunk(lbaIn, lbaOut, tail)
		if err != nil {
			return err
		}

		f.chunk.jump += uint64(len(f.chunk.entries))
		f.chunk.start = f.chunk.end
		var sum uint64
		for _, e := range entries {
			sum += uint64(len(e.Bytes))
		}
		f.chunk.end += sum
		f.chunk.entries = entries
		f.chunkID++
	}
}

// recoverWALChunk reads [begin,end) from the WAL handle and decodes
// sequence-numbered records, sorting the result by seq ascending. §4.5.
func (f *ZoneFile) recoverWALChunk(begin, end, tailByte uint64) ([]chunkEntry, error) {
	blockShift := f.walHandle.BlockShift()
	raw := make([]byte, end-begin)
	if _, err := f.walHandle.Read(begin>>blockShift, raw, false); err != nil {
		return nil, &zerrors.IOError{Op: "WAL read I/O", Cause: err}
	}

	var entries []chunkEntry
	cursor := uint64(0)
	for cursor+WALHeaderSize <= uint64(len(raw)) {
		length := binary.LittleEndian.Uint64(raw[cursor : cursor+8])
		seq := binary.LittleEndian.Uint64(raw[cursor+8 : cursor+16])
		if length == 0 {
			break
		}
		if seq == 0 && begin > tailByte {
			break
		}
		start := cursor + WALHeaderSize
		end2 := start + length
		if end2 > uint64(len(raw)) {
			return nil, &zerrors.CorruptionError{Reason: "WAL record overshoot", Offset: int64(begin + cursor)}
		}
		payload := make([]byte, length)
		copy(payload, raw[start:end2])
		entries = append(entries, chunkEntry{Seq: seq, Bytes: payload})
		consumed := alignUp(WALHeaderSize+length, uint64(f.cfg.Device.BlockSize))
		cursor += consumed
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

// Recover reconstructs a partial tail left by a crash before metadata was
// persisted: walks the active zone from extent_start using the zone's
// current write pointer. §4.7.
func (f *ZoneFile) Recover() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.extentStartLBA == NoExtent {
		return nil
	}

	z := f.alloc.GetIOZone(f.extentStartLBA)
	if z == nil {
		z = f.alloc.GetWALZone(f.extentStartLBA)
	}
	if z == nil {
		return &zerrors.IOError{Op: "recover", Cause: zerrors.ErrInvalidArgument}
	}

	wp := z.WritePointer()
	if wp < f.extentStartLBA {
		return &zerrors.IOError{Op: "recover", Cause: zerrors.ErrInvalidArgument}
	}
	toRecover := wp - f.extentStartLBA
	if toRecover == 0 {
		f.extentStartLBA = NoExtent
		return nil
	}

	if f.IsSparse {
		if err := f.recoverSparseExtents(f.extentStartLBA, wp, z); err != nil {
			return err
		}
	} else {
		f.extents = append(f.extents, Extent{StartLBA: f.extentStartLBA, Length: toRecover, Zone: z})
	}

	f.extentStartLBA = NoExtent
	var total uint64
	for _, e := range f.extents {
		total += e.Length
	}
	f.fileSize = total
	return nil
}

// recoverSparseExtents walks a zone decoding per-extent headers
// block-by-block, recovering the max observed WAL sequence along the way.
func (f *ZoneFile) recoverSparseExtents(start, writePointer uint64, z *zone.Zone) error {
	hSize := uint64(headerSize(f.IsWAL))
	blockSize := uint64(f.cfg.Device.BlockSize)

	var maxSeq uint64
	next := start
	for next < writePointer {
		hdr := make([]byte, hSize)
		if _, err := z.ReadAt(hdr, next); err != nil {
			return &zerrors.IOError{Op: "recover sparse extents", Cause: err}
		}
		length := binary.LittleEndian.Uint64(hdr[0:8])
		if length == 0 {
			break
		}
		if f.IsWAL {
			seq := binary.LittleEndian.Uint64(hdr[8:16])
			if seq > maxSeq {
				maxSeq = seq
			}
		}
		f.extents = append(f.extents, Extent{StartLBA: next + hSize, Length: length, Zone: z})
		next += alignUp(hSize+length, blockSize)
	}

	if f.IsWAL {
		cur := atomic.LoadUint64(&f.walSeq)
		if maxSeq+1 > cur {
			atomic.StoreUint64(&f.walSeq, maxSeq+1)
		}
	}
	return nil
}

// EncodeTo emits this file's metadata as a tagged field stream, starting
// extent emission at extentStartIndex (used for incremental metadata
// journaling of only the new extents since the last sync). §4.6.
func (f *ZoneFile) EncodeTo(out *bytes.Buffer, extentStartIndex int) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	putTag := func(tag uint32) { binary.Write(out, binary.LittleEndian, tag) }
	putU64 := func(v uint64) { binary.Write(out, binary.LittleEndian, v) }

	putTag(tagFileID)
	putU64(f.FileID)
	putTag(tagFileSize)
	putU64(f.fileSize)
	putTag(tagWriteLifeTimeHint)
	putU64(uint64(f.LifetimeHint))

	for i := extentStartIndex; i < len(f.extents); i++ {
		ext := f.extents[i]
		putTag(tagExtent)
		putU64(ext.StartLBA)
		putU64(ext.Length)
	}

	if f.IsWAL {
		putTag(tagWALSeq)
		putU64(atomic.LoadUint64(&f.walSeq))
	}

	putTag(tagModificationTime)
	putU64(uint64(f.ModTime.Unix()))

	putTag(tagActiveExtentStart)
	putU64(f.extentStartLBA)

	if f.IsSparse {
		putTag(tagIsSparse)
		putU64(1)
	}

	for _, link := range f.LinkFiles {
		putTag(tagLinkedFilename)
		putU64(uint64(len(link)))
		out.WriteString(link)
	}
	return nil
}

// DecodeFrom parses a tagged field stream produced by EncodeTo, resolving
// each extent against the allocator by LBA and lazily binding the WAL
// handle the first time an extent maps to a known zone. §4.6.
func (f *ZoneFile) DecodeFrom(in []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := bytes.NewReader(in)
	readTag := func() (uint32, bool) {
		var tag uint32
		if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
			return 0, false
		}
		return tag, true
	}
	readU64 := func() (uint64, error) {
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, &zerrors.CorruptionError{Reason: "truncated field", Offset: -1}
		}
		return v, nil
	}

	first := true
	for {
		tag, ok := readTag()
		if !ok {
			break
		}
		if first && tag != tagFileID {
			return &zerrors.CorruptionError{Reason: "metadata must begin with FileID", Offset: -1}
		}
		first = false

		switch tag {
		case tagFileID:
			v, err := readU64()
			if err != nil {
				return err
			}
			f.FileID = v
		case tagFileSize:
			v, err := readU64()
			if err != nil {
				return err
			}
			f.fileSize = v
		case tagWriteLifeTimeHint:
			v, err := readU64()
			if err != nil {
				return err
			}
			f.LifetimeHint = allocator.LifetimeHint(v)
		case tagExtent:
			startLBA, err := readU64()
			if err != nil {
				return err
			}
			length, err := readU64()
			if err != nil {
				return err
			}
			z := f.alloc.GetIOZone(startLBA)
			if z == nil {
				z = f.alloc.GetWALZone(startLBA)
			}
			if z == nil {
				return &zerrors.CorruptionError{Reason: "Invalid zone extent", Offset: int64(startLBA)}
			}
			f.extents = append(f.extents, Extent{StartLBA: startLBA, Length: length, Zone: z})
			pad := uint64(4096) - length%4096
			if pad == 4096 {
				pad = 0
			}
			f.padSz += pad
			if f.walHandle == nil {
				if log := f.alloc.GetWAL(startLBA); log != nil {
					f.walHandle = log
				}
			}
		case tagWALSeq:
			v, err := readU64()
			if err != nil {
				return err
			}
			f.IsWAL = true
			atomic.StoreUint64(&f.walSeq, v)
		case tagModificationTime:
			v, err := readU64()
			if err != nil {
				return err
			}
			f.ModTime = time.Unix(int64(v), 0)
		case tagActiveExtentStart:
			v, err := readU64()
			if err != nil {
				return err
			}
			f.extentStartLBA = v
		case tagIsSparse:
			if _, err := readU64(); err != nil {
				return err
			}
			f.IsSparse = true
		case tagLinkedFilename:
			n, err := readU64()
			if err != nil {
				return err
			}
			name := make([]byte, n)
			if _, err := r.Read(name); err != nil {
				return &zerrors.CorruptionError{Reason: "truncated link name", Offset: -1}
			}
			f.LinkFiles = append(f.LinkFiles, string(name))
		default:
			return &zerrors.CorruptionError{Reason: "Unexpected tag", Offset: -1}
		}
	}
	return nil
}

// MergeUpdate applies one metadata delta against this file (the base
// snapshot). replace=true clears extents before appending the update's —
// an upsert-replace entry point used only by specific metadata-journal
// paths; callers must ensure the precondition (this is a full republish,
// not an incremental one) before setting it.
func (f *ZoneFile) MergeUpdate(update *ZoneFile, replace bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if update.FileID != f.FileID {
		return &zerrors.CorruptionError{Reason: "MergeUpdate file id mismatch", Offset: -1}
	}

	f.fileSize = update.fileSize
	f.LifetimeHint = update.LifetimeHint
	f.ModTime = update.ModTime

	if update.WALSeq() > f.WALSeq() {
		atomic.StoreUint64(&f.walSeq, update.WALSeq())
	}

	if replace {
		f.extents = append([]Extent(nil), update.extents...)
	} else {
		f.extents = append(f.extents, update.extents...)
	}
	f.LinkFiles = append([]string(nil), update.LinkFiles...)
	return nil
}

// Stat reports a point-in-time snapshot of file bookkeeping exposed to
// callers: live WAL size in blocks (head - tail) and accumulated padding.
type Stat struct {
	FileID       uint64
	FileSize     uint64
	NumExtents   int
	PadBytes     uint64
	IsWAL        bool
	WALSeq       uint64
	WALLiveBlocks uint64
}

func (f *ZoneFile) Stat() Stat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Stat{
		FileID:     f.FileID,
		FileSize:   f.fileSize,
		NumExtents: len(f.extents),
		PadBytes:   f.padSz,
		IsWAL:      f.IsWAL,
		WALSeq:     atomic.LoadUint64(&f.walSeq),
	}
	if f.IsWAL && f.walHandle != nil {
		s.WALLiveBlocks = f.walHandle.WriteHead() - f.walHandle.WriteTail()
	}
	return s
}

// Close syncs data (WAL files only), releases the write lock and the
// active zone. It does not persist metadata: encoding is EncodeTo, and no
// package in this repo journals the result. A clean close leaves no
// partial tail behind, so extent_start_lba resets to NoExtent.
func (f *ZoneFile) Close() error {
	f.mu.Lock()
	if f.IsWAL {
		if err := f.walSync(); err != nil {
			f.mu.Unlock()
			return err
		}
	}
	z := f.activeZone
	f.activeZone = nil
	f.extentStartLBA = NoExtent
	f.mu.Unlock()

	if z != nil {
		if err := z.Close(); err != nil {
			return err
		}
		z.Release()
	}
	f.CloseForWrite()
	return nil
}

const (
	tagFileID            = 1
	tagFileSize          = 3
	tagWriteLifeTimeHint = 4
	tagExtent            = 5
	tagModificationTime  = 6
	tagActiveExtentStart = 7
	tagIsSparse          = 8
	tagLinkedFilename    = 9
	tagWALSeq            = 10
)
