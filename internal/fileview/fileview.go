// ============================================================================
// zwalfs File Views
// ============================================================================
//
// Package: internal/fileview
// File: fileview.go
// Purpose: Stateless adapters over a shared *zonefile.ZoneFile providing the
// outward file API: WritableFile, SequentialFile, RandomAccessFile. Dispatch
// is by adapter variant, not by subclassing the underlying file (§9 design
// note on polymorphism over file variants).
// ============================================================================

package fileview

import (
	"github.com/zoneio/zwalfs/internal/allocator"
	"github.com/zoneio/zwalfs/internal/config"
	"github.com/zoneio/zwalfs/internal/zerrors"
	"github.com/zoneio/zwalfs/internal/zonefile"
)

// WritableFile buffers small writes and routes flushes into SparseAppend
// (WAL/sparse files) or Append (dense files), per §4.8.
type WritableFile struct {
	file       *zonefile.ZoneFile
	cfg        *config.Config
	headerSize int    // 0 dense, 8 non-WAL sparse, 16 WAL
	payloadCap int    // max buffered payload bytes before a flush
	buffer     []byte // payload only; header is prepended at flush time
	wp         uint64 // tracked write pointer for PositionedAppend validation
}

// NewWritableFile opens f for writing, taking the exclusive writer gate.
func NewWritableFile(f *zonefile.ZoneFile, cfg *config.Config) (*WritableFile, error) {
	if !f.OpenForWrite() {
		return nil, &zerrors.IOError{Op: "open writable file", Cause: zerrors.ErrZoneBusy}
	}
	w := &WritableFile{file: f, cfg: cfg}
	switch {
	case f.IsWAL:
		w.headerSize = 16
		w.payloadCap = int(cfg.WAL.SparseBufferSize)
	case f.IsSparse:
		w.headerSize = 8
		w.payloadCap = int(cfg.WAL.SparseBufferSize)
	default:
		w.payloadCap = 1 << 20
	}
	w.buffer = make([]byte, 0, w.payloadCap)
	return w, nil
}

// SetWriteLifeTimeHint propagates a lifetime classification to the
// allocator on the next zone allocation for this file.
func (w *WritableFile) SetWriteLifeTimeHint(hint allocator.LifetimeHint) {
	w.file.LifetimeHint = hint
}

// Append buffers data; once the sparse/dense buffer fills, FlushBuffer is
// invoked automatically.
func (w *WritableFile) Append(data []byte) error {
	remaining := data
	for len(remaining) > 0 {
		room := w.payloadCap - len(w.buffer)
		if room <= 0 {
			if err := w.FlushBuffer(); err != nil {
				return err
			}
			room = w.payloadCap
		}
		n := len(remaining)
		if n > room {
			n = room
		}
		w.buffer = append(w.buffer, remaining[:n]...)
		remaining = remaining[n:]
	}
	return nil
}

// FlushBuffer drains the current buffer through SparseAppend (WAL/sparse)
// or Append (dense).
func (w *WritableFile) FlushBuffer() error {
	if len(w.buffer) == 0 {
		return nil
	}
	var err error
	if w.file.IsSparse {
		blockSize := int(w.cfg.Device.BlockSize)
		frame := make([]byte, w.headerSize+len(w.buffer), w.headerSize+len(w.buffer)+blockSize)
		copy(frame[w.headerSize:], w.buffer)
		err = w.file.SparseAppend(frame, len(w.buffer))
	} else {
		err = w.file.Append(w.buffer)
	}
	w.buffer = w.buffer[:0]
	return err
}

// PositionedAppend requires offset == the current write pointer.
func (w *WritableFile) PositionedAppend(offset uint64, data []byte) error {
	if offset != w.wp {
		return &zerrors.IOError{Op: "positioned append", Cause: zerrors.ErrPositionMismatch}
	}
	if err := w.Append(data); err != nil {
		return err
	}
	w.wp += uint64(len(data))
	return nil
}

// Sync flushes buffered data and forces a WAL barrier sync; it does not
// persist metadata.
func (w *WritableFile) Sync() error {
	if err := w.FlushBuffer(); err != nil {
		return err
	}
	return w.file.DataSync()
}

// RangeSync flushes data only, when the write pointer has not yet reached
// offset+nbytes.
func (w *WritableFile) RangeSync(offset, nbytes uint64) error {
	if w.file.FileSize() < offset+nbytes {
		return w.Sync()
	}
	return nil
}

// Fsync flushes data exactly as Sync does; it does not persist metadata.
func (w *WritableFile) Fsync() error {
	return w.Sync()
}

// Close syncs data, releases the write lock and active zone.
func (w *WritableFile) Close() error {
	if err := w.FlushBuffer(); err != nil {
		return err
	}
	return w.file.Close()
}

// Truncate is unsupported: zone-append files never support non-sequential
// edits (Non-goal: compatibility with non-sequential random writes).
func (w *WritableFile) Truncate(uint64) error {
	return &zerrors.IOError{Op: "truncate", Cause: zerrors.ErrNotSupported}
}

// InvalidateCache is advisory; no-op over this file's own in-memory state.
func (w *WritableFile) InvalidateCache(uint64, uint64) {}

// SequentialFile reads forward-only, tracking its own offset.
type SequentialFile struct {
	file   *zonefile.ZoneFile
	offset uint64
}

// NewSequentialFile opens f for forward-only reads.
func NewSequentialFile(f *zonefile.ZoneFile) *SequentialFile {
	return &SequentialFile{file: f}
}

// Read returns up to n bytes starting from the file's current offset,
// advancing it by the number of bytes returned.
func (s *SequentialFile) Read(n int) ([]byte, error) {
	var (
		out []byte
		err error
	)
	if s.file.IsWAL {
		out, err = s.file.WALPositionedRead(s.offset, n)
	} else {
		out, err = s.file.PositionedRead(s.offset, n)
	}
	if err != nil {
		return nil, err
	}
	s.offset += uint64(len(out))
	return out, nil
}

// Skip advances the offset without reading; past EOF is InvalidArgument.
func (s *SequentialFile) Skip(n uint64) error {
	if s.offset+n > s.file.FileSize() {
		return &zerrors.IOError{Op: "skip", Cause: zerrors.ErrInvalidArgument}
	}
	s.offset += n
	return nil
}

// RandomAccessFile reads at caller-specified offsets.
type RandomAccessFile struct {
	file *zonefile.ZoneFile
}

// NewRandomAccessFile opens f for positioned reads.
func NewRandomAccessFile(f *zonefile.ZoneFile) *RandomAccessFile {
	return &RandomAccessFile{file: f}
}

// Read returns up to n bytes starting at offset.
func (r *RandomAccessFile) Read(offset uint64, n int) ([]byte, error) {
	if r.file.IsWAL {
		return r.file.WALPositionedRead(offset, n)
	}
	return r.file.PositionedRead(offset, n)
}

// InvalidateCache is advisory.
func (r *RandomAccessFile) InvalidateCache(uint64, uint64) {}
