package fileview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneio/zwalfs/internal/allocator"
	"github.com/zoneio/zwalfs/internal/config"
	"github.com/zoneio/zwalfs/internal/zbd"
	"github.com/zoneio/zwalfs/internal/zonefile"
)

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Device.BlockSize = 512
	cfg.Device.ZoneSize = 4096
	cfg.WAL.SparseBufferSize = 512
	cfg.WAL.BarrierSize = 4096
	return cfg
}

func newDenseZoneFile(t *testing.T, numZones int) *zonefile.ZoneFile {
	t.Helper()
	cfg := newTestConfig()
	backend := zbd.NewMemBackend(numZones, cfg.Device.ZoneSize, cfg.Device.ZoneSize, cfg.Device.BlockSize)
	_, _, err := backend.Open(false, true)
	require.NoError(t, err)
	alloc := allocator.New(backend)
	zones, err := backend.ListZones()
	require.NoError(t, err)
	for _, z := range zones {
		alloc.AddIOZone(z)
	}
	return zonefile.New(cfg, alloc, 1, "data.sst", false, false)
}

func newSparseZoneFile(t *testing.T, numZones int) *zonefile.ZoneFile {
	t.Helper()
	cfg := newTestConfig()
	backend := zbd.NewMemBackend(numZones, cfg.Device.ZoneSize, cfg.Device.ZoneSize, cfg.Device.BlockSize)
	_, _, err := backend.Open(false, true)
	require.NoError(t, err)
	alloc := allocator.New(backend)
	zones, err := backend.ListZones()
	require.NoError(t, err)
	for _, z := range zones {
		alloc.AddIOZone(z)
	}
	return zonefile.New(cfg, alloc, 1, "sparse.dat", false, true)
}

func newWALZoneFile(t *testing.T, numZones int) *zonefile.ZoneFile {
	t.Helper()
	cfg := newTestConfig()
	backend := zbd.NewMemBackend(numZones, cfg.Device.ZoneSize, cfg.Device.ZoneSize, cfg.Device.BlockSize)
	_, _, err := backend.Open(false, true)
	require.NoError(t, err)
	alloc := allocator.New(backend)
	zones, err := backend.ListZones()
	require.NoError(t, err)
	for _, z := range zones {
		alloc.AddWALZone(z)
	}
	return zonefile.New(cfg, alloc, 1, "wal.log", true, true)
}

func TestNewWritableFile_IsExclusive(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	defer w.Close()

	_, err = NewWritableFile(f, newTestConfig())
	assert.Error(t, err, "a second writable view over the same file must be rejected")
}

func TestWritableFile_Append_FlushesOnlyWhenBufferFills(t *testing.T) {
	f := newSparseZoneFile(t, 2)
	cfg := newTestConfig()
	w, err := NewWritableFile(f, cfg)
	require.NoError(t, err)

	data := make([]byte, cfg.WAL.SparseBufferSize+10)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, w.Append(data))

	assert.Equal(t, cfg.WAL.SparseBufferSize, f.FileSize(), "exactly one payloadCap's worth should have auto-flushed")

	require.NoError(t, w.Close())
	assert.Equal(t, uint64(len(data)), f.FileSize(), "Close must flush the remaining buffered tail")
}

func TestWritableFile_PositionedAppend_RejectsOffsetMismatch(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	defer w.Close()

	err = w.PositionedAppend(5, []byte("x"))
	assert.Error(t, err)
}

func TestWritableFile_PositionedAppend_AdvancesWritePointerOnMatch(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.PositionedAppend(0, []byte("abc")))
	require.NoError(t, w.PositionedAppend(3, []byte("def")))
	assert.Error(t, w.PositionedAppend(3, []byte("ghi")), "offset must match the new write pointer, not the old one")
}

func TestWritableFile_Sync_FlushesBufferAndSyncsWAL(t *testing.T) {
	f := newWALZoneFile(t, 2)
	cfg := newTestConfig()
	w, err := NewWritableFile(f, cfg)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append([]byte("payload")))
	require.NoError(t, w.Sync())

	ra := NewRandomAccessFile(f)
	out, err := ra.Read(0, len("payload"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), out)
}

func TestWritableFile_RangeSync_FlushesWhenWritePointerBehindRange(t *testing.T) {
	f := newDenseZoneFile(t, 2)
	cfg := newTestConfig()
	w, err := NewWritableFile(f, cfg)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append([]byte("unflushed")))
	assert.Equal(t, uint64(0), f.FileSize(), "small dense writes stay buffered until the 1MiB cap or an explicit flush")

	require.NoError(t, w.RangeSync(0, uint64(len("unflushed"))))
	assert.Equal(t, uint64(len("unflushed")), f.FileSize())
}

func TestWritableFile_RangeSync_NoopWhenAlreadyWritten(t *testing.T) {
	f := newDenseZoneFile(t, 2)
	cfg := newTestConfig()
	w, err := NewWritableFile(f, cfg)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append([]byte("data")))
	require.NoError(t, w.FlushBuffer())
	sizeAfterFlush := f.FileSize()

	require.NoError(t, w.RangeSync(0, 1))
	assert.Equal(t, sizeAfterFlush, f.FileSize())
}

func TestWritableFile_Truncate_ReturnsNotSupported(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.Truncate(0))
}

func TestWritableFile_Close_ReleasesWriterGate(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w2, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err, "Close must release the writer gate so a new writer can open")
	defer w2.Close()
}

func TestSequentialFile_ReadAdvancesOffset(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("abcdefgh")))
	require.NoError(t, w.Close())

	s := NewSequentialFile(f)
	first, err := s.Read(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), first)

	second, err := s.Read(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("efgh"), second)
}

func TestSequentialFile_Skip_AdvancesWithinBounds(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("abcdefgh")))
	require.NoError(t, w.Close())

	s := NewSequentialFile(f)
	require.NoError(t, s.Skip(4))
	out, err := s.Read(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("efgh"), out)
}

func TestSequentialFile_Skip_PastEOFIsInvalidArgument(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("abc")))
	require.NoError(t, w.Close())

	s := NewSequentialFile(f)
	assert.Error(t, s.Skip(100))
}

func TestRandomAccessFile_Read_DenseFile(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("random access bytes")))
	require.NoError(t, w.Close())

	ra := NewRandomAccessFile(f)
	out, err := ra.Read(7, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("access"), out)
}

func TestWritableFile_SetWriteLifeTimeHint_PropagatesToFile(t *testing.T) {
	f := newDenseZoneFile(t, 1)
	w, err := NewWritableFile(f, newTestConfig())
	require.NoError(t, err)
	defer w.Close()

	w.SetWriteLifeTimeHint(allocator.LifetimeLong)
	assert.Equal(t, allocator.LifetimeLong, f.LifetimeHint)
}
