package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneio/zwalfs/internal/zbd"
)

func newTestZone(t *testing.T) (*Zone, zbd.Backend) {
	t.Helper()
	backend := zbd.NewMemBackend(2, 4096, 4096, 512)
	_, _, err := backend.Open(false, true)
	require.NoError(t, err)
	return New(backend, 0, 4096, 4096, ClassIO), backend
}

func TestZone_AcquireRelease(t *testing.T) {
	z, _ := newTestZone(t)
	assert.True(t, z.Acquire())
	assert.False(t, z.Acquire(), "second Acquire should fail while held")
	z.Release()
	assert.True(t, z.Acquire(), "Acquire should succeed again after Release")
}

func TestZone_AppendAdvancesWritePointerAndCapacity(t *testing.T) {
	z, _ := newTestZone(t)
	data := make([]byte, 512)
	require.NoError(t, z.Append(data))
	assert.Equal(t, uint64(512), z.WritePointer())
	assert.Equal(t, uint64(4096-512), z.CapacityRemaining())
}

func TestZone_AppendRejectsOverCapacity(t *testing.T) {
	z, _ := newTestZone(t)
	err := z.Append(make([]byte, 8192))
	assert.Error(t, err)
}

func TestZone_AdvanceForZoneAppend(t *testing.T) {
	z, _ := newTestZone(t)
	require.NoError(t, z.AdvanceForZoneAppend(1024))
	assert.Equal(t, uint64(1024), z.WritePointer())
	assert.Equal(t, uint64(4096-1024), z.CapacityRemaining())

	err := z.AdvanceForZoneAppend(1<<32)
	assert.Error(t, err)
}

func TestZone_UsedCapacityAccounting(t *testing.T) {
	z, _ := newTestZone(t)
	z.AddUsedCapacity(100)
	z.AddUsedCapacity(50)
	assert.Equal(t, uint64(150), z.UsedCapacity())
	z.AddUsedCapacity(-60)
	assert.Equal(t, uint64(90), z.UsedCapacity())
}

func TestZone_IsFull(t *testing.T) {
	z, _ := newTestZone(t)
	assert.False(t, z.IsFull())
	require.NoError(t, z.AdvanceForZoneAppend(4096))
	assert.True(t, z.IsFull())
}

func TestZone_CloseAndReset(t *testing.T) {
	z, _ := newTestZone(t)
	require.NoError(t, z.Append(make([]byte, 512)))
	assert.False(t, z.Finished())
	require.NoError(t, z.Close())
	assert.True(t, z.Finished())

	require.NoError(t, z.Reset())
	assert.False(t, z.Finished())
	assert.Equal(t, uint64(0), z.WritePointer()-z.Start)
	assert.Equal(t, z.Capacity, z.CapacityRemaining())
}

func TestZone_ReadAtRoundTrip(t *testing.T) {
	z, _ := newTestZone(t)
	payload := []byte("abcdefgh")
	padded := make([]byte, 512)
	copy(padded, payload)
	require.NoError(t, z.Append(padded))

	out := make([]byte, 512)
	n, err := z.ReadAt(out, 0)
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.Equal(t, payload, out[:len(payload)])
}

func TestSet_AddAllFind(t *testing.T) {
	s := NewSet()
	backend := zbd.NewMemBackend(2, 4096, 4096, 512)
	_, _, err := backend.Open(false, true)
	require.NoError(t, err)

	z0 := New(backend, 0, 4096, 4096, ClassIO)
	z1 := New(backend, 4096, 4096, 4096, ClassWAL)
	s.Add(z0)
	s.Add(z1)

	assert.Len(t, s.All(), 2)
	assert.Same(t, z0, s.Find(10))
	assert.Same(t, z1, s.Find(4096+10))
	assert.Nil(t, s.Find(100000))
}
