package zbd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemBackend_ListZones(t *testing.T) {
	b := NewMemBackend(4, 4096, 4096, 512)
	_, _, err := b.Open(false, true)
	require.NoError(t, err)

	zones, err := b.ListZones()
	require.NoError(t, err)
	require.Len(t, zones, 4)
	for i, z := range zones {
		assert.Equal(t, uint64(i)*4096, z.Start)
		assert.False(t, z.Full)
	}
}

func TestMemBackend_WriteReadRoundTrip(t *testing.T) {
	b := NewMemBackend(2, 4096, 4096, 512)
	_, _, err := b.Open(false, true)
	require.NoError(t, err)

	data := make([]byte, 512)
	copy(data, []byte("payload"))
	_, err = b.Write(data, 0)
	require.NoError(t, err)

	out := make([]byte, 512)
	_, err = b.Read(out, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), out[:len("payload")])
}

func TestMemBackend_WriteRejectsMisalignedOffset(t *testing.T) {
	b := NewMemBackend(2, 4096, 4096, 512)
	_, _, err := b.Open(false, true)
	require.NoError(t, err)

	_, err = b.Write(make([]byte, 100), 10)
	assert.Error(t, err)
}

func TestMemBackend_AppendOnlyLandsOnSync(t *testing.T) {
	b := NewMemBackend(2, 4096, 4096, 512)
	_, _, err := b.Open(false, true)
	require.NoError(t, err)
	log := b.NewLog()

	payload := make([]byte, 512)
	copy(payload, []byte("queued"))
	_, _, err = b.Append(payload, 0, log)
	require.NoError(t, err)

	out := make([]byte, 512)
	_, _ = b.Read(out, 0, false)
	assert.NotEqual(t, []byte("queued"), out[:len("queued")], "Append must not land bytes before AppendSync")

	require.NoError(t, b.AppendSync(log))
	_, err = b.Read(out, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("queued"), out[:len("queued")])
}

func TestMemBackend_ReorderPolicyPermutesPhysicalOrder(t *testing.T) {
	b := NewMemBackend(2, 8192, 8192, 512)
	_, _, err := b.Open(false, true)
	require.NoError(t, err)
	b.SetReorderPolicy(func(pending [][]byte) [][]byte {
		out := make([][]byte, len(pending))
		for i, p := range pending {
			out[len(pending)-1-i] = p
		}
		return out
	})
	log := b.NewLog()

	first := make([]byte, 512)
	copy(first, []byte("first-"))
	second := make([]byte, 512)
	copy(second, []byte("second"))

	_, _, err = b.Append(first, 0, log)
	require.NoError(t, err)
	_, _, err = b.Append(second, 0, log)
	require.NoError(t, err)
	require.NoError(t, b.AppendSync(log))

	out := make([]byte, 512)
	_, err = b.Read(out, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), out[:len("second")], "reorder policy should place the second payload first")
}

func TestMemBackend_ResetReclaimsZone(t *testing.T) {
	b := NewMemBackend(1, 4096, 4096, 512)
	_, _, err := b.Open(false, true)
	require.NoError(t, err)

	_, err = b.Write(make([]byte, 512), 0)
	require.NoError(t, err)

	offline, cap, err := b.Reset(0)
	require.NoError(t, err)
	assert.False(t, offline)
	assert.Equal(t, uint64(4096), cap)

	zones, err := b.ListZones()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), zones[0].WritePointer)
}

func TestMemBackend_FinishMarksZoneFull(t *testing.T) {
	b := NewMemBackend(1, 4096, 4096, 512)
	_, _, err := b.Open(false, true)
	require.NoError(t, err)
	require.NoError(t, b.Finish(0))

	zones, err := b.ListZones()
	require.NoError(t, err)
	assert.True(t, zones[0].Full)
}
