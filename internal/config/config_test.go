package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, uint(12), cfg.BlockShift())
}

func TestBlockShift_512(t *testing.T) {
	cfg := Default()
	cfg.Device.BlockSize = 512
	cfg.WAL.SparseBufferSize = 512
	cfg.WAL.BarrierSize = 512
	cfg.Device.ZoneSize = 512
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint(9), cfg.BlockShift())
}

func TestValidate_RejectsBadBlockSize(t *testing.T) {
	cfg := Default()
	cfg.Device.BlockSize = 1000
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonMultipleSparseBuffer(t *testing.T) {
	cfg := Default()
	cfg.WAL.SparseBufferSize = 4097
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPowerOfTwoSparseBuffer(t *testing.T) {
	cfg := Default()
	cfg.Device.BlockSize = 512
	cfg.WAL.SparseBufferSize = 512 * 3
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBarrierNotMultipleOfSparseBuffer(t *testing.T) {
	cfg := Default()
	cfg.WAL.BarrierSize = cfg.WAL.SparseBufferSize + 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZoneSizeNotMultipleOfBlockSize(t *testing.T) {
	cfg := Default()
	cfg.Device.ZoneSize = cfg.Device.ZoneSize + 1
	assert.Error(t, cfg.Validate())
}

func TestLoad_ParsesYAMLAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
device:
  path: "mem://test"
  block_size: 4096
  zone_size: 1048576
wal:
  barrier_size: 1048576
  sparse_buffer_size: 1048576
metadata:
  journal_path: "/tmp/journal"
metrics:
  enabled: true
  port: 9191
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mem://test", cfg.Device.Path)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  block_size: 777\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}
