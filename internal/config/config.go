// ============================================================================
// zwalfs Configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: Loads the immutable configuration object threaded through zone,
// allocator, and zonefile construction (spec's "model as an immutable
// configuration object threaded through construction" design note).
//
// Reject inconsistent values at init: barrier size must be positive and a
// multiple of the sparse-buffer size; sparse-buffer size must be a
// power-of-two multiple of the block size; block size must be 512 or 4096.
// ============================================================================

package config

import (
	"fmt"
	"os"

	"github.com/zoneio/zwalfs/internal/zerrors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a zwalfs instance.
type Config struct {
	Device struct {
		Path      string `yaml:"path"`
		BlockSize uint32 `yaml:"block_size"`
		ZoneSize  uint64 `yaml:"zone_size"`
	} `yaml:"device"`

	WAL struct {
		BarrierSize      uint64 `yaml:"barrier_size"`
		SparseBufferSize uint64 `yaml:"sparse_buffer_size"`
	} `yaml:"wal"`

	Metadata struct {
		JournalPath string `yaml:"journal_path"`
	} `yaml:"metadata"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent configuration at init, per the design
// note requiring barrier/sparse-buffer/block-size relationships to hold
// before any zone or file machinery is constructed.
func (c *Config) Validate() error {
	if c.Device.BlockSize != 512 && c.Device.BlockSize != 4096 {
		return fmt.Errorf("config: block_size must be 512 or 4096, got %d: %w", c.Device.BlockSize, zerrors.ErrInvalidArgument)
	}
	if c.WAL.SparseBufferSize == 0 || c.WAL.SparseBufferSize%uint64(c.Device.BlockSize) != 0 {
		return fmt.Errorf("config: sparse_buffer_size must be a positive multiple of block_size: %w", zerrors.ErrInvalidArgument)
	}
	if c.WAL.SparseBufferSize&(c.WAL.SparseBufferSize-1) != 0 {
		return fmt.Errorf("config: sparse_buffer_size must be a power of two: %w", zerrors.ErrInvalidArgument)
	}
	if c.WAL.BarrierSize == 0 || c.WAL.BarrierSize%c.WAL.SparseBufferSize != 0 {
		return fmt.Errorf("config: barrier_size must be a positive multiple of sparse_buffer_size: %w", zerrors.ErrInvalidArgument)
	}
	if c.Device.ZoneSize == 0 || c.Device.ZoneSize%uint64(c.Device.BlockSize) != 0 {
		return fmt.Errorf("config: zone_size must be a positive multiple of block_size: %w", zerrors.ErrInvalidArgument)
	}
	return nil
}

// BlockShift returns 9 for 512 B blocks or 12 for 4 KiB blocks.
func (c *Config) BlockShift() uint {
	if c.Device.BlockSize == 512 {
		return 9
	}
	return 12
}

// Default returns a configuration sized for the in-memory backend and
// demo/test use: 4 KiB blocks, 1 MiB barriers, 1 MiB sparse buffers.
func Default() *Config {
	cfg := &Config{}
	cfg.Device.BlockSize = 4096
	cfg.Device.ZoneSize = 64 << 20
	cfg.WAL.SparseBufferSize = 1 << 20
	cfg.WAL.BarrierSize = 1 << 20
	cfg.Metrics.Port = 9090
	return cfg
}
