//go:build !linux

// Package: internal/zbd
// File: zbd_other.go
// Purpose: Non-Linux stand-in for the real ZBD backend. The zone-management
// ioctls this backend needs (BLKRESETZONE, BLKFINISHZONE, BLKCLOSEZONE) are
// Linux-only, so OpenReal refuses outside linux builds; the in-memory
// backend remains available everywhere for tests and the CLI's demo mode.

package zbd

import "github.com/zoneio/zwalfs/internal/zerrors"

// OpenReal is unavailable on this platform.
func OpenReal(devicePath string, blockSize uint32, zoneSize uint64) (Backend, error) {
	return nil, &zerrors.IOError{Op: "open real device", Cause: zerrors.ErrNotSupported}
}
