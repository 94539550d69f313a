// ============================================================================
// zwalfs Errors - Error Taxonomy
// ============================================================================
//
// Package: internal/zerrors
// File: zerrors.go
// Purpose: Define the error kinds shared across the zoned file system
//
// Kinds:
//   - Corruption: on-media bytes violate the expected format. Surfaced to
//     the caller, no local retry.
//   - IOError: device failure, misaligned argument, zone report mismatch,
//     aligned-buffer allocation failure, positioned-append misalignment.
//   - NoSpace: zone allocator has no zone to hand out.
//   - NotSupported: backend opened against a non-host-managed device.
//   - InvalidArgument: scheduler check failed, or Skip past EOF.
//
// Propagation policy: first error wins; writes abort the current append
// iteration without partial commit of the current extent; recovery stops
// the chunk at the first decode inconsistency unless it is an expected
// stop condition (zero-length header, or seq==0 past the tail).
// ============================================================================

package zerrors

import (
	"errors"
	"strconv"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Err...) at call sites to
// add context (file id, offset, zone) without losing errors.Is matchability.
var (
	ErrCorruption        = errors.New("zwalfs: corruption")
	ErrIOError           = errors.New("zwalfs: io error")
	ErrNoSpace           = errors.New("zwalfs: no space")
	ErrNotSupported      = errors.New("zwalfs: not supported")
	ErrInvalidArgument   = errors.New("zwalfs: invalid argument")
	ErrWALSyncFailed     = errors.New("zwalfs: WAL sync error")
	ErrPositionMismatch  = errors.New("zwalfs: positioned append not at write pointer")
	ErrZoneBusy          = errors.New("zwalfs: zone busy")
	ErrFileClosed        = errors.New("zwalfs: file closed")
)

// CorruptionError carries the on-media location of a format violation.
type CorruptionError struct {
	Reason string
	Offset int64 // byte offset in the zone/extent, -1 if unknown
	Cause  error
}

func (e *CorruptionError) Error() string {
	if e.Offset >= 0 {
		return "zwalfs: corruption at offset " + strconv.FormatInt(e.Offset, 10) + ": " + e.Reason
	}
	return "zwalfs: corruption: " + e.Reason
}

func (e *CorruptionError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrCorruption
}

// IOError wraps a device-level failure with the operation that triggered it.
type IOError struct {
	Op    string
	Cause error
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return "zwalfs: io error during " + e.Op + ": " + e.Cause.Error()
	}
	return "zwalfs: io error during " + e.Op
}

func (e *IOError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrIOError
}
