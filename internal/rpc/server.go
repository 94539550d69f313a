package rpc

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/zoneio/zwalfs/internal/allocator"
	"github.com/zoneio/zwalfs/internal/config"
	"github.com/zoneio/zwalfs/internal/zonefile"
)

// streamReadChunk is the read size used for each StreamWALReads message;
// it has no relation to WAL_BARRIER_SIZE, it only bounds one gRPC frame.
const streamReadChunk = 64 * 1024

// Recoverer is the ZoneFileServiceServer implementation, backed by the
// same allocator a local zwalctl session would use.
type Recoverer struct {
	cfg   *config.Config
	alloc *allocator.Allocator
}

// NewRecoverer builds a Recoverer over an already-opened allocator.
func NewRecoverer(cfg *config.Config, alloc *allocator.Allocator) *Recoverer {
	return &Recoverer{cfg: cfg, alloc: alloc}
}

func (r *Recoverer) open(req *structpb.Struct) (*zonefile.ZoneFile, bool, error) {
	fields := req.GetFields()
	fileIDv, ok := fields["file_id"]
	if !ok {
		return nil, false, fmt.Errorf("zwalfs rpc: missing file_id")
	}
	linkName := fields["link_name"].GetStringValue()
	isWAL := fields["is_wal"].GetBoolValue()
	fileID := uint64(fileIDv.GetNumberValue())

	f := zonefile.New(r.cfg, r.alloc, fileID, linkName, isWAL, isWAL)
	return f, isWAL, nil
}

// Recover runs partial-tail (and, for WAL files, chunked) recovery and
// reports the resulting bookkeeping.
func (r *Recoverer) Recover(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, isWAL, err := r.open(req)
	if err != nil {
		return nil, err
	}
	if err := f.Recover(); err != nil {
		return nil, err
	}
	if isWAL {
		if err := f.TryRecoverWAL(0); err != nil {
			return nil, err
		}
	}
	st := f.Stat()
	return structpb.NewStruct(map[string]interface{}{
		"file_id":         float64(st.FileID),
		"size":            float64(st.FileSize),
		"extents":         float64(st.NumExtents),
		"pad_bytes":       float64(st.PadBytes),
		"is_wal":          st.IsWAL,
		"wal_seq":         float64(st.WALSeq),
		"wal_live_blocks": float64(st.WALLiveBlocks),
	})
}

// StreamWALReads recovers the named file, then streams it back in
// streamReadChunk-sized pieces, WAL-aware when the file is a WAL.
func (r *Recoverer) StreamWALReads(req *structpb.Struct, stream ZoneFileService_StreamWALReadsServer) error {
	f, isWAL, err := r.open(req)
	if err != nil {
		return err
	}
	if err := f.Recover(); err != nil {
		return err
	}
	if isWAL {
		if err := f.TryRecoverWAL(0); err != nil {
			return err
		}
	}

	size := f.FileSize()
	for offset := uint64(0); offset < size; {
		n := streamReadChunk
		if remaining := size - offset; remaining < uint64(n) {
			n = int(remaining)
		}
		var chunk []byte
		var readErr error
		if isWAL {
			chunk, readErr = f.WALPositionedRead(offset, n)
		} else {
			chunk, readErr = f.PositionedRead(offset, n)
		}
		if readErr != nil {
			return readErr
		}
		if len(chunk) == 0 {
			break
		}
		if err := stream.Send(wrapperspb.Bytes(chunk)); err != nil {
			return err
		}
		offset += uint64(len(chunk))
	}
	return nil
}
