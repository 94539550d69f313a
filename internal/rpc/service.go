// ============================================================================
// zwalfs RPC - Zone File Recovery Service
// ============================================================================
//
// Package: internal/rpc
// File: service.go
// Purpose: gRPC surface letting a remote compaction/replication worker pull
// recovered WAL chunks without local device access, grounded on the
// client/server pairing in internal/worker/grpc_source.go and
// internal/raft/transport.go.
//
// Wire messages: no .proto/protoc toolchain is available here, so request
// and response payloads ride on the protobuf runtime's own precompiled
// message types (structpb.Struct for keyed fields, wrapperspb.BytesValue
// for raw chunk bytes) instead of a generated package. The service
// descriptor below is the part protoc-gen-go-grpc would normally emit.
// ============================================================================

package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "zwalfs.ZoneFileService"

// ZoneFileServiceServer is implemented by the recovery backend.
type ZoneFileServiceServer interface {
	// Recover runs partial-tail (and, for WAL files, chunked) recovery on
	// the named file and returns its post-recovery bookkeeping as a
	// struct with keys file_id, size, extents, pad_bytes, is_wal, wal_seq,
	// wal_live_blocks.
	Recover(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// StreamWALReads streams a WAL file's recovered chunks in sequence
	// order, each chunk wrapped in a BytesValue.
	StreamWALReads(req *structpb.Struct, stream ZoneFileService_StreamWALReadsServer) error
}

// ZoneFileService_StreamWALReadsServer is the server-side handle for the
// StreamWALReads server-streaming RPC.
type ZoneFileService_StreamWALReadsServer interface {
	Send(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type zoneFileServiceStreamWALReadsServer struct {
	grpc.ServerStream
}

func (s *zoneFileServiceStreamWALReadsServer) Send(m *wrapperspb.BytesValue) error {
	return s.ServerStream.SendMsg(m)
}

// RegisterZoneFileServiceServer registers srv against s.
func RegisterZoneFileServiceServer(s grpc.ServiceRegistrar, srv ZoneFileServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func recoverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ZoneFileServiceServer).Recover(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Recover"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ZoneFileServiceServer).Recover(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func streamWALReadsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ZoneFileServiceServer).StreamWALReads(in, &zoneFileServiceStreamWALReadsServer{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ZoneFileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recover", Handler: recoverHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamWALReads", Handler: streamWALReadsHandler, ServerStreams: true},
	},
	Metadata: "internal/rpc/service.go",
}

// ZoneFileServiceClient is the client side of ZoneFileServiceServer.
type ZoneFileServiceClient interface {
	Recover(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StreamWALReads(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (ZoneFileService_StreamWALReadsClient, error)
}

// ZoneFileService_StreamWALReadsClient is the client-side handle for the
// StreamWALReads server-streaming RPC.
type ZoneFileService_StreamWALReadsClient interface {
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ClientStream
}

type zoneFileServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewZoneFileServiceClient builds a client bound to an established
// connection, following GrpcJobSource/GrpcTransport's dial-once-reuse
// pattern.
func NewZoneFileServiceClient(cc grpc.ClientConnInterface) ZoneFileServiceClient {
	return &zoneFileServiceClient{cc: cc}
}

func (c *zoneFileServiceClient) Recover(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Recover", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *zoneFileServiceClient) StreamWALReads(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (ZoneFileService_StreamWALReadsClient, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+serviceName+"/StreamWALReads", opts...)
	if err != nil {
		return nil, err
	}
	x := &zoneFileServiceStreamWALReadsClient{stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type zoneFileServiceStreamWALReadsClient struct {
	grpc.ClientStream
}

func (x *zoneFileServiceStreamWALReadsClient) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
