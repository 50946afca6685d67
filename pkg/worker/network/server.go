package network

import (
	"context"

	"github.com/jabolina/worker-sync/pkg/worker/types"
	"google.golang.org/grpc"
)

// BatchReader is the read side of a batch store, the only capability
// the inbound RPC handler needs. Satisfied directly by
// store.BatchStore.Read.
type BatchReader interface {
	Read(ctx context.Context, digest types.BatchDigest) (*types.Batch, error)
}

// Server answers incoming WorkerBatchRequest RPCs from sibling workers
// against the local batch store. This is the peer-to-peer fulfillment
// path: it never touches the synchronizer's pending table or primary
// channels, it only serves whatever batches are already persisted
// locally — the same "fast read directly into storage" idea the
// teacher's core.Peer.FastRead documents for its own state machine.
type Server struct {
	log   types.Logger
	store BatchReader
	grpc  *grpc.Server
}

// NewServer wires a Server over the given batch reader.
func NewServer(log types.Logger, store BatchReader) *Server {
	s := &Server{log: log, store: store}
	s.grpc = grpc.NewServer(grpc.UnknownServiceHandler(s.handleUnknown))
	return s
}

// GRPCServer exposes the underlying *grpc.Server for callers that want
// to control its own net.Listener lifecycle (cmd/worker does).
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpc
}

// handleUnknown is registered via grpc.UnknownServiceHandler so this
// module can serve its single RPC without a generated service
// descriptor (see codec.go).
func (s *Server) handleUnknown(srv interface{}, stream grpc.ServerStream) error {
	var reqBytes []byte
	if err := stream.RecvMsg(&reqBytes); err != nil {
		return err
	}

	req, err := decodeRequest(reqBytes)
	if err != nil {
		s.log.Errorf("failed decoding worker batch request: %v", err)
		return err
	}

	resp := s.fulfil(stream.Context(), req)

	respBytes, err := encodeResponse(resp)
	if err != nil {
		return err
	}
	return stream.SendMsg(&respBytes)
}

func (s *Server) fulfil(ctx context.Context, req *types.WorkerBatchRequest) *types.WorkerBatchResponse {
	resp := &types.WorkerBatchResponse{}
	for _, digest := range req.Digests {
		batch, err := s.store.Read(ctx, digest)
		if err != nil {
			s.log.Errorf("store read failed for %s: %v", digest, err)
			continue
		}
		if batch == nil {
			continue
		}
		resp.Batches = append(resp.Batches, *batch)
	}
	return resp
}
