package network

import (
	"context"
	"sync"

	"github.com/jabolina/worker-sync/pkg/worker/types"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Result is what a single outbound peer send resolves to: either a
// response body or a transport error, never both (spec.md §4.1's
// "single transport failure variant").
type Result struct {
	Peer     types.PeerAddress
	Response *types.WorkerBatchResponse
	Err      error
}

// Transport is the unreliable peer transport contract from spec.md
// §4.1: fire-and-forget, no retry, no delivery guarantee. Each Send
// initiates exactly one outbound RPC and resolves independently of any
// other in-flight send.
type Transport interface {
	// Send initiates an outbound RPC to exactly one peer. The returned
	// channel carries exactly one Result and is then closed.
	Send(ctx context.Context, peer types.PeerAddress, req *types.WorkerBatchRequest) <-chan Result

	// Cleanup drops any pooled connection to the given peers. Called
	// on reconfiguration with the authorities no longer in the
	// committee (see types.WorkerCache.NetworkDiff).
	Cleanup(stale []types.PeerAddress)

	// Close tears down every pooled connection.
	Close() error
}

// GRPCTransport is the concrete Transport backed by google.golang.org/grpc.
// It keeps one lazily-dialed *grpc.ClientConn per peer address in a
// pool guarded by a mutex — the generalization of the teacher's
// ReliableTransport, which kept a single relt handle per partition.
type GRPCTransport struct {
	log types.Logger

	mutex sync.Mutex
	conns map[types.PeerAddress]*grpc.ClientConn

	dialOpts []grpc.DialOption
}

// NewGRPCTransport creates a transport. extraOpts lets callers add
// TLS/keepalive/interceptor options; insecure transport credentials
// are always the default since spec.md §1 puts TLS out of scope.
func NewGRPCTransport(log types.Logger, extraOpts ...grpc.DialOption) *GRPCTransport {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, extraOpts...)
	return &GRPCTransport{
		log:      log,
		conns:    make(map[types.PeerAddress]*grpc.ClientConn),
		dialOpts: opts,
	}
}

func (t *GRPCTransport) connFor(peer types.PeerAddress) (*grpc.ClientConn, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if cc, ok := t.conns[peer]; ok {
		return cc, nil
	}
	cc, err := grpc.Dial(string(peer), t.dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing peer %s", peer)
	}
	t.conns[peer] = cc
	return cc, nil
}

// Send implements Transport. It never retries and never blocks the
// caller: the RPC runs on its own goroutine and the result channel is
// always eventually written to (unless ctx is cancelled first, in
// which case it is simply abandoned — the caller already stopped
// waiting on it).
func (t *GRPCTransport) Send(ctx context.Context, peer types.PeerAddress, req *types.WorkerBatchRequest) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		result := Result{Peer: peer}
		cc, err := t.connFor(peer)
		if err != nil {
			result.Err = err
			out <- result
			return
		}

		reqBytes, err := encodeRequest(req)
		if err != nil {
			result.Err = errors.Wrap(err, "encoding worker batch request")
			out <- result
			return
		}

		var respBytes []byte
		if err := cc.Invoke(ctx, batchSyncMethod, &reqBytes, &respBytes); err != nil {
			result.Err = errors.Wrapf(err, "sending to peer %s", peer)
			out <- result
			return
		}

		resp, err := decodeResponse(respBytes)
		if err != nil {
			result.Err = errors.Wrap(err, "decoding worker batch response")
			out <- result
			return
		}
		result.Response = resp
		out <- result
	}()
	return out
}

// Cleanup implements Transport.
func (t *GRPCTransport) Cleanup(stale []types.PeerAddress) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for _, peer := range stale {
		if cc, ok := t.conns[peer]; ok {
			if err := cc.Close(); err != nil {
				t.log.Warnf("failed closing connection to %s: %v", peer, err)
			}
			delete(t.conns, peer)
		}
	}
}

// Close implements Transport.
func (t *GRPCTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	var firstErr error
	for peer, cc := range t.conns {
		if err := cc.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "closing connection to %s", peer)
		}
	}
	t.conns = make(map[types.PeerAddress]*grpc.ClientConn)
	return firstErr
}
