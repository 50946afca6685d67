// Package coretest provides the test-only scaffolding synchronizer
// tests build on: a WaitGroup-backed Invoker so a test can wait for
// every spawned goroutine to settle before asserting, plus an
// in-memory fake transport. Modeled on the
// teacher's test/testing.go TestInvoker.
package coretest

import (
	"context"
	"sync"
	"time"

	"github.com/jabolina/worker-sync/pkg/worker/network"
	"github.com/jabolina/worker-sync/pkg/worker/types"
)

// WaitGroupInvoker is the core.Invoker tests hand to a Synchronizer so
// they can block until every spawned goroutine (track's completion
// forwarders, mostly) has returned.
type WaitGroupInvoker struct {
	group sync.WaitGroup
}

// Spawn implements core.Invoker.
func (w *WaitGroupInvoker) Spawn(f func()) {
	w.group.Add(1)
	go func() {
		defer w.group.Done()
		f()
	}()
}

// Wait blocks until every goroutine spawned through Spawn has
// returned.
func (w *WaitGroupInvoker) Wait() {
	w.group.Wait()
}

// WaitThisOrTimeout runs cb on its own goroutine and reports whether
// it finished before duration elapsed.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}

// FakeTransport is a network.Transport whose Send resolves from a
// per-peer queue of canned results a test feeds in with Enqueue,
// instead of dialing anything over the wire.
type FakeTransport struct {
	mutex    sync.Mutex
	queued   map[types.PeerAddress][]network.Result
	sent     []sentCall
	cleanups [][]types.PeerAddress
}

type sentCall struct {
	Peer types.PeerAddress
	Req  *types.WorkerBatchRequest
}

// NewFakeTransport builds an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{queued: make(map[types.PeerAddress][]network.Result)}
}

// Enqueue arranges for the next Send to peer to resolve with result.
func (f *FakeTransport) Enqueue(peer types.PeerAddress, result network.Result) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.queued[peer] = append(f.queued[peer], result)
}

// Send implements network.Transport.
func (f *FakeTransport) Send(ctx context.Context, peer types.PeerAddress, req *types.WorkerBatchRequest) <-chan network.Result {
	out := make(chan network.Result, 1)

	f.mutex.Lock()
	f.sent = append(f.sent, sentCall{Peer: peer, Req: req})
	var result network.Result
	if queue := f.queued[peer]; len(queue) > 0 {
		result = queue[0]
		f.queued[peer] = queue[1:]
	} else {
		result = network.Result{Peer: peer, Response: &types.WorkerBatchResponse{}}
	}
	f.mutex.Unlock()

	go func() {
		defer close(out)
		select {
		case out <- result:
		case <-ctx.Done():
		}
	}()
	return out
}

// Cleanup implements network.Transport.
func (f *FakeTransport) Cleanup(stale []types.PeerAddress) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.cleanups = append(f.cleanups, stale)
}

// Close implements network.Transport.
func (f *FakeTransport) Close() error { return nil }

// SentCount reports how many Send calls a peer has received.
func (f *FakeTransport) SentCount(peer types.PeerAddress) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	count := 0
	for _, call := range f.sent {
		if call.Peer == peer {
			count++
		}
	}
	return count
}

// Cleanups returns every stale-peer slice passed to Cleanup so far.
func (f *FakeTransport) Cleanups() [][]types.PeerAddress {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([][]types.PeerAddress(nil), f.cleanups...)
}
