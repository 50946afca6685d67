package core

import (
	"context"
	"testing"
	"time"

	"github.com/jabolina/worker-sync/pkg/worker/coretest"
	"github.com/jabolina/worker-sync/pkg/worker/definition"
	"github.com/jabolina/worker-sync/pkg/worker/metrics"
	"github.com/jabolina/worker-sync/pkg/worker/network"
	"github.com/jabolina/worker-sync/pkg/worker/store"
	"github.com/jabolina/worker-sync/pkg/worker/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"
)

const testAuthority = types.AuthorityId("node-0")
const peerAuthority = types.AuthorityId("node-1")
const testWorker = types.WorkerId(0)

func testCommittee() *types.Committee {
	return &types.Committee{
		Epoch: 0,
		Authorities: map[types.AuthorityId]struct{}{
			testAuthority: {},
			peerAuthority: {},
		},
	}
}

func testWorkerCache() *types.WorkerCache {
	return &types.WorkerCache{
		Epoch: 0,
		Workers: map[types.AuthorityId]types.WorkerIndex{
			testAuthority: {testWorker: "self:0"},
			peerAuthority: {testWorker: "peer:0"},
		},
	}
}

type fixture struct {
	sync             *Synchronizer
	invoker          *coretest.WaitGroupInvoker
	transport        *coretest.FakeTransport
	batchStore       store.BatchStore
	rxPrimary        chan types.PrimaryCommand
	txPrimary        chan types.WorkerPrimaryMessage
	txBatchProcessor chan types.Batch
	watcher          *types.Watcher
	cancelDownstream context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	invoker := &coretest.WaitGroupInvoker{}
	transport := coretest.NewFakeTransport()
	lucky := network.NewLuckyBroadcaster(transport, 42)
	batchStore := store.NewMemoryStore()
	watcher := types.NewWatcher()
	log := definition.NewDefaultLogger()
	wm := metrics.NewWorkerMetrics(prometheus.NewRegistry())

	rxPrimary := make(chan types.PrimaryCommand, 8)
	txPrimary := make(chan types.WorkerPrimaryMessage, 8)
	txBatchProcessor := make(chan types.Batch, 8)
	downstream, cancel := context.WithCancel(context.Background())

	s := New(
		testAuthority,
		testWorker,
		testCommittee(),
		testWorkerCache(),
		batchStore,
		transport,
		lucky,
		watcher,
		wm,
		log,
		Config{GCDepth: 5, SyncRetryDelay: 50 * time.Millisecond, SyncRetryNodes: 1},
		rxPrimary,
		txPrimary,
		txBatchProcessor,
		downstream,
	)
	s.SetInvoker(invoker)

	return &fixture{
		sync:             s,
		invoker:          invoker,
		transport:        transport,
		batchStore:       batchStore,
		rxPrimary:        rxPrimary,
		txPrimary:        txPrimary,
		txBatchProcessor: txBatchProcessor,
		watcher:          watcher,
		cancelDownstream: cancel,
	}
}

// TestMain checks every spawned goroutine in this package's tests
// exits cleanly, the way the teacher's own fuzzy/commit_test.go checks
// with go.uber.org/goleak.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Synchronize with an already-stored batch replies OthersBatch without
// ever touching the transport: spec.md §8 scenario 2 (warm fetch).
func TestHandleSynchronize_WarmFetch(t *testing.T) {
	f := newFixture(t)
	batch := types.Batch{Transactions: [][]byte{[]byte("tx-1")}}
	digest := batch.Digest()
	if err := f.batchStore.Write(context.Background(), &batch); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	f.sync.handleSynchronize(types.Synchronize{
		Digests: map[types.BatchDigest]struct{}{digest: {}},
		Target:  peerAuthority,
	})

	select {
	case msg := <-f.txPrimary:
		reply, ok := msg.(types.OthersBatch)
		if !ok {
			t.Fatalf("expected OthersBatch, got %#v", msg)
		}
		if reply.Digest != digest {
			t.Fatalf("expected digest %s, got %s", digest, reply.Digest)
		}
	default:
		t.Fatal("expected a reply on txPrimary")
	}

	if len(f.sync.pending) != 0 {
		t.Fatalf("expected no pending entries after a warm fetch, got %d", len(f.sync.pending))
	}
	if f.transport.SentCount("peer:0") != 0 {
		t.Fatal("warm fetch must not touch the transport")
	}
}

// Synchronize with a digest nobody holds locally marks it pending and
// issues exactly one request to the resolved peer: spec.md §8 scenario
// 1 (cold fetch).
func TestHandleSynchronize_ColdFetch(t *testing.T) {
	f := newFixture(t)
	digest := types.Batch{Transactions: [][]byte{[]byte("tx-missing")}}.Digest()

	f.sync.handleSynchronize(types.Synchronize{
		Digests: map[types.BatchDigest]struct{}{digest: {}},
		Target:  peerAuthority,
	})

	if _, ok := f.sync.pending[digest]; !ok {
		t.Fatal("expected the missing digest to be marked pending")
	}
	if got := f.transport.SentCount("peer:0"); got != 1 {
		t.Fatalf("expected exactly one send to peer:0, got %d", got)
	}
}

// A Synchronize for a digest already pending is not re-requested.
func TestHandleSynchronize_AlreadyPendingSkipped(t *testing.T) {
	f := newFixture(t)
	digest := types.Batch{Transactions: [][]byte{[]byte("tx-dup")}}.Digest()
	f.sync.pending[digest] = pendingEntry{round: 0, lastIssued: nowMillis(), epoch: 0}

	f.sync.handleSynchronize(types.Synchronize{
		Digests: map[types.BatchDigest]struct{}{digest: {}},
		Target:  peerAuthority,
	})

	if got := f.transport.SentCount("peer:0"); got != 0 {
		t.Fatalf("expected no send for an already-pending digest, got %d sends", got)
	}
}

// A peer response satisfying a pending digest removes it and forwards
// the batch downstream; a digest the response carries but we never
// asked for is dropped silently.
func TestHandlePeerResponse_SatisfiesPending(t *testing.T) {
	f := newFixture(t)
	wanted := types.Batch{Transactions: [][]byte{[]byte("wanted")}}
	extra := types.Batch{Transactions: [][]byte{[]byte("unsolicited")}}
	f.sync.pending[wanted.Digest()] = pendingEntry{round: 0, lastIssued: nowMillis(), epoch: 0}

	f.sync.handlePeerResponse(network.Result{
		Peer:     "peer:0",
		Response: &types.WorkerBatchResponse{Batches: []types.Batch{wanted, extra}},
	})

	if _, stillPending := f.sync.pending[wanted.Digest()]; stillPending {
		t.Fatal("expected the satisfied digest to be cleared from pending")
	}

	select {
	case got := <-f.txBatchProcessor:
		if got.Digest() != wanted.Digest() {
			t.Fatalf("expected the wanted batch, got digest %s", got.Digest())
		}
	default:
		t.Fatal("expected the wanted batch on txBatchProcessor")
	}

	select {
	case got := <-f.txBatchProcessor:
		t.Fatalf("did not expect a second batch, got %#v", got)
	default:
	}
}

// A response for a digest requested under a since-superseded epoch is
// still honored, per SPEC_FULL.md §11's cross-epoch decision.
func TestHandlePeerResponse_HonorsStaleEpoch(t *testing.T) {
	f := newFixture(t)
	batch := types.Batch{Transactions: [][]byte{[]byte("cross-epoch")}}
	f.sync.pending[batch.Digest()] = pendingEntry{round: 0, lastIssued: nowMillis(), epoch: 0}

	updated := &types.Committee{
		Epoch:       1,
		Authorities: map[types.AuthorityId]struct{}{testAuthority: {}, peerAuthority: {}},
	}
	f.sync.swapCommittee(updated)

	f.sync.handlePeerResponse(network.Result{
		Peer:     "peer:0",
		Response: &types.WorkerBatchResponse{Batches: []types.Batch{batch}},
	})

	if _, stillPending := f.sync.pending[batch.Digest()]; stillPending {
		t.Fatal("expected the stale-epoch response to still clear its pending entry")
	}

	select {
	case got := <-f.txBatchProcessor:
		if got.Digest() != batch.Digest() {
			t.Fatalf("expected the cross-epoch batch, got digest %s", got.Digest())
		}
	default:
		t.Fatal("expected the cross-epoch batch to still be handed downstream")
	}
}

// A transport error for an in-flight request is logged and leaves the
// digest pending for the retry timer to escalate.
func TestHandlePeerResponse_TransportError(t *testing.T) {
	f := newFixture(t)
	digest := types.Batch{Transactions: [][]byte{[]byte("tx")}}.Digest()
	f.sync.pending[digest] = pendingEntry{round: 0, lastIssued: nowMillis(), epoch: 0}

	f.sync.handlePeerResponse(network.Result{Peer: "peer:0", Err: context.DeadlineExceeded})

	if _, ok := f.sync.pending[digest]; !ok {
		t.Fatal("expected the digest to remain pending after a transport error")
	}
}

// Cleanup with a round past the GC depth drops old pending entries and
// leaves freshly-issued ones alone: spec.md §8 scenario 4.
func TestHandleCleanup_GCDropsOldEntries(t *testing.T) {
	f := newFixture(t)
	old := types.Batch{Transactions: [][]byte{[]byte("old")}}.Digest()
	fresh := types.Batch{Transactions: [][]byte{[]byte("fresh")}}.Digest()
	f.sync.pending[old] = pendingEntry{round: 1, lastIssued: 0, epoch: 0}
	f.sync.pending[fresh] = pendingEntry{round: 10, lastIssued: 0, epoch: 0}

	f.sync.handleCleanup(types.Cleanup{Round: 8})

	if _, ok := f.sync.pending[old]; ok {
		t.Fatal("expected the old entry to be GC'd")
	}
	if _, ok := f.sync.pending[fresh]; !ok {
		t.Fatal("expected the fresh entry to survive GC")
	}
	if f.sync.round != 8 {
		t.Fatalf("expected round to advance to 8, got %d", f.sync.round)
	}
}

// RequestBatch answers with RequestedBatch when the store has it, and
// an ErrorMessage(RequestedBatchNotFound) when it doesn't.
func TestHandleRequestBatch(t *testing.T) {
	f := newFixture(t)
	batch := types.Batch{Transactions: [][]byte{[]byte("present")}}
	if err := f.batchStore.Write(context.Background(), &batch); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	f.sync.handleRequestBatch(types.RequestBatch{Digest: batch.Digest()})
	select {
	case msg := <-f.txPrimary:
		if _, ok := msg.(types.RequestedBatch); !ok {
			t.Fatalf("expected RequestedBatch, got %#v", msg)
		}
	default:
		t.Fatal("expected a reply")
	}

	missing := types.Batch{Transactions: [][]byte{[]byte("absent")}}.Digest()
	f.sync.handleRequestBatch(types.RequestBatch{Digest: missing})
	select {
	case msg := <-f.txPrimary:
		errMsg, ok := msg.(types.ErrorMessage)
		if !ok {
			t.Fatalf("expected ErrorMessage, got %#v", msg)
		}
		if _, ok := errMsg.Err.(*types.RequestedBatchNotFound); !ok {
			t.Fatalf("expected RequestedBatchNotFound, got %#v", errMsg.Err)
		}
	default:
		t.Fatal("expected an error reply")
	}
}

// A NewEpoch reconfiguration clears pending state, resets the round,
// and drops stale connections for authorities leaving the committee.
func TestHandleReconfigure_NewEpochResetsState(t *testing.T) {
	f := newFixture(t)
	// Publish panics without a subscriber, so keep one registered.
	sub := f.watcher.Subscribe()
	defer sub.Close()
	stale := types.Batch{Transactions: [][]byte{[]byte("stale")}}.Digest()
	f.sync.pending[stale] = pendingEntry{round: 0, lastIssued: 0, epoch: 0}
	f.sync.round = 7

	next := &types.Committee{
		Epoch:       1,
		Authorities: map[types.AuthorityId]struct{}{testAuthority: {}},
	}

	f.sync.handleReconfigure(types.Reconfigure{Notification: types.NewEpoch{Committee: next}})

	if len(f.sync.pending) != 0 {
		t.Fatalf("expected pending to be cleared, got %d entries", len(f.sync.pending))
	}
	if f.sync.round != 0 {
		t.Fatalf("expected round to reset to 0, got %d", f.sync.round)
	}
	if f.sync.currentWorkerCache().Epoch != 1 {
		t.Fatalf("expected worker cache epoch to advance to 1, got %d", f.sync.currentWorkerCache().Epoch)
	}

	cleanups := f.transport.Cleanups()
	if len(cleanups) != 1 || len(cleanups[0]) != 1 || cleanups[0][0] != "peer:0" {
		t.Fatalf("expected a cleanup for peer:0, got %#v", cleanups)
	}
}

// Shutdown publishes the notification, then blocks until every watcher
// subscription has been closed before the loop may stop: spec.md §8
// scenario 6.
func TestHandleReconfigure_ShutdownAwaitsWatchers(t *testing.T) {
	f := newFixture(t)
	sub := f.watcher.Subscribe()

	done := make(chan struct{})
	go func() {
		f.sync.handleReconfigure(types.Reconfigure{Notification: types.Shutdown{}})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("handleReconfigure returned before the subscription was closed")
	case <-time.After(20 * time.Millisecond):
	}

	<-sub.C()
	sub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleReconfigure never returned after the subscription closed")
	}

	if f.sync.State() != Stopped {
		t.Fatalf("expected state Stopped, got %v", f.sync.State())
	}
}

// The retry timer escalates an overdue pending entry into a lucky
// broadcast and refreshes its lastIssued timestamp: spec.md §8
// scenario 3 (escalation).
func TestHandleRetryTick_EscalatesOverdueEntries(t *testing.T) {
	f := newFixture(t)
	digest := types.Batch{Transactions: [][]byte{[]byte("overdue")}}.Digest()
	f.sync.pending[digest] = pendingEntry{round: 0, lastIssued: 0, epoch: 0}

	f.sync.handleRetryTick()

	if got := f.transport.SentCount("peer:0"); got != 1 {
		t.Fatalf("expected one retry send to peer:0, got %d", got)
	}
	if f.sync.pending[digest].lastIssued == 0 {
		t.Fatal("expected lastIssued to be refreshed")
	}
}

// A digest not yet overdue is left alone by the retry tick.
func TestHandleRetryTick_SkipsFreshEntries(t *testing.T) {
	f := newFixture(t)
	digest := types.Batch{Transactions: [][]byte{[]byte("fresh")}}.Digest()
	f.sync.pending[digest] = pendingEntry{round: 0, lastIssued: nowMillis(), epoch: 0}

	f.sync.handleRetryTick()

	if got := f.transport.SentCount("peer:0"); got != 0 {
		t.Fatalf("expected no retry send for a fresh entry, got %d", got)
	}
}

// Once downstream is cancelled, sendPrimaryReply reports failure
// instead of blocking forever on a full/abandoned channel.
func TestSendPrimaryReply_DownstreamGone(t *testing.T) {
	f := newFixture(t)
	f.cancelDownstream()

	ok := coretest.WaitThisOrTimeout(func() {
		if f.sync.sendPrimaryReply(types.DeletedBatches{}) {
			t.Error("expected sendPrimaryReply to report failure once downstream is gone")
		}
	}, time.Second)
	if !ok {
		t.Fatal("sendPrimaryReply blocked past downstream cancellation")
	}
}

// track forwards the single result from an outbound Send onto the
// completions channel, and the invoker can confirm the goroutine it
// spawned has exited.
func TestTrack_ForwardsSingleResult(t *testing.T) {
	f := newFixture(t)
	ch := f.transport.Send(context.Background(), "peer:0", &types.WorkerBatchRequest{})

	f.sync.track(f.sync.inFlightCtx, ch)
	f.invoker.Wait()

	select {
	case result := <-f.sync.completions:
		if result.Peer != "peer:0" {
			t.Fatalf("expected result for peer:0, got %s", result.Peer)
		}
	default:
		t.Fatal("expected a forwarded result on completions")
	}
}

// TestRun_ColdFetchEndToEnd drives spec.md §8 scenario 1 (cold fetch)
// through the real event loop, the way the teacher's own
// test/protocol_test.go drives a live Unity through its real channels
// instead of calling a peer's internal methods directly: a Synchronize
// command goes in on rxPrimary, the fake transport resolves the
// missing digest, and the batch comes out on txBatchProcessor without
// this test ever calling a handle* method itself.
func TestRun_ColdFetchEndToEnd(t *testing.T) {
	f := newFixture(t)
	sub := f.watcher.Subscribe()

	batch := types.Batch{Transactions: [][]byte{[]byte("run-loop-tx")}}
	f.transport.Enqueue("peer:0", network.Result{
		Peer:     "peer:0",
		Response: &types.WorkerBatchResponse{Batches: []types.Batch{batch}},
	})

	loopDone := make(chan struct{})
	go func() {
		f.sync.Run()
		close(loopDone)
	}()

	f.rxPrimary <- types.Synchronize{
		Digests: map[types.BatchDigest]struct{}{batch.Digest(): {}},
		Target:  peerAuthority,
	}

	select {
	case got := <-f.txBatchProcessor:
		if got.Digest() != batch.Digest() {
			t.Fatalf("expected the cold-fetched batch, got digest %s", got.Digest())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the batch to arrive through the real loop")
	}

	if got := f.transport.SentCount("peer:0"); got != 1 {
		t.Fatalf("expected exactly one send to peer:0 through the loop, got %d", got)
	}

	f.rxPrimary <- types.Reconfigure{Notification: types.Shutdown{}}
	<-sub.C()
	sub.Close()

	select {
	case <-loopDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown was processed")
	}

	if f.sync.State() != Stopped {
		t.Fatalf("expected state Stopped, got %v", f.sync.State())
	}
	f.invoker.Wait()
}
