// Package core implements the synchronizer event loop: the scheduler
// that multiplexes primary commands, completed peer responses and the
// periodic retry tick described in spec.md §4.4. It is the ~60% of
// this module's core the spec budgets for it.
package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jabolina/worker-sync/pkg/worker/metrics"
	"github.com/jabolina/worker-sync/pkg/worker/network"
	"github.com/jabolina/worker-sync/pkg/worker/store"
	"github.com/jabolina/worker-sync/pkg/worker/types"
)

// TimerResolution is the retry tick period (spec.md §6).
const TimerResolution = 1000 * time.Millisecond

// Config carries the tunables spec.md §6 lists as configuration
// parameters.
type Config struct {
	GCDepth        types.Round
	SyncRetryDelay time.Duration
	SyncRetryNodes int
}

// LoopState is the synchronizer's small state machine (spec.md §4.4).
type LoopState int

const (
	Running LoopState = iota
	ShuttingDown
	Stopped
)

// Synchronizer is the event loop keeping one worker in sync with its
// siblings. All of its mutable state — pending, round, the in-flight
// response set — is touched only from the goroutine running Run(), so
// none of it is guarded by a lock (spec.md §5).
type Synchronizer struct {
	name types.AuthorityId
	id   types.WorkerId

	committee   atomic.Pointer[types.Committee]
	workerCache atomic.Pointer[types.WorkerCache]

	config Config

	batchStore store.BatchStore
	transport  network.Transport
	lucky      *network.LuckyBroadcaster
	watcher    *types.Watcher
	metrics    *metrics.WorkerMetrics
	log        types.Logger
	invoker    Invoker

	rxPrimary        <-chan types.PrimaryCommand
	txPrimary        chan<- types.WorkerPrimaryMessage
	txBatchProcessor chan<- types.Batch

	// downstream is cancelled by the caller when either the primary
	// reply channel or the batch-processor channel's consumer goes
	// away. Go channels panic on a send after close, so "channel
	// closed" (spec.md §7 row 5) is rendered as "this context is done"
	// instead of a literal closed-channel send.
	downstream context.Context

	round   types.Round
	pending pendingTable

	completions   chan network.Result
	inFlightCtx   context.Context
	cancelInFlight context.CancelFunc

	state LoopState
}

// New constructs a Synchronizer. It does not start the loop; call Run
// (or spawn it yourself with an Invoker) once the caller is ready.
func New(
	name types.AuthorityId,
	id types.WorkerId,
	committee *types.Committee,
	workerCache *types.WorkerCache,
	batchStore store.BatchStore,
	transport network.Transport,
	lucky *network.LuckyBroadcaster,
	watcher *types.Watcher,
	wm *metrics.WorkerMetrics,
	log types.Logger,
	config Config,
	rxPrimary <-chan types.PrimaryCommand,
	txPrimary chan<- types.WorkerPrimaryMessage,
	txBatchProcessor chan<- types.Batch,
	downstream context.Context,
) *Synchronizer {
	s := &Synchronizer{
		name:             name,
		id:               id,
		config:           config,
		batchStore:       batchStore,
		transport:        transport,
		lucky:            lucky,
		watcher:          watcher,
		metrics:          wm,
		log:              log,
		invoker:          GoInvoker{},
		rxPrimary:        rxPrimary,
		txPrimary:        txPrimary,
		txBatchProcessor: txBatchProcessor,
		downstream:       downstream,
		round:            0,
		pending:          newPendingTable(),
		completions:      make(chan network.Result, 64),
		state:            Running,
	}
	s.committee.Store(committee)
	s.workerCache.Store(workerCache)
	s.inFlightCtx, s.cancelInFlight = context.WithCancel(context.Background())
	return s
}

// SetInvoker overrides the default goroutine-spawning Invoker, mostly
// for tests that want to wait for every spawned goroutine to settle.
func (s *Synchronizer) SetInvoker(invoker Invoker) {
	s.invoker = invoker
}

func (s *Synchronizer) currentCommittee() *types.Committee {
	return s.committee.Load()
}

func (s *Synchronizer) currentWorkerCache() *types.WorkerCache {
	return s.workerCache.Load()
}

// State reports the loop's current state, mostly for tests.
func (s *Synchronizer) State() LoopState {
	return s.state
}
