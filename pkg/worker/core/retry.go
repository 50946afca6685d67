package core

import "github.com/jabolina/worker-sync/pkg/worker/types"

// handleRetryTick implements spec.md §4.4 event source 3: the
// TIMER_RESOLUTION retry tick. Entries overdue by sync_retry_delay are
// escalated from the optimistic single-peer send to a randomized
// broadcast across this worker's siblings.
func (s *Synchronizer) handleRetryTick() {
	now := nowMillis()
	delayMillis := s.config.SyncRetryDelay.Milliseconds()

	var retry []types.BatchDigest
	for digest, entry := range s.pending {
		if entry.lastIssued+delayMillis <= now {
			retry = append(retry, digest)
			entry.lastIssued = now
			s.pending[digest] = entry
		}
	}

	if len(retry) > 0 {
		peers := s.currentWorkerCache().PeersForWorker(s.name, s.id)
		req := &types.WorkerBatchRequest{Digests: retry}
		for _, resultCh := range s.lucky.LuckyBroadcast(s.inFlightCtx, peers, req, s.config.SyncRetryNodes) {
			s.track(s.inFlightCtx, resultCh)
		}
	}

	epoch := s.currentWorkerCache().Epoch
	s.metrics.SetPending(uint64(epoch), len(s.pending))
}
