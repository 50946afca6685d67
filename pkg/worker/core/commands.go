package core

import (
	"time"

	"github.com/jabolina/worker-sync/pkg/worker/types"
)

func (s *Synchronizer) handlePrimaryCommand(cmd types.PrimaryCommand) {
	switch c := cmd.(type) {
	case types.Synchronize:
		s.handleSynchronize(c)
	case types.Cleanup:
		s.handleCleanup(c)
	case types.Reconfigure:
		s.handleReconfigure(c)
	case types.RequestBatch:
		s.handleRequestBatch(c)
	case types.DeleteBatches:
		s.handleDeleteBatches(c)
	default:
		s.log.Errorf("unknown primary command: %#v", cmd)
	}
}

// handleSynchronize implements spec.md §4.4's Synchronize command: a
// classification pass (available vs missing), immediate OthersBatch
// replies for what we already have, then a single outbound fetch for
// whatever is missing.
func (s *Synchronizer) handleSynchronize(cmd types.Synchronize) {
	available := make([]types.BatchDigest, 0, len(cmd.Digests))
	missing := make([]types.BatchDigest, 0, len(cmd.Digests))

	for digest := range cmd.Digests {
		if _, alreadyPending := s.pending[digest]; alreadyPending {
			continue
		}

		batch, err := s.batchStore.Read(s.inFlightCtx, digest)
		if err != nil {
			s.log.Errorf("store read failed for %s: %v", digest, err)
			continue
		}
		if batch != nil {
			available = append(available, digest)
			continue
		}
		missing = append(missing, digest)
	}

	// Ordering guarantee from spec.md §5: all store lookups complete
	// and available replies are emitted before the outbound fetch for
	// missing digests is initiated.
	for _, digest := range available {
		reply := types.OthersBatch{Digest: digest, Worker: s.id}
		if !s.sendPrimaryReply(reply) {
			return
		}
	}

	if len(missing) == 0 {
		s.log.Debugf("all batches already available, nothing to request from peers: %v", cmd.Digests)
		return
	}

	now := nowMillis()
	epoch := s.currentWorkerCache().Epoch
	for _, digest := range missing {
		s.pending[digest] = pendingEntry{round: s.round, lastIssued: now, epoch: epoch}
	}

	workerName, err := s.currentWorkerCache().Worker(cmd.Target, s.id)
	if err != nil {
		s.log.Errorf("primary asked us to sync with an unknown node: %v", err)
		// Entries remain pending; the retry timer will pick them up
		// once the cache is refreshed (spec.md §7 row 4).
		return
	}

	s.log.Debugf("sending WorkerBatchRequest to %s for missing batches %v", workerName, missing)
	req := &types.WorkerBatchRequest{Digests: missing}
	resultCh := s.transport.Send(s.inFlightCtx, workerName, req)
	s.track(s.inFlightCtx, resultCh)
}

// handleCleanup implements spec.md §4.4's Cleanup command.
func (s *Synchronizer) handleCleanup(cmd types.Cleanup) {
	s.round = cmd.Round
	s.pending.gc(s.round, s.config.GCDepth)
}

// handleRequestBatch implements spec.md §4.4's RequestBatch command.
func (s *Synchronizer) handleRequestBatch(cmd types.RequestBatch) {
	batch, err := s.batchStore.Read(s.inFlightCtx, cmd.Digest)
	if err != nil || batch == nil {
		if err != nil {
			s.log.Errorf("store read failed for %s: %v", cmd.Digest, err)
		}
		s.sendPrimaryReply(types.ErrorMessage{Err: &types.RequestedBatchNotFound{Digest: cmd.Digest}})
		return
	}
	s.sendPrimaryReply(types.RequestedBatch{Digest: cmd.Digest, Batch: *batch})
}

// handleDeleteBatches implements spec.md §4.4's DeleteBatches command.
func (s *Synchronizer) handleDeleteBatches(cmd types.DeleteBatches) {
	if err := s.batchStore.Remove(s.inFlightCtx, cmd.Digests); err != nil {
		s.log.Errorf("failed deleting batches %v: %v", cmd.Digests, err)
		s.sendPrimaryReply(types.ErrorMessage{Err: &types.ErrorWhileDeletingBatches{Digests: cmd.Digests, Cause: err}})
		return
	}
	s.sendPrimaryReply(types.DeletedBatches{Digests: cmd.Digests})
}

// sendPrimaryReply sends a reply to the primary, returning false if
// downstream has gone away — interpreted as shutdown per spec.md §7
// row 5, at which point the caller abandons the current command.
func (s *Synchronizer) sendPrimaryReply(msg types.WorkerPrimaryMessage) bool {
	if s.downstream.Err() != nil {
		s.log.Debugf("primary reply channel shutting down, abandoning reply %#v", msg)
		return false
	}
	select {
	case s.txPrimary <- msg:
		return true
	case <-s.downstream.Done():
		s.log.Debugf("primary reply channel shutting down, abandoning reply %#v", msg)
		return false
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
