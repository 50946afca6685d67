package core

import "github.com/jabolina/worker-sync/pkg/worker/network"

// handlePeerResponse implements spec.md §4.4 event source 2: a
// completed peer response future. On success, every batch whose
// digest is still pending is handed to the batch-processor channel and
// its pending entry removed; batches not in pending are silently
// dropped (already satisfied by another source). Transport errors are
// logged at info, since occasional RPC failures are expected and the
// retry timer will escalate. A response landing after its originating
// epoch has moved on is still honored — content-addressing makes this
// safe — but noted at debug (SPEC_FULL.md §11's answer to spec.md §9's
// cross-epoch question).
func (s *Synchronizer) handlePeerResponse(result network.Result) {
	if result.Err != nil {
		s.log.Infof("peer response from %s failed: %v", result.Peer, result.Err)
		return
	}

	currentEpoch := s.currentWorkerCache().Epoch
	for _, batch := range result.Response.Batches {
		digest := batch.Digest()
		entry, ok := s.pending[digest]
		if !ok {
			continue
		}
		if entry.epoch != currentEpoch {
			s.log.Debugf("honoring response for %s requested under epoch %d, now at epoch %d", digest, entry.epoch, currentEpoch)
		}
		delete(s.pending, digest)

		if s.downstream.Err() != nil {
			return
		}
		select {
		case s.txBatchProcessor <- batch:
		case <-s.downstream.Done():
			// Assume the processor is shutting down; stop handing off
			// the rest of this response's batches.
			return
		}
	}
}
